// Package schema translates canonical tool parameter schemas into the
// JSON-schema dialects accepted by the supported backends.
//
// The canonical form is a plain map[string]any tree using the object /
// string / number / integer / boolean / array types with enum, required,
// nested properties and items. Translators are pure: they never mutate
// their input and they never fail; unsupported keywords are dropped per
// dialect, because tool schemas are best-effort hints to a model, not
// data validated at the boundary.
package schema

import "fmt"

// Dialect identifies a backend schema dialect.
type Dialect int

const (
	// DialectAuto defers the choice to the backend chat client.
	DialectAuto Dialect = iota
	// DialectOpenAI is the strict-object dialect: every object node
	// carries additionalProperties: false.
	DialectOpenAI
	// DialectAnthropic accepts the normalized schema as-is.
	DialectAnthropic
	// DialectGemini is the restricted dialect: no const, no
	// additionalProperties, no anyOf/oneOf.
	DialectGemini
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectAuto:
		return "auto"
	case DialectOpenAI:
		return "openai"
	case DialectAnthropic:
		return "anthropic"
	case DialectGemini:
		return "gemini"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// internalKeys are metadata fields used only by tool authors; they are
// stripped before any schema leaves the process.
var internalKeys = map[string]bool{
	"$schema":  true,
	"$id":      true,
	"title":    true,
	"examples": true,
	"default":  true,
}

func isInternalKey(key string) bool {
	if internalKeys[key] {
		return true
	}
	return len(key) > 2 && key[0] == 'x' && key[1] == '-'
}

// Normalize deep-copies a canonical schema and strips internal-only
// metadata fields. All translators start from this step.
func Normalize(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s))
	for k, v := range s {
		if isInternalKey(k) {
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if isInternalKey(k) {
				continue
			}
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Translate converts a canonical schema into the given dialect.
// DialectAuto returns the normalized schema unchanged; callers are
// expected to resolve Auto via the backend client before translating.
func Translate(d Dialect, s map[string]any) map[string]any {
	switch d {
	case DialectOpenAI:
		return ForOpenAI(s)
	case DialectGemini:
		return ForGemini(s)
	default:
		return ForAnthropic(s)
	}
}

// ForAnthropic returns the normalized schema verbatim. The dialect's only
// difference from canonical is the envelope it is embedded under, which is
// the backend client's responsibility.
func ForAnthropic(s map[string]any) map[string]any {
	return Normalize(s)
}

// ForOpenAI normalizes the schema and marks every object node with
// additionalProperties: false, as required by strict function calling.
// Nodes that already carry additionalProperties are left alone.
func ForOpenAI(s map[string]any) map[string]any {
	out := Normalize(s)
	strictify(out)
	return out
}

func strictify(node map[string]any) {
	if node == nil {
		return
	}
	if isObjectNode(node) {
		if _, ok := node["additionalProperties"]; !ok {
			node["additionalProperties"] = false
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strictify(pm)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		strictify(items)
	}
	for _, key := range []string{"anyOf", "oneOf"} {
		if branches, ok := node[key].([]any); ok {
			for _, b := range branches {
				if bm, ok := b.(map[string]any); ok {
					strictify(bm)
				}
			}
		}
	}
}

func isObjectNode(node map[string]any) bool {
	if t, ok := node["type"].(string); ok {
		return t == "object"
	}
	_, hasProps := node["properties"]
	return hasProps
}

// ForGemini normalizes the schema and rewrites it into the restricted
// dialect, which disallows const, additionalProperties and anyOf/oneOf.
func ForGemini(s map[string]any) map[string]any {
	norm := Normalize(s)
	if norm == nil {
		return nil
	}
	return restrict(norm)
}

// restrict rewrites one node of the tree. The input is already a private
// copy, so it is safe to read freely; the output is always a fresh map.
func restrict(node map[string]any) map[string]any {
	// const X becomes a single-value enum.
	if c, ok := node["const"]; ok {
		out := map[string]any{
			"type": inferType(c, node),
			"enum": []any{c},
		}
		copyDescription(node, out)
		return out
	}

	if branches, ok := unionBranches(node); ok {
		return restrictUnion(node, branches)
	}

	switch typeOf(node) {
	case "object":
		out := map[string]any{"type": "object"}
		copyDescription(node, out)
		if props, ok := node["properties"].(map[string]any); ok {
			rewritten := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					rewritten[name] = restrict(pm)
				}
			}
			out["properties"] = rewritten
		}
		if req, ok := node["required"]; ok {
			out["required"] = cloneValue(req)
		}
		return out
	case "array":
		out := map[string]any{"type": "array"}
		copyDescription(node, out)
		if items, ok := node["items"].(map[string]any); ok {
			out["items"] = restrict(items)
		}
		return out
	default:
		out := map[string]any{}
		if t := typeOf(node); t != "" {
			out["type"] = t
		}
		copyDescription(node, out)
		if enum, ok := node["enum"]; ok {
			out["enum"] = cloneValue(enum)
		}
		return out
	}
}

// restrictUnion flattens anyOf/oneOf. Branches that are all const collapse
// into a string enum; a literal null branch is appended to the enum rather
// than dropped. A union with at least one non-const branch recurses into
// the first non-null branch and discards the rest, a lossy fallback: the
// restricted dialect has no way to express the full union. A union
// exhausted by null branches fails safe to a bare string.
func restrictUnion(node map[string]any, branches []any) map[string]any {
	var values []any
	sawNull := false
	var firstNonNull map[string]any

	for _, b := range branches {
		bm, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if isNullBranch(bm) {
			sawNull = true
			continue
		}
		if c, hasConst := bm["const"]; hasConst {
			values = append(values, c)
			continue
		}
		if firstNonNull == nil {
			firstNonNull = bm
		}
	}

	if firstNonNull != nil {
		out := restrict(firstNonNull)
		copyDescription(node, out)
		return out
	}
	if len(values) > 0 {
		if sawNull {
			values = append(values, nil)
		}
		out := map[string]any{"type": "string", "enum": values}
		copyDescription(node, out)
		return out
	}
	out := map[string]any{"type": "string"}
	copyDescription(node, out)
	return out
}

func unionBranches(node map[string]any) ([]any, bool) {
	if b, ok := node["anyOf"].([]any); ok {
		return b, true
	}
	if b, ok := node["oneOf"].([]any); ok {
		return b, true
	}
	return nil, false
}

func isNullBranch(node map[string]any) bool {
	if t, ok := node["type"].(string); ok && t == "null" {
		return true
	}
	if c, ok := node["const"]; ok && c == nil {
		return true
	}
	return false
}

func typeOf(node map[string]any) string {
	if t, ok := node["type"].(string); ok {
		return t
	}
	if _, ok := node["properties"]; ok {
		return "object"
	}
	return ""
}

func inferType(value any, node map[string]any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	}
	if t := typeOf(node); t != "" {
		return t
	}
	return "string"
}

func copyDescription(from, to map[string]any) {
	if d, ok := from["description"].(string); ok && d != "" {
		to["description"] = d
	}
}
