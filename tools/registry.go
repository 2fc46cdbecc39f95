package tools

import (
	"sort"
	"strings"
	"sync"

	"github.com/tessello/tessello/llm"
)

// NormalizeName canonicalizes a tool name: lowercase, with every run of
// characters outside [a-z0-9_] collapsed to a single underscore, and
// leading/trailing underscores trimmed. Normalization is idempotent.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Registry holds the tools available for execution, keyed by normalized
// name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under its normalized name. Registering a second
// tool whose name normalizes to the same key replaces the first.
func (r *Registry) Register(tool Tool) {
	name := NormalizeName(tool.Metadata().Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
}

// Unregister removes a tool by name. Reports whether a tool was removed.
func (r *Registry) Unregister(name string) bool {
	key := NormalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[key]; !ok {
		return false
	}
	delete(r.tools, key)
	return true
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	key := NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[key]
	return ok
}

// Get looks up a tool by name (normalized before lookup).
func (r *Registry) Get(name string) (Tool, bool) {
	key := NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[key]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name. The
// returned metadata carries normalized names.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]Metadata, 0, len(r.tools))
	for name, t := range r.tools {
		m := t.Metadata()
		m.Name = name
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// Definitions renders the registered tools as dialect-agnostic
// definitions ready for translation.
func (r *Registry) Definitions() []llm.ToolDefinition {
	metas := r.List()
	defs := make([]llm.ToolDefinition, 0, len(metas))
	for _, m := range metas {
		params := m.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  params,
		})
	}
	return defs
}

// Policy restricts which tools are exposed to the model. An empty
// policy allows everything. When Allow is non-empty only listed tools
// pass; Deny then removes tools from whatever remains.
type Policy struct {
	Allow []string
	Deny  []string
}

// Filter applies the policy to a set of tool definitions, preserving
// order. Policy names are normalized before matching.
func (p Policy) Filter(defs []llm.ToolDefinition) []llm.ToolDefinition {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return defs
	}
	allow := make(map[string]bool, len(p.Allow))
	for _, name := range p.Allow {
		allow[NormalizeName(name)] = true
	}
	deny := make(map[string]bool, len(p.Deny))
	for _, name := range p.Deny {
		deny[NormalizeName(name)] = true
	}
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, def := range defs {
		key := NormalizeName(def.Name)
		if len(allow) > 0 && !allow[key] {
			continue
		}
		if deny[key] {
			continue
		}
		out = append(out, def)
	}
	return out
}
