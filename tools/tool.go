// Package tools provides tool registration, policy filtering, and a
// containment-first execution engine for model-requested tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ProgressFunc reports human-readable progress lines while a tool runs.
// Implementations must tolerate a nil ProgressFunc.
type ProgressFunc func(message string)

// Capabilities describes what the host grants a tool at execution time.
type Capabilities struct {
	// HostAvailable indicates the tool may touch the host (network,
	// filesystem outside the workspace).
	HostAvailable bool
	// Workspace is the directory the tool may freely read and write.
	Workspace string
}

// PartType discriminates the content parts of a tool result.
type PartType int

const (
	// PartText is plain text content.
	PartText PartType = iota
	// PartImage is binary image content with a MIME type.
	PartImage
	// PartJSON is structured JSON content.
	PartJSON
)

// Part is one piece of tool result content.
type Part struct {
	Type PartType
	Text string
	MIME string
	Data []byte
	JSON json.RawMessage
}

// TextPart creates a plain text content part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates a binary image content part.
func ImagePart(mime string, data []byte) Part {
	return Part{Type: PartImage, MIME: mime, Data: data}
}

// JSONPart creates a structured JSON content part.
func JSONPart(raw json.RawMessage) Part {
	return Part{Type: PartJSON, JSON: raw}
}

// Result is the outcome of a single tool execution. A failed execution
// is still a Result with IsError set; the engine reserves Go errors for
// cancellation.
type Result struct {
	// ToolCallID correlates the result with the model's tool call.
	ToolCallID string
	// Content holds the result payload parts.
	Content []Part
	// Details carries structured metadata about the execution.
	Details map[string]any
	// IsError marks the result as a failure report.
	IsError bool
}

// Text concatenates the text parts of the result.
func (r Result) Text() string {
	var b strings.Builder
	for _, p := range r.Content {
		switch p.Type {
		case PartText:
			b.WriteString(p.Text)
		case PartJSON:
			b.Write(p.JSON)
		}
	}
	return b.String()
}

// Serialize renders the result as a payload suitable for folding back
// into the conversation. Plain text results pass through unchanged;
// results with details or errors are rendered as JSON.
func (r Result) Serialize() string {
	if !r.IsError && len(r.Details) == 0 {
		return r.Text()
	}
	payload := map[string]any{
		"content": r.Text(),
	}
	if r.IsError {
		payload["is_error"] = true
	}
	for k, v := range r.Details {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return r.Text()
	}
	return string(data)
}

// TextResult creates a successful text result for the given call.
func TextResult(callID, text string) Result {
	return Result{
		ToolCallID: callID,
		Content:    []Part{TextPart(text)},
	}
}

// ErrorResult creates a failure result describing why a tool call did
// not succeed.
func ErrorResult(callID, toolName string, err error) Result {
	return Result{
		ToolCallID: callID,
		Content:    []Part{TextPart(fmt.Sprintf("tool %s failed: %v", toolName, err))},
		Details: map[string]any{
			"status": "error",
			"tool":   toolName,
			"error":  err.Error(),
		},
		IsError: true,
	}
}

// Metadata describes a tool to the registry and, through translation,
// to the model.
type Metadata struct {
	// Name is the tool's identifier. It is normalized on registration.
	Name string
	// Description tells the model what the tool does.
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
}

// Tool is something the model can invoke by name with JSON arguments.
type Tool interface {
	// Metadata returns the tool's name, description and parameter schema.
	Metadata() Metadata
	// Execute runs the tool. Implementations should honor ctx and report
	// failures through the returned Result rather than the error; a
	// non-nil error is treated as infrastructure failure (cancellation).
	Execute(ctx context.Context, callID string, args json.RawMessage, progress ProgressFunc) (Result, error)
}

// funcTool adapts a plain function into a Tool.
type funcTool struct {
	meta Metadata
	fn   func(ctx context.Context, callID string, args json.RawMessage, progress ProgressFunc) (Result, error)
}

// NewFunc wraps a function as a Tool with the given metadata.
func NewFunc(name, description string, parameters map[string]any, fn func(ctx context.Context, callID string, args json.RawMessage, progress ProgressFunc) (Result, error)) Tool {
	return &funcTool{
		meta: Metadata{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		fn: fn,
	}
}

func (t *funcTool) Metadata() Metadata { return t.meta }

func (t *funcTool) Execute(ctx context.Context, callID string, args json.RawMessage, progress ProgressFunc) (Result, error) {
	return t.fn(ctx, callID, args, progress)
}
