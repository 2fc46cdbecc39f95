// LLM Provider interface - the abstract interface for backend chat clients.
//
// Each implementation hides:
// - API client initialization and authentication
// - Request/response format conversion, including tool schema dialects
// - Demultiplexing of the backend's native streaming events

package llm

import (
	"context"

	"github.com/tessello/tessello/schema"
)

// Provider is a backend chat client. Implementations translate the
// canonical (messages, tools) tuple into their backend's request envelope
// and normalize responses back into canonical form.
//
// Implementations hold no shared mutable state across calls; a Provider
// is safe for concurrent use.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends one non-streaming completion request. tools may be nil.
	Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error)

	// ChatStream starts a streaming completion. The returned stream is
	// single-consumer; the caller must drain it or call Close.
	ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error)

	// ToolDialect reports the schema dialect this backend expects.
	ToolDialect() schema.Dialect

	// ResultEncoder reports how tool results should be folded back into
	// the conversation for this backend.
	ResultEncoder() ResultEncoder
}
