// Package llm provides shared data models for LLM backends.
package llm

import "encoding/json"

// ChatMessage represents a chat message with role and content.
// Role is one of "system", "user", "assistant" or "tool".
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages that issued calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages
}

// ToolCall is a tool invocation requested by the model. ID is opaque and
// must be echoed back with the matching result.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool the model may call. Parameters is a
// canonical JSON-schema tree (see the schema package); it is owned by the
// tool author and treated as immutable after registration.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// ToolResultMessage creates a tool-role message carrying a serialized result.
func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}

// Response is a complete (non-streaming) backend response.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// Add accumulates another usage report into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChunkType tags a StreamChunk variant.
type ChunkType int

const (
	// ChunkText carries a fragment of assistant text.
	ChunkText ChunkType = iota
	// ChunkToolCall carries one complete tool invocation request.
	ChunkToolCall
	// ChunkDone terminates the stream, optionally with usage.
	ChunkDone
	// ChunkError terminates the stream with a transport failure.
	ChunkError
)

// StreamChunk is one tagged event in a response stream. Exactly one done
// or error chunk terminates a stream; text and tool-call chunks may repeat
// arbitrarily before it.
type StreamChunk struct {
	Type     ChunkType
	Text     string
	ToolCall *ToolCall
	Usage    *TokenUsage
	Err      error
}

// TextChunk creates a text chunk.
func TextChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkText, Text: text}
}

// ToolCallChunk creates a tool-call chunk.
func ToolCallChunk(call ToolCall) StreamChunk {
	return StreamChunk{Type: ChunkToolCall, ToolCall: &call}
}

// DoneChunk creates the terminal success chunk.
func DoneChunk(usage *TokenUsage) StreamChunk {
	return StreamChunk{Type: ChunkDone, Usage: usage}
}

// ErrorChunk creates the terminal failure chunk.
func ErrorChunk(err error) StreamChunk {
	return StreamChunk{Type: ChunkError, Err: err}
}
