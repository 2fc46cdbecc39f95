// Tool result encodings.
//
// Some backends (or some request paths on a backend) reject tool-role
// messages outright. Rather than hard-coding one workaround for all
// backends, the encoding is a strategy each provider selects.

package llm

import (
	"fmt"
	"strings"
)

// ResultEncoder folds a tool exchange back into the conversation.
type ResultEncoder interface {
	// CallTurn records the assistant turn that issued the calls.
	CallTurn(text string, calls []ToolCall) []ChatMessage

	// ResultTurn carries one serialized tool result back to the model.
	ResultTurn(call ToolCall, payload string, isError bool) ChatMessage
}

// NativeEncoder uses the backend's structured tool messages: an assistant
// message carrying the calls, then one tool-role message per result.
type NativeEncoder struct{}

// CallTurn returns a single assistant message carrying every call.
func (NativeEncoder) CallTurn(text string, calls []ToolCall) []ChatMessage {
	return []ChatMessage{{Role: "assistant", Content: text, ToolCalls: calls}}
}

// ResultTurn returns a tool-role message echoing the call id.
func (NativeEncoder) ResultTurn(call ToolCall, payload string, _ bool) ChatMessage {
	return ToolResultMessage(call.ID, payload)
}

// TextEncoder delivers tool exchanges as ordinary conversation turns, for
// backends that do not accept a tool role. The call is recorded in the
// assistant text and the result arrives as a user message.
type TextEncoder struct{}

// CallTurn returns an assistant message describing the issued calls.
func (TextEncoder) CallTurn(text string, calls []ToolCall) []ChatMessage {
	var b strings.Builder
	b.WriteString(text)
	for _, call := range calls {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[tool call %s: %s(%s)]", call.ID, call.Name, string(call.Arguments))
	}
	return []ChatMessage{AssistantMessage(b.String())}
}

// ResultTurn returns a user message carrying the serialized result.
func (TextEncoder) ResultTurn(call ToolCall, payload string, isError bool) ChatMessage {
	status := "result"
	if isError {
		status = "error"
	}
	return UserMessage(fmt.Sprintf("[tool %s %s %s]\n%s", call.Name, call.ID, status, payload))
}
