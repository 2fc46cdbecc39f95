// Client - simple wrapper around providers.

package llm

import (
	"context"
)

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (string, error) {
	response, err := c.provider.Chat(ctx, messages, tools)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// ChatWithUsage sends a chat completion request and returns content with
// token usage.
func (c *Client) ChatWithUsage(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (string, *TokenUsage, error) {
	response, err := c.provider.Chat(ctx, messages, tools)
	if err != nil {
		return "", nil, err
	}
	return response.Content, response.Usage, nil
}

// ChatStream starts a streaming chat completion. Cancel ctx to abandon
// the stream; the underlying transport is released either way.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error) {
	return c.provider.ChatStream(ctx, messages, tools)
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
