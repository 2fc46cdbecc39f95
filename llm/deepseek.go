// DeepSeek backend client using the go-openai library.
//
// Information Hiding:
// - OpenAI-compatible API with a different base URL
// - Tool results delivered as plain turns: the reasoner request path
//   rejects tool-role messages, so the text encoding is the default here

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tessello/tessello/schema"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	stop        []string
	encoder     ResultEncoder
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *DeepSeekProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
		encoder:     TextEncoder{},
	}
}

// WithStop sets stop sequences for subsequent requests.
func (p *DeepSeekProvider) WithStop(stop []string) *DeepSeekProvider {
	p.stop = stop
	return p
}

// WithResultEncoder overrides the default tool result encoding.
func (p *DeepSeekProvider) WithResultEncoder(enc ResultEncoder) *DeepSeekProvider {
	p.encoder = enc
	return p
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

// Model returns the current model.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

// ToolDialect reports the strict-object dialect.
func (p *DeepSeekProvider) ToolDialect() schema.Dialect {
	return schema.DialectOpenAI
}

// ResultEncoder reports the configured tool result encoding.
func (p *DeepSeekProvider) ResultEncoder() ResultEncoder {
	return p.encoder
}

// Chat sends one non-streaming completion request.
func (p *DeepSeekProvider) Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, tools))
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var out Response
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}
	out.Usage = &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}
	return out, nil
}

// ChatStream starts a streaming completion.
func (p *DeepSeekProvider) ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error) {
	req := p.request(messages, tools)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	sdkStream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}

	return startPump(ctx, func() { sdkStream.Close() }, func(ctx context.Context, emit func(StreamChunk)) error {
		return pumpOpenAIStream(sdkStream, emit)
	})
}

func (p *DeepSeekProvider) request(messages []ChatMessage, tools []ToolDefinition) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
		Stop:                p.stop,
		Tools:               convertToOpenAITools(tools),
	}
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
