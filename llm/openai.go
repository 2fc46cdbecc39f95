// OpenAI backend client using the go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Streaming tool-call reassembly from indexed deltas

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tessello/tessello/schema"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	stop        []string
	encoder     ResultEncoder
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
		encoder:     NativeEncoder{},
	}
}

// WithStop sets stop sequences for subsequent requests.
func (p *OpenAIProvider) WithStop(stop []string) *OpenAIProvider {
	p.stop = stop
	return p
}

// WithResultEncoder overrides the default tool result encoding.
func (p *OpenAIProvider) WithResultEncoder(enc ResultEncoder) *OpenAIProvider {
	p.encoder = enc
	return p
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// ToolDialect reports the strict-object dialect.
func (p *OpenAIProvider) ToolDialect() schema.Dialect {
	return schema.DialectOpenAI
}

// ResultEncoder reports the configured tool result encoding.
func (p *OpenAIProvider) ResultEncoder() ResultEncoder {
	return p.encoder
}

// Chat sends one non-streaming completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	req := p.request(messages, tools)

	resp, err := p.client.CreateChatCompletion(ctx, req)
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
func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error) {
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

func (p *OpenAIProvider) request(messages []ChatMessage, tools []ToolDefinition) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stop:        p.stop,
		Tools:       convertToOpenAITools(tools),
	}
}

// openaiStreamReceiver is the subset of the SDK stream the pump needs.
type openaiStreamReceiver interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
}

// pumpOpenAIStream demultiplexes SDK stream responses into canonical
// chunks. Tool-call deltas arrive fragmented and indexed; they are
// reassembled and emitted, in index order, once the stream finishes.
func pumpOpenAIStream(stream openaiStreamReceiver, emit func(StreamChunk)) error {
	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	calls := make(map[int]*partialCall)
	var usage *TokenUsage

	flush := func() {
		indexes := make([]int, 0, len(calls))
		for i := range calls {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			pc := calls[i]
			emit(ToolCallChunk(ToolCall{
				ID:        pc.id,
				Name:      pc.name,
				Arguments: []byte(pc.args.String()),
			}))
		}
	}

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			flush()
			emit(DoneChunk(usage))
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream recv failed: %w", err)
		}

		// Usage arrives in a trailing chunk with no choices.
		if response.Usage != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}
		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta
		if delta.Content != "" {
			emit(TextChunk(delta.Content))
		}
		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			pc, ok := calls[index]
			if !ok {
				pc = &partialCall{}
				calls[index] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name += tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
	}
}

// convertToOpenAIMessages converts canonical messages, including assistant
// tool calls and tool-role results.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}
		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions into the strict-object
// dialect.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema.ForOpenAI(t.Parameters),
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
