// Anthropic backend client using the official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Messages API
// - System prompt extraction (Anthropic takes it outside the message list)
// - SSE event demultiplexing, including partial tool input JSON

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tessello/tessello/schema"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	stop        []string
	encoder     ResultEncoder
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
		encoder:     NativeEncoder{},
	}
}

// WithStop sets stop sequences for subsequent requests.
func (p *AnthropicProvider) WithStop(stop []string) *AnthropicProvider {
	p.stop = stop
	return p
}

// WithResultEncoder overrides the default tool result encoding.
func (p *AnthropicProvider) WithResultEncoder(enc ResultEncoder) *AnthropicProvider {
	p.encoder = enc
	return p
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// ToolDialect reports the schema-as-is dialect.
func (p *AnthropicProvider) ToolDialect() schema.Dialect {
	return schema.DialectAnthropic
}

// ResultEncoder reports the configured tool result encoding.
func (p *AnthropicProvider) ResultEncoder() ResultEncoder {
	return p.encoder
}

// Chat sends one non-streaming completion request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	message, err := p.client.Messages.New(ctx, p.request(messages, tools))
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var out Response
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: inputJSON,
			})
		}
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		out.Usage = &TokenUsage{
			PromptTokens:     uint32(message.Usage.InputTokens),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}
	return out, nil
}

// ChatStream starts a streaming completion.
func (p *AnthropicProvider) ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error) {
	sdkStream := p.client.Messages.NewStreaming(ctx, p.request(messages, tools))

	return startPump(ctx, func() { sdkStream.Close() }, func(ctx context.Context, emit func(StreamChunk)) error {
		return pumpAnthropicStream(sdkStream, emit)
	})
}

func (p *AnthropicProvider) request(messages []ChatMessage, tools []ToolDefinition) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
		Tools:       convertToAnthropicTools(tools),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	if len(p.stop) > 0 {
		params.StopSequences = p.stop
	}
	return params
}

// anthropicEventStream is the subset of the SDK stream the pump needs.
type anthropicEventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

// pumpAnthropicStream demultiplexes SSE events into canonical chunks.
// Tool input arrives as partial JSON deltas between a content-block start
// and stop; one tool-call chunk is emitted per completed block.
func pumpAnthropicStream(stream anthropicEventStream, emit func(StreamChunk)) error {
	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	var pending *partialCall
	var usage *TokenUsage

	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			if eventVariant.Message.Usage.InputTokens > 0 {
				usage = &TokenUsage{
					PromptTokens: uint32(eventVariant.Message.Usage.InputTokens),
				}
			}
		case anthropic.ContentBlockStartEvent:
			switch blockVariant := eventVariant.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				pending = &partialCall{id: blockVariant.ID, name: blockVariant.Name}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					emit(TextChunk(deltaVariant.Text))
				}
			case anthropic.InputJSONDelta:
				if pending != nil {
					pending.args.WriteString(deltaVariant.PartialJSON)
				}
			}
		case anthropic.ContentBlockStopEvent:
			if pending != nil {
				args := pending.args.String()
				if args == "" {
					args = "{}"
				}
				emit(ToolCallChunk(ToolCall{
					ID:        pending.id,
					Name:      pending.name,
					Arguments: []byte(args),
				}))
				pending = nil
			}
		case anthropic.MessageDeltaEvent:
			if eventVariant.Usage.OutputTokens > 0 {
				if usage == nil {
					usage = &TokenUsage{}
				}
				usage.CompletionTokens = uint32(eventVariant.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	emit(DoneChunk(usage))
	return nil
}

// convertToAnthropicMessages converts canonical messages. The system
// message is extracted and returned separately: Anthropic carries it
// outside the message list.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
				}
				if msg.Content != "" {
					content.Content = append(content.Content, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					var input map[string]interface{}
					_ = json.Unmarshal(tc.Arguments, &input)
					content.Content = append(content.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    tc.ID,
							Name:  tc.Name,
							Input: input,
						},
					})
				}
				anthropicMessages = append(anthropicMessages, *content)
			} else {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		case "tool":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// convertToAnthropicTools converts tool definitions. The dialect accepts
// the normalized schema as-is; only the envelope differs.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		params := schema.ForAnthropic(t.Parameters)
		properties, _ := params["properties"].(map[string]any)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   requiredNames(params),
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// requiredNames reads a schema's required list, tolerating both the
// []string form tool authors write and the []any form JSON decoding
// produces.
func requiredNames(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
