// Google Gemini backend client using the official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - System instruction handling via config
// - Conversion of restricted-dialect schemas into genai.Schema values
// - Streaming via the SDK iterator

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/tessello/tessello/schema"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	stop        []string
	encoder     ResultEncoder
	initErr     error // client initialization error, reported on first use
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})

	p := &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
		encoder:     NativeEncoder{},
	}
	if err != nil {
		p.client = nil
		p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return p
}

// WithStop sets stop sequences for subsequent requests.
func (p *GeminiProvider) WithStop(stop []string) *GeminiProvider {
	p.stop = stop
	return p
}

// WithResultEncoder overrides the default tool result encoding.
func (p *GeminiProvider) WithResultEncoder(enc ResultEncoder) *GeminiProvider {
	p.encoder = enc
	return p
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// ToolDialect reports the restricted dialect.
func (p *GeminiProvider) ToolDialect() schema.Dialect {
	return schema.DialectGemini
}

// ResultEncoder reports the configured tool result encoding.
func (p *GeminiProvider) ResultEncoder() ResultEncoder {
	return p.encoder
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// Chat sends one non-streaming completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	if err := p.ready(); err != nil {
		return Response{}, err
	}

	contents, config := p.request(messages, tools)
	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var out Response
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					ID:        part.FunctionCall.Name, // Gemini uses name as ID
					Name:      part.FunctionCall.Name,
					Arguments: argsJSON,
				})
			}
		}
	}
	out.Usage = geminiUsage(response)
	return out, nil
}

// ChatStream starts a streaming completion.
func (p *GeminiProvider) ChatStream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChunkStream, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	contents, config := p.request(messages, tools)

	// The SDK iterator has no explicit close; it stops with the request
	// context, which Recv cancellation and Close both unwind through.
	return startPump(ctx, nil, func(ctx context.Context, emit func(StreamChunk)) error {
		var usage *TokenUsage
		for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
			if err != nil {
				return fmt.Errorf("stream error: %w", err)
			}
			if u := geminiUsage(response); u != nil {
				usage = u
			}
			if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
				continue
			}
			for _, part := range response.Candidates[0].Content.Parts {
				if part.Text != "" {
					emit(TextChunk(part.Text))
				}
				if part.FunctionCall != nil {
					argsJSON, _ := json.Marshal(part.FunctionCall.Args)
					emit(ToolCallChunk(ToolCall{
						ID:        part.FunctionCall.Name,
						Name:      part.FunctionCall.Name,
						Arguments: argsJSON,
					}))
				}
			}
		}
		emit(DoneChunk(usage))
		return nil
	})
}

func (p *GeminiProvider) request(messages []ChatMessage, tools []ToolDefinition) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents, systemInstruction := convertToGeminiMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		StopSequences:   p.stop,
		Tools:           convertToGeminiTools(tools),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return contents, config
}

func geminiUsage(response *genai.GenerateContentResponse) *TokenUsage {
	if response.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
		CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
	}
}

// convertToGeminiMessages converts canonical messages. The system message
// is extracted into the request config.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &genai.Content{Role: genai.RoleModel}
				if msg.Content != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
				}
				for _, tc := range msg.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal(tc.Arguments, &args)
					content.Parts = append(content.Parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: tc.Name,
							Args: args,
						},
					})
				}
				contents = append(contents, content)
			} else {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
			}
		case "tool":
			var result map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser, // Gemini expects tool results as user
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			})
		}
	}

	return contents, systemInstruction
}

// convertToGeminiTools converts tool definitions through the restricted
// dialect and into genai.Schema values.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(schema.ForGemini(t.Parameters)),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema converts a restricted-dialect schema tree into a
// genai.Schema. The tree is already free of const, unions and
// additionalProperties.
func toGeminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}

	out := &genai.Schema{Type: genai.TypeObject}
	if t, ok := params["type"].(string); ok {
		out.Type = mapToGeminiType(t)
	}
	if d, ok := params["description"].(string); ok {
		out.Description = d
	}
	out.Required = requiredNames(params)
	out.Enum = enumStrings(params)

	if props, ok := params["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			out.Properties[name] = toGeminiSchema(propMap)
		}
	}

	if out.Type == genai.TypeArray {
		if items, ok := params["items"].(map[string]any); ok {
			out.Items = toGeminiSchema(items)
		} else {
			// Gemini requires items for arrays.
			out.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	return out
}

// enumStrings renders a schema enum as the strings Gemini expects. A null
// member, kept by the restricted-dialect translator, becomes "null".
func enumStrings(params map[string]any) []string {
	values, ok := params["enum"].([]any)
	if !ok {
		if strs, ok := params["enum"].([]string); ok {
			return strs
		}
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch val := v.(type) {
		case string:
			out = append(out, val)
		case nil:
			out = append(out, "null")
		default:
			out = append(out, fmt.Sprintf("%v", val))
		}
	}
	return out
}

// mapToGeminiType maps a JSON schema type to a Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
