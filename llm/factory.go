// Provider factory - builder-first API for creating backend clients.
//
// Quick Start:
//
//	// Simplest: use defaults, read API key from environment
//	claude, err := llm.ProviderAnthropic.FromEnv()
//
//	// Full configuration
//	custom, err := llm.ProviderOpenAI.
//	    Model(llm.ModelOpenAIGPT4o).
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    FromEnv()
//
//	// With explicit API key
//	provider, err := llm.ProviderGemini.APIKey("...")

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM backends.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI backend (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic backend (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek backend.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini backend.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelOpenAIGPT4o
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash2
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for
// everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring backends.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
	stop         []string
	encoder      ResultEncoder
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// Stop sets stop sequences.
func (b *ProviderBuilder) Stop(stop []string) *ProviderBuilder {
	b.stop = stop
	return b
}

// ResultEncoder overrides the backend's default tool result encoding.
func (b *ProviderBuilder) ResultEncoder(enc ResultEncoder) *ProviderBuilder {
	b.encoder = enc
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7) // default
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		p := NewOpenAIProvider(apiKey, model, maxTokens, temperature).WithStop(b.stop)
		if b.encoder != nil {
			p.WithResultEncoder(b.encoder)
		}
		return p, nil
	case ProviderAnthropic:
		p := NewAnthropicProvider(apiKey, model, maxTokens, temperature).WithStop(b.stop)
		if b.encoder != nil {
			p.WithResultEncoder(b.encoder)
		}
		return p, nil
	case ProviderDeepSeek:
		p := NewDeepSeekProvider(apiKey, model, maxTokens, temperature).WithStop(b.stop)
		if b.encoder != nil {
			p.WithResultEncoder(b.encoder)
		}
		return p, nil
	case ProviderGemini:
		p := NewGeminiProvider(apiKey, model, maxTokens, temperature).WithStop(b.stop)
		if b.encoder != nil {
			p.WithResultEncoder(b.encoder)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Model identifier constants for the supported backends.

// OpenAI model identifiers
const (
	// ModelOpenAIGPT4o is GPT-4o.
	ModelOpenAIGPT4o = "gpt-4o"
	// ModelOpenAIGPT4oMini is GPT-4o-mini.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
	// ModelOpenAIO3Mini is O3-mini, an efficient reasoning model.
	ModelOpenAIO3Mini = "o3-mini"
)

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4: balanced performance.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelAnthropicClaudeHaiku4 is Claude Haiku 4: fast and efficient.
	ModelAnthropicClaudeHaiku4 = "claude-haiku-4-20250514"
)

// DeepSeek model identifiers
const (
	// ModelDeepSeekChat is the general chat model.
	ModelDeepSeekChat = "deepseek-chat"
	// ModelDeepSeekReasoner is the reasoning model with chain-of-thought.
	ModelDeepSeekReasoner = "deepseek-reasoner"
)

// Gemini model identifiers
const (
	// ModelGeminiFlash2 is Gemini 2.0 Flash: speed optimized.
	ModelGeminiFlash2 = "gemini-2.0-flash"
	// ModelGeminiPro2 is Gemini 2.0 Pro: advanced reasoning.
	ModelGeminiPro2 = "gemini-2.0-pro"
)
