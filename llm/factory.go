// LLM Provider Factory - builder API for creating LLM providers.
//
// Quick Start:
//
//	// From a session config; API key falls back to the provider's env var
//	provider, err := llm.NewProvider(llm.ReasoningConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514"})
//
//	// Builder with explicit settings
//	custom, err := llm.ProviderAnthropic.
//	    Model(llm.ModelAnthropicClaudeSonnet4).
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    FromEnv()
//
//	// Against a proxy
//	proxied, err := llm.ProviderOpenAI.Model("gpt-4o").BaseURL("http://localhost:8080/v1").APIKey("sk-...")

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// Defaults applied when a config leaves a value unset.
const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.7
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
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// NewProvider builds the adapter a ReasoningConfig names. The API key comes
// from cfg or, when empty, from the provider's environment variable.
// No network I/O happens here.
func NewProvider(cfg ReasoningConfig, opts ...ClientOption) (Provider, error) {
	providerType, err := ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}

	b := NewProviderBuilder(providerType).
		Model(cfg.Model).
		MaxTokens(cfg.MaxTokens).
		Temperature(cfg.Temperature)
	b.opts = append(b.opts, opts...)

	if cfg.APIKey != "" {
		return b.APIKey(cfg.APIKey)
	}
	return b.FromEnv()
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    int
	temperature  *float64
	opts         []ClientOption
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
func (b *ProviderBuilder) MaxTokens(tokens int) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float64) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// BaseURL points the provider at another endpoint.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.opts = append(b.opts, WithBaseURL(url))
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w: %s environment variable not set", b.providerType, ErrMissingAPIKey, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	if key == "" {
		return nil, fmt.Errorf("%s: %w", b.providerType, ErrMissingAPIKey)
	}
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := DefaultTemperature
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature, b.opts...), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature, b.opts...), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(apiKey, model, maxTokens, temperature, b.opts...), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature, b.opts...), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownProvider, b.providerType)
	}
}

// Default model identifiers for the supported providers.
const (
	ModelOpenAIGPT4o            = "gpt-4o"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelDeepSeekChat           = "deepseek-chat"
	ModelGeminiFlash2           = "gemini-2.0-flash"
)
