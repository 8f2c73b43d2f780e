package perception

import (
	"fmt"
	"time"

	"warvox/internal/types"
)

// Provider names accepted by NewClient.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderXAI        = "xai"
	ProviderGemini     = "gemini"
)

// ClientOptions are the provider-independent knobs.
type ClientOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// NewClient builds an LLM client for the named provider. OpenRouter and
// xAI are OpenAI-compatible, only the base URL differs.
func NewClient(provider string, opts ClientOptions) (types.LLMClient, error) {
	switch provider {
	case ProviderOpenAI, "":
		cfg := DefaultOpenAIConfig(opts.APIKey)
		applyOpenAIOptions(&cfg, opts)
		return NewOpenAIClient(cfg), nil
	case ProviderOpenRouter:
		cfg := DefaultOpenAIConfig(opts.APIKey)
		cfg.BaseURL = "https://openrouter.ai/api/v1"
		applyOpenAIOptions(&cfg, opts)
		return NewOpenAIClient(cfg), nil
	case ProviderXAI:
		cfg := DefaultOpenAIConfig(opts.APIKey)
		cfg.BaseURL = "https://api.x.ai/v1"
		cfg.Model = "grok-3-mini"
		applyOpenAIOptions(&cfg, opts)
		return NewOpenAIClient(cfg), nil
	case ProviderGemini:
		cfg := DefaultGeminiConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.MaxTokens > 0 {
			cfg.MaxOutputTokens = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			cfg.Temperature = opts.Temperature
		}
		return NewGeminiClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

func applyOpenAIOptions(cfg *OpenAIConfig, opts ClientOptions) {
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.MaxTokens > 0 {
		cfg.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		cfg.Temperature = opts.Temperature
	}
}
