// Package ai provides the language-model backends used to turn a day's
// activity into a journal narrative. Each backend implements the same
// provider-agnostic interface; selection and credential resolution happen
// in NewProvider so callers never touch provider specifics.
package ai

import (
	"context"
	"log/slog"
	"os"

	"thornfield.dev/daybook/pkg/config"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Response from an AI provider.
type Response struct {
	Content      string
	StopReason   string // "end_turn", "max_tokens", etc.
	InputTokens  int
	OutputTokens int
}

// StreamChunk for streaming responses.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// Provider interface for AI operations.
type Provider interface {
	// IsAvailable checks if provider is available and configured.
	IsAvailable() bool

	// Chat performs a single-turn chat completion.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// StreamChat performs a streaming chat completion.
	// Returns a channel that receives chunks until Done is true or Error is set.
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// Name returns the provider name.
	Name() string
}

// Provider name constants.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// NewProvider creates an AI provider based on config. Environment variables
// take precedence over config file values for API keys. When cfg.Model is
// empty, per-provider defaults apply.
func NewProvider(cfg *config.AIConfig, verbose bool) (Provider, error) {
	if cfg == nil {
		return nil, dberrors.NewConfigError("ai", "config is nil")
	}

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		apiKey := envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
		if apiKey == "" {
			return nil, dberrors.NewConfigError("ai.anthropic_api_key",
				"Anthropic API key not set (set ANTHROPIC_API_KEY or ai.anthropic_api_key in config)")
		}
		return NewAnthropicProvider(apiKey, cfg.Model, cfg.Temperature, logger), nil

	case ProviderGemini:
		apiKey := envOr("GEMINI_API_KEY", cfg.GeminiAPIKey)
		if apiKey == "" {
			return nil, dberrors.NewConfigError("ai.gemini_api_key",
				"Gemini API key not set (set GEMINI_API_KEY or ai.gemini_api_key in config)")
		}
		return NewGeminiProvider(apiKey, cfg.Model, cfg.Temperature, logger), nil

	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaHost, cfg.Model, cfg.Temperature, logger), nil

	case ProviderOpenAI:
		apiKey := envOr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
		if apiKey == "" {
			return nil, dberrors.NewConfigError("ai.openai_api_key",
				"OpenAI API key not set (set OPENAI_API_KEY or ai.openai_api_key in config)")
		}
		return NewOpenAIProvider(apiKey, cfg.OpenAIBaseURL, cfg.Model, cfg.Temperature, logger), nil

	default:
		return nil, dberrors.NewConfigError("ai.provider",
			"unsupported AI provider: "+cfg.Provider+" (supported: anthropic, gemini, ollama, openai)")
	}
}

// envOr returns the environment variable's value when set, otherwise the
// config file value.
func envOr(envName, configValue string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return configValue
}
