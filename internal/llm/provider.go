package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reportview/internal/logging"
)

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Provider sends one prompt to a generative-language service and returns
// the reply text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name ("gemini" or "openai")
	Name() string
}

// Config holds provider configuration
type Config struct {
	Type    string // "gemini" or "openai"
	Model   string
	BaseURL string // empty selects the provider's public endpoint
	Timeout time.Duration
}

// NewProvider creates a provider for apiKey.
func NewProvider(cfg Config, apiKey string, logger *logging.Logger) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Type {
	case "gemini", "":
		return NewGeminiProvider(apiKey, cfg.Model, cfg.BaseURL, cfg.Timeout, logger), nil
	case "openai":
		return NewOpenAIProvider(apiKey, cfg.Model, cfg.BaseURL, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider type: %s", cfg.Type)
	}
}
