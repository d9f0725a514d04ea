package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/statforge/pkg/generation"
)

// Provider names accepted by New.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderMock     = "mock"
)

const defaultDeepSeekURL = "https://api.deepseek.com"

// Settings configures a backend.
type Settings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// New creates the backend named by cfg.Provider.
func New(ctx context.Context, cfg Settings) (generation.Backend, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderDeepSeek:
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultDeepSeekURL
		}
		b, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		// DeepSeek only understands json_object response formats.
		b.jsonObjectOnly = true
		return b, nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderMock:
		return &generation.MockBackend{}, nil
	case "":
		return nil, errors.New("llm provider is required")
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
