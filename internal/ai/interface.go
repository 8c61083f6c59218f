package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/pct/internal/config"
)

// Analyzer sends one prompt to a language model and returns its raw text.
// To add a new provider:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Analyzer
//  3. Register in newSingle()
type Analyzer interface {
	// Name returns the provider identifier (e.g. "anthropic", "ollama").
	Name() string

	// Model returns the model the provider sends requests to.
	Model() string

	// IsAvailable verifies the provider is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// Analyze sends req and returns the model's response text unparsed.
	Analyze(ctx context.Context, req Request) (string, error)
}

// Request is one analyzer call.
type Request struct {
	// System is the system prompt.
	System string
	// Prompt is the user prompt with the source already embedded.
	Prompt string
	// FilePath and Language identify the unit for logging.
	FilePath string
	Language string
}

// New returns the configured Analyzer.
// If no provider or API key is set, it returns a NoopProvider; callers should
// check IsAvailable() before starting a batch.
// Each real provider is wrapped with retries. If fallback providers are
// configured, returns a ChainProvider that tries them in order on failure
// with circuit breaker protection.
func New(cfg config.AIConfig) (Analyzer, error) {
	primary, err := newSingle(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Fallback) == 0 {
		return primary, nil
	}

	chain := []Analyzer{primary}
	for _, fallbackProvider := range cfg.Fallback {
		if fallbackProvider == cfg.Provider {
			continue
		}
		p, err := newSingle(fallbackProvider, cfg)
		if err != nil {
			slog.Warn("ai: failed to create fallback provider, skipping", "provider", fallbackProvider, "error", err)
			continue
		}
		if _, noop := p.(*NoopProvider); noop {
			slog.Debug("ai: fallback provider not configured, skipping", "provider", fallbackProvider)
			continue
		}
		chain = append(chain, p)
	}

	if len(chain) == 1 {
		return primary, nil
	}

	return NewChain(chain), nil
}

func newSingle(provider string, cfg config.AIConfig) (Analyzer, error) {
	var (
		p   Analyzer
		err error
	)
	switch provider {
	case "", "none":
		return &NoopProvider{}, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return &NoopProvider{}, nil
		}
		p = NewAnthropic(cfg)
	case "openai":
		if cfg.OpenAIKey == "" {
			return &NoopProvider{}, nil
		}
		p, err = NewOpenAI(cfg)
	case "ollama":
		p, err = NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (supported: anthropic, openai, ollama, none)", provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(p, cfg.MaxRetries, time.Second), nil
}
