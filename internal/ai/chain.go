package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	failureThreshold = 3
	resetTimeout     = 2 * time.Minute
)

type circuitBreaker struct {
	mu           sync.Mutex
	failures     int
	lastFailedAt time.Time
	state        string
	now          func() time.Time
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		state: "closed",
		now:   time.Now,
	}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == "open" {
		if cb.now().Sub(cb.lastFailedAt) >= resetTimeout {
			cb.state = "half-open"
			return true
		}
		return false
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = "closed"
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailedAt = cb.now()

	if cb.failures >= failureThreshold || cb.state == "half-open" {
		cb.state = "open"
		slog.Debug("ai: circuit breaker opened", "failures", cb.failures)
	}
}

func (cb *circuitBreaker) trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailedAt = cb.now()
	cb.state = "open"
}

// ChainProvider tries each provider in order until one answers.
// A provider that keeps failing is skipped until its breaker resets.
type ChainProvider struct {
	providers []Analyzer
	breakers  map[string]*circuitBreaker
	mu        sync.RWMutex
	current   string
	fallback  bool
}

func NewChain(providers []Analyzer) *ChainProvider {
	breakers := make(map[string]*circuitBreaker)
	for _, p := range providers {
		breakers[p.Name()] = newCircuitBreaker()
	}

	current := ""
	if len(providers) > 0 {
		current = providers[0].Name()
	}

	return &ChainProvider{
		providers: providers,
		breakers:  breakers,
		current:   current,
	}
}

func (c *ChainProvider) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Model reports the model of the provider that answered last.
func (c *ChainProvider) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.providers {
		if p.Name() == c.current {
			return p.Model()
		}
	}
	return ""
}

func (c *ChainProvider) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (c *ChainProvider) Analyze(ctx context.Context, req Request) (string, error) {
	var lastErr error
	var usedFallback bool

	for _, p := range c.providers {
		cb := c.breakers[p.Name()]
		if !cb.allow() {
			slog.Debug("ai: circuit open, skipping provider", "provider", p.Name())
			continue
		}

		out, err := p.Analyze(ctx, req)
		if err == nil {
			cb.recordSuccess()
			c.mu.Lock()
			c.current = p.Name()
			c.fallback = usedFallback
			c.mu.Unlock()

			if usedFallback {
				slog.Info("ai: provider succeeded after failover", "provider", p.Name())
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		switch {
		case isAuthError(err):
			cb.trip()
			slog.Warn("ai: auth error, opening circuit", "provider", p.Name(), "error", err)
		case isRetriableError(err):
			cb.recordFailure()
		}

		slog.Warn("ai: provider failed, trying next", "provider", p.Name(), "file", req.FilePath, "error", err)
		lastErr = err
		usedFallback = true
	}

	if lastErr == nil {
		return "", fmt.Errorf("all AI providers are circuit-broken")
	}
	return "", fmt.Errorf("all AI providers failed; last error: %w", lastErr)
}

// CurrentProvider reports the provider that answered last and whether it
// was reached through failover.
func (c *ChainProvider) CurrentProvider() (provider string, fallback bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.fallback
}
