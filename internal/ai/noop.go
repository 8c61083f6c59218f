package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by NoopProvider for every call.
var ErrNotConfigured = errors.New("AI provider not configured; run 'pct init' or set ANTHROPIC_API_KEY")

// NoopProvider is used when no AI provider is configured.
// IsAvailable always returns false and Analyze returns ErrNotConfigured.
type NoopProvider struct{}

func (n *NoopProvider) Name() string                       { return "none" }
func (n *NoopProvider) Model() string                      { return "" }
func (n *NoopProvider) IsAvailable(_ context.Context) bool { return false }

func (n *NoopProvider) Analyze(_ context.Context, _ Request) (string, error) {
	return "", ErrNotConfigured
}
