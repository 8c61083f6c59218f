package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxBackoff caps a single retry wait.
const maxBackoff = 30 * time.Second

// APIError is a non-2xx reply from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
	// RetryAfter is the server-requested wait, if any.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, truncateForError(e.Body, 300))
}

func newAPIError(provider string, resp *http.Response, body []byte) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After"), string(body)),
	}
}

// retryingAnalyzer retries retriable failures with exponential backoff
// (base, 2*base, 4*base...).
type retryingAnalyzer struct {
	inner      Analyzer
	maxRetries int
	base       time.Duration
	sleep      func(context.Context, time.Duration) error
}

// WithRetry wraps inner so that retriable errors are retried up to maxRetries
// times. A maxRetries of 0 returns inner unchanged.
func WithRetry(inner Analyzer, maxRetries int, base time.Duration) Analyzer {
	if maxRetries <= 0 {
		return inner
	}
	return &retryingAnalyzer{inner: inner, maxRetries: maxRetries, base: base, sleep: sleepWithContext}
}

func (r *retryingAnalyzer) Name() string  { return r.inner.Name() }
func (r *retryingAnalyzer) Model() string { return r.inner.Model() }

func (r *retryingAnalyzer) IsAvailable(ctx context.Context) bool {
	return r.inner.IsAvailable(ctx)
}

func (r *retryingAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		out, err := r.inner.Analyze(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == r.maxRetries || !isRetriableError(err) || ctx.Err() != nil {
			break
		}
		wait := r.backoff(err, attempt)
		slog.Warn("ai: request failed; retrying",
			"provider", r.inner.Name(),
			"file", req.FilePath,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"wait", wait.String(),
			"error", err,
		)
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *retryingAnalyzer) backoff(err error, attempt int) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, maxBackoff)
	}
	return min(r.base*time.Duration(1<<attempt), maxBackoff)
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused"):
		return true
	case strings.Contains(errStr, "connection reset") || strings.Contains(errStr, "eof"):
		return true
	default:
		return false
	}
}

func isAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfter reads a Retry-After header, falling back to the
// "please try again in 1.5s" hint some providers put in the body.
func retryAfter(header, body string) time.Duration {
	if ra := strings.TrimSpace(header); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	bl := strings.ToLower(body)
	if idx := strings.Index(bl, "please try again in "); idx >= 0 {
		rest := bl[idx+len("please try again in "):]
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			token := strings.Trim(fields[0], ".,")
			if strings.HasSuffix(token, "ms") {
				if n, err := strconv.ParseFloat(strings.TrimSuffix(token, "ms"), 64); err == nil && n > 0 {
					return time.Duration(n * float64(time.Millisecond))
				}
			}
			if strings.HasSuffix(token, "s") {
				if n, err := strconv.ParseFloat(strings.TrimSuffix(token, "s"), 64); err == nil && n > 0 {
					return time.Duration(n * float64(time.Second))
				}
			}
		}
	}
	return 0
}

func truncateForError(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
