package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CosmoTheDev/pct/internal/config"
)

func TestAnthropicAnalyze(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersionHeader {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  {\"findings\": []}  "}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p := NewAnthropic(config.AIConfig{AnthropicKey: "sk-test"})
	p.endpoint = srv.URL

	out, err := p.Analyze(context.Background(), Request{System: "sys", Prompt: "analyze this", FilePath: "a.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out != `{"findings": []}` {
		t.Fatalf("out = %q", out)
	}
	if got.Model != anthropicDefaultModel || got.MaxTokens != 4096 || got.System != "sys" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "analyze this" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestAnthropicStatusErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropic(config.AIConfig{AnthropicKey: "k"})
	p.endpoint = srv.URL

	_, err := p.Analyze(context.Background(), Request{Prompt: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 429 || apiErr.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !isRetriableError(err) {
		t.Fatal("429 should be retriable")
	}
}

func TestOpenAIAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-oa" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"[]"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(config.AIConfig{OpenAIKey: "sk-oa", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	out, err := p.Analyze(context.Background(), Request{System: "s", Prompt: "p"})
	if err != nil || out != "[]" {
		t.Fatalf("Analyze = %q, %v", out, err)
	}
}

func TestOpenAIRejectsBadBaseURL(t *testing.T) {
	if _, err := NewOpenAI(config.AIConfig{OpenAIKey: "k", BaseURL: "ftp://example.com"}); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestOllamaAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream || req.Model != "llama3.2" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"response":"{\"findings\":[]}","done":true}`))
	}))
	defer srv.Close()

	p, _ := NewOllama(config.AIConfig{OllamaURL: srv.URL})
	out, err := p.Analyze(context.Background(), Request{Prompt: "p"})
	if err != nil || out != `{"findings":[]}` {
		t.Fatalf("Analyze = %q, %v", out, err)
	}
}

type fakeAnalyzer struct {
	name  string
	calls atomic.Int32
	errs  []error
	out   string
}

func (f *fakeAnalyzer) Name() string                       { return f.name }
func (f *fakeAnalyzer) Model() string                      { return f.name + "-model" }
func (f *fakeAnalyzer) IsAvailable(_ context.Context) bool { return true }

func (f *fakeAnalyzer) Analyze(_ context.Context, _ Request) (string, error) {
	n := int(f.calls.Add(1)) - 1
	if n < len(f.errs) && f.errs[n] != nil {
		return "", f.errs[n]
	}
	return f.out, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryRetriesTransientErrors(t *testing.T) {
	inner := &fakeAnalyzer{name: "x", out: "ok", errs: []error{
		&APIError{Provider: "x", StatusCode: 503},
		&APIError{Provider: "x", StatusCode: 429},
	}}
	r := WithRetry(inner, 3, time.Second).(*retryingAnalyzer)
	r.sleep = noSleep

	out, err := r.Analyze(context.Background(), Request{})
	if err != nil || out != "ok" {
		t.Fatalf("Analyze = %q, %v", out, err)
	}
	if inner.calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls.Load())
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &fakeAnalyzer{name: "x", errs: []error{&APIError{Provider: "x", StatusCode: 400}}}
	r := WithRetry(inner, 3, time.Second).(*retryingAnalyzer)
	r.sleep = noSleep

	if _, err := r.Analyze(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls.Load())
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	fail := &APIError{Provider: "x", StatusCode: 500}
	inner := &fakeAnalyzer{name: "x", errs: []error{fail, fail, fail, fail, fail}}
	r := WithRetry(inner, 2, time.Second).(*retryingAnalyzer)
	r.sleep = noSleep

	if _, err := r.Analyze(context.Background(), Request{}); !errors.Is(err, fail) {
		t.Fatalf("err = %v", err)
	}
	if inner.calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls.Load())
	}
}

func TestBackoffIsExponential(t *testing.T) {
	r := &retryingAnalyzer{base: time.Second}
	plain := errors.New("connection refused")
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := r.backoff(plain, attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
	if got := r.backoff(&APIError{RetryAfter: 3 * time.Second}, 5); got != 3*time.Second {
		t.Fatalf("retry-after not honoured: %v", got)
	}
}

func TestWithRetryZeroIsPassthrough(t *testing.T) {
	inner := &fakeAnalyzer{name: "x"}
	if WithRetry(inner, 0, time.Second) != Analyzer(inner) {
		t.Fatal("expected inner analyzer back")
	}
}

func TestChainFailsOver(t *testing.T) {
	primary := &fakeAnalyzer{name: "a", errs: []error{&APIError{Provider: "a", StatusCode: 500}}}
	secondary := &fakeAnalyzer{name: "b", out: "from b"}
	chain := NewChain([]Analyzer{primary, secondary})

	out, err := chain.Analyze(context.Background(), Request{})
	if err != nil || out != "from b" {
		t.Fatalf("Analyze = %q, %v", out, err)
	}
	name, fallback := chain.CurrentProvider()
	if name != "b" || !fallback {
		t.Fatalf("CurrentProvider = %s, %v", name, fallback)
	}
	if chain.Model() != "b-model" {
		t.Fatalf("Model = %s", chain.Model())
	}
}

func TestChainAuthErrorOpensCircuit(t *testing.T) {
	primary := &fakeAnalyzer{name: "a", errs: []error{&APIError{Provider: "a", StatusCode: 401}}}
	secondary := &fakeAnalyzer{name: "b", out: "ok"}
	chain := NewChain([]Analyzer{primary, secondary})

	for i := 0; i < 3; i++ {
		if _, err := chain.Analyze(context.Background(), Request{}); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if primary.calls.Load() != 1 {
		t.Fatalf("primary called %d times after auth failure", primary.calls.Load())
	}
}

func TestCircuitBreakerResets(t *testing.T) {
	now := time.Now()
	cb := newCircuitBreaker()
	cb.now = func() time.Time { return now }
	for i := 0; i < failureThreshold; i++ {
		cb.recordFailure()
	}
	if cb.allow() {
		t.Fatal("breaker should be open")
	}
	now = now.Add(resetTimeout)
	if !cb.allow() {
		t.Fatal("breaker should be half-open after reset timeout")
	}
	cb.recordSuccess()
	if cb.state != "closed" {
		t.Fatalf("state = %s", cb.state)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(config.AIConfig{Provider: "anthropic"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(*NoopProvider); !ok {
		t.Fatalf("missing key should yield NoopProvider, got %T", p)
	}

	p, err = New(config.AIConfig{Provider: "anthropic", AnthropicKey: "k", MaxRetries: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "anthropic" || p.Model() != anthropicDefaultModel {
		t.Fatalf("got %s / %s", p.Name(), p.Model())
	}

	p, err = New(config.AIConfig{Provider: "anthropic", AnthropicKey: "k", Fallback: []string{"ollama"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(*ChainProvider); !ok {
		t.Fatalf("expected chain, got %T", p)
	}

	if _, err := New(config.AIConfig{Provider: "bard"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestNoopProvider(t *testing.T) {
	_, err := (&NoopProvider{}).Analyze(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if isRetriableError(err) {
		t.Fatal("not-configured must not be retried")
	}
}

func TestParseAIDebugEnv(t *testing.T) {
	t.Setenv("PCT_AI_DEBUG", "prompts")
	if d, p := parseAIDebugEnv(); d || !p {
		t.Fatalf("prompts => %v %v", d, p)
	}
	t.Setenv("PCT_AI_DEBUG", "all")
	if d, p := parseAIDebugEnv(); !d || !p {
		t.Fatalf("all => %v %v", d, p)
	}
}
