package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/metrics"
	"github.com/CosmoTheDev/pct/internal/prompts"
)

type stubAnalyzer struct {
	reply string
	err   error
	last  ai.Request
}

func (s *stubAnalyzer) Name() string                       { return "stub" }
func (s *stubAnalyzer) Model() string                      { return "stub-1" }
func (s *stubAnalyzer) IsAvailable(_ context.Context) bool { return true }

func (s *stubAnalyzer) Analyze(_ context.Context, req ai.Request) (string, error) {
	s.last = req
	return s.reply, s.err
}

const twoHighOneCritical = `Here is what I found:
` + "```json" + `
{"findings": [
  {"type": "security", "severity": "high", "line": 3, "message": "SQL injection"},
  {"type": "security", "severity": "critical", "line": 7, "message": "Hardcoded credentials"},
  {"type": "bug", "severity": "high", "line": 9, "message": "File handle never closed"},
  {"type": "quality", "severity": "low", "line": 1, "message": "Missing docstring"}
]}
` + "```"

func newTestServer(t *testing.T, an ai.Analyzer, rpm int) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(an, prompts.NewStore(afero.NewMemMapFs(), ""), metrics.New(), Options{
		RequestsPerMinute: rpm,
		Analysis:          config.AnalysisConfig{Timeout: 5 * time.Second, MaxFileSizeKB: 1},
		Version:           "1.0.0-test",
	}, logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeFailOnCritical(t *testing.T) {
	an := &stubAnalyzer{reply: twoHighOneCritical}
	h := newTestServer(t, an, 0).Handler()

	rec := do(t, h, http.MethodPost, "/api/analyze",
		`{"code":"import os\nq = 1\n","language":"python","analysis_type":"security","file_name":"app.py","min_severity":"medium","fail_on_critical":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, false, doc["success"])
	assert.Len(t, doc["findings"], 3)
	assert.Equal(t, float64(3), doc["total_findings"])
	assert.Equal(t, float64(1), doc["files_analyzed"])
	assert.Equal(t, float64(2), doc["total_lines"])
	assert.Equal(t, "stub", doc["provider"])

	assert.Contains(t, an.last.Prompt, "File: app.py")
	assert.Equal(t, "python", an.last.Language)
}

func TestAnalyzeSuccess(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{reply: twoHighOneCritical}, 0).Handler()

	rec := do(t, h, http.MethodPost, "/api/analyze", `{"code":"x = 1","language":"Python"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, true, doc["success"])
	assert.Len(t, doc["findings"], 4)
	assert.Equal(t, "comprehensive", doc["analysis_pass"])
	assert.Equal(t, "unknown", doc["target"])
}

func TestAnalyzeBadRequests(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{reply: "[]"}, 0).Handler()
	cases := []struct {
		name, body string
		status     int
		contains   string
	}{
		{"empty body", "", http.StatusBadRequest, "empty"},
		{"not json", "{", http.StatusBadRequest, "invalid JSON"},
		{"unknown field", `{"code":"x","language":"go","colour":"red"}`, http.StatusBadRequest, "colour"},
		{"missing code", `{"language":"go"}`, http.StatusBadRequest, "code is required"},
		{"bad pass", `{"code":"x","language":"go","analysis_type":"perf"}`, http.StatusBadRequest, "analysis_type"},
		{"bad severity", `{"code":"x","language":"go","min_severity":"severe"}`, http.StatusBadRequest, "min_severity"},
		{"unsupported language", `{"code":"x","language":"cobol"}`, http.StatusBadRequest, "unsupported language"},
		{"too large", `{"code":"` + strings.Repeat("a", 2048) + `","language":"go"}`, http.StatusRequestEntityTooLarge, "exceeds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/analyze", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{err: errors.New("connection refused")}, 0).Handler()
	rec := do(t, h, http.MethodPost, "/api/analyze", `{"code":"x","language":"go"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h = newTestServer(t, &stubAnalyzer{reply: "no json here"}, 0).Handler()
	rec = do(t, h, http.MethodPost, "/api/analyze", `{"code":"x","language":"go"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	h := newTestServer(t, &ai.NoopProvider{}, 0).Handler()
	rec := do(t, h, http.MethodPost, "/api/analyze", `{"code":"x","language":"go"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInfoEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubAnalyzer{reply: twoHighOneCritical}, 0)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0-test"`)

	rec = do(t, h, http.MethodGet, "/api/languages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var langs struct{ Languages []string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &langs))
	assert.Contains(t, langs.Languages, "python")
	assert.Contains(t, langs.Languages, "sql")

	do(t, h, http.MethodPost, "/api/analyze", `{"code":"x","language":"go"}`)
	rec = do(t, h, http.MethodGet, "/api/stats", "")
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.AnalysesTotal)
	assert.Equal(t, 4, snap.FindingsTotal)
	assert.Equal(t, 1, snap.FindingsBySeverity.Critical)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pct_http_requests_total{code="200",route="GET /api/health"} 1`)

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddlewareHeaders(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, 0).Handler()

	rec := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, 2).Handler()

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/languages", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/languages", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "2 requests per minute")

	// Health probes are never limited.
	rec = do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Other clients have their own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/languages", nil)
	req.RemoteAddr = "198.51.100.1:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRecoverPanics(t *testing.T) {
	srv := newTestServer(t, &stubAnalyzer{}, 0)
	h := srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["error_id"], "ERR-"))
	assert.Equal(t, "internal server error", body["error"])
}
