package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/policy"
	"github.com/CosmoTheDev/pct/internal/report"
	"github.com/CosmoTheDev/pct/internal/scanner"
	"github.com/CosmoTheDev/pct/internal/source"
	"github.com/CosmoTheDev/pct/models"
)

// Handler returns the API wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = securityHeaders(h)
	h = s.requestLog(h)
	h = s.recoverPanics(h)
	return h
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "pct",
		"version": s.opts.Version,
		"endpoints": []string{
			"POST /api/analyze",
			"GET /api/health",
			"GET /api/languages",
			"GET /api/stats",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.opts.Version,
		"provider":       s.analyzer.Name(),
		"model":          s.analyzer.Model(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": source.Languages()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

type analyzeRequest struct {
	Code           string   `json:"code"             validate:"required"`
	Language       string   `json:"language"         validate:"required"`
	AnalysisType   string   `json:"analysis_type"    validate:"omitempty,oneof=security bugs quality comprehensive"`
	FileName       string   `json:"file_name"`
	MinSeverity    string   `json:"min_severity"     validate:"omitempty,oneof=critical high medium low info"`
	FailOnCritical bool     `json:"fail_on_critical"`
	MinConfidence  *float64 `json:"min_confidence"   validate:"omitempty,gte=0,lte=1"`
}

var validate = validator.New()

// handleAnalyze runs a single-unit analysis and answers with the JSON
// report. The status is 422 when the fail-on-critical policy trips.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.opts.Analysis.MaxFileSizeKB) * 1024
	if limit <= 0 {
		limit = 100 * 1024
	}
	var req analyzeRequest
	// JSON escaping can inflate the code, so allow headroom over the limit.
	if status, err := decodeBody(w, r, 2*limit+4096, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, describeValidation(err))
		return
	}
	if int64(len(req.Code)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("code exceeds %d KB", limit/1024))
		return
	}
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if !slices.Contains(source.Languages(), lang) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q; see GET /api/languages", req.Language))
		return
	}
	pass, _ := models.ParseAnalysisPass(req.AnalysisType)
	minSev := models.SeverityInfo
	if req.MinSeverity != "" {
		minSev, _ = models.ParseSeverity(req.MinSeverity)
	}
	minConf := s.opts.Analysis.MinConfidence
	if req.MinConfidence != nil {
		minConf = *req.MinConfidence
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "unknown"
	}

	if _, noop := s.analyzer.(*ai.NoopProvider); noop {
		writeError(w, http.StatusServiceUnavailable, ai.ErrNotConfigured.Error())
		return
	}

	pack, err := s.prompts.ForPass(pass)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	base := models.NewAnalysisResult()
	base.Target = fileName
	base.AnalysisPass = pass.String()
	base.Provider = s.analyzer.Name()
	base.Model = s.analyzer.Model()

	runner := scanner.NewRunner(s.analyzer, pack, scanner.Options{
		Workers: 1,
		Timeout: s.opts.Analysis.Timeout,
	}, s.metrics, s.logger)
	unit := scanner.Unit{
		Path:     fileName,
		Language: lang,
		Pass:     pass,
		Source:   req.Code,
		Lines:    source.CountLines(req.Code),
	}
	result, err := runner.Run(r.Context(), []scanner.Unit{unit}, base)
	if err != nil {
		s.metrics.RunCompleted(nil, true)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if result.FailedUnits > 0 {
		s.metrics.RunCompleted(nil, true)
		writeError(w, http.StatusBadGateway, "analysis failed: the analyzer returned an error or an unusable response")
		return
	}
	s.metrics.RunCompleted(result, false)

	pol := policy.Policy{MinSeverity: minSev, MinConfidence: minConf, FailOnCritical: req.FailOnCritical}
	filtered, shouldFail := pol.Apply(result)

	rep, err := report.New(string(report.FormatJSON), report.Options{FailOnCritical: req.FailOnCritical, ToolVersion: s.opts.Version})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body, err := rep.Render(filtered)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(policy.HTTPStatus(shouldFail))
	_, _ = w.Write(body)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	problems := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Field() {
		case "AnalysisType":
			field = "analysis_type"
		case "MinSeverity":
			field = "min_severity"
		case "MinConfidence":
			field = "min_confidence"
		}
		if e.Tag() == "required" {
			problems = append(problems, field+" is required")
			continue
		}
		problems = append(problems, fmt.Sprintf("%s failed '%s' (value: '%v')", field, e.Tag(), e.Value()))
	}
	return strings.Join(problems, "; ")
}
