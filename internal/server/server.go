// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/metrics"
	"github.com/CosmoTheDev/pct/internal/prompts"
)

// Options configures a Server.
type Options struct {
	Addr string
	// RequestsPerMinute is the per-client limit on /api routes. Zero
	// disables rate limiting.
	RequestsPerMinute int
	Analysis          config.AnalysisConfig
	Version           string
}

// Server is the `pct serve` HTTP API.
type Server struct {
	analyzer ai.Analyzer
	prompts  *prompts.Store
	metrics  *metrics.Collector
	opts     Options
	logger   *slog.Logger
	limiter  *ipLimiter
	started  time.Time
}

// New creates a Server. Call Start to begin serving, or use Handler with
// your own http.Server.
func New(analyzer ai.Analyzer, store *prompts.Store, collector *metrics.Collector, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.New()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8000"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		analyzer: analyzer,
		prompts:  store,
		metrics:  collector,
		opts:     opts,
		logger:   logger,
		started:  time.Now(),
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = newIPLimiter(opts.RequestsPerMinute)
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if s.limiter != nil {
		go s.limiter.sweep(ctx, time.Minute)
	}

	s.logger.Info("server: listening",
		"addr", "http://"+s.opts.Addr,
		"provider", s.analyzer.Name(),
		"rate_limit_per_minute", s.opts.RequestsPerMinute,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
