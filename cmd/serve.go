package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/metrics"
	"github.com/CosmoTheDev/pct/internal/prompts"
	"github.com/CosmoTheDev/pct/internal/server"
)

var (
	serveAddr      string
	serveRateLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	Long: `Starts a local HTTP server (default: http://127.0.0.1:8000) exposing the
analysis pipeline.

Quick API reference:
  POST /api/analyze     analyze a snippet (body: {"code":"...","language":"python"})
  GET  /api/health      liveness check
  GET  /api/languages   supported languages
  GET  /api/stats       counters since start
  GET  /metrics         Prometheus metrics

/api/analyze answers 422 instead of 200 when fail_on_critical is set and a
critical finding is reported.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"address to listen on (default 127.0.0.1:8000, overrides config)")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", -1,
		"requests per minute per client; 0 disables (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	analyzer, err := ai.New(cfg.AI)
	if err != nil {
		return err
	}
	if _, noop := analyzer.(*ai.NoopProvider); noop {
		slog.Warn("No AI provider configured; /api/analyze will answer 503")
	}

	opts := server.Options{
		Addr:              firstSet(serveAddr, cfg.Server.Addr),
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Analysis:          cfg.Analysis,
		Version:           Version,
	}
	if serveRateLimit >= 0 {
		opts.RequestsPerMinute = serveRateLimit
	}

	store := prompts.NewStore(afero.NewOsFs(), cfg.Analysis.PromptsDir)
	srv := server.New(analyzer, store, metrics.New(), opts, slog.Default())

	fmt.Fprintf(cmd.ErrOrStderr(), "pct API listening on http://%s (Ctrl+C to stop)\n", opts.Addr)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "\nServer stopped.")
	return nil
}
