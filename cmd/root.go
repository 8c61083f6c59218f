package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool

	logCloser io.Closer
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pct",
	Short: "LLM-powered code review for security, bugs, and quality",
	Long: `pct sends source files to a language model, normalizes what it reports
into findings, and renders them as console, JSON, SARIF, HTML, or YAML reports.
A non-zero exit code signals that the fail-on-critical policy tripped, so it
slots into CI pipelines.

Get started:
  pct init            Interactive setup wizard
  pct doctor          Verify configuration and provider reachability
  pct analyze PATH    Analyze a file or directory
  pct serve           Start the HTTP API
  pct review FILE     Browse a JSON report in the terminal`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// exitError carries a process exit code without an error message, for
// outcomes that are already reported (a tripped fail policy).
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute is the entry point called from main.go.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.pct/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		initCmd,
		analyzeCmd,
		serveCmd,
		reviewCmd,
		promptsCmd,
		configCmd,
		doctorCmd,
		versionCmd,
	)
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	closer, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	logCloser = closer
	slog.Debug("Configuration loaded", "provider", cfg.AI.Provider, "pass", cfg.Analysis.Pass)
	return cfg, nil
}
