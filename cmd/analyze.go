package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/config"
	"github.com/CosmoTheDev/pct/internal/metrics"
	"github.com/CosmoTheDev/pct/internal/notify"
	"github.com/CosmoTheDev/pct/internal/policy"
	"github.com/CosmoTheDev/pct/internal/prompts"
	"github.com/CosmoTheDev/pct/internal/report"
	"github.com/CosmoTheDev/pct/internal/repository"
	"github.com/CosmoTheDev/pct/internal/scanner"
	"github.com/CosmoTheDev/pct/internal/source"
	"github.com/CosmoTheDev/pct/models"
)

var (
	analyzeFormat         string
	analyzeOutput         string
	analyzeSeverity       string
	analyzeFailOnCritical bool
	analyzeType           string
	analyzeMinConfidence  float64
	analyzeWorkers        int
	analyzeRepoURL        string
	analyzeBranch         string
	analyzePrompt         string
	analyzeUploadSARIF    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [PATH]",
	Short: "Analyze a file, a directory, or a remote repository",
	Long: `Discovers supported source files under PATH (or a shallow clone of --repo),
sends each one to the configured language model, and renders the normalized
findings.

The process exits 1 when --fail-on-critical is set and a critical finding
survives the severity and confidence filters.

Examples:
  pct analyze ./src
  pct analyze app.py --type security --format json --output report.json
  pct analyze . --severity high --fail-on-critical
  pct analyze --repo https://github.com/acme/api --format sarif --upload-sarif acme/api`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFormat, "format", "f", "", "Report format: console|json|sarif|html|yaml (default from config)")
	f.StringVarP(&analyzeOutput, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringVarP(&analyzeSeverity, "severity", "s", "", "Minimum severity to report: critical|high|medium|low|info")
	f.BoolVar(&analyzeFailOnCritical, "fail-on-critical", false, "Exit 1 when a critical finding is reported")
	f.StringVarP(&analyzeType, "type", "t", "", "Analysis pass: security|bugs|quality|comprehensive")
	f.Float64Var(&analyzeMinConfidence, "min-confidence", 0, "Drop findings below this confidence (0.0-1.0)")
	f.IntVarP(&analyzeWorkers, "workers", "w", 0, "Concurrent analyzer calls (default from config)")
	f.StringVar(&analyzeRepoURL, "repo", "", "Clone and analyze this repository instead of a local path")
	f.StringVar(&analyzeBranch, "branch", "", "Branch to clone with --repo (default: remote HEAD)")
	f.StringVar(&analyzePrompt, "prompt", "", "Prompt pack to use instead of the pass default (see 'pct prompts list')")
	f.StringVar(&analyzeUploadSARIF, "upload-sarif", "", "Upload SARIF to GitHub code scanning for owner/repo ('auto' derives it from --repo)")
}

// analyzeOptions is the resolved invocation: flags layered over config.
type analyzeOptions struct {
	Root          string
	Target        string
	Pass          models.AnalysisPass
	Prompt        string
	Format        string
	Output        string
	Policy        policy.Policy
	Workers       int
	RepositoryURL string
	Commit        string
	Ref           string
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if (len(args) == 0) == (analyzeRepoURL == "") {
		return fmt.Errorf("specify exactly one of PATH or --repo")
	}

	opts, err := resolveAnalyzeOptions(cmd, cfg)
	if err != nil {
		return err
	}

	if analyzeRepoURL != "" {
		checkout, err := repository.NewCloner(slog.Default()).Clone(ctx, analyzeRepoURL, repository.CloneOptions{
			Branch: analyzeBranch,
			Token:  cfg.GitHub.Token,
		})
		if err != nil {
			return fmt.Errorf("cloning repository: %w", err)
		}
		defer checkout.Cleanup()
		opts.Root = checkout.Dir
		opts.Target = checkout.FullName()
		opts.RepositoryURL = checkout.URL
		opts.Commit = checkout.Commit
		opts.Ref = checkout.Ref
	} else {
		opts.Root = args[0]
		opts.Target = args[0]
	}

	analyzer, err := ai.New(cfg.AI)
	if err != nil {
		return err
	}
	if _, noop := analyzer.(*ai.NoopProvider); noop {
		return ai.ErrNotConfigured
	}

	started := time.Now()
	res, shouldFail, err := runAnalysis(ctx, cfg, opts, analyzer, afero.NewOsFs(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if analyzeUploadSARIF != "" {
		if err := uploadSARIF(ctx, cfg, opts, res, started); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("SARIF uploaded to GitHub code scanning."))
	}

	if d := notify.NewDispatcher(cfg.Notify, slog.Default()); d.IsAnyConfigured() {
		d.Notify(ctx, notify.NewRunEvent(res, shouldFail))
	}

	if shouldFail {
		return &exitError{code: policy.ExitCode(true)}
	}
	return nil
}

func resolveAnalyzeOptions(cmd *cobra.Command, cfg *config.Config) (analyzeOptions, error) {
	flags := cmd.Flags()
	opts := analyzeOptions{
		Prompt:  analyzePrompt,
		Format:  firstSet(analyzeFormat, cfg.Report.Format),
		Output:  analyzeOutput,
		Workers: cfg.Analysis.Workers,
	}

	passName := firstSet(analyzeType, cfg.Analysis.Pass)
	pass, ok := models.ParseAnalysisPass(passName)
	if !ok {
		return opts, fmt.Errorf("unknown analysis type %q (want security, bugs, quality or comprehensive)", passName)
	}
	opts.Pass = pass

	sevName := firstSet(analyzeSeverity, cfg.Report.MinSeverity)
	minSev, ok := models.ParseSeverity(sevName)
	if !ok {
		return opts, fmt.Errorf("unknown severity %q (want critical, high, medium, low or info)", sevName)
	}

	minConf := cfg.Analysis.MinConfidence
	if flags.Changed("min-confidence") {
		minConf = analyzeMinConfidence
	}
	if minConf < 0 || minConf > 1 {
		return opts, fmt.Errorf("--min-confidence must be between 0 and 1, got %g", minConf)
	}

	opts.Policy = policy.Policy{
		MinSeverity:    minSev,
		MinConfidence:  minConf,
		FailOnCritical: cfg.Report.FailOnCritical || analyzeFailOnCritical,
	}

	if flags.Changed("workers") {
		if analyzeWorkers < 1 {
			return opts, fmt.Errorf("--workers must be at least 1")
		}
		opts.Workers = analyzeWorkers
	}

	if _, err := report.New(opts.Format, report.Options{}); err != nil {
		return opts, err
	}
	return opts, nil
}

// runAnalysis discovers, analyzes, filters and renders. It returns the
// filtered result and whether the fail policy tripped.
func runAnalysis(ctx context.Context, cfg *config.Config, opts analyzeOptions, analyzer ai.Analyzer, fsys afero.Fs, stdout io.Writer) (*models.AnalysisResult, bool, error) {
	logger := slog.Default()

	store := prompts.NewStore(fsys, cfg.Analysis.PromptsDir)
	var (
		pack *prompts.Pack
		err  error
	)
	if opts.Prompt != "" {
		pack, err = store.Load(opts.Prompt)
	} else {
		pack, err = store.ForPass(opts.Pass)
	}
	if err != nil {
		return nil, false, err
	}
	pass := pack.EffectivePass(opts.Pass)

	discoverer := source.NewDiscoverer(fsys, cfg.Analysis.MaxFileSizeKB, logger)
	units, err := scanner.Collect(discoverer, opts.Root, pass, logger)
	if err != nil {
		return nil, false, fmt.Errorf("discovering sources: %w", err)
	}
	if len(units) == 0 {
		logger.Warn("No supported source files found", "path", opts.Root)
	}

	base := models.NewAnalysisResult()
	base.Target = opts.Target
	base.AnalysisPass = pass.String()
	base.Provider = analyzer.Name()
	base.Model = analyzer.Model()
	base.RepositoryURL = opts.RepositoryURL
	base.Commit = opts.Commit
	base.Ref = opts.Ref

	collector := metrics.New()
	runner := scanner.NewRunner(analyzer, pack, scanner.Options{
		Workers:           opts.Workers,
		Timeout:           cfg.Analysis.Timeout,
		RequestsPerMinute: cfg.Analysis.RequestsPerMinute,
	}, collector, logger)

	logger.Info("Starting analysis",
		"target", opts.Target,
		"pass", pass,
		"prompt", pack.Name,
		"files", len(units),
		"provider", analyzer.Name(),
		"workers", opts.Workers,
	)

	result, err := runner.Run(ctx, units, base)
	collector.RunCompleted(result, err != nil)
	if err != nil {
		return nil, false, err
	}
	if snap := collector.Snapshot(); snap.FailedUnits > 0 {
		logger.Warn("Some files could not be analyzed", "failed", snap.FailedUnits, "analyzed", snap.FilesAnalyzed)
	}

	filtered, shouldFail := opts.Policy.Apply(result)

	rep, err := report.New(opts.Format, report.Options{FailOnCritical: opts.Policy.FailOnCritical, ToolVersion: Version})
	if err != nil {
		return nil, false, err
	}
	body, err := rep.Render(filtered)
	if err != nil {
		return nil, false, err
	}

	if opts.Output != "" {
		if dir := filepath.Dir(opts.Output); dir != "." {
			if err := fsys.MkdirAll(dir, 0o755); err != nil {
				return nil, false, fmt.Errorf("creating output directory: %w", err)
			}
		}
		if err := afero.WriteFile(fsys, opts.Output, body, 0o644); err != nil {
			return nil, false, fmt.Errorf("writing report: %w", err)
		}
		logger.Info("Report written", "path", opts.Output, "format", rep.Format(), "findings", len(filtered.Findings))
	} else if _, err := stdout.Write(body); err != nil {
		return nil, false, fmt.Errorf("writing report: %w", err)
	}

	return filtered, shouldFail, nil
}

func uploadSARIF(ctx context.Context, cfg *config.Config, opts analyzeOptions, res *models.AnalysisResult, started time.Time) error {
	owner, repo, err := sarifDestination(analyzeUploadSARIF, opts)
	if err != nil {
		return err
	}

	commit, ref := opts.Commit, opts.Ref
	if commit == "" {
		commit, ref, err = repository.Head(opts.Root)
		if err != nil {
			return fmt.Errorf("--upload-sarif needs a git checkout: %w", err)
		}
	}

	rep, err := report.New(string(report.FormatSARIF), report.Options{FailOnCritical: opts.Policy.FailOnCritical, ToolVersion: Version})
	if err != nil {
		return err
	}
	doc, err := rep.Render(res)
	if err != nil {
		return err
	}

	uploader, err := repository.NewSARIFUploader(cfg.GitHub, slog.Default())
	if err != nil {
		return err
	}
	_, err = uploader.Upload(ctx, repository.Upload{
		Owner:       owner,
		Repo:        repo,
		CommitSHA:   commit,
		Ref:         ref,
		CheckoutURI: checkoutURI(opts.Root),
		StartedAt:   started,
		SARIF:       doc,
	})
	return err
}

func sarifDestination(flag string, opts analyzeOptions) (owner, repo string, err error) {
	if strings.EqualFold(flag, "auto") {
		if opts.RepositoryURL == "" {
			return "", "", fmt.Errorf("--upload-sarif auto requires --repo")
		}
		owner, repo = repository.ParseOwnerRepo(opts.RepositoryURL)
		if owner == "" {
			return "", "", fmt.Errorf("cannot derive owner/repo from %s", opts.RepositoryURL)
		}
		return owner, repo, nil
	}
	return repository.SplitFullName(flag)
}

func checkoutURI(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(abs)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
