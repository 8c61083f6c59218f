package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/findings"
	"github.com/CosmoTheDev/pct/internal/prompts"
	"github.com/CosmoTheDev/pct/internal/source"
	"github.com/CosmoTheDev/pct/models"
)

// Runner fans units out to the analyzer and funnels the normalized findings
// into one AnalysisResult.
type Runner struct {
	analyzer   ai.Analyzer
	prompter   Prompter
	normalizer *findings.Normalizer
	opts       Options
	limiter    *rate.Limiter
	observer   Observer
	logger     *slog.Logger
}

// NewRunner creates a Runner. A nil observer or logger is replaced with a
// no-op observer and slog.Default().
func NewRunner(analyzer ai.Analyzer, prompter Prompter, opts Options, observer Observer, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		analyzer:   analyzer,
		prompter:   prompter,
		normalizer: findings.NewNormalizer(logger),
		opts:       opts,
		observer:   observer,
		logger:     logger,
	}
	if opts.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return r
}

// Run analyzes every unit and returns the frozen result. base carries run
// metadata (target, pass, provider); nil starts a fresh result. A failed
// unit is logged and counted in FailedUnits; it never stops the others.
// Run only returns an error when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, units []Unit, base *models.AnalysisResult) (*models.AnalysisResult, error) {
	start := time.Now()
	agg := findings.NewAggregator(base)

	var mu sync.Mutex
	add := func(found []models.Finding, lines int) {
		mu.Lock()
		defer mu.Unlock()
		agg.Add(found, lines)
	}
	fail := func() {
		mu.Lock()
		defer mu.Unlock()
		agg.RecordFailure()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			found, err := r.runOne(ctx, u)
			if err != nil {
				if ctx.Err() == nil {
					fail()
				}
				return nil
			}
			add(found, u.Lines)
			return nil
		})
	}
	_ = g.Wait()

	result := agg.Freeze()
	result.DurationSeconds = time.Since(start).Seconds()
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("analysis interrupted: %w", err)
	}

	r.logger.Info("Analysis completed",
		"target", result.Target,
		"pass", result.AnalysisPass,
		"files", result.FilesAnalyzed,
		"failed", result.FailedUnits,
		"findings", len(result.Findings),
		"duration", fmt.Sprintf("%.1fs", result.DurationSeconds),
	)
	return result, nil
}

// runOne returns the unit's findings, or an error when the unit failed.
func (r *Runner) runOne(ctx context.Context, u Unit) ([]models.Finding, error) {
	start := time.Now()

	if strings.TrimSpace(u.Source) == "" {
		r.logger.Debug("Skipping empty unit", "file", u.Path)
		r.observer.UnitAnalyzed(u, nil, 0)
		return nil, nil
	}

	req, err := r.prompter.Render(prompts.Input{
		FilePath: u.Path,
		Language: u.Language,
		Pass:     u.Pass.String(),
		Source:   u.Source,
	})
	if err != nil {
		return nil, r.failed(u, ReasonPrompt, start, err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	r.logger.Debug("Analyzing unit", "file", u.Path, "language", u.Language, "pass", u.Pass)
	raw, err := r.analyzer.Analyze(callCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		reason := ReasonAnalyzer
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return nil, r.failed(u, reason, start, err)
	}

	found, err := r.normalizer.Normalize(raw, findings.Unit{FilePath: u.Path, Language: u.Language, Pass: u.Pass})
	if err != nil {
		return nil, r.failed(u, ReasonNormalize, start, err)
	}

	d := time.Since(start)
	r.observer.UnitAnalyzed(u, found, d)
	r.logger.Debug("Unit analyzed", "file", u.Path, "findings", len(found), "duration", d.String())
	return found, nil
}

func (r *Runner) failed(u Unit, reason string, start time.Time, err error) error {
	d := time.Since(start)
	r.observer.UnitFailed(u, reason, d)
	r.logger.Warn("Unit analysis failed",
		"file", u.Path,
		"pass", u.Pass,
		"reason", reason,
		"error", err,
	)
	return err
}

// Collect discovers and reads the units under root. Files that cannot be
// read are logged and skipped.
func Collect(d *source.Discoverer, root string, pass models.AnalysisPass, logger *slog.Logger) ([]Unit, error) {
	if logger == nil {
		logger = slog.Default()
	}
	paths, err := d.Discover(root)
	if err != nil {
		return nil, err
	}
	units := make([]Unit, 0, len(paths))
	for _, p := range paths {
		f, err := d.Read(root, p)
		if err != nil {
			logger.Warn("Skipping unreadable file", "file", p, "error", err)
			continue
		}
		units = append(units, Unit{
			Path:     f.Path,
			Language: f.Language,
			Pass:     pass,
			Source:   f.Content,
			Lines:    f.Lines,
		})
	}
	return units, nil
}
