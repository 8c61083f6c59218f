package scanner

import (
	"time"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/internal/prompts"
	"github.com/CosmoTheDev/pct/models"
)

// Unit is one piece of source sent to the analyzer in a single call.
type Unit struct {
	// Path is the location reported on findings (slash-separated).
	Path     string
	Language string
	Pass     models.AnalysisPass
	Source   string
	Lines    int
}

// Prompter renders the analyzer request for a unit. *prompts.Pack
// satisfies it.
type Prompter interface {
	Render(in prompts.Input) (ai.Request, error)
}

// Observer receives per-unit outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	UnitAnalyzed(u Unit, found []models.Finding, d time.Duration)
	UnitFailed(u Unit, reason string, d time.Duration)
}

// Failure reasons passed to Observer.UnitFailed.
const (
	ReasonPrompt    = "prompt"
	ReasonAnalyzer  = "analyzer"
	ReasonTimeout   = "timeout"
	ReasonNormalize = "normalize"
)

// Options tunes a Runner.
type Options struct {
	// Workers bounds concurrent analyzer calls. Values below 1 mean 1.
	Workers int
	// Timeout bounds each analyzer call, retries included. Zero means none.
	Timeout time.Duration
	// RequestsPerMinute caps analyzer calls across all workers. Zero means
	// unlimited.
	RequestsPerMinute int
}

type nopObserver struct{}

func (nopObserver) UnitAnalyzed(Unit, []models.Finding, time.Duration) {}
func (nopObserver) UnitFailed(Unit, string, time.Duration)             {}
