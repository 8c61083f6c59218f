package findings

import (
	"github.com/CosmoTheDev/pct/models"
)

// Aggregator accumulates per-unit findings into one AnalysisResult.
// It is not safe for concurrent use; callers serialise Add.
type Aggregator struct {
	result *models.AnalysisResult
	frozen bool
}

// NewAggregator starts a fresh result. A nil result creates one.
func NewAggregator(result *models.AnalysisResult) *Aggregator {
	if result == nil {
		result = models.NewAnalysisResult()
	}
	if result.Findings == nil {
		result.Findings = []models.Finding{}
	}
	return &Aggregator{result: result}
}

// Add records one successfully analyzed unit. Findings are appended in order
// and receive the next ordinals.
func (a *Aggregator) Add(findings []models.Finding, lines int) {
	if a.frozen {
		panic("findings: Add called on a frozen aggregator")
	}
	for _, f := range findings {
		f.Ordinal = len(a.result.Findings)
		a.result.Findings = append(a.result.Findings, f)
	}
	a.result.FilesAnalyzed++
	a.result.TotalLines += lines
}

// RecordFailure counts a unit that produced no usable findings.
func (a *Aggregator) RecordFailure() {
	if a.frozen {
		panic("findings: RecordFailure called on a frozen aggregator")
	}
	a.result.FailedUnits++
}

// Summary returns the current counters.
func (a *Aggregator) Summary() models.Summary {
	return a.result.Summary()
}

// Freeze ends aggregation and returns the result for rendering.
func (a *Aggregator) Freeze() *models.AnalysisResult {
	a.frozen = true
	return a.result
}
