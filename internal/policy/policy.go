// Package policy decides which findings are reported and whether a run fails.
package policy

import (
	"net/http"

	"github.com/CosmoTheDev/pct/models"
)

// Policy bundles the reporting thresholds of one invocation.
type Policy struct {
	MinSeverity    models.Severity
	MinConfidence  float64
	FailOnCritical bool
}

// Default reports everything and never fails.
func Default() Policy {
	return Policy{MinSeverity: models.SeverityInfo}
}

// Apply filters result and reports whether the run should fail.
// The fail decision is made on the filtered findings, so a critical finding
// below MinConfidence neither appears in the report nor fails the run. The
// returned result carries FailOnCritical for later re-rendering.
func (p Policy) Apply(result *models.AnalysisResult) (*models.AnalysisResult, bool) {
	filtered := FilterConfidence(Filter(result, p.MinSeverity), p.MinConfidence)
	filtered.FailOnCritical = p.FailOnCritical
	return filtered, ShouldFail(filtered, p.FailOnCritical)
}

// Filter returns a copy of result keeping findings at or above min.
// Order and counters are preserved; result is not modified.
// An empty min means info.
func Filter(result *models.AnalysisResult, min models.Severity) *models.AnalysisResult {
	if min == "" {
		min = models.SeverityInfo
	}
	kept := make([]models.Finding, 0, len(result.Findings))
	for _, f := range result.Findings {
		if f.Severity.AtLeast(min) {
			kept = append(kept, f)
		}
	}
	return result.WithFindings(kept)
}

// FilterConfidence drops findings whose confidence is below min.
// A min of 0 keeps everything.
func FilterConfidence(result *models.AnalysisResult, min float64) *models.AnalysisResult {
	if min <= 0 {
		return result
	}
	kept := make([]models.Finding, 0, len(result.Findings))
	for _, f := range result.Findings {
		if f.Confidence >= min {
			kept = append(kept, f)
		}
	}
	return result.WithFindings(kept)
}

// ShouldFail reports whether failOnCritical is set and result has at least
// one critical finding.
func ShouldFail(result *models.AnalysisResult, failOnCritical bool) bool {
	if !failOnCritical {
		return false
	}
	for _, f := range result.Findings {
		if f.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// ExitCode maps the fail decision to a process exit status.
func ExitCode(shouldFail bool) int {
	if shouldFail {
		return 1
	}
	return 0
}

// HTTPStatus maps the fail decision to the API response status.
func HTTPStatus(shouldFail bool) int {
	if shouldFail {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
