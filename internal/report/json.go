package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CosmoTheDev/pct/models"
)

// document is the JSON and YAML report shape. Field order is the key order.
type document struct {
	RunID              string                `json:"run_id"                   yaml:"run_id"`
	Target             string                `json:"target,omitempty"         yaml:"target,omitempty"`
	AnalysisPass       string                `json:"analysis_pass,omitempty"  yaml:"analysis_pass,omitempty"`
	Provider           string                `json:"provider,omitempty"       yaml:"provider,omitempty"`
	Model              string                `json:"model,omitempty"          yaml:"model,omitempty"`
	RepositoryURL      string                `json:"repository_url,omitempty" yaml:"repository_url,omitempty"`
	Commit             string                `json:"commit,omitempty"         yaml:"commit,omitempty"`
	Ref                string                `json:"ref,omitempty"            yaml:"ref,omitempty"`
	Findings           []models.Finding      `json:"findings"                 yaml:"findings"`
	FilesAnalyzed      int                   `json:"files_analyzed"           yaml:"files_analyzed"`
	TotalLines         int                   `json:"total_lines"              yaml:"total_lines"`
	FailedUnits        int                   `json:"failed_units"             yaml:"failed_units"`
	FindingsBySeverity models.SeverityCounts `json:"findings_by_severity"     yaml:"findings_by_severity"`
	FindingsByType     models.TypeCounts     `json:"findings_by_type"         yaml:"findings_by_type"`
	TotalFindings      int                   `json:"total_findings"           yaml:"total_findings"`
	DurationSeconds    float64               `json:"duration_seconds"         yaml:"duration_seconds"`
	Timestamp          time.Time             `json:"timestamp"                yaml:"timestamp"`
	FailOnCritical     bool                  `json:"fail_on_critical"         yaml:"fail_on_critical"`
	Success            bool                  `json:"success"                  yaml:"success"`
}

func newDocument(result *models.AnalysisResult, opts Options) document {
	s := result.Summary()
	findings := result.Findings
	if findings == nil {
		findings = []models.Finding{}
	}
	return document{
		RunID:              result.RunID,
		Target:             result.Target,
		AnalysisPass:       result.AnalysisPass,
		Provider:           result.Provider,
		Model:              result.Model,
		RepositoryURL:      result.RepositoryURL,
		Commit:             result.Commit,
		Ref:                result.Ref,
		Findings:           findings,
		FilesAnalyzed:      result.FilesAnalyzed,
		TotalLines:         result.TotalLines,
		FailedUnits:        result.FailedUnits,
		FindingsBySeverity: s.FindingsBySeverity,
		FindingsByType:     s.FindingsByType,
		TotalFindings:      s.TotalFindings,
		DurationSeconds:    result.DurationSeconds,
		Timestamp:          result.Timestamp.UTC(),
		FailOnCritical:     failOnCritical(result, opts),
		Success:            success(result, opts),
	}
}

func (d document) result() *models.AnalysisResult {
	findings := d.Findings
	if findings == nil {
		findings = []models.Finding{}
	}
	return &models.AnalysisResult{
		RunID:           d.RunID,
		Target:          d.Target,
		AnalysisPass:    d.AnalysisPass,
		Provider:        d.Provider,
		Model:           d.Model,
		RepositoryURL:   d.RepositoryURL,
		Commit:          d.Commit,
		Ref:             d.Ref,
		Findings:        findings,
		FilesAnalyzed:   d.FilesAnalyzed,
		TotalLines:      d.TotalLines,
		FailedUnits:     d.FailedUnits,
		DurationSeconds: d.DurationSeconds,
		Timestamp:       d.Timestamp,
		// A failing report can only have been judged with fail-on-critical on.
		FailOnCritical: d.FailOnCritical || !d.Success,
	}
}

// JSONReporter renders the machine-readable report.
type JSONReporter struct {
	opts Options
}

func (r *JSONReporter) Format() Format { return FormatJSON }

func (r *JSONReporter) Render(result *models.AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newDocument(result, r.opts)); err != nil {
		return nil, fmt.Errorf("encoding json report: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON reads a report produced by JSONReporter back into a result.
// Derived counters are recomputed from the findings rather than trusted.
func DecodeJSON(data []byte) (*models.AnalysisResult, error) {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding json report: %w", err)
	}
	res := d.result()
	for i, f := range res.Findings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("decoding json report: finding #%d: %w", i, err)
		}
	}
	return res, nil
}
