package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the aggregate output of one invocation.
// Findings keep discovery order; reporters may sort copies for display.
type AnalysisResult struct {
	RunID           string
	Target          string
	AnalysisPass    string
	Provider        string
	Model           string
	Findings        []Finding
	FilesAnalyzed   int
	TotalLines      int
	FailedUnits     int
	DurationSeconds float64
	Timestamp       time.Time

	// FailOnCritical records the fail policy the result was judged under.
	// Reporters combine it with their own option.
	FailOnCritical bool

	// RepositoryURL, Commit and Ref are set when the target was cloned.
	RepositoryURL string
	Commit        string
	Ref           string
}

// NewAnalysisResult returns an empty result stamped with a fresh run ID and
// the current UTC time.
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		RunID:     uuid.NewString(),
		Findings:  []Finding{},
		Timestamp: time.Now().UTC(),
	}
}

// WithFindings returns a shallow copy of r carrying findings instead of r.Findings.
func (r *AnalysisResult) WithFindings(findings []Finding) *AnalysisResult {
	cp := *r
	cp.Findings = findings
	return &cp
}

// CountSeverity returns the number of findings with severity s.
func (r *AnalysisResult) CountSeverity(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// FindingsBySeverity maps every severity to its finding count.
// All five keys are always present.
func (r *AnalysisResult) FindingsBySeverity() map[Severity]int {
	out := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		out[s] = 0
	}
	for _, f := range r.Findings {
		out[f.Severity]++
	}
	return out
}

// FindingsByType maps every finding type to its finding count.
func (r *AnalysisResult) FindingsByType() map[FindingType]int {
	out := make(map[FindingType]int, len(FindingTypes))
	for _, t := range FindingTypes {
		out[t] = 0
	}
	for _, f := range r.Findings {
		out[f.Type]++
	}
	return out
}

// Summary computes the summary statistics of r.
func (r *AnalysisResult) Summary() Summary {
	s := Summary{
		TotalFindings: len(r.Findings),
		FilesAnalyzed: r.FilesAnalyzed,
		TotalLines:    r.TotalLines,
	}
	for _, f := range r.Findings {
		s.FindingsBySeverity.add(f.Severity)
		s.FindingsByType.add(f.Type)
	}
	return s
}

// Summary holds the counters reported alongside findings.
type Summary struct {
	TotalFindings      int            `json:"total_findings"       yaml:"total_findings"`
	FindingsBySeverity SeverityCounts `json:"findings_by_severity" yaml:"findings_by_severity"`
	FindingsByType     TypeCounts     `json:"findings_by_type"     yaml:"findings_by_type"`
	FilesAnalyzed      int            `json:"files_analyzed"       yaml:"files_analyzed"`
	TotalLines         int            `json:"total_lines"          yaml:"total_lines"`
}

// SeverityCounts is a fixed-key severity histogram. Field order is the
// serialisation order.
type SeverityCounts struct {
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high"     yaml:"high"`
	Medium   int `json:"medium"   yaml:"medium"`
	Low      int `json:"low"      yaml:"low"`
	Info     int `json:"info"     yaml:"info"`
}

func (c *SeverityCounts) add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	case SeverityInfo:
		c.Info++
	}
}

// Get returns the count for s.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	case SeverityInfo:
		return c.Info
	default:
		return 0
	}
}

// TypeCounts is a fixed-key finding type histogram.
type TypeCounts struct {
	Security int `json:"security" yaml:"security"`
	Bug      int `json:"bug"      yaml:"bug"`
	Quality  int `json:"quality"  yaml:"quality"`
}

func (c *TypeCounts) add(t FindingType) {
	switch t {
	case TypeSecurity:
		c.Security++
	case TypeBug:
		c.Bug++
	case TypeQuality:
		c.Quality++
	}
}

// Get returns the count for t.
func (c TypeCounts) Get(t FindingType) int {
	switch t {
	case TypeSecurity:
		return c.Security
	case TypeBug:
		return c.Bug
	case TypeQuality:
		return c.Quality
	default:
		return 0
	}
}

// Merge adds o's counts to c.
func (c *SeverityCounts) Merge(o SeverityCounts) {
	c.Critical += o.Critical
	c.High += o.High
	c.Medium += o.Medium
	c.Low += o.Low
	c.Info += o.Info
}

// Merge adds o's counts to c.
func (c *TypeCounts) Merge(o TypeCounts) {
	c.Security += o.Security
	c.Bug += o.Bug
	c.Quality += o.Quality
}
