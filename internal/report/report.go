// Package report renders an AnalysisResult into the supported output formats.
// Renderers are pure: they never mutate the result and either return the
// whole artifact or an error.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CosmoTheDev/pct/internal/policy"
	"github.com/CosmoTheDev/pct/models"
)

// Format names an output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatSARIF   Format = "sarif"
	FormatHTML    Format = "html"
	FormatYAML    Format = "yaml"
	FormatConsole Format = "console"
)

// Formats lists every supported format.
var Formats = []Format{FormatConsole, FormatJSON, FormatSARIF, FormatHTML, FormatYAML}

const (
	defaultToolName    = "pct"
	defaultToolVersion = "dev"
	toolInfoURI        = "https://github.com/CosmoTheDev/pct"
)

// Options carry invocation settings that appear in rendered reports.
type Options struct {
	FailOnCritical bool
	ToolName       string
	ToolVersion    string
}

func (o Options) toolName() string {
	if o.ToolName == "" {
		return defaultToolName
	}
	return o.ToolName
}

func (o Options) toolVersion() string {
	if o.ToolVersion == "" {
		return defaultToolVersion
	}
	return o.ToolVersion
}

// Reporter renders a result into one format.
type Reporter interface {
	Format() Format
	Render(result *models.AnalysisResult) ([]byte, error)
}

// New returns the reporter for format.
func New(format string, opts Options) (Reporter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatJSON:
		return &JSONReporter{opts: opts}, nil
	case FormatSARIF:
		return &SARIFReporter{opts: opts}, nil
	case FormatHTML:
		return &HTMLReporter{opts: opts}, nil
	case FormatYAML:
		return &YAMLReporter{opts: opts}, nil
	case FormatConsole, "":
		return &ConsoleReporter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want one of %s)", format, formatList())
	}
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ReportError reports a finding that cannot be represented in a format.
type ReportError struct {
	Format     Format
	Ordinal    int
	Constraint string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%s report: finding #%d: %s", e.Format, e.Ordinal, e.Constraint)
}

// success is the JSON "success" flag: the run passed the fail policy.
func success(result *models.AnalysisResult, opts Options) bool {
	return !policy.ShouldFail(result, failOnCritical(result, opts))
}

func failOnCritical(result *models.AnalysisResult, opts Options) bool {
	return opts.FailOnCritical || result.FailOnCritical
}

// bySeverity returns a copy of findings ordered critical first, ties kept in
// discovery order.
func bySeverity(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Weight() > out[j].Severity.Weight()
	})
	return out
}

func locationLabel(loc models.Location) string {
	path := loc.FilePath
	if path == "" {
		path = "<unknown>"
	}
	if loc.Line == nil {
		return path
	}
	if loc.Column == nil {
		return fmt.Sprintf("%s:%d", path, *loc.Line)
	}
	return fmt.Sprintf("%s:%d:%d", path, *loc.Line, *loc.Column)
}
