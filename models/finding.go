package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Location identifies where a finding occurs. Only FilePath is required,
// and only by formats that need it (SARIF).
type Location struct {
	FilePath  string `json:"file_path"  yaml:"file_path"`
	Line      *int   `json:"line"       yaml:"line"`
	Column    *int   `json:"column"     yaml:"column"`
	EndLine   *int   `json:"end_line"   yaml:"end_line"`
	EndColumn *int   `json:"end_column" yaml:"end_column"`
}

// LineOr returns the line number, or def when it is absent.
func (l Location) LineOr(def int) int {
	if l.Line == nil || *l.Line <= 0 {
		return def
	}
	return *l.Line
}

// Finding is one detected issue.
type Finding struct {
	// Ordinal is the stable position assigned by the aggregator.
	Ordinal     int         `json:"ordinal"      yaml:"ordinal"`
	Type        FindingType `json:"type"         yaml:"type"         validate:"required,oneof=security bug quality"`
	Severity    Severity    `json:"severity"     yaml:"severity"     validate:"required,oneof=critical high medium low info"`
	Message     string      `json:"message"      yaml:"message"      validate:"required,notblank"`
	Location    Location    `json:"location"     yaml:"location"`
	Remediation string      `json:"remediation"  yaml:"remediation"`
	Confidence  float64     `json:"confidence"   yaml:"confidence"   validate:"gte=0,lte=1"`
	CodeSnippet string      `json:"code_snippet" yaml:"code_snippet"`
	RuleID      string      `json:"rule_id"      yaml:"rule_id"`
}

// FindingOption customises a Finding built by NewFinding.
type FindingOption func(*Finding)

// WithRemediation sets the suggested fix text.
func WithRemediation(text string) FindingOption {
	return func(f *Finding) { f.Remediation = text }
}

// WithConfidence overrides the default confidence of 1.0.
func WithConfidence(c float64) FindingOption {
	return func(f *Finding) { f.Confidence = c }
}

// WithCodeSnippet attaches a verbatim excerpt of the offending code.
func WithCodeSnippet(snippet string) FindingOption {
	return func(f *Finding) { f.CodeSnippet = snippet }
}

// WithRuleID records the analyzer's own label for the issue.
func WithRuleID(id string) FindingOption {
	return func(f *Finding) { f.RuleID = id }
}

// NewFinding builds and validates a Finding. Confidence defaults to 1.0.
func NewFinding(t FindingType, sev Severity, message string, loc Location, opts ...FindingOption) (Finding, error) {
	f := Finding{
		Type:       t,
		Severity:   sev,
		Message:    message,
		Location:   loc,
		Confidence: 1.0,
	}
	for _, opt := range opts {
		opt(&f)
	}
	if err := f.Validate(); err != nil {
		return Finding{}, err
	}
	return f, nil
}

// Validate checks the Finding invariants and returns a *ValidationError on failure.
func (f Finding) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	ve := &ValidationError{}
	for _, e := range verrs {
		ve.Problems = append(ve.Problems,
			fmt.Sprintf("field '%s' failed rule '%s' (value: '%v')", e.Field(), e.Tag(), e.Value()))
	}
	return ve
}

// ValidationError reports a Finding that violates the model invariants.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid finding: " + strings.Join(e.Problems, "; ")
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}
