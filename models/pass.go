package models

import "strings"

// AnalysisPass selects which prompt family is sent to the analyzer.
type AnalysisPass string

const (
	PassSecurity      AnalysisPass = "security"
	PassBugs          AnalysisPass = "bugs"
	PassQuality       AnalysisPass = "quality"
	PassComprehensive AnalysisPass = "comprehensive"
)

// AnalysisPasses lists the supported passes.
var AnalysisPasses = []AnalysisPass{PassSecurity, PassBugs, PassQuality, PassComprehensive}

// ParseAnalysisPass maps a case-insensitive pass name to AnalysisPass.
func ParseAnalysisPass(raw string) (AnalysisPass, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "security":
		return PassSecurity, true
	case "bugs", "bug":
		return PassBugs, true
	case "quality":
		return PassQuality, true
	case "comprehensive", "all", "":
		return PassComprehensive, true
	default:
		return "", false
	}
}

// DefaultType is the finding type assumed when an analyzer omits one.
func (p AnalysisPass) DefaultType() FindingType {
	switch p {
	case PassSecurity:
		return TypeSecurity
	case PassBugs:
		return TypeBug
	default:
		return TypeQuality
	}
}

func (p AnalysisPass) String() string { return string(p) }
