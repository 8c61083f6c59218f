package models

import "strings"

// Severity is the ordered severity of a finding.
// The total order is critical > high > medium > low > info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// Weight returns a numeric weight for ordering (higher = more severe).
// Values outside the enumeration weigh 0.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a member of the enumeration.
func (s Severity) Valid() bool { return s.Weight() > 0 }

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool { return s.Weight() >= min.Weight() }

// Compare returns -1, 0 or +1 when s is less, equally or more severe than o.
func (s Severity) Compare(o Severity) int {
	switch a, b := s.Weight(), o.Weight(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalises analyzer-specific severity strings to Severity.
// Matching is case-insensitive. ok is false when raw is not recognised.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker":
		return SeverityCritical, true
	case "high", "error", "major":
		return SeverityHigh, true
	case "medium", "moderate", "warning":
		return SeverityMedium, true
	case "low", "minor":
		return SeverityLow, true
	case "info", "informational", "note", "negligible":
		return SeverityInfo, true
	default:
		return "", false
	}
}

// FindingType is the category of a finding.
type FindingType string

const (
	TypeSecurity FindingType = "security"
	TypeBug      FindingType = "bug"
	TypeQuality  FindingType = "quality"
)

// FindingTypes lists every finding type in report order.
var FindingTypes = []FindingType{TypeSecurity, TypeBug, TypeQuality}

// Valid reports whether t is a member of the enumeration.
func (t FindingType) Valid() bool {
	switch t {
	case TypeSecurity, TypeBug, TypeQuality:
		return true
	default:
		return false
	}
}

func (t FindingType) String() string {
	return string(t)
}

// ParseFindingType maps a case-insensitive type name to FindingType.
func ParseFindingType(raw string) (FindingType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "security", "vulnerability":
		return TypeSecurity, true
	case "bug", "bugs":
		return TypeBug, true
	case "quality", "code_quality":
		return TypeQuality, true
	default:
		return "", false
	}
}
