package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/pct/models"
)

var (
	red    = lipgloss.Color("#EF4444")
	orange = lipgloss.Color("#F97316")
	yellow = lipgloss.Color("#F59E0B")
	blue   = lipgloss.Color("#38BDF8")
	slate  = lipgloss.Color("#94A3B8")
	green  = lipgloss.Color("#22C55E")
	accent = lipgloss.Color("#14B8A6")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(slate).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(slate)
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(green)
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(red)
)

// SeverityStyle returns the console style for a severity.
func SeverityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityCritical:
		return lipgloss.NewStyle().Bold(true).Foreground(red)
	case models.SeverityHigh:
		return lipgloss.NewStyle().Bold(true).Foreground(orange)
	case models.SeverityMedium:
		return lipgloss.NewStyle().Foreground(yellow)
	case models.SeverityLow:
		return lipgloss.NewStyle().Foreground(blue)
	default:
		return lipgloss.NewStyle().Foreground(slate)
	}
}

// ConsoleReporter renders a human-readable terminal summary.
type ConsoleReporter struct {
	opts Options
}

func (r *ConsoleReporter) Format() Format { return FormatConsole }

func (r *ConsoleReporter) Render(result *models.AnalysisResult) ([]byte, error) {
	var b strings.Builder
	s := result.Summary()

	header := "Analysis results"
	if result.Target != "" {
		header += ": " + result.Target
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	counts := make([]string, 0, len(models.Severities))
	for _, sev := range models.Severities {
		counts = append(counts, SeverityStyle(sev).Render(fmt.Sprintf("%s %d", strings.ToUpper(string(sev)), s.FindingsBySeverity.Get(sev))))
	}
	stats := fmt.Sprintf("Files: %d   Lines: %d   Findings: %d", s.FilesAnalyzed, s.TotalLines, s.TotalFindings)
	if result.FailedUnits > 0 {
		stats += fmt.Sprintf("   Failed: %d", result.FailedUnits)
	}
	b.WriteString(boxStyle.Render(stats + "\n" + strings.Join(counts, "  ")))
	b.WriteString("\n\n")

	if len(result.Findings) == 0 {
		b.WriteString(okStyle.Render("No issues found."))
		b.WriteString("\n")
	}
	for _, f := range bySeverity(result.Findings) {
		badge := SeverityStyle(f.Severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(string(f.Severity))))
		fmt.Fprintf(&b, "%s %s %s\n", badge, dimStyle.Render(string(f.Type)), locationLabel(f.Location))
		fmt.Fprintf(&b, "    %s\n", f.Message)
		if f.Remediation != "" {
			fmt.Fprintf(&b, "    %s %s\n", dimStyle.Render("fix:"), f.Remediation)
		}
	}

	b.WriteString("\n")
	if success(result, r.opts) {
		b.WriteString(okStyle.Render("PASS"))
	} else {
		b.WriteString(failStyle.Render("FAIL: critical findings present"))
	}
	b.WriteString("\n")
	return []byte(b.String()), nil
}
