package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/pct/internal/report"
	"github.com/CosmoTheDev/pct/models"
)

// SummaryModel shows the run metadata and the finding counters.
type SummaryModel struct {
	result  *models.AnalysisResult
	summary models.Summary
	width   int
	height  int
}

// NewSummaryModel creates a SummaryModel.
func NewSummaryModel(result *models.AnalysisResult) SummaryModel {
	return SummaryModel{result: result, summary: result.Summary()}
}

func (s *SummaryModel) SetSize(w, h int) {
	s.width = w
	s.height = h
}

func (s SummaryModel) View() string {
	sev := s.summary.FindingsBySeverity
	cardW := 14
	if s.width >= 100 {
		cardW = 18
	}
	counters := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Critical", sev.Critical, models.SeverityCritical, cardW),
		renderCounter("High", sev.High, models.SeverityHigh, cardW),
		renderCounter("Medium", sev.Medium, models.SeverityMedium, cardW),
		renderCounter("Low", sev.Low, models.SeverityLow, cardW),
		renderCounter("Info", sev.Info, models.SeverityInfo, cardW),
	)

	types := s.summary.FindingsByType
	r := s.result
	rows := []string{
		kv("Target", orDash(r.Target)),
		kv("Pass", orDash(r.AnalysisPass)),
		kv("Analyzer", orDash(strings.Trim(r.Provider+" / "+r.Model, " /"))),
	}
	if r.RepositoryURL != "" {
		rows = append(rows, kv("Repository", r.RepositoryURL))
	}
	if r.Commit != "" {
		rows = append(rows, kv("Commit", r.Commit))
	}
	rows = append(rows,
		kv("Files", fmt.Sprintf("%d analyzed, %d failed", r.FilesAnalyzed, r.FailedUnits)),
		kv("Lines", fmt.Sprintf("%d", r.TotalLines)),
		kv("Findings", fmt.Sprintf("%d (security %d, bug %d, quality %d)",
			s.summary.TotalFindings, types.Security, types.Bug, types.Quality)),
		kv("Duration", fmt.Sprintf("%.1fs", r.DurationSeconds)),
	)
	if !r.Timestamp.IsZero() {
		rows = append(rows, kv("Finished", r.Timestamp.UTC().Format("2006-01-02 15:04:05 MST")))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(counters),
		panelStyle.Width(max(20, s.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				append([]string{panelHeaderStyle.Render("Analysis"), ""}, rows...)...,
			),
		),
	)
}

func renderCounter(label string, count int, sev models.Severity, width int) string {
	return panelStyle.Padding(0, 1).Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			report.SeverityStyle(sev).Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + " "
}

func kv(k, v string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(12).Foreground(muted).Render(k),
		lipgloss.NewStyle().Foreground(ink).Render(v),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return "…" + string(r[len(r)-max+1:])
}
