package tui

import (
	"fmt"
	"path"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/pct/internal/report"
	"github.com/CosmoTheDev/pct/models"
)

// FindingsModel lists findings, most severe first, with a severity floor
// and a detail pane for the selected row.
type FindingsModel struct {
	all     []models.Finding
	visible []models.Finding
	minSev  models.Severity
	cursor  int
	offset  int
	detail  bool
	width   int
	height  int
}

// NewFindingsModel creates a FindingsModel. The input slice is not modified.
func NewFindingsModel(found []models.Finding) FindingsModel {
	all := make([]models.Finding, len(found))
	copy(all, found)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Severity.Weight() > all[j].Severity.Weight()
	})
	f := FindingsModel{all: all, minSev: models.SeverityInfo}
	f.applyFilter()
	return f
}

var severityKeys = map[string]models.Severity{
	"0": models.SeverityInfo,
	"c": models.SeverityCritical,
	"h": models.SeverityHigh,
	"m": models.SeverityMedium,
	"l": models.SeverityLow,
}

func (f FindingsModel) Update(msg tea.Msg) (FindingsModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil
	}
	switch k := key.String(); k {
	case "j", "down":
		f.cursor++
	case "k", "up":
		f.cursor--
	case "g", "home":
		f.cursor = 0
	case "G", "end":
		f.cursor = len(f.visible) - 1
	case "enter", " ":
		f.detail = !f.detail
	case "esc":
		f.detail = false
	default:
		if sev, ok := severityKeys[k]; ok {
			f.minSev = sev
			f.cursor = 0
			f.offset = 0
			f.applyFilter()
		}
	}
	f = f.clampCursor()
	return f, nil
}

func (f *FindingsModel) SetSize(w, h int) {
	f.width = w
	f.height = h
}

// Selected returns the finding under the cursor.
func (f FindingsModel) Selected() (models.Finding, bool) {
	if len(f.visible) == 0 {
		return models.Finding{}, false
	}
	return f.visible[f.cursor], true
}

func (f *FindingsModel) applyFilter() {
	visible := make([]models.Finding, 0, len(f.all))
	for _, fd := range f.all {
		if fd.Severity.AtLeast(f.minSev) {
			visible = append(visible, fd)
		}
	}
	f.visible = visible
}

func (f FindingsModel) pageSize() int {
	size := f.height - 10
	if f.detail {
		size -= 8
	}
	return max(3, size)
}

func (f FindingsModel) clampCursor() FindingsModel {
	if len(f.visible) == 0 {
		f.cursor, f.offset = 0, 0
		return f
	}
	f.cursor = min(max(f.cursor, 0), len(f.visible)-1)
	page := f.pageSize()
	if f.cursor < f.offset {
		f.offset = f.cursor
	}
	if f.cursor >= f.offset+page {
		f.offset = f.cursor - page + 1
	}
	return f
}

func (f FindingsModel) View() string {
	var rows strings.Builder
	end := min(len(f.visible), f.offset+f.pageSize())
	for i := f.offset; i < end; i++ {
		rows.WriteString(f.renderRow(i, f.visible[i]))
	}
	if len(f.visible) == 0 {
		rows.WriteString(dimStyle.Render("No findings at or above " + f.minSev.String() + ".\n"))
	}

	filterBar := lipgloss.JoinHorizontal(lipgloss.Left,
		f.filterChip("All", models.SeverityInfo, "0"),
		" ",
		f.filterChip("Critical", models.SeverityCritical, "c"),
		" ",
		f.filterChip("High+", models.SeverityHigh, "h"),
		" ",
		f.filterChip("Medium+", models.SeverityMedium, "m"),
		" ",
		f.filterChip("Low+", models.SeverityLow, "l"),
	)

	parts := []string{
		panelHeaderStyle.Render(fmt.Sprintf("Findings (%d of %d)", len(f.visible), len(f.all))),
		filterBar,
		"",
		dimStyle.Render("   Severity  Type      Location                        Message"),
		rows.String(),
	}
	if f.detail {
		if sel, ok := f.Selected(); ok {
			parts = append(parts, f.renderDetail(sel))
		}
	}
	parts = append(parts, "",
		lipgloss.JoinHorizontal(lipgloss.Left,
			keycapStyle.Render("enter"), " ", dimStyle.Render("details"), "  ",
			dimStyle.Render("j/k navigate  0 c h m l severity floor"),
		),
	)

	return panelStyle.Width(max(20, f.width-2)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (f FindingsModel) renderRow(idx int, fd models.Finding) string {
	cursor := " "
	if idx == f.cursor {
		cursor = "▌"
	}
	msgW := max(20, f.width-62)
	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(3).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(10).Render(report.SeverityStyle(fd.Severity).Render(strings.ToUpper(fd.Severity.String()))),
		lipgloss.NewStyle().Width(10).Foreground(muted).Render(fd.Type.String()),
		lipgloss.NewStyle().Width(32).Foreground(muted).Render(truncate(location(fd), 30)),
		lipgloss.NewStyle().Foreground(ink).Render(clip(fd.Message, msgW)),
	)
	if idx == f.cursor {
		return selectedRowStyle.Width(max(20, f.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (f FindingsModel) renderDetail(fd models.Finding) string {
	lines := []string{
		report.SeverityStyle(fd.Severity).Render(strings.ToUpper(fd.Severity.String())) + "  " +
			panelHeaderStyle.Render(fd.Message),
		kv("Location", location(fd)),
		kv("Confidence", fmt.Sprintf("%.0f%%", fd.Confidence*100)),
	}
	if fd.RuleID != "" {
		lines = append(lines, kv("Rule", fd.RuleID))
	}
	if fd.Remediation != "" {
		lines = append(lines, kv("Fix", fd.Remediation))
	}
	if fd.CodeSnippet != "" {
		lines = append(lines, "", dimStyle.Render(fd.CodeSnippet))
	}
	return lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(border).
		Width(max(20, f.width-6)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (f FindingsModel) filterChip(label string, sev models.Severity, key string) string {
	if f.minSev == sev {
		return activeTabStyle.Render(label)
	}
	return tabStyle.Render(label + " [" + key + "]")
}

func location(fd models.Finding) string {
	p := fd.Location.FilePath
	if p == "" {
		p = "?"
	} else {
		p = path.Clean(p)
	}
	if n := fd.Location.LineOr(0); n > 0 {
		return fmt.Sprintf("%s:%d", p, n)
	}
	return p
}

// clip shortens s from the right, unlike truncate which keeps the tail of
// paths.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
