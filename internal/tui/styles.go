package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared with the console report.
var (
	accent  = lipgloss.Color("#14B8A6")
	ink     = lipgloss.Color("#E5E7EB")
	muted   = lipgloss.Color("#94A3B8")
	faint   = lipgloss.Color("#64748B")
	border  = lipgloss.Color("#1F2937")
	surface = lipgloss.Color("#0B1220")
)

// pill is the rounded, padded shape used by tabs, badges and keycaps.
func pill(fg, bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(accent).
			Padding(0, 1)

	tabStyle        = pill(muted, surface)
	activeTabStyle  = pill(surface, accent).Bold(true).BorderForeground(accent)
	mutedBadgeStyle = pill(muted, surface)
	keycapStyle     = pill(ink, lipgloss.Color("#1E293B"))

	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 1)
	panelHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ink)

	// selectedRowStyle marks the cursor row with a left accent bar.
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#0F172A")).
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(accent)

	dimStyle = lipgloss.NewStyle().Foreground(faint)
)
