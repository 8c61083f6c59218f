// Package tui is the interactive report reviewer behind `pct review`.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/pct/models"
)

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabSummary Tab = iota
	TabFindings
)

var tabNames = []string{"Summary", "Findings"}
var tabTinyNames = []string{"S", "F"}

// App is the root bubbletea model.
type App struct {
	result    *models.AnalysisResult
	failed    bool
	width     int
	height    int
	activeTab Tab
	summary   SummaryModel
	findings  FindingsModel
}

// NewApp creates the reviewer for a decoded report. failed is the report's
// policy outcome and is shown in the header.
func NewApp(result *models.AnalysisResult, failed bool) *App {
	return &App{
		result:    result,
		failed:    failed,
		summary:   NewSummaryModel(result),
		findings:  NewFindingsModel(result.Findings),
		activeTab: TabSummary,
	}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentW := max(20, msg.Width-2)
		contentH := max(8, msg.Height-7)
		a.summary.SetSize(contentW, contentH)
		a.findings.SetSize(contentW, contentH)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "1":
			a.activeTab = TabSummary
			return a, nil
		case "2":
			a.activeTab = TabFindings
			return a, nil
		case "tab", "shift+tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
			return a, nil
		}
	}

	if a.activeTab == TabFindings {
		var cmd tea.Cmd
		a.findings, cmd = a.findings.Update(msg)
		return a, cmd
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var content string
	switch a.activeTab {
	case TabFindings:
		content = a.findings.View()
	default:
		content = a.summary.View()
	}

	contentBox := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-4)).
		Render(content)

	status := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(faint).
		Render("tab switch  1-2 jump  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderTabs(),
		contentBox,
		status,
	)
}

func (a *App) renderHeader() string {
	verdict := okStyle.Render("PASS")
	if a.failed {
		verdict = failStyle.Render("FAIL")
	}
	target := a.result.Target
	if target == "" {
		target = "report"
	}
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("pct"),
		"  ",
		dimStyle.Render(target),
		"  ",
		mutedBadgeStyle.Render(" "+tabNames[a.activeTab]+" "),
		"  ",
		verdict,
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(border).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderTabs() string {
	rendered := a.renderTabLabels(tabNames)
	if lipgloss.Width(rendered) > max(10, a.width-2) {
		rendered = a.renderTabLabels(tabTinyNames)
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(muted).
		Render(rendered)
}

func (a *App) renderTabLabels(labels []string) string {
	parts := make([]string, 0, len(labels))
	for i, name := range labels {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(label))
		} else {
			parts = append(parts, dimStyle.Render(label))
		}
		if i < len(labels)-1 {
			parts = append(parts, dimStyle.Render("  ·  "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
