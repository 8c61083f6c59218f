package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/CosmoTheDev/pct/models"
)

//go:embed templates/report.html.tmpl
var htmlTemplates embed.FS

var htmlReport = template.Must(template.ParseFS(htmlTemplates, "templates/report.html.tmpl"))

type htmlData struct {
	Tool        string
	Version     string
	RunID       string
	Target      string
	Pass        string
	Model       string
	Commit      string
	Ref         string
	Timestamp   string
	Success     bool
	FailedUnits int
	Summary     models.Summary
	Counts      []htmlCount
	Groups      []htmlGroup
}

type htmlCount struct {
	Severity string
	Label    string
	Count    int
}

type htmlGroup struct {
	Severity string
	Label    string
	Findings []htmlFinding
}

type htmlFinding struct {
	Severity    string
	Type        string
	Message     string
	Where       string
	Confidence  string
	Label       string
	Snippet     string
	Remediation string
}

// HTMLReporter renders a self-contained HTML page.
type HTMLReporter struct {
	opts Options
}

func (r *HTMLReporter) Format() Format { return FormatHTML }

func (r *HTMLReporter) Render(result *models.AnalysisResult) ([]byte, error) {
	title := cases.Title(language.English)
	summary := result.Summary()

	data := htmlData{
		Tool:        r.opts.toolName(),
		Version:     r.opts.toolVersion(),
		RunID:       result.RunID,
		Target:      result.Target,
		Pass:        result.AnalysisPass,
		Model:       result.Model,
		Commit:      result.Commit,
		Ref:         result.Ref,
		Timestamp:   result.Timestamp.UTC().Format(time.RFC1123),
		Success:     success(result, r.opts),
		FailedUnits: result.FailedUnits,
		Summary:     summary,
	}

	groups := map[models.Severity][]htmlFinding{}
	for _, f := range result.Findings {
		groups[f.Severity] = append(groups[f.Severity], htmlFinding{
			Severity:    string(f.Severity),
			Type:        string(f.Type),
			Message:     f.Message,
			Where:       locationLabel(f.Location),
			Confidence:  strconv.FormatFloat(f.Confidence, 'f', -1, 64),
			Label:       f.RuleID,
			Snippet:     f.CodeSnippet,
			Remediation: f.Remediation,
		})
	}
	for _, sev := range models.Severities {
		data.Counts = append(data.Counts, htmlCount{
			Severity: string(sev),
			Label:    title.String(string(sev)),
			Count:    summary.FindingsBySeverity.Get(sev),
		})
		if len(groups[sev]) == 0 {
			continue
		}
		data.Groups = append(data.Groups, htmlGroup{
			Severity: string(sev),
			Label:    title.String(string(sev)),
			Findings: groups[sev],
		})
	}

	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering html report: %w", err)
	}
	return buf.Bytes(), nil
}
