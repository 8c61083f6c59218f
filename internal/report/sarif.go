package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/CosmoTheDev/pct/models"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool                     sarifTool          `json:"tool"`
	AutomationDetails        *sarifAutomation   `json:"automationDetails,omitempty"`
	VersionControlProvenance []sarifVersionCtrl `json:"versionControlProvenance,omitempty"`
	Results                  []sarifResult      `json:"results"`
	Properties               map[string]any     `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	ShortDescription     sarifMessage    `json:"shortDescription"`
	DefaultConfiguration sarifRuleConfig `json:"defaultConfiguration"`
	Properties           map[string]any  `json:"properties,omitempty"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifAutomation struct {
	ID string `json:"id"`
}

type sarifVersionCtrl struct {
	RepositoryURI string `json:"repositoryUri"`
	RevisionID    string `json:"revisionId"`
	Branch        string `json:"branch,omitempty"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	RuleIndex  int             `json:"ruleIndex"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties sarifProps      `json:"properties"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int           `json:"startLine"`
	StartColumn int           `json:"startColumn,omitempty"`
	EndLine     int           `json:"endLine,omitempty"`
	EndColumn   int           `json:"endColumn,omitempty"`
	Snippet     *sarifMessage `json:"snippet,omitempty"`
}

type sarifProps struct {
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Remediation string  `json:"remediation,omitempty"`
	Label       string  `json:"label,omitempty"`
}

// SARIFReporter renders SARIF 2.1.0 for code scanning integrations.
type SARIFReporter struct {
	opts Options
}

func (r *SARIFReporter) Format() Format { return FormatSARIF }

func (r *SARIFReporter) Render(result *models.AnalysisResult) ([]byte, error) {
	results := make([]sarifResult, 0, len(result.Findings))
	for _, f := range result.Findings {
		uri := toURI(f.Location.FilePath)
		if uri == "" {
			return nil, &ReportError{Format: FormatSARIF, Ordinal: f.Ordinal, Constraint: "location.file_path must not be empty"}
		}
		idx := ruleIndex(f.Type)
		if idx < 0 {
			return nil, &ReportError{Format: FormatSARIF, Ordinal: f.Ordinal, Constraint: "type must be security|bug|quality"}
		}
		region := sarifRegion{StartLine: f.Location.LineOr(1)}
		if c := f.Location.Column; c != nil && *c > 0 {
			region.StartColumn = *c
		}
		if el := f.Location.EndLine; el != nil && *el >= region.StartLine {
			region.EndLine = *el
		}
		if ec := f.Location.EndColumn; ec != nil && *ec > 0 {
			region.EndColumn = *ec
		}
		if strings.TrimSpace(f.CodeSnippet) != "" {
			region.Snippet = &sarifMessage{Text: f.CodeSnippet}
		}
		results = append(results, sarifResult{
			RuleID:    ruleID(f.Type),
			RuleIndex: idx,
			Level:     sevToLevel(f.Severity),
			Message:   sarifMessage{Text: f.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysical{
					ArtifactLocation: sarifArtifact{URI: uri},
					Region:           region,
				},
			}},
			Properties: sarifProps{
				Severity:    string(f.Severity),
				Confidence:  f.Confidence,
				Remediation: f.Remediation,
				Label:       f.RuleID,
			},
		})
	}

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           r.opts.toolName(),
			Version:        r.opts.toolVersion(),
			InformationURI: toolInfoURI,
			Rules:          rules(),
		}},
		Results: results,
		Properties: map[string]any{
			"files_analyzed": result.FilesAnalyzed,
			"total_lines":    result.TotalLines,
			"failed_units":   result.FailedUnits,
		},
	}
	if result.RunID != "" {
		category := result.AnalysisPass
		if category == "" {
			category = "analysis"
		}
		run.AutomationDetails = &sarifAutomation{ID: fmt.Sprintf("%s/%s/%s", r.opts.toolName(), category, result.RunID)}
	}
	if result.RepositoryURL != "" && result.Commit != "" {
		run.VersionControlProvenance = []sarifVersionCtrl{{
			RepositoryURI: result.RepositoryURL,
			RevisionID:    result.Commit,
			Branch:        result.Ref,
		}}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sarifLog{Version: sarifVersion, Schema: sarifSchema, Runs: []sarifRun{run}}); err != nil {
		return nil, fmt.Errorf("encoding sarif report: %w", err)
	}
	return buf.Bytes(), nil
}

func rules() []sarifRule {
	title := cases.Title(language.English)
	out := make([]sarifRule, 0, len(models.FindingTypes))
	for _, t := range models.FindingTypes {
		out = append(out, sarifRule{
			ID:                   ruleID(t),
			Name:                 title.String(string(t)),
			ShortDescription:     sarifMessage{Text: title.String(string(t)) + " issue reported by AI analysis"},
			DefaultConfiguration: sarifRuleConfig{Level: "warning"},
			Properties:           map[string]any{"tags": []string{string(t)}},
		})
	}
	return out
}

func ruleID(t models.FindingType) string {
	return "PCT-" + strings.ToUpper(string(t))
}

func ruleIndex(t models.FindingType) int {
	for i, ft := range models.FindingTypes {
		if ft == t {
			return i
		}
	}
	return -1
}

func sevToLevel(s models.Severity) string {
	switch s {
	case models.SeverityCritical, models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func toURI(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}
