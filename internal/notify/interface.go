package notify

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/pct/models"
)

// Event types.
const (
	EventAnalysisFailed    = "analysis_failed"
	EventAnalysisCompleted = "analysis_completed"
)

// Event is a run summary sent to notification channels.
type Event struct {
	Type     string
	Title    string
	Body     string
	Severity string // highest severity reported, "" when there are no findings
	Target   string
	RunID    string
	Counts   models.SeverityCounts
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}

// NewRunEvent summarises a filtered result. shouldFail selects the event type.
func NewRunEvent(res *models.AnalysisResult, shouldFail bool) Event {
	sum := res.Summary()
	evt := Event{
		Type:   EventAnalysisCompleted,
		Target: res.Target,
		RunID:  res.RunID,
		Counts: sum.FindingsBySeverity,
	}
	for _, s := range models.Severities {
		if res.CountSeverity(s) > 0 {
			evt.Severity = s.String()
			break
		}
	}

	status := "passed"
	if shouldFail {
		evt.Type = EventAnalysisFailed
		status = "failed"
	}
	evt.Title = fmt.Sprintf("pct analysis %s: %s", status, orUnknown(res.Target))
	c := sum.FindingsBySeverity
	evt.Body = fmt.Sprintf("%d findings in %d files (critical %d, high %d, medium %d, low %d, info %d)",
		sum.TotalFindings, sum.FilesAnalyzed, c.Critical, c.High, c.Medium, c.Low, c.Info)
	if res.FailedUnits > 0 {
		evt.Body += fmt.Sprintf("; %d files could not be analyzed", res.FailedUnits)
	}
	return evt
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
