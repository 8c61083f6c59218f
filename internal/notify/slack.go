package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/CosmoTheDev/pct/internal/config"
)

// SlackChannel posts run summaries to a Slack incoming webhook.
type SlackChannel struct {
	cfg    config.SlackNotifyConfig
	client *http.Client
}

func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.WebhookURL != "" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Fallback string       `json:"fallback"`
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	Fields   []slackField `json:"fields"`
	Footer   string       `json:"footer"`
	TS       int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackMessageFor lays the event out as one attachment with a short field
// per severity, coloured by the highest severity reported.
func slackMessageFor(evt Event) slackMessage {
	c := evt.Counts
	fields := []slackField{
		{Title: "Target", Value: orUnknown(evt.Target), Short: true},
		{Title: "Highest severity", Value: orNone(evt.Severity), Short: true},
	}
	for _, sc := range []struct {
		name string
		n    int
	}{
		{"Critical", c.Critical}, {"High", c.High}, {"Medium", c.Medium}, {"Low", c.Low}, {"Info", c.Info},
	} {
		fields = append(fields, slackField{Title: sc.name, Value: strconv.Itoa(sc.n), Short: true})
	}
	return slackMessage{
		Text: evt.Title,
		Attachments: []slackAttachment{{
			Fallback: evt.Title + ": " + evt.Body,
			Color:    severityColor(evt.Severity),
			Title:    evt.Title,
			Text:     evt.Body,
			Fields:   fields,
			Footer:   "pct run " + evt.RunID,
			TS:       time.Now().Unix(),
		}},
	}
}

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	b, err := json.Marshal(slackMessageFor(evt))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req) // #nosec G107 -- WebhookURL is a user-configured Slack incoming webhook URL
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// severityColor maps the highest severity to the attachment bar colour.
// A run with no findings is green.
func severityColor(sev string) string {
	switch sev {
	case "critical":
		return "#D92D20"
	case "high":
		return "#F79009"
	case "medium":
		return "#FDB022"
	case "low":
		return "#2E90FA"
	case "info":
		return "#98A2B3"
	default:
		return "#2EB67D"
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
