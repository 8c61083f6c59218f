package notify

import (
	"context"
	"log/slog"

	"github.com/CosmoTheDev/pct/internal/config"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	events   map[string]bool
	logger   *slog.Logger
}

// defaultEvents is used when cfg.Events is empty.
var defaultEvents = map[string]bool{
	EventAnalysisFailed: true,
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{events: defaultEvents, logger: logger}
	if len(cfg.Events) > 0 {
		d.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			d.events[e] = true
		}
	}

	for _, ch := range []Channel{NewSlack(cfg.Slack), NewWebhook(cfg.Webhook)} {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Notify sends evt to all configured channels and returns how many accepted
// it. Send errors are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) int {
	if !d.events[evt.Type] {
		return 0
	}
	sent := 0
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			d.logger.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
			continue
		}
		sent++
	}
	return sent
}
