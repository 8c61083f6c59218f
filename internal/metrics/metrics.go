// Package metrics exposes process-lifetime analysis counters, both as
// Prometheus collectors and as a JSON snapshot for /api/stats.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CosmoTheDev/pct/internal/scanner"
	"github.com/CosmoTheDev/pct/models"
)

const namespace = "pct"

// Collector records analysis activity. It implements scanner.Observer.
type Collector struct {
	registry *prometheus.Registry

	analyses     *prometheus.CounterVec
	units        *prometheus.CounterVec
	findings     *prometheus.CounterVec
	linesTotal   prometheus.Counter
	unitDuration *prometheus.HistogramVec
	runDuration  prometheus.Histogram
	requests     *prometheus.CounterVec

	mu      sync.Mutex
	started time.Time
	snap    Snapshot
}

// Snapshot is the JSON view of the counters.
type Snapshot struct {
	UptimeSeconds      float64               `json:"uptime_seconds"`
	AnalysesTotal      int                   `json:"analyses_total"`
	FailedAnalyses     int                   `json:"failed_analyses"`
	FilesAnalyzed      int                   `json:"files_analyzed"`
	FailedUnits        int                   `json:"failed_units"`
	TotalLines         int                   `json:"total_lines"`
	FindingsTotal      int                   `json:"findings_total"`
	FindingsBySeverity models.SeverityCounts `json:"findings_by_severity"`
	FindingsByType     models.TypeCounts     `json:"findings_by_type"`
	AvgDurationSeconds float64               `json:"avg_duration_seconds"`
	durationSum        float64
}

// New builds a Collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analysis runs by outcome.",
		}, []string{"outcome"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Analyzed source units by pass and outcome.",
		}, []string{"pass", "outcome"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Normalized findings by severity and type.",
		}, []string{"severity", "type"}),
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_analyzed_total",
			Help:      "Source lines in successfully analyzed units.",
		}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Analyzer round-trip time per unit.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"pass"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a whole analysis run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	c.registry.MustRegister(
		c.analyses, c.units, c.findings, c.linesTotal,
		c.unitDuration, c.runDuration, c.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// UnitAnalyzed implements scanner.Observer.
func (c *Collector) UnitAnalyzed(u scanner.Unit, found []models.Finding, d time.Duration) {
	c.units.WithLabelValues(u.Pass.String(), "ok").Inc()
	c.unitDuration.WithLabelValues(u.Pass.String()).Observe(d.Seconds())
	c.linesTotal.Add(float64(u.Lines))
	for _, f := range found {
		c.findings.WithLabelValues(f.Severity.String(), f.Type.String()).Inc()
	}
}

// UnitFailed implements scanner.Observer.
func (c *Collector) UnitFailed(u scanner.Unit, reason string, d time.Duration) {
	c.units.WithLabelValues(u.Pass.String(), reason).Inc()
	c.unitDuration.WithLabelValues(u.Pass.String()).Observe(d.Seconds())
}

// RunCompleted folds a finished run into the snapshot. failed marks runs
// that did not produce a result at all.
func (c *Collector) RunCompleted(res *models.AnalysisResult, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if failed || res == nil {
		c.analyses.WithLabelValues("error").Inc()
		c.snap.FailedAnalyses++
		return
	}
	c.analyses.WithLabelValues("ok").Inc()
	c.runDuration.Observe(res.DurationSeconds)

	sum := res.Summary()
	c.snap.AnalysesTotal++
	c.snap.FilesAnalyzed += sum.FilesAnalyzed
	c.snap.FailedUnits += res.FailedUnits
	c.snap.TotalLines += sum.TotalLines
	c.snap.FindingsTotal += sum.TotalFindings
	c.snap.FindingsBySeverity.Merge(sum.FindingsBySeverity)
	c.snap.FindingsByType.Merge(sum.FindingsByType)
	c.snap.durationSum += res.DurationSeconds
}

// ObserveRequest counts one HTTP API request.
func (c *Collector) ObserveRequest(route string, code int) {
	c.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Snapshot returns a copy of the counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.UptimeSeconds = time.Since(c.started).Seconds()
	if s.AnalysesTotal > 0 {
		s.AvgDurationSeconds = s.durationSum / float64(s.AnalysesTotal)
	}
	return s
}

var _ scanner.Observer = (*Collector)(nil)
