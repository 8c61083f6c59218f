package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pct/internal/findings"
	"github.com/CosmoTheDev/pct/internal/scanner"
	"github.com/CosmoTheDev/pct/models"
)

func TestCollectorCountsUnitsAndRuns(t *testing.T) {
	c := New()
	u := scanner.Unit{Path: "a.py", Pass: models.PassSecurity, Lines: 12}

	crit, err := models.NewFinding(models.TypeSecurity, models.SeverityCritical, "rce", models.Location{FilePath: "a.py"})
	require.NoError(t, err)
	c.UnitAnalyzed(u, []models.Finding{crit}, 2*time.Second)
	c.UnitFailed(u, scanner.ReasonTimeout, 30*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.units.WithLabelValues("security", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.units.WithLabelValues("security", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findings.WithLabelValues("critical", "security")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.linesTotal))

	agg := findings.NewAggregator(nil)
	agg.Add([]models.Finding{crit}, 12)
	agg.RecordFailure()
	res := agg.Freeze()
	res.DurationSeconds = 4

	c.RunCompleted(res, false)
	c.RunCompleted(nil, true)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.AnalysesTotal)
	assert.Equal(t, 1, snap.FailedAnalyses)
	assert.Equal(t, 1, snap.FilesAnalyzed)
	assert.Equal(t, 1, snap.FailedUnits)
	assert.Equal(t, 12, snap.TotalLines)
	assert.Equal(t, 1, snap.FindingsBySeverity.Critical)
	assert.Equal(t, 1, snap.FindingsByType.Security)
	assert.Equal(t, 4.0, snap.AvgDurationSeconds)
	assert.Greater(t, snap.UptimeSeconds, 0.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.ObserveRequest("/api/health", 200)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `pct_http_requests_total{code="200",route="/api/health"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}
