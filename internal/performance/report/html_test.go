package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

func sampleResult() *engine.TestResult {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &engine.TestResult{
		User:       "list-centrals",
		Host:       "http://fleet-manager:8000",
		Executor:   "constant-vus",
		StartTime:  start,
		EndTime:    start.Add(90 * time.Second),
		Duration:   90 * time.Second,
		Iterations: 1000,
		MaxUsers:   10,
		Metrics: &metrics.Snapshot{
			TotalRequests:   1000,
			SuccessRequests: 900,
			FailedRequests:  100,
			ErrorRate:       0.1,
			RPS:             11.1,
			TotalBytes:      2048,
			Latency:         metrics.LatencyStats{P95: 40 * time.Millisecond},
		},
		RequestStats: []metrics.RequestStats{{
			Name:     "GET /api/rhacs/v1/centrals",
			Requests: 1000,
			Failures: 100,
			Causes:   map[string]int64{"HTTP 401 Unauthorized": 60, "HTTP 503 Service Unavailable": 40},
		}},
		TimeSeries: []*metrics.TimeBucket{
			{Timestamp: start.Add(time.Second), IntervalRPS: 10, ActiveVUs: 5, LatencyP95: 35 * time.Millisecond, Phase: metrics.PhaseRampUp},
			{Timestamp: start.Add(2 * time.Second), IntervalRPS: 12, ActiveVUs: 10, LatencyP95: 41 * time.Millisecond, Phase: metrics.PhaseSteady},
		},
		Thresholds: []engine.ThresholdResult{{
			Metric: "http_req_failed", Expression: "rate < 0.01", Value: "0.1000", Message: "error rate too high",
		}},
	}
}

func TestGenerateHTMLString(t *testing.T) {
	html, err := GenerateHTMLString(sampleResult())
	require.NoError(t, err)

	for _, want := range []string{
		"<title>list-centrals - Load Test Report</title>",
		"http://fleet-manager:8000",
		"FAILED",
		"GET /api/rhacs/v1/centrals",
		"HTTP 401 Unauthorized",
		"rate &lt; 0.01",
		"90.00%",
		`"latencyP95":35000`,
	} {
		assert.Contains(t, html, want)
	}

	// larger failure causes come first
	assert.Less(t, strings.Index(html, "HTTP 401"), strings.Index(html, "HTTP 503"))
}

func TestGenerateHTMLStringMinimal(t *testing.T) {
	html, err := GenerateHTMLString(&engine.TestResult{User: "list-centrals", Passed: true})
	require.NoError(t, err)
	assert.Contains(t, html, "PASSED")
	assert.Contains(t, html, "const timeSeriesData = []")
}

func TestGenerateHTMLStringNilResult(t *testing.T) {
	_, err := GenerateHTMLString(nil)
	assert.Error(t, err)
}

func TestGenerateHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, GenerateHTML(sampleResult(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 05s", formatDuration(125*time.Second))
	assert.Equal(t, "500µs", formatLatency(500*time.Microsecond))
	assert.Equal(t, "12.5ms", formatLatency(12500*time.Microsecond))
	assert.Equal(t, "1.50s", formatLatency(1500*time.Millisecond))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KB", formatBytes(2048))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, successRate(nil))
	assert.Equal(t, 0.0, successRate(&metrics.Snapshot{}))
	assert.Equal(t, 0.9, successRate(&metrics.Snapshot{TotalRequests: 10, SuccessRequests: 9}))
}
