package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDurationShort(tt.duration); got != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumber(tt.number); got != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("formatBytes(512) = %q", got)
	}
	if got := formatBytes(2048); got != "2.00 KB" {
		t.Errorf("formatBytes(2048) = %q", got)
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\033[32mok\033[0m done"); got != "ok done" {
		t.Errorf("stripANSI = %q, want %q", got, "ok done")
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := renderProgressBar(0.5, 10)
	if got := strings.Count(bar, progressFilled); got != 5 {
		t.Errorf("filled cells = %d, want 5", got)
	}
	if got := strings.Count(renderProgressBar(2, 10), progressFilled); got != 10 {
		t.Errorf("progress above 1 should clamp, got %d filled", got)
	}
}

func newTestConsole(buf *bytes.Buffer, tty bool) *ConsoleOutput {
	return NewConsoleOutput(ConsoleOutputConfig{
		TestName:      "list-centrals",
		ExecutorType:  "constant-vus",
		TotalDuration: time.Minute,
		Writer:        buf,
		ForceTTY:      tty,
	})
}

func TestConsoleOutput_NotTTYForBuffer(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf, false)
	if c.IsTTY() {
		t.Error("a bytes.Buffer is not a terminal")
	}
}

func TestConsoleOutput_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	newTestConsole(&buf, false).PrintHeader()

	out := buf.String()
	if !strings.Contains(out, "list-centrals - Running [constant-vus]") {
		t.Errorf("header missing test name: %q", out)
	}
}

func TestConsoleOutput_NonInteractiveUpdate(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf, false)

	c.Report(&LiveStats{
		Progress:      0.25,
		Elapsed:       15 * time.Second,
		ActiveVUs:     3,
		TotalRequests: 120,
		CurrentRPS:    8,
		Errors:        2,
		ErrorRate:     2.0 / 120,
		LatencyP95:    40 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"Progress: 25%", "Users: 3", "Reqs: 120", "Failures: 2", "P95: 40ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("update %q missing %q", out, want)
		}
	}
}

func TestConsoleOutput_LiveUpdateRedraws(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf, true)

	stats := &LiveStats{Progress: 0.1, ActiveVUs: 1, TargetVUs: 5, CurrentPhase: "ramp-up"}
	c.Update(stats)
	first := buf.Len()
	if first == 0 {
		t.Fatal("expected live output")
	}

	c.Update(stats)
	if !strings.Contains(buf.String()[first:], "\033[") {
		t.Error("second update should move the cursor back over the previous box")
	}
}

func TestConsoleOutput_QuietSuppressesUpdates(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{TestName: "x", Writer: &buf, Quiet: true})

	c.PrintHeader()
	c.PrintNonInteractiveUpdate(&LiveStats{})
	if buf.Len() != 0 {
		t.Errorf("quiet output wrote %q", buf.String())
	}

	c.PrintSummary(&engine.TestResult{Passed: false})
	if strings.TrimSpace(buf.String()) != "FAILED" {
		t.Errorf("quiet summary = %q, want FAILED", buf.String())
	}
}

func TestConsoleOutput_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsole(&buf, false)

	c.PrintSummary(&engine.TestResult{
		User:     "list-centrals",
		Host:     "http://fleet-manager:8000",
		Duration: 10 * time.Second,
		Passed:   false,
		Metrics: &metrics.Snapshot{
			TotalRequests:  100,
			FailedRequests: 100,
			ErrorRate:      1,
			RPS:            10,
			Latency:        metrics.LatencyStats{P95: 12 * time.Millisecond, Count: 100},
		},
		RequestStats: []metrics.RequestStats{{
			Name:     "GET /api/rhacs/v1/centrals",
			Requests: 100,
			Failures: 100,
			Causes:   map[string]int64{"HTTP 401 Unauthorized": 100},
		}},
		Thresholds: []engine.ThresholdResult{{
			Metric:     "http_req_failed",
			Expression: "rate < 0.01",
			Value:      "1.0000",
			Message:    "error rate 100.00% exceeds threshold",
		}},
	})

	out := buf.String()
	for _, want := range []string{
		"Failed",
		"http://fleet-manager:8000",
		"GET /api/rhacs/v1/centrals",
		"HTTP 401 Unauthorized",
		"http_req_failed rate < 0.01",
		"Success Rate:  0.0%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleOutput_PrintSummaryInterrupted(t *testing.T) {
	var buf bytes.Buffer
	newTestConsole(&buf, false).PrintSummary(&engine.TestResult{Passed: true, Interrupted: true})

	if !strings.Contains(buf.String(), "Stopped early") {
		t.Errorf("interrupted run not flagged: %q", buf.String())
	}
}

func TestStatsFromMetrics(t *testing.T) {
	t.Run("nil snapshot", func(t *testing.T) {
		s := StatsFromMetrics(nil, 0, time.Minute, 5, 0, 0)
		if s.CurrentPhase != "initializing" || s.TargetVUs != 5 {
			t.Errorf("unexpected stats %+v", s)
		}
	})

	t.Run("snapshot", func(t *testing.T) {
		snap := &metrics.Snapshot{
			TotalRequests:  50,
			FailedRequests: 5,
			ErrorRate:      0.1,
			RPS:            5,
			ActiveVUs:      2,
			CurrentPhase:   metrics.PhaseSteady,
			Elapsed:        70 * time.Second,
			Latency:        metrics.LatencyStats{P95: 30 * time.Millisecond, Mean: 10 * time.Millisecond},
		}
		s := StatsFromMetrics(snap, 1, time.Minute, 2, 1, 3)
		if s.Remaining != 0 {
			t.Errorf("remaining = %v, want 0 once elapsed passes the total", s.Remaining)
		}
		if s.Errors != 5 || s.TotalRequests != 50 || s.CurrentPhase != "steady" {
			t.Errorf("unexpected stats %+v", s)
		}
		if s.LatencyP95 != 30*time.Millisecond || s.LatencyAvg != 10*time.Millisecond {
			t.Errorf("latency not carried over: %+v", s)
		}
	})
}
