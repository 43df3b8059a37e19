// Package report renders a finished load test as a standalone HTML page.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*engine.TestResult
	TimeSeriesJSON template.JS
}

// TimeSeriesPoint is one chart point, latencies in microseconds.
type TimeSeriesPoint struct {
	Timestamp         string  `json:"timestamp"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
	LatencyP50        int64   `json:"latencyP50"`
	LatencyP95        int64   `json:"latencyP95"`
	LatencyP99        int64   `json:"latencyP99"`
	ActiveVUs         int     `json:"activeVUs"`
	Phase             string  `json:"phase"`
}

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate))

// GenerateHTML renders result and writes it to outputPath.
func GenerateHTML(result *engine.TestResult, outputPath string) error {
	html, err := GenerateHTMLString(result)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}

// GenerateHTMLString renders result as an HTML document.
func GenerateHTMLString(result *engine.TestResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	timeSeriesJSON, err := convertTimeSeriesJSON(result.TimeSeries)
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := ReportData{
		TestResult:     result,
		TimeSeriesJSON: template.JS(timeSeriesJSON),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func convertTimeSeriesJSON(timeSeries []*metrics.TimeBucket) (string, error) {
	points := make([]TimeSeriesPoint, 0, len(timeSeries))
	for _, b := range timeSeries {
		points = append(points, TimeSeriesPoint{
			Timestamp:         b.Timestamp.Format(time.RFC3339),
			IntervalRPS:       b.IntervalRPS,
			IntervalErrorRate: b.IntervalErrorRate,
			LatencyP50:        b.LatencyP50.Microseconds(),
			LatencyP95:        b.LatencyP95.Microseconds(),
			LatencyP99:        b.LatencyP99.Microseconds(),
			ActiveVUs:         b.ActiveVUs,
			Phase:             string(b.Phase),
		})
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(jsonBytes), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatLatency":  formatLatency,
		"formatBytes":    formatBytes,
		"percent":        func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
		"successRate":    successRate,
		"failureRows":    failureRows,
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func successRate(m *metrics.Snapshot) float64 {
	if m == nil || m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessRequests) / float64(m.TotalRequests)
}

// FailureRow is one line of the failures table.
type FailureRow struct {
	Name  string
	Cause string
	Count int64
}

func failureRows(stats []metrics.RequestStats) []FailureRow {
	var rows []FailureRow
	for _, s := range stats {
		for cause, n := range s.Causes {
			rows = append(rows, FailureRow{Name: s.Name, Cause: cause, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Cause < rows[j].Cause
	})
	return rows
}
