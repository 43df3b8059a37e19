// Package output renders a running load test to the console: a live
// progress box on terminals, one status line per update otherwise, and a
// final summary with the per-request breakdown.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/stackrox/acs-loadtest/internal/performance/engine"
	"github.com/stackrox/acs-loadtest/internal/performance/metrics"
)

// Cursor control
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

// Box drawing
const (
	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	CurrentRPS    float64
	TotalRequests int64
	Errors        int64
	ErrorRate     float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	CurrentPhase string
	CurrentStage int // 1-indexed
	TotalStages  int
}

// ConsoleOutput manages live console output during test execution.
type ConsoleOutput struct {
	testName      string
	executorType  string
	totalDuration time.Duration
	writer        io.Writer
	isTTY         bool
	quiet         bool

	cyan, green, yellow, red, blue, magenta, bold, dim *color.Color

	mu          sync.Mutex
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName      string
	ExecutorType  string
	TotalDuration time.Duration
	Writer        io.Writer
	Quiet         bool
	ForceColors   bool
	ForceTTY      bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := config.ForceColors || (isTTY && supportsColors())

	palette := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}

	return &ConsoleOutput{
		testName:      config.TestName,
		executorType:  config.ExecutorType,
		totalDuration: config.TotalDuration,
		writer:        config.Writer,
		isTTY:         isTTY,
		quiet:         config.Quiet,
		cyan:          palette(color.FgCyan),
		green:         palette(color.FgGreen),
		yellow:        palette(color.FgYellow),
		red:           palette(color.FgRed),
		blue:          palette(color.FgBlue),
		magenta:       palette(color.FgMagenta),
		bold:          palette(color.Bold),
		dim:           palette(color.Faint),
	}
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the test header.
func (c *ConsoleOutput) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	executorInfo := ""
	if c.executorType != "" {
		executorInfo = fmt.Sprintf(" [%s]", c.executorType)
	}

	c.writeln(c.cyan.Sprint(line))
	c.writeln(c.bold.Sprintf("%s - Running%s", c.testName, executorInfo))
	c.writeln(c.cyan.Sprint(line))
	c.writeln("")
}

// Report shows stats the way the output supports: the live box on a
// terminal, a status line otherwise.
func (c *ConsoleOutput) Report(stats *LiveStats) {
	if c.isTTY {
		c.Update(stats)
		return
	}
	c.PrintNonInteractiveUpdate(stats)
}

// Update redraws the live display.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.green.Sprint(renderProgressBar(stats.Progress, 40)),
		c.bold.Sprintf("%.0f%%", stats.Progress*100),
		c.dim.Sprint(timeInfo)))

	phaseInfo := stats.CurrentPhase
	if stats.TotalStages > 0 {
		phaseInfo = fmt.Sprintf("%s (%d/%d)", stats.CurrentPhase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.magenta.Sprint(phaseInfo)), "")

	const boxWidth = 55
	lines = append(lines, c.dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("Users:   %s / %d", c.cyan.Sprint(stats.ActiveVUs), stats.TargetVUs),
		fmt.Sprintf("Requests:    %s", c.cyan.Sprint(formatNumber(stats.TotalRequests))),
		boxWidth))

	errColor := c.errorColor(stats.ErrorRate)
	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("RPS:     %s", c.green.Sprintf("%.1f", stats.CurrentRPS)),
		fmt.Sprintf("Failures:    %s (%s)", errColor.Sprint(stats.Errors), errColor.Sprintf("%.1f%%", stats.ErrorRate*100)),
		boxWidth))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("P95:     %s", c.blue.Sprint(formatDurationShort(stats.LatencyP95))),
		fmt.Sprintf("Avg:         %s", c.blue.Sprint(formatDurationShort(stats.LatencyAvg))),
		boxWidth))

	lines = append(lines, c.dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))

	return lines
}

func (c *ConsoleOutput) errorColor(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return c.red
	case rate > 0.01:
		return c.yellow
	default:
		return c.green
	}
}

func (c *ConsoleOutput) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2

	return fmt.Sprintf("%s %s%s%s %s%s %s",
		c.dim.Sprint(boxVertical),
		left, pad(left, colWidth),
		c.dim.Sprint(boxVertical),
		right, pad(right, colWidth),
		c.dim.Sprint(boxVertical))
}

// pad returns the spaces that bring s, ANSI codes excluded, to width runes.
func pad(s string, width int) string {
	n := width - len([]rune(stripANSI(s)))
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintNonInteractiveUpdate prints a one-line status update, for output
// piped to a file or a CI log.
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | Users: %d | Reqs: %d | RPS: %.1f | Failures: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// PrintSummary prints the final test summary.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		if result.Passed {
			c.writeln(c.green.Sprint("PASSED"))
		} else {
			c.writeln(c.red.Sprint("FAILED"))
		}
		return
	}

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := c.green.Sprint("Completed ✓")
	switch {
	case !result.Passed:
		status = c.red.Sprint("Failed ✗")
	case result.Interrupted:
		status = c.yellow.Sprint("Stopped early")
	}

	c.writeln("")
	c.writeln(c.cyan.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.bold.Sprint(c.testName), status))
	c.writeln(c.cyan.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.cyan.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Host:          %s", result.Host))
	if m := result.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Total Reqs:    %s", c.cyan.Sprint(formatNumber(m.TotalRequests))))
		successRate := 1.0 - m.ErrorRate
		c.writeln(fmt.Sprintf("Success Rate:  %s", c.errorColor(m.ErrorRate).Sprintf("%.1f%%", successRate*100)))
		c.writeln(fmt.Sprintf("Throughput:    %.2f req/s", m.RPS))
		c.writeln(fmt.Sprintf("Transferred:   %s", formatBytes(m.TotalBytes)))
	}
	c.writeln("")

	if len(result.RequestStats) > 0 {
		c.printRequestTable(result.RequestStats)
		c.printFailures(result.RequestStats)
	}

	if m := result.Metrics; m != nil && m.TotalRequests > 0 {
		c.writeln(c.bold.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Latency.Max)))
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.bold.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.green.Sprint("✓")
			if !t.Passed {
				mark = c.red.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value))
			if !t.Passed && t.Message != "" {
				c.writeln("      " + c.dim.Sprint(t.Message))
			}
		}
		c.writeln("")
	}
}

func (c *ConsoleOutput) printRequestTable(stats []metrics.RequestStats) {
	c.writeln(c.bold.Sprint("Requests:"))
	c.writeln(fmt.Sprintf("  %-40s %8s %8s %9s %9s %9s %9s",
		"Name", "# reqs", "# fails", "Avg", "Min", "Max", "P95"))
	for _, s := range stats {
		c.writeln(fmt.Sprintf("  %-40s %8d %8d %9s %9s %9s %9s",
			s.Name, s.Requests, s.Failures,
			formatDurationShort(s.Latency.Mean),
			formatDurationShort(s.Latency.Min),
			formatDurationShort(s.Latency.Max),
			formatDurationShort(s.Latency.P95)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) printFailures(stats []metrics.RequestStats) {
	type row struct {
		name, cause string
		count       int64
	}

	var rows []row
	for _, s := range stats {
		for cause, n := range s.Causes {
			rows = append(rows, row{s.Name, cause, n})
		}
	}
	if len(rows) == 0 {
		return
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name+rows[i].cause < rows[j].name+rows[j].cause
	})

	c.writeln(c.bold.Sprint("Failures:"))
	for _, r := range rows {
		c.writeln(fmt.Sprintf("  %8d  %s: %s", r.count, r.name, c.red.Sprint(r.cause)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromMetrics builds LiveStats from a snapshot and executor state.
func StatsFromMetrics(
	snapshot *metrics.Snapshot,
	progress float64,
	totalDuration time.Duration,
	targetVUs int,
	currentStage, totalStages int,
) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:     progress,
			TargetVUs:    targetVUs,
			CurrentStage: currentStage,
			TotalStages:  totalStages,
			CurrentPhase: "initializing",
		}
	}

	elapsed := snapshot.Elapsed
	remaining := totalDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		CurrentRPS:    snapshot.RPS,
		TotalRequests: snapshot.TotalRequests,
		Errors:        snapshot.FailedRequests,
		ErrorRate:     snapshot.ErrorRate,
		LatencyP95:    snapshot.Latency.P95,
		LatencyAvg:    snapshot.Latency.Mean,
		CurrentPhase:  string(snapshot.CurrentPhase),
		CurrentStage:  currentStage,
		TotalStages:   totalStages,
	}
}
