// Package output renders load test progress and results.
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

	"github.com/prreview/loadgen/internal/performance/engine"
	"github.com/prreview/loadgen/internal/performance/metrics"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

const (
	boxHorizontal = "━"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for one scenario.
type LiveStats struct {
	Scenario string
	State    metrics.RunState

	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	BusyVUs  int
	PoolSize int
	MaxVUs   int

	Arrivals  int64
	Completed int64
	Failed    int64
	Dropped   int64
	Rate      float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration
}

// palette holds the colors used by the console.
type palette struct {
	header  *color.Color
	title   *color.Color
	value   *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	dim     *color.Color
	latency *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header:  color.New(color.FgCyan),
		title:   color.New(color.Bold),
		value:   color.New(color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		dim:     color.New(color.Faint),
		latency: color.New(color.FgBlue),
	}
	for _, c := range []*color.Color{p.header, p.title, p.value, p.good, p.warn, p.bad, p.dim, p.latency} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// rateColor picks a color for a failure-like rate.
func (p palette) rateColor(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return p.bad
	case rate > 0.01:
		return p.warn
	default:
		return p.good
	}
}

// ConsoleOutput manages console output during test execution.
type ConsoleOutput struct {
	testName       string
	totalDuration  time.Duration
	updateInterval time.Duration
	writer         io.Writer
	isTTY          bool
	quiet          bool
	colors         palette

	mu          sync.Mutex
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName       string
	TotalDuration  time.Duration
	UpdateInterval time.Duration
	Writer         io.Writer
	Quiet          bool
	NoColor        bool
	ForceColors    bool
	ForceTTY       bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.UpdateInterval == 0 {
		config.UpdateInterval = time.Second
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := !config.NoColor && (config.ForceColors || (isTTY && supportsColors()))

	return &ConsoleOutput{
		testName:       config.TestName,
		totalDuration:  config.TotalDuration,
		updateInterval: config.UpdateInterval,
		writer:         config.Writer,
		isTTY:          isTTY,
		quiet:          config.Quiet,
		colors:         newPalette(useColors),
	}
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// UpdateInterval returns how often live stats should be refreshed.
func (c *ConsoleOutput) UpdateInterval() time.Duration {
	return c.updateInterval
}

// PrintHeader prints the test header.
func (c *ConsoleOutput) PrintHeader(scenarios []string) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	c.writeln(c.colors.header.Sprint(line))
	c.writeln(c.colors.title.Sprintf("%s - Running [%s]", c.testName, strings.Join(scenarios, ", ")))
	if c.totalDuration > 0 {
		c.writeln(c.colors.dim.Sprintf("arrival window: %s", formatDuration(c.totalDuration)))
	}
	c.writeln(c.colors.header.Sprint(line))
	c.writeln("")
}

// Update redraws the live display in place. It is a no-op unless the output
// is a terminal.
func (c *ConsoleOutput) Update(stats []*LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	var lines []string
	for _, s := range stats {
		lines = append(lines, c.renderLiveStats(s)...)
	}
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// clearLive erases the previous live display. Callers hold c.mu.
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

func (c *ConsoleOutput) renderLiveStats(s *LiveStats) []string {
	p := c.colors
	failRate := ratio(s.Failed, s.Completed)

	return []string{
		fmt.Sprintf("%s %s %s %s | %s",
			p.title.Sprintf("%-14s", s.Scenario),
			p.good.Sprint(c.renderProgressBar(s.Progress, 30)),
			p.title.Sprintf("%3.0f%%", s.Progress*100),
			p.dim.Sprint(s.State),
			p.dim.Sprintf("%s / %s", formatDuration(s.Elapsed), formatDuration(s.Elapsed+s.Remaining))),
		fmt.Sprintf("  VUs %s/%d (max %d) | iters %s | failed %s | dropped %s | %s/s | p95 %s",
			p.value.Sprint(s.BusyVUs), s.PoolSize, s.MaxVUs,
			p.value.Sprint(formatNumber(s.Completed)),
			p.rateColor(failRate).Sprint(formatNumber(s.Failed)),
			p.rateColor(ratio(s.Dropped, s.Arrivals)).Sprint(formatNumber(s.Dropped)),
			p.good.Sprintf("%.1f", s.Rate),
			p.latency.Sprint(formatDurationShort(s.LatencyP95))),
	}
}

// renderProgressBar renders a progress bar.
func (c *ConsoleOutput) renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, empty) + "]"
}

// PrintNonInteractiveUpdate prints one status line per scenario.
// Used when output is not a TTY (e.g., piped to a file or CI/CD).
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats []*LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range stats {
		c.writeln(fmt.Sprintf("[%s] %s: %.0f%% | %s | VUs: %d/%d | Iters: %d | Failed: %d | Dropped: %d | Rate: %.1f/s | P95: %s",
			formatDuration(s.Elapsed),
			s.Scenario,
			s.Progress*100,
			s.State,
			s.BusyVUs,
			s.PoolSize,
			s.Completed,
			s.Failed,
			s.Dropped,
			s.Rate,
			formatDurationShort(s.LatencyP95)))
	}
}

// PrintSummary prints the final test summary.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	p := c.colors

	if c.quiet {
		// In quiet mode, just print passed/failed status
		if result.Passed {
			c.writeln(p.good.Sprint("PASSED"))
		} else {
			c.writeln(p.bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := p.good.Sprint("Completed ✓")
	if !result.Passed {
		status = p.bad.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(p.header.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", p.title.Sprint(result.Name), status))
	c.writeln(p.header.Sprint(line))
	c.writeln("")
	c.writeln(fmt.Sprintf("Duration:      %s", p.value.Sprint(formatDuration(result.Duration))))
	c.writeln("")

	for _, name := range result.ScenarioNames() {
		c.printScenario(name, result.Scenarios[name])
	}

	if len(result.Thresholds) > 0 {
		c.writeln(p.title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := p.good.Sprint("✓")
			if !t.Passed {
				mark = p.bad.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s %s %s (actual: %s)", mark, t.Scenario, t.Metric, t.Expression, t.Value))
			if !t.Passed && t.Message != "" {
				c.writeln(p.dim.Sprintf("      %s", t.Message))
			}
		}
		c.writeln("")
	}

	if result.Error != nil {
		c.writeln(p.bad.Sprintf("Error: %v", result.Error))
		c.writeln("")
	}
}

func (c *ConsoleOutput) printScenario(name string, sr *engine.ScenarioResult) {
	p := c.colors
	s := sr.Summary
	if s == nil {
		return
	}

	c.writeln(p.title.Sprintf("Scenario %s [%s]", name, sr.Executor))
	c.writeln(fmt.Sprintf("  Arrivals:    %s", p.value.Sprint(formatNumber(s.Arrivals))))
	c.writeln(fmt.Sprintf("  Started:     %s", p.value.Sprint(formatNumber(s.Started))))
	c.writeln(fmt.Sprintf("  Completed:   %s", p.value.Sprint(formatNumber(s.Completed))))
	c.writeln(fmt.Sprintf("  Failed:      %s (%.1f%%)",
		p.rateColor(s.FailureRate()).Sprint(formatNumber(s.Failed)), s.FailureRate()*100))
	c.writeln(fmt.Sprintf("  Dropped:     %s (%.1f%%)%s",
		p.rateColor(s.DropRate()).Sprint(formatNumber(s.Dropped)), s.DropRate()*100, formatReasons(s.DroppedByReason)))
	if s.Abandoned > 0 {
		c.writeln(fmt.Sprintf("  Abandoned:   %s", p.bad.Sprint(formatNumber(s.Abandoned))))
	}
	c.writeln(fmt.Sprintf("  Rate:        %s/s (steady %.2f/s)", p.good.Sprintf("%.2f", s.IterationRate), s.SteadyRate))
	c.writeln(fmt.Sprintf("  Max VUs:     %d", s.MaxPoolSize))
	if len(s.StatusClasses) > 0 {
		c.writeln(fmt.Sprintf("  Status:      %s", formatCounts(s.StatusClasses)))
	}

	c.writeln("  Latency:")
	c.writeln(fmt.Sprintf("    Min %s | P50 %s | P90 %s | P95 %s | P99 %s | Max %s",
		formatDurationShort(s.Latency.Min),
		formatDurationShort(s.Latency.P50),
		formatDurationShort(s.Latency.P90),
		p.latency.Sprint(formatDurationShort(s.Latency.P95)),
		formatDurationShort(s.Latency.P99),
		formatDurationShort(s.Latency.Max)))

	if len(s.Checks) > 0 {
		c.writeln("  Checks:")
		for _, chk := range s.Checks {
			mark := p.good.Sprint("✓")
			if chk.Fails > 0 {
				mark = p.bad.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("    %s %s %.1f%% (%d/%d)", mark, chk.Name, chk.PassRate*100, chk.Passes, chk.Total()))
		}
	}
	c.writeln("")
}

// write writes to the output without a newline.
func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// formatReasons renders drop reasons as " [pool_exhausted: 3, ...]".
func formatReasons(reasons map[metrics.DropReason]int64) string {
	if len(reasons) == 0 {
		return ""
	}
	counts := make(map[string]int64, len(reasons))
	for r, n := range reasons {
		counts[string(r)] = n
	}
	return " [" + formatCounts(counts) + "]"
}

// formatCounts renders a label→count map in key order.
func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// StatsFromSnapshot creates LiveStats from a scenario's metrics snapshot and
// executor stats.
func StatsFromSnapshot(scenario string, snap *metrics.Snapshot, progress float64, totalDuration time.Duration, maxVUs int) *LiveStats {
	if snap == nil {
		return &LiveStats{
			Scenario: scenario,
			Progress: progress,
			MaxVUs:   maxVUs,
		}
	}

	elapsed := snap.Elapsed
	remaining := time.Duration(0)
	if totalDuration > elapsed {
		remaining = totalDuration - elapsed
	}

	return &LiveStats{
		Scenario:   scenario,
		State:      snap.State,
		Progress:   progress,
		Elapsed:    elapsed,
		Remaining:  remaining,
		BusyVUs:    snap.BusyVUs,
		PoolSize:   snap.PoolSize,
		MaxVUs:     maxVUs,
		Arrivals:   snap.Arrivals,
		Completed:  snap.Completed,
		Failed:     snap.Failed,
		Dropped:    snap.Dropped,
		Rate:       snap.IterationRate,
		LatencyP95: snap.Latency.P95,
		LatencyAvg: snap.Latency.Mean,
	}
}
