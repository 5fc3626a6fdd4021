package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/jpalmerr/mirrorrank"
)

// Console writes the human-readable run report.
//
// Every emission holds the console's mutex for its whole duration, so
// blocks written from concurrent evaluations never interleave. A Console is
// safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	started time.Time
	now     func() time.Time

	bold   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	blue   *color.Color
	cyan   *color.Color
}

// NewConsole creates a [Console] writing to w. Colors follow the terminal
// detection of github.com/fatih/color unless noColor is set.
func NewConsole(w io.Writer, noColor bool) *Console {
	c := &Console{
		w:      w,
		now:    time.Now,
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		blue:   color.New(color.FgBlue),
		cyan:   color.New(color.FgCyan),
	}
	if noColor {
		for _, col := range []*color.Color{c.bold, c.green, c.yellow, c.red, c.blue, c.cyan} {
			col.DisableColor()
		}
	}
	c.started = c.now()
	return c
}

// Begin prints the number of loaded endpoints and starts the run timer used
// by [Console.Ranking].
func (c *Console) Begin(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = c.now()
	fmt.Fprintln(c.w, c.bold.Sprintf("Loaded %d mirror endpoints", count))
	fmt.Fprintln(c.w, c.bold.Sprint("\nTesting registry mirrors..."))
}

// NoEndpoints reports that the source produced nothing to probe.
func (c *Console) NoEndpoints(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, c.red.Sprintf("No valid mirror endpoints found, check the source format: %v", err))
}

// EndpointBlock prints the per-attempt log of one evaluation followed by its
// summary line, as one uninterrupted block.
func (c *Console) EndpointBlock(s mirrorrank.Stats) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", c.bold.Sprint("▶ Testing "+s.URL))
	for i, out := range s.Outcomes {
		fmt.Fprintf(&b, "  Attempt %d: %s\n", i+1, c.attempt(out))
	}
	fmt.Fprintf(&b, "%s Result: success %s | avg %s\n",
		c.icon(s), formatRate(s.SuccessRate), formatLatency(s.AvgLatency))

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, b.String())
}

// Arrival prints the one-line summary emitted as each result reaches the
// coordinator.
func (c *Console) Arrival(s mirrorrank.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.w, "%s %s: success %s | avg %s\n",
		c.icon(s), s.URL, formatRate(s.SuccessRate), formatLatency(s.AvgLatency))
}

// Ranking prints the ranked table, best first, and the elapsed time since
// [Console.Begin].
func (c *Console) Ranking(ranked []mirrorrank.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, c.bold.Sprint("\nRanking (best to worst):"))
	for i, s := range ranked {
		fmt.Fprintf(c.w, "%2d. %s (success: %s, latency: %s)\n",
			i+1, c.rateColor(s.SuccessRate).Sprint(s.URL),
			formatRate(s.SuccessRate), formatLatency(s.AvgLatency))
	}
	fmt.Fprintf(c.w, "\nTotal time: %.1fs\n", c.now().Sub(c.started).Seconds())
}

// ValidList prints the mirrors with a non-zero success rate.
func (c *Console) ValidList(ranked []mirrorrank.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, c.bold.Sprint("\nAvailable mirrors (zero success rate filtered):"))
	for i, url := range ValidURLs(ranked) {
		fmt.Fprintf(c.w, "%2d. %s\n", i+1, c.blue.Sprint(url))
	}
}

// Written reports the valid mirror list file.
func (c *Console) Written(count int, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, c.cyan.Sprintf("\nGenerated valid mirror list: %d entries → %s", count, path))
}

// Write prints the ranking followed by the valid list.
func (c *Console) Write(ranked []mirrorrank.Stats) error {
	c.Ranking(ranked)
	c.ValidList(ranked)
	return nil
}

func (c *Console) attempt(out mirrorrank.Outcome) string {
	elapsed := fmt.Sprintf("(%.2fs)", out.Latency.Seconds())
	switch {
	case out.Succeeded:
		return c.green.Sprintf("%d OK", out.StatusCode) + " " + elapsed
	case out.Class == mirrorrank.ClassUnexpectedStatus:
		return c.yellow.Sprintf("%d Error", out.StatusCode) + " " + elapsed
	default:
		return c.red.Sprintf("Failed (%s)", out.Class)
	}
}

func (c *Console) icon(s mirrorrank.Stats) string {
	if s.SuccessRate > 0.5 {
		return c.green.Sprint("✓")
	}
	return c.red.Sprint("✗")
}

func (c *Console) rateColor(rate float64) *color.Color {
	switch {
	case rate > 0.7:
		return c.green
	case rate > 0.3:
		return c.yellow
	default:
		return c.red
	}
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func formatLatency(avg float64) string {
	if math.IsInf(avg, 1) {
		return "n/a"
	}
	return fmt.Sprintf("%.2fs", avg)
}
