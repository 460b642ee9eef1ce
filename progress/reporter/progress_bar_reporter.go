package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/konveyor/rescue-monitor/progress"
)

// ProgressBarReporter writes progress as a visual progress bar with real-time updates.
//
// The reporter redraws a single line with carriage returns. The bar follows
// the recovered data and also shows the latest current rate and remaining
// time. Status changes, warnings and the final result are printed as static
// lines above it.
//
// IMPORTANT: This reporter is designed for TTY (terminal) output. For non-TTY
// output (pipes, files, CI logs), use TextReporter or JSONReporter instead.
//
// Example output:
//
//	Capacity: 1000 MB
//	Copying non-tried blocks... Pass 1 (forwards)
//	Recovering  42% |██████████░░░░░░░░░░░░░░░| 420/1000 MB  12 MB/s  ETA 48 seconds
//
// Usage:
//
//	reporter := reporter.NewProgressBarReporter(os.Stderr)
//	prog, _ := progress.New(
//	    progress.WithReporters(reporter),
//	)
type ProgressBarReporter struct {
	writer      io.Writer
	mu          sync.Mutex
	barWidth    int
	lastLineLen int

	unit      string
	current   float64
	total     float64
	percent   float64
	rate      string
	remaining string
	elapsed   string
}

// NewProgressBarReporter creates a new progress bar reporter that writes to w.
//
// The visual bar width is fixed at 25 characters and uses Unicode block
// characters (█ for filled, ░ for empty).
func NewProgressBarReporter(w io.Writer) *ProgressBarReporter {
	return &ProgressBarReporter{
		writer:   w,
		barWidth: 25, // Width of the visual bar
	}
}

// Report processes a progress event and updates the progress bar.
//
// This method is safe for concurrent use.
func (p *ProgressBarReporter) Report(event progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)

	switch event.Kind {
	case progress.KindRange:
		p.clearLine()
		p.total = event.Total
		if u, ok := event.Metadata["unit"].(string); ok {
			p.unit = u
		}
		fmt.Fprintf(p.writer, "Capacity: %s\n", event.Value)

	case progress.KindField:
		switch event.Field {
		case progress.FieldRecovered:
			if event.Total > 0 {
				p.current, p.total, p.percent = event.Current, event.Total, event.Percent
			}
			p.redraw()
		case progress.FieldCurrentRate:
			p.rate = event.Value
			p.redraw()
		case progress.FieldTimeRemaining:
			p.remaining = event.Value
			p.redraw()
		case progress.FieldStatus:
			p.clearLine()
			if event.Value != "" {
				fmt.Fprintf(p.writer, "%s\n", event.Value)
			}
			p.redraw()
		}

	case progress.KindElapsed:
		p.elapsed = event.Value
		p.redraw()

	case progress.KindWarning, progress.KindAbortPending:
		p.clearLine()
		fmt.Fprintf(p.writer, "%s\n", event.Message)
		p.redraw()

	case progress.KindSessionEnded:
		p.clearLine()
		if p.total > 0 {
			fmt.Fprintf(p.writer, "%s\n", p.buildProgressBar())
		}
		fmt.Fprintf(p.writer, "Session ended: %s\n", event.Value)
	}
}

// redraw replaces the bar line in place. Nothing is drawn before the
// capacity is known.
func (p *ProgressBarReporter) redraw() {
	if p.total <= 0 {
		return
	}
	barString := p.buildProgressBar()

	// Clear the previous line if needed
	if p.lastLineLen > 0 {
		fmt.Fprint(p.writer, "\r")
		fmt.Fprint(p.writer, strings.Repeat(" ", p.lastLineLen))
		fmt.Fprint(p.writer, "\r")
	}

	// Write the new progress bar (without newline - will update in place)
	fmt.Fprint(p.writer, barString)
	p.lastLineLen = utf8.RuneCountInString(barString)
}

// buildProgressBar constructs the progress bar string.
//
// Returns a string like: "Recovering  42% |██████████░░░░░░░░░░░░░░░| 420/1000 MB  12 MB/s  ETA 48 seconds"
func (p *ProgressBarReporter) buildProgressBar() string {
	filledWidth := int(float64(p.barWidth) * p.percent / 100.0)
	if filledWidth > p.barWidth {
		filledWidth = p.barWidth
	}
	if filledWidth < 0 {
		filledWidth = 0
	}
	emptyWidth := p.barWidth - filledWidth

	visualBar := fmt.Sprintf("|%s%s|", strings.Repeat("█", filledWidth), strings.Repeat("░", emptyWidth))
	percentStr := fmt.Sprintf("%3d%%", int(p.percent))
	countStr := fmt.Sprintf("%g/%g", p.current, p.total)
	if p.unit != "" {
		countStr += " " + p.unit
	}

	line := fmt.Sprintf("Recovering %s %s %s", percentStr, visualBar, countStr)
	if p.rate != "" {
		line += "  " + p.rate
	}
	if p.remaining != "" {
		line += "  ETA " + p.remaining
	}
	if p.elapsed != "" {
		line += "  elapsed " + p.elapsed
	}
	return line
}

// clearLine clears the current progress bar line if one is displayed.
//
// This is called before printing static messages to ensure the progress bar
// doesn't leave artifacts on the terminal.
func (p *ProgressBarReporter) clearLine() {
	if p.lastLineLen > 0 {
		fmt.Fprint(p.writer, "\r")
		fmt.Fprint(p.writer, strings.Repeat(" ", p.lastLineLen))
		fmt.Fprint(p.writer, "\r")
		p.lastLineLen = 0
	}
}
