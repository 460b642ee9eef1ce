package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/konveyor/rescue-monitor/progress"
)

// TextReporter writes progress events as human-readable text with timestamps.
//
// TextReporter formats events into timestamped text lines suitable for log
// files or terminals that cannot redraw. Raw output lines are skipped unless
// WithOutput is set.
//
// Example output:
//
//	[17:06:14] Capacity: 1000 MB
//	[17:06:15] Status: Copying non-tried blocks... Pass 1 (forwards)
//	[17:06:15] Recovered: 500 MB (50.0%)
//	[17:06:16] Average rate: 12345 kB/s
//	[17:06:16] Elapsed: 3 seconds
//	[17:06:40] Session ended: Success
//
// Usage:
//
//	reporter := reporter.NewTextReporter(os.Stderr)
//	prog, _ := progress.New(
//	    progress.WithReporters(reporter),
//	)
type TextReporter struct {
	writer     io.Writer
	mu         sync.Mutex
	showOutput bool
}

// TextReporterOption configures a TextReporter.
type TextReporterOption func(*TextReporter)

// WithOutput makes the reporter also print every raw ddrescue line.
func WithOutput() TextReporterOption {
	return func(t *TextReporter) {
		t.showOutput = true
	}
}

// NewTextReporter creates a new text progress reporter that writes to w.
func NewTextReporter(w io.Writer, opts ...TextReporterOption) *TextReporter {
	t := &TextReporter{
		writer: w,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Report writes a progress event as human-readable text.
//
// The output format varies by kind:
//   - KindRange: "[HH:MM:SS] Capacity: <value>"
//   - KindField: "[HH:MM:SS] <label>: <value>", recovered data with its percentage
//   - KindElapsed: "[HH:MM:SS] Elapsed: <value>"
//   - KindWarning: "[HH:MM:SS] Warning: <message>"
//   - KindAbortPending: "[HH:MM:SS] <message>"
//   - KindSessionEnded: "[HH:MM:SS] Session ended: <value>"
//   - KindOutput: "[HH:MM:SS] | <message>" when enabled
//
// This method is safe for concurrent use.
func (t *TextReporter) Report(event progress.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)
	ts := event.Timestamp.Format(timeFormat)

	var output string

	switch event.Kind {
	case progress.KindRange:
		output = fmt.Sprintf("[%s] Capacity: %s\n", ts, event.Value)
	case progress.KindField:
		if event.Field == progress.FieldRecovered && event.Total > 0 {
			output = fmt.Sprintf("[%s] %s: %s (%.1f%%)\n", ts, event.Field.Label(), event.Value, event.Percent)
		} else {
			output = fmt.Sprintf("[%s] %s: %s\n", ts, event.Field.Label(), event.Value)
		}
	case progress.KindElapsed:
		output = fmt.Sprintf("[%s] Elapsed: %s\n", ts, event.Value)
	case progress.KindWarning:
		output = fmt.Sprintf("[%s] Warning: %s\n", ts, event.Message)
	case progress.KindSessionEnded:
		if event.Message != "" {
			output = fmt.Sprintf("[%s] Session ended: %s (%s)\n", ts, event.Value, event.Message)
		} else {
			output = fmt.Sprintf("[%s] Session ended: %s\n", ts, event.Value)
		}
	case progress.KindOutput:
		if t.showOutput {
			output = fmt.Sprintf("[%s] | %s\n", ts, event.Message)
		}
	default:
		if event.Message != "" {
			output = fmt.Sprintf("[%s] %s\n", ts, event.Message)
		}
	}

	if output != "" {
		t.writer.Write([]byte(output))
	}
}
