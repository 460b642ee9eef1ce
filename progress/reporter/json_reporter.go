package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/konveyor/rescue-monitor/progress"
)

// JSONReporter writes progress events as newline-delimited JSON (NDJSON).
//
// Each event becomes a single JSON line, so the stream can be consumed by
// log aggregation or monitoring tools and stays parseable even when the
// session is interrupted.
//
// Example output:
//
//	{"timestamp":"2024-10-29T17:06:14Z","kind":"range","value":"1000 MB","total":1000}
//	{"timestamp":"2024-10-29T17:06:15Z","kind":"field","field":"recovered","value":"500 MB","current":500,"total":1000,"percent":50}
//	{"timestamp":"2024-10-29T17:06:40Z","kind":"session_ended","value":"Success"}
//
// Usage:
//
//	reporter := reporter.NewJSONReporter(os.Stderr)
//	prog, _ := progress.New(
//	    progress.WithReporters(reporter),
//	)
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a new JSON progress reporter that writes to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer: w,
	}
}

// Report writes a progress event as a JSON line.
//
// If the event's Timestamp is zero, it will be set to the current time before
// marshaling. The Percent field is auto-calculated if not set.
//
// Errors during JSON marshaling or writing are silently ignored so a broken
// output never interrupts a recovery.
func (j *JSONReporter) Report(event progress.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintln(j.writer, string(data))
}
