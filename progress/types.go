// Package progress provides real-time reporting for a ddrescue recovery session.
//
// A session publishes every value it decodes from ddrescue's output as an
// Event. Events flow from collectors through the Progress hub to any number
// of reporters (text, JSON, progress bar, channel). Delivery is ordered and
// lossless: a slow reporter slows the session down rather than missing an
// update, and Progress.Close returns only once every reporter has seen every
// event.
//
// Basic usage:
//
//	col := collector.New()
//	prog, _ := progress.New(
//	    progress.WithReporters(reporter.NewTextReporter(os.Stderr)),
//	    progress.WithCollectors(col),
//	)
//	defer prog.Close()
//
//	session, err := sup.Launch(ctx, cfg, supervisor.WithReporter(col))
//
// For programmatic consumption:
//
//	ch := reporter.NewChannelReporter(ctx)
//	go func() {
//	    for event := range ch.Events() {
//	        fmt.Printf("%s = %s\n", event.Field, event.Value)
//	    }
//	}()
package progress

import (
	"time"
)

// ProgressInterface defines the contract for managing collector subscriptions.
//
// This interface is implemented by the Progress struct and allows for
// dynamic subscription management - collectors can be added or removed
// at runtime.
type ProgressInterface interface {
	// Subscribe starts receiving events from a collector.
	Subscribe(collector Collector)

	// Unsubscribe stops receiving events from a collector.
	Unsubscribe(collector Collector)
}

// Reporter is the interface for outputting progress events.
//
// Reporters receive events from Progress and format/output them in various ways:
//   - TextReporter: Human-readable text output with timestamps
//   - JSONReporter: Structured JSON for logging or external consumers
//   - ProgressBarReporter: Interactive terminal progress bar
//   - ChannelReporter: Exposes events via a Go channel for programmatic use
//   - NoopReporter: Discards events (used as default when no reporter configured)
//
// Implementations must be safe for concurrent use. Report is called from a
// single worker goroutine per reporter, in publication order.
type Reporter interface {
	// Report outputs a progress event.
	Report(event Event)
}

// Collector is the interface for gathering progress events from a source.
//
// A session reports into a collector; Progress subscribes to the collector's
// channel and fans events out to reporters. Report blocks when the channel
// is full so that no event is ever dropped.
type Collector interface {
	// Reporter embeds the ability to receive events.
	Reporter

	// ID returns a unique identifier for this collector.
	// Used by Progress to manage subscriptions and unsubscriptions.
	ID() int

	// CollectChannel returns the channel from which Progress reads events.
	// It is closed by Close.
	CollectChannel() chan Event

	// Close stops accepting events. Events already accepted are still
	// delivered.
	Close()
}

// Event represents one published value or lifecycle change of a session.
//
// Not all fields are populated for all events. Field events carry Field and
// Value; the recovered field additionally carries Current, Total and Percent.
// Range events carry Total (the capacity) and its rendered form in Value.
type Event struct {
	// Timestamp is when the event occurred. If not set by the caller,
	// reporters will populate it automatically.
	Timestamp time.Time `json:"timestamp"`

	// Kind is what happened.
	Kind Kind `json:"kind"`

	// SessionID identifies the recovery session that produced the event.
	SessionID string `json:"session_id,omitempty"`

	// Field names the value that changed (Kind == KindField).
	Field Field `json:"field,omitempty"`

	// Value is the rendered value, e.g. "12345 kB/s" or "Unknown".
	Value string `json:"value,omitempty"`

	// Message provides human-readable context.
	Message string `json:"message,omitempty"`

	// Current is the recovered amount in the capacity's unit.
	Current float64 `json:"current,omitempty"`

	// Total is the capacity.
	Total float64 `json:"total,omitempty"`

	// Percent is the completion percentage (0-100).
	// This field is automatically calculated from Current and Total if not set.
	Percent float64 `json:"percent,omitempty"`

	// Metadata contains additional kind-specific information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Kind identifies the type of an Event.
type Kind string

const (
	// KindField reports a changed ProgressState value.
	KindField Kind = "field"

	// KindRange reports the capacity once ddrescue's initial status is read.
	KindRange Kind = "range"

	// KindElapsed is the once-a-second elapsed time tick.
	KindElapsed Kind = "elapsed"

	// KindOutput carries one raw line of ddrescue output in Message and its
	// replica (terminal rewrite markers kept) in Value.
	KindOutput Kind = "output"

	// KindWarning is a one-time operator warning, e.g. an unsupported version.
	KindWarning Kind = "warning"

	// KindAbortPending is emitted while an abort was requested but ddrescue
	// is still running.
	KindAbortPending Kind = "abort_pending"

	// KindSessionEnded is the last event of a session; Value is the result.
	KindSessionEnded Kind = "session_ended"
)

// Field names a value of the progress state.
type Field string

const (
	FieldInputPosition     Field = "input_position"
	FieldOutputPosition    Field = "output_position"
	FieldCurrentRate       Field = "current_rate"
	FieldAverageRate       Field = "average_rate"
	FieldUnreadable        Field = "unreadable"
	FieldRecovered         Field = "recovered"
	FieldErrorCount        Field = "error_count"
	FieldTimeSinceLastRead Field = "time_since_last_read"
	FieldTimeRemaining     Field = "time_remaining"
	FieldStatus            Field = "status"
)

// Label is the human-readable name of the field.
func (f Field) Label() string {
	switch f {
	case FieldInputPosition:
		return "Input position"
	case FieldOutputPosition:
		return "Output position"
	case FieldCurrentRate:
		return "Current rate"
	case FieldAverageRate:
		return "Average rate"
	case FieldUnreadable:
		return "Unreadable"
	case FieldRecovered:
		return "Recovered"
	case FieldErrorCount:
		return "Errors"
	case FieldTimeSinceLastRead:
		return "Last successful read"
	case FieldTimeRemaining:
		return "Time remaining"
	case FieldStatus:
		return "Status"
	}
	return string(f)
}
