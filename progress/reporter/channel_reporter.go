package reporter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/konveyor/rescue-monitor/progress"
)

// ChannelReporter sends progress events to a Go channel for programmatic consumption.
//
// ChannelReporter bridges the progress hub and Go code that consumes events
// directly: custom front ends, monitoring, tests. Sends block until the
// consumer takes the event, so nothing is lost while the reporter is open.
// Once the context is cancelled the channel is closed and further events are
// dropped and counted (see DroppedEvents).
//
// Example:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	reporter := reporter.NewChannelReporter(ctx)
//
//	go func() {
//	    for event := range reporter.Events() {
//	        fmt.Printf("%s: %s\n", event.Field, event.Value)
//	    }
//	}()
type ChannelReporter struct {
	events        chan progress.Event
	done          <-chan struct{}
	mu            sync.RWMutex
	closed        bool
	droppedEvents atomic.Uint64
	log           logr.Logger
}

// ChannelReporterOption is a function that configures a ChannelReporter.
type ChannelReporterOption func(*ChannelReporter)

// WithLogger sets a logger for the ChannelReporter to log dropped events.
//
// Each drop is logged at V(1) level with details about the event and
// cumulative drop count.
func WithLogger(log logr.Logger) ChannelReporterOption {
	return func(r *ChannelReporter) {
		r.log = log
	}
}

// WithBuffer sets the capacity of the events channel (default 100).
func WithBuffer(size int) ChannelReporterOption {
	return func(r *ChannelReporter) {
		if size >= 0 {
			r.events = make(chan progress.Event, size)
		}
	}
}

// NewChannelReporter creates a new channel-based progress reporter.
//
// The reporter closes its channel when ctx is cancelled, so consumers can
// range over Events() and exit cleanly.
func NewChannelReporter(ctx context.Context, opts ...ChannelReporterOption) *ChannelReporter {
	r := &ChannelReporter{
		events: make(chan progress.Event, 100),
		done:   ctx.Done(),
		log:    logr.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		close(r.events)
		r.closed = true
		r.mu.Unlock()
	}()

	return r
}

// Report sends a progress event to the channel, blocking until the consumer
// receives it or the context is cancelled.
//
// If the event's Timestamp is zero, it will be set to the current time.
// The Percent field is auto-calculated if not set.
func (c *ChannelReporter) Report(event progress.Event) {
	normalize(&event)

	select {
	case <-c.done:
		c.drop(event)
		return
	default:
	}

	// Hold the read lock during the send so the closing goroutine cannot
	// close the channel while we're sending. It waits on the lock, so the
	// send must also watch the context.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.drop(event)
		return
	}

	select {
	case c.events <- event:
	case <-c.done:
		c.drop(event)
	}
}

func (c *ChannelReporter) drop(event progress.Event) {
	dropped := c.droppedEvents.Add(1)
	c.log.V(1).Info("progress event dropped after reporter was closed",
		"kind", event.Kind,
		"field", event.Field,
		"total_dropped", dropped,
	)
}

// Events returns the read-only channel for receiving progress events.
//
// The channel is closed when the context provided to NewChannelReporter is
// cancelled.
func (c *ChannelReporter) Events() <-chan progress.Event {
	return c.events
}

// DroppedEvents returns the number of events that arrived after the
// reporter was closed.
func (c *ChannelReporter) DroppedEvents() uint64 {
	return c.droppedEvents.Load()
}
