package collector

import (
	"math/rand"
	"sync"

	"github.com/konveyor/rescue-monitor/progress"
)

// DefaultBufferSize is the capacity of a collector's channel.
const DefaultBufferSize = 256

// collector is a pass-through collector that forwards every event, in order.
//
// It accepts events via Report() and makes them available through a
// buffered channel for Progress to subscribe to. When the buffer is full
// Report blocks until Progress catches up; nothing is ever dropped.
type collector struct {
	id     int
	ch     chan progress.Event
	mu     sync.RWMutex
	closed bool
}

// New creates a new collector.
//
// Example:
//
//	col := collector.New()
//	prog, _ := progress.New(
//	    progress.WithCollectors(col),
//	)
//	col.Report(progress.Event{Kind: progress.KindWarning, Message: "..."})
func New() progress.Collector {
	return NewWithBuffer(DefaultBufferSize)
}

// NewWithBuffer creates a collector with a channel of the given capacity.
func NewWithBuffer(size int) progress.Collector {
	if size < 0 {
		size = 0
	}
	return &collector{
		id: rand.Int(),
		ch: make(chan progress.Event, size),
	}
}

// ID returns the unique identifier for this collector.
func (c *collector) ID() int {
	return c.id
}

// CollectChannel returns the channel that Progress reads events from.
func (c *collector) CollectChannel() chan progress.Event {
	return c.ch
}

// Report accepts an event and forwards it to the collection channel,
// blocking while the channel is full. Events reported after Close are
// discarded.
func (c *collector) Report(event progress.Event) {
	// The read lock is held across the send so Close cannot close the
	// channel underneath it.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.ch <- event
}

// Close closes the collection channel. It is safe to call more than once.
func (c *collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
