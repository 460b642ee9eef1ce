package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/konveyor/rescue-monitor/metrics"
	"github.com/konveyor/rescue-monitor/progress"
)

const (
	// DefaultElapsedOffset accounts for ddrescue having started before the
	// tracker.
	DefaultElapsedOffset = 2
	defaultTickInterval  = time.Second
)

// Tracker publishes the elapsed time of a session once per tick while the
// session is recovering.
type Tracker struct {
	reporter  progress.Reporter
	sessionID string
	interval  time.Duration
	seconds   atomic.Int64
}

// NewTracker creates a tracker starting at DefaultElapsedOffset seconds.
func NewTracker(reporter progress.Reporter, sessionID string) *Tracker {
	t := &Tracker{
		reporter:  reporter,
		sessionID: sessionID,
		interval:  defaultTickInterval,
	}
	t.seconds.Store(DefaultElapsedOffset)
	return t
}

// Elapsed is the last published number of seconds.
func (t *Tracker) Elapsed() int {
	return int(t.seconds.Load())
}

// Run ticks until recovering returns false or ctx is done. Each tick adds one
// second and reports a KindElapsed event, the first one immediately.
func (t *Tracker) Run(ctx context.Context, recovering func() bool) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil || !recovering() {
			return
		}
		seconds := int(t.seconds.Add(1))
		t.reporter.Report(progress.Event{
			Timestamp: time.Now(),
			Kind:      progress.KindElapsed,
			SessionID: t.sessionID,
			Value:     metrics.HumanizeElapsed(seconds),
			Current:   float64(seconds),
		})
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
