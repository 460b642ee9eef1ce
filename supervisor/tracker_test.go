package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konveyor/rescue-monitor/progress"
)

func TestTracker_StartsAtOffset(t *testing.T) {
	rec := &recorder{}
	tracker := NewTracker(rec, "s1")
	tracker.interval = 5 * time.Millisecond

	var ticks atomic.Int32
	recovering := func() bool {
		return ticks.Add(1) <= 3
	}
	tracker.Run(context.Background(), recovering)

	events := rec.ofKind(progress.KindElapsed)
	require.Len(t, events, 3)
	assert.Equal(t, "3 seconds", events[0].Value)
	assert.Equal(t, float64(3), events[0].Current)
	assert.Equal(t, "5 seconds", events[2].Value)
	assert.Equal(t, "s1", events[2].SessionID)
	assert.Equal(t, 5, tracker.Elapsed())
}

func TestTracker_StopsOnCancel(t *testing.T) {
	rec := &recorder{}
	tracker := NewTracker(rec, "s1")
	tracker.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.Run(ctx, func() bool { return true })
	}()

	require.Eventually(t, func() bool {
		return len(rec.ofKind(progress.KindElapsed)) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop after cancel")
	}
	assert.Len(t, rec.ofKind(progress.KindElapsed), 1)
}

func TestTracker_HumanizesLongRuns(t *testing.T) {
	rec := &recorder{}
	tracker := NewTracker(rec, "s1")
	tracker.interval = time.Millisecond
	tracker.seconds.Store(3599)

	calls := 0
	tracker.Run(context.Background(), func() bool {
		calls++
		return calls == 1
	})

	events := rec.ofKind(progress.KindElapsed)
	require.Len(t, events, 1)
	assert.Equal(t, "60 minutes", events[0].Value)
}
