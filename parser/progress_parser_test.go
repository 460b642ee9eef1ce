package parser

import (
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konveyor/rescue-monitor/metrics"
	"github.com/konveyor/rescue-monitor/profile"
	"github.com/konveyor/rescue-monitor/progress"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Report(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) fields(field progress.Field) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == progress.KindField && e.Field == field {
			out = append(out, e.Value)
		}
	}
	return out
}

func (r *recorder) kinds(kind progress.Kind) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newParser(t *testing.T, version string) (*ProgressParser, *recorder) {
	t.Helper()
	sel, err := profile.DefaultTable().Select(version)
	require.NoError(t, err)
	rec := &recorder{}
	return New(sel.Profile, WithReporter(rec), WithLogger(testr.New(t)), WithSessionID("session-1")), rec
}

func mustParse(t *testing.T, p *ProgressParser, line string) LineKind {
	t.Helper()
	kind, err := p.Parse(line)
	require.NoError(t, err, line)
	return kind
}

func TestParse_InitialStatusEveryVersion(t *testing.T) {
	for _, v := range profile.DefaultTable().Versions() {
		t.Run(v, func(t *testing.T) {
			p, rec := newParser(t, v)

			kind := mustParse(t, p, "About to copy 1000 MBytes from /dev/sda to image")
			assert.Equal(t, LineInitialStatus, kind)

			s := p.Snapshot()
			assert.True(t, s.GotInitialStatus)
			assert.Equal(t, metrics.Quantity{Value: 1000, Unit: "MB"}, s.Capacity)

			ranges := rec.kinds(progress.KindRange)
			require.Len(t, ranges, 1)
			assert.Equal(t, "1000 MB", ranges[0].Value)
			assert.Equal(t, float64(1000), ranges[0].Total)
			assert.Equal(t, "session-1", ranges[0].SessionID)
		})
	}
}

func TestParse_HalfRecovered(t *testing.T) {
	p, rec := newParser(t, "1.22")

	mustParse(t, p, "About to copy 1000000 MBytes from /dev/sda to image")
	assert.Equal(t, LineRecovered, mustParse(t, p, "rescued:   500000 MB,  bad areas:   0,  run time:   1s"))

	s := p.Snapshot()
	assert.Equal(t, metrics.Quantity{Value: 500000, Unit: "MB"}, s.Recovered)
	ratio, ok := s.CompletionRatio()
	require.True(t, ok)
	assert.Equal(t, 0.5, ratio)
	assert.False(t, s.Complete())

	assert.Equal(t, []string{"500000 MB"}, rec.fields(progress.FieldRecovered))
	events := rec.kinds(progress.KindField)
	for _, e := range events {
		if e.Field == progress.FieldRecovered {
			assert.Equal(t, float64(500000), e.Current)
			assert.Equal(t, float64(1000000), e.Total)
		}
	}
}

func TestParse_HalfRecoveredOldFormat(t *testing.T) {
	p, _ := newParser(t, "1.16")

	mustParse(t, p, "About to copy 1000000 MBytes from /dev/sda to image")
	kind := mustParse(t, p, "Copying non-tried blocks... rescued:   500000 MB,  errsize:   0 B,  current rate:   10 MB/s")
	assert.Equal(t, LineStatusProgress, kind)

	s := p.Snapshot()
	assert.Equal(t, "Copying non-tried blocks...", s.Status)
	assert.Equal(t, metrics.Quantity{Value: 500000, Unit: "MB"}, s.Recovered)
	ratio, ok := s.CompletionRatio()
	require.True(t, ok)
	assert.Equal(t, 0.5, ratio)
}

func TestParse_RecoveredConvertedToCapacityUnit(t *testing.T) {
	p, _ := newParser(t, "1.25")

	mustParse(t, p, "About to copy 2 GBytes from /dev/sda to image")
	mustParse(t, p, "rescued:   1234567 B,  bad areas:   0,  run time:   1s")

	s := p.Snapshot()
	assert.Equal(t, "GB", s.Recovered.Unit)
	assert.Equal(t, 0.001, s.Recovered.Value)

	mustParse(t, p, "rescued:   1500 MB,  bad areas:   0,  run time:   2s")
	s = p.Snapshot()
	assert.Equal(t, metrics.Quantity{Value: 1.5, Unit: "GB"}, s.Recovered)
}

func TestParse_MalformedLeavesStateUnchanged(t *testing.T) {
	p, rec := newParser(t, "1.14")

	mustParse(t, p, "About to copy 1000 MBytes from /dev/sda to image")
	mustParse(t, p, "ipos:    100 MB,   errors:       1,    average rate:   10 MB/s")
	before := p.Snapshot()
	eventsBefore := len(rec.kinds(progress.KindField))

	// The position is fine but the rate is not: nothing may be applied.
	kind, err := p.Parse("ipos:    200 MB,   errors:       2,    average rate:   fast MB/s")
	assert.Equal(t, LineInputPosition, kind)
	assert.ErrorIs(t, err, ErrMalformedLine)

	_, err = p.Parse("opos:")
	assert.ErrorIs(t, err, ErrMalformedLine)

	assert.Equal(t, before, p.Snapshot())
	assert.Len(t, rec.kinds(progress.KindField), eventsBefore)
	assert.Equal(t, 2, p.Failures())
}

func TestParse_StatusSuppressedWhenUnchanged(t *testing.T) {
	p, rec := newParser(t, "1.25")

	assert.Equal(t, LineStatus, mustParse(t, p, "Press Ctrl-C to interrupt"))
	mustParse(t, p, "Press Ctrl-C to interrupt")
	mustParse(t, p, "Copying non-tried blocks... Pass 1 (forwards) ipos:   10 MB,  non-trimmed:   0 B,  current rate:   1 MB/s")
	mustParse(t, p, "Copying non-tried blocks... Pass 1 (forwards) ipos:   20 MB,  non-trimmed:   0 B,  current rate:   1 MB/s")

	assert.Equal(t, []string{
		"Press Ctrl-C to interrupt",
		"Copying non-tried blocks... Pass 1 (forwards)",
	}, rec.fields(progress.FieldStatus))
	assert.Equal(t, []string{"10 MB", "20 MB"}, rec.fields(progress.FieldInputPosition))
	assert.Equal(t, []string{"1 MB/s"}, rec.fields(progress.FieldCurrentRate))
}

func TestParse_RepeatedLinePublishesOnce(t *testing.T) {
	p, rec := newParser(t, "1.25")

	for i := 0; i < 3; i++ {
		assert.Equal(t, LineOutputPosition, mustParse(t, p, "opos:   10 MB,  non-scraped:   0 B,  average rate:   5 MB/s"))
	}
	assert.Equal(t, []string{"10 MB"}, rec.fields(progress.FieldOutputPosition))
	assert.Equal(t, []string{"5 MB/s"}, rec.fields(progress.FieldAverageRate))

	mustParse(t, p, "opos:   20 MB,  non-scraped:   0 B,  average rate:   5 MB/s")
	mustParse(t, p, "opos:   10 MB,  non-scraped:   0 B,  average rate:   5 MB/s")
	assert.Equal(t, []string{"10 MB", "20 MB", "10 MB"}, rec.fields(progress.FieldOutputPosition))
	assert.Equal(t, []string{"5 MB/s"}, rec.fields(progress.FieldAverageRate))
	assert.Equal(t, metrics.Quantity{Value: 10, Unit: "MB"}, p.Snapshot().OutputPosition)
}

func TestParse_RecoveredBeforeCapacity(t *testing.T) {
	p, rec := newParser(t, "1.22")

	mustParse(t, p, "rescued:   500 MB,  bad areas:   0,  run time:   1s")

	s := p.Snapshot()
	assert.False(t, s.Recovered.Known())
	assert.Equal(t, metrics.Unknown, s.Recovered.String())
	_, ok := s.CompletionRatio()
	assert.False(t, ok)
	assert.Equal(t, []string{metrics.Unknown}, rec.fields(progress.FieldRecovered))
}

func TestParse_RepeatedInitialStatusKeepsCapacity(t *testing.T) {
	p, rec := newParser(t, "1.25")

	mustParse(t, p, "About to copy 1000 MBytes from /dev/sda to image")
	mustParse(t, p, "About to copy 5 GBytes from /dev/sdb to image")

	assert.Equal(t, metrics.Quantity{Value: 1000, Unit: "MB"}, p.Snapshot().Capacity)
	assert.Len(t, rec.kinds(progress.KindRange), 1)
}

func TestParse_Version1_14Sequence(t *testing.T) {
	p, rec := newParser(t, "1.14")

	lines := []struct {
		line string
		kind LineKind
	}{
		{"GNU ddrescue 1.14", LineStatus},
		{"About to copy 1000 MBytes from /dev/sda to image", LineInitialStatus},
		{"ipos:    100 MB,   errors:       0,    average rate:   10 MB/s", LineInputPosition},
		{"opos:    100 MB,     time since last successful read:       0 s", LineOutputPosition},
		{"Copying non-tried blocks... rescued:   500 MB,  errsize:   4096 B,  current rate:   12 MB/s", LineStatusProgress},
		{"pct rescued: 50%", LineIgnored},
	}
	for _, l := range lines {
		assert.Equal(t, l.kind, mustParse(t, p, l.line), l.line)
	}

	s := p.Snapshot()
	assert.Equal(t, metrics.Quantity{Value: 100, Unit: "MB"}, s.InputPosition)
	assert.Equal(t, metrics.Quantity{Value: 10, Unit: "MB", Rate: true}, s.AverageRate)
	assert.Equal(t, metrics.Quantity{Value: 12, Unit: "MB", Rate: true}, s.CurrentRate)
	assert.Equal(t, metrics.Quantity{Value: 4096, Unit: "B"}, s.Unreadable)
	assert.Equal(t, "0 s", s.TimeSinceLastRead)
	assert.Equal(t, "50 seconds", s.TimeRemaining)
	assert.Equal(t, []string{"50 seconds"}, rec.fields(progress.FieldTimeRemaining))
}

func TestParse_EstimateUnknownWithoutRate(t *testing.T) {
	p, _ := newParser(t, "1.19")

	mustParse(t, p, "About to copy 1000 MBytes from /dev/sda to image")
	mustParse(t, p, "Copying non-tried blocks... rescued:   500 MB,  errsize:   0 B,  current rate:   0 B/s")

	assert.Equal(t, metrics.Unknown, p.Snapshot().TimeRemaining)
}

func TestParse_Version1_20(t *testing.T) {
	p, _ := newParser(t, "1.20")

	mustParse(t, p, "About to copy 1000 MBytes from /dev/sda to image")
	mustParse(t, p, "opos:    100 MB,  remaining time:   5 m,  successful read:   2 s ago")
	mustParse(t, p, "Copying non-tried blocks... rescued:   500 MB,  errsize:   0 B,  current rate:   12 MB/s")

	s := p.Snapshot()
	assert.Equal(t, "5 m", s.TimeRemaining, "1.20 prints its own remaining time")
	assert.Equal(t, "2 s", s.TimeSinceLastRead)
	assert.Equal(t, metrics.Quantity{Value: 100, Unit: "MB"}, s.OutputPosition)

	assert.Equal(t, LineLastRead, mustParse(t, p, "time since last successful read:   n/a"))
	assert.Equal(t, "n/a", p.Snapshot().TimeSinceLastRead)
}

func TestParse_Version1_25Sequence(t *testing.T) {
	p, rec := newParser(t, "1.25")

	lines := []struct {
		line string
		kind LineKind
	}{
		{"GNU ddrescue 1.25", LineStatus},
		{"About to copy 1000 MBytes from '/dev/sda' to 'image'", LineInitialStatus},
		{"ipos:   100 MB,  non-trimmed:   0 B,  current rate:   12 MB/s", LineStatusProgress},
		{"opos:   100 MB,  non-scraped:   0 B,  average rate:   10 MB/s", LineOutputPosition},
		{"non-tried:   900 MB,  bad-sector:   512 B,  error rate:   0 B/s", LineUnreadable},
		{"rescued:   100 MB,  bad areas:   1,  run time:   10s", LineRecovered},
		{"pct rescued:   10.00%,  read errors:   0,  remaining time:   1m 30s", LineTimeRemaining},
		{"time since last successful read:   0s", LineLastRead},
		{"Finished", LineStatus},
		{"", LineEmpty},
	}
	for _, l := range lines {
		assert.Equal(t, l.kind, mustParse(t, p, l.line), l.line)
	}

	s := p.Snapshot()
	assert.Equal(t, metrics.Quantity{Value: 100, Unit: "MB"}, s.InputPosition)
	assert.Equal(t, metrics.Quantity{Value: 100, Unit: "MB"}, s.OutputPosition)
	assert.Equal(t, metrics.Quantity{Value: 512, Unit: "B"}, s.Unreadable)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, "1m 30s", s.TimeRemaining)
	assert.Equal(t, "0s", s.TimeSinceLastRead)
	assert.Equal(t, "Finished", s.Status)

	ratio, ok := s.CompletionRatio()
	require.True(t, ok)
	assert.InDelta(t, 0.1, ratio, 1e-9)
	assert.Equal(t, []string{"1"}, rec.fields(progress.FieldErrorCount))
}

func TestParse_Complete(t *testing.T) {
	p, _ := newParser(t, "1.23")

	mustParse(t, p, "About to copy 1 GBytes from /dev/sda to image")
	mustParse(t, p, "rescued:   1000 MB,  bad areas:   0,  run time:   10s")

	assert.True(t, p.Snapshot().Complete())
}

func TestParse_PanicIsRecovered(t *testing.T) {
	table, err := profile.NewTable([]profile.Extractor{
		{
			Name:     "initial",
			Kind:     profile.KindInitialStatus,
			Versions: []string{"1.25"},
			Extract: func(tokens []string, out *profile.Fields) error {
				var m map[string]int
				m["boom"] = 1
				return nil
			},
		},
	})
	require.NoError(t, err)
	sel, err := table.Select("1.25")
	require.NoError(t, err)

	p := New(sel.Profile)
	kind, err := p.Parse("About to copy 1000 MBytes from /dev/sda")
	assert.Equal(t, LineInitialStatus, kind)
	assert.ErrorIs(t, err, ErrMalformedLine)
	assert.False(t, p.Snapshot().GotInitialStatus)
}

func TestParse_StatusLineWithoutMarker(t *testing.T) {
	p, _ := newParser(t, "1.18")

	_, err := p.Parse("Copying non-tried blocks... ipos: 10 MB")
	assert.ErrorIs(t, err, ErrMalformedLine)
	assert.Empty(t, p.Snapshot().Status)
}

func TestLineKind_String(t *testing.T) {
	assert.Equal(t, "status_progress", LineStatusProgress.String())
	assert.Equal(t, "unknown", LineKind(99).String())
}
