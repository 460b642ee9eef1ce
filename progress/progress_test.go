package progress

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockCollector implements the Collector interface for testing
type mockCollector struct {
	id     int
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func newMockCollector(id int) *mockCollector {
	return &mockCollector{
		id: id,
		ch: make(chan Event, 4),
	}
}

func (m *mockCollector) ID() int {
	return m.id
}

func (m *mockCollector) CollectChannel() chan Event {
	return m.ch
}

func (m *mockCollector) Report(event Event) {
	m.ch <- event
}

func (m *mockCollector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// mockReporter implements the Reporter interface for testing
type mockReporter struct {
	events []Event
	mu     sync.Mutex
	delay  time.Duration
}

func (m *mockReporter) Report(event Event) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

func (m *mockReporter) GetEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event{}, m.events...)
}

func TestNew_DefaultNoopReporter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prog, err := New(WithContext(ctx))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer prog.Close()

	if len(prog.reporters) != 1 {
		t.Fatalf("expected 1 default reporter, got %d", len(prog.reporters))
	}
	if _, ok := prog.reporters[0].(*NoopReporter); !ok {
		t.Errorf("expected NoopReporter, got %T", prog.reporters[0])
	}
}

func TestProgress_CloseDeliversEverythingInOrder(t *testing.T) {
	col := newMockCollector(1)
	fast := &mockReporter{}
	slow := &mockReporter{delay: time.Millisecond}

	prog, err := New(WithReporters(fast, slow), WithCollectors(col))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const total = 500
	for i := 0; i < total; i++ {
		col.Report(Event{Kind: KindField, Field: FieldRecovered, Current: float64(i)})
	}
	prog.Close()

	for name, r := range map[string]*mockReporter{"fast": fast, "slow": slow} {
		events := r.GetEvents()
		if len(events) != total {
			t.Fatalf("%s reporter got %d events, want %d", name, len(events), total)
		}
		for i, e := range events {
			if e.Current != float64(i) {
				t.Fatalf("%s reporter: event %d out of order (Current=%v)", name, i, e.Current)
			}
		}
	}
}

func TestProgress_MultipleCollectors(t *testing.T) {
	a, b := newMockCollector(1), newMockCollector(2)
	rep := &mockReporter{}

	prog, err := New(WithReporters(rep), WithCollectors(a, b))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, c := range []*mockCollector{a, b} {
		wg.Add(1)
		go func(c *mockCollector) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Report(Event{Kind: KindElapsed, Current: float64(i), Message: string(rune('a' + c.id))})
			}
		}(c)
	}
	wg.Wait()
	prog.Close()

	events := rep.GetEvents()
	if len(events) != 100 {
		t.Fatalf("got %d events, want 100", len(events))
	}

	// Per collector order is preserved even when interleaved.
	last := map[string]float64{"b": -1, "c": -1}
	for _, e := range events {
		if e.Current <= last[e.Message] {
			t.Fatalf("collector %s: event %v after %v", e.Message, e.Current, last[e.Message])
		}
		last[e.Message] = e.Current
	}
}

func TestProgress_SubscribeIsIdempotent(t *testing.T) {
	col := newMockCollector(7)
	rep := &mockReporter{}

	prog, err := New(WithReporters(rep), WithCollectors(col))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	prog.Subscribe(col)

	col.Report(Event{Kind: KindWarning, Message: "once"})
	prog.Close()

	if n := len(rep.GetEvents()); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}

	// After Close both are no-ops.
	prog.Subscribe(newMockCollector(8))
	prog.Close()
}

func TestProgress_SubscribeWhileRunning(t *testing.T) {
	first := newMockCollector(1)
	rep := &mockReporter{}

	prog, err := New(WithReporters(rep), WithCollectors(first))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var subscriptions ProgressInterface = prog

	late := newMockCollector(2)
	subscriptions.Subscribe(late)
	late.Report(Event{Kind: KindWarning, Message: "late"})
	prog.Close()

	events := rep.GetEvents()
	if len(events) != 1 || events[0].Message != "late" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestProgress_Unsubscribe(t *testing.T) {
	col := newMockCollector(3)
	rep := &mockReporter{}

	prog, err := New(WithReporters(rep), WithCollectors(col))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	col.Report(Event{Kind: KindWarning, Message: "before"})

	// Wait for the first event so it is not racing the unsubscribe.
	deadline := time.Now().Add(2 * time.Second)
	for len(rep.GetEvents()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	prog.Unsubscribe(col)
	prog.Unsubscribe(col)

	prog.Close()
	events := rep.GetEvents()
	if len(events) != 1 || events[0].Message != "before" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestProgress_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	col := newMockCollector(4)

	prog, err := New(WithContext(ctx), WithReporters(&mockReporter{}), WithCollectors(col))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		prog.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after context cancellation")
	}
}

func TestField_Label(t *testing.T) {
	if FieldRecovered.Label() != "Recovered" {
		t.Errorf("unexpected label %q", FieldRecovered.Label())
	}
	if Field("custom").Label() != "custom" {
		t.Errorf("unknown fields should render as themselves")
	}
}
