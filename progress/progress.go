package progress

import (
	"context"
	"sync"
)

// Progress coordinates the flow of progress events between collectors and reporters.
//
// Progress acts as the central hub for progress reporting. It receives events
// from collectors and distributes them to reporters.
//
// Architecture:
//   - Collectors send events via channels that Progress subscribes to
//   - Progress multiplexes events from all collectors into a central channel
//   - Events are then fanned out to all registered reporters
//   - Each reporter runs in its own goroutine and receives events in order
//
// Every send is blocking, so events are never dropped. Events from a single
// collector keep their order all the way to each reporter.
//
// Lifecycle:
//  1. Create with New() and options (WithContext, WithReporters, WithCollectors)
//  2. Progress automatically subscribes to collectors and starts reporter workers
//  3. Events flow: Collector -> Progress.collectorChan -> Reporter channels -> Reporters
//  4. Close drains everything and stops all goroutines; cancelling the context
//     stops them immediately, abandoning events in flight
//
// Example:
//
//	col := collector.New()
//	prog, err := progress.New(
//	    progress.WithContext(ctx),
//	    progress.WithReporters(reporter.NewTextReporter(os.Stderr)),
//	    progress.WithCollectors(col),
//	)
//	defer prog.Close()
//
//	col.Report(progress.Event{
//	    Kind:    progress.KindWarning,
//	    Message: "ddrescue 1.26 is not supported",
//	})
type Progress struct {
	ctx                context.Context
	reporters          []Reporter
	reporterChannels   []chan Event
	collectors         []Collector
	collectorChan      chan Event
	collecterCancelMap map[int]context.CancelFunc
	subscribeMutex     sync.Mutex

	subscribed  map[int]Collector
	closed      bool
	subscribers sync.WaitGroup
	fanout      sync.WaitGroup
	workers     sync.WaitGroup
	closeOnce   sync.Once
}

// ProgressOption configures a Progress instance during creation.
type ProgressOption func(p *Progress)

// WithContext sets the context for the Progress instance.
//
// When the context is cancelled, all reporters and collector subscriptions
// stop processing events. Use Close for an orderly shutdown.
func WithContext(ctx context.Context) ProgressOption {
	return func(p *Progress) {
		p.ctx = ctx
	}
}

// WithReporters adds one or more reporters to the Progress instance.
//
// Example:
//
//	progress.New(
//	    progress.WithReporters(
//	        reporter.NewTextReporter(os.Stderr),
//	        reporter.NewJSONReporter(logFile),
//	    ),
//	)
func WithReporters(reporters ...Reporter) ProgressOption {
	return func(p *Progress) {
		p.reporters = append(p.reporters, reporters...)
	}
}

// WithCollectors adds one or more collectors to the Progress instance.
// Progress subscribes to all of them during initialization.
func WithCollectors(collectors ...Collector) ProgressOption {
	return func(p *Progress) {
		p.collectors = append(p.collectors, collectors...)
	}
}

// New creates a new Progress instance with the provided options.
//
// If no reporters are specified, a NoopReporter is used by default.
//
// The function starts background goroutines for:
//   - Multiplexing collector events to reporter channels
//   - Running each reporter worker
//   - Subscribing to each collector's event channel
func New(opts ...ProgressOption) (*Progress, error) {
	pg := &Progress{
		collectorChan:      make(chan Event, 100),
		collecterCancelMap: map[int]context.CancelFunc{},
		subscribed:         map[int]Collector{},
		subscribeMutex:     sync.Mutex{},
	}
	for _, opt := range opts {
		opt(pg)
	}
	if pg.ctx == nil {
		pg.ctx = context.Background()
	}

	if len(pg.reporters) == 0 {
		// No reporters, will create a no-op reporter
		pg.reporters = append(pg.reporters, &NoopReporter{})
	}

	for _, reporter := range pg.reporters {
		reporterChannel := make(chan Event, 100)
		pg.reporterChannels = append(pg.reporterChannels, reporterChannel)
		pg.workers.Add(1)
		go pg.reporterWorker(reporter, reporterChannel)
	}

	pg.fanout.Add(1)
	go func() {
		defer pg.fanout.Done()
		defer func() {
			for _, ch := range pg.reporterChannels {
				close(ch)
			}
		}()
		for {
			select {
			case event, ok := <-pg.collectorChan:
				if !ok {
					return
				}
				for _, ch := range pg.reporterChannels {
					select {
					case ch <- event:
					case <-pg.ctx.Done():
						return
					}
				}
			case <-pg.ctx.Done():
				return
			}
		}
	}()

	for _, collector := range pg.collectors {
		pg.Subscribe(collector)
	}

	return pg, nil
}

// Unsubscribe stops receiving events from the specified collector.
//
// This cancels the goroutine that was listening to the collector's channel.
// Events still buffered in the collector are not delivered.
func (p *Progress) Unsubscribe(collector Collector) {
	p.subscribeMutex.Lock()
	subscribeCancel, ok := p.collecterCancelMap[collector.ID()]
	delete(p.collecterCancelMap, collector.ID())
	delete(p.subscribed, collector.ID())
	p.subscribeMutex.Unlock()
	if ok {
		subscribeCancel()
	}
}

// Subscribe starts receiving events from the specified collector.
//
// This starts a goroutine that reads from the collector's event channel
// and forwards events to Progress's central collector channel. The goroutine
// continues until the collector is closed, the Progress context is
// cancelled or Unsubscribe is called. Subscribing twice, or after Close, is
// a no-op.
func (p *Progress) Subscribe(collector Collector) {
	p.subscribeMutex.Lock()
	if _, ok := p.subscribed[collector.ID()]; ok || p.closed {
		p.subscribeMutex.Unlock()
		return
	}
	subscribeContext, subscribeCancel := context.WithCancel(p.ctx)
	p.collecterCancelMap[collector.ID()] = subscribeCancel
	p.subscribed[collector.ID()] = collector
	p.subscribers.Add(1)
	p.subscribeMutex.Unlock()

	go func() {
		defer p.subscribers.Done()
		defer subscribeCancel()
		for {
			select {
			case event, ok := <-collector.CollectChannel():
				if !ok {
					return
				}
				select {
				case p.collectorChan <- event:
				case <-subscribeContext.Done():
					return
				}
			case <-subscribeContext.Done():
				return
			}
		}
	}()
}

// Close closes every subscribed collector, waits until all of their events
// reached every reporter and stops the background goroutines. It is safe to
// call more than once.
func (p *Progress) Close() {
	p.closeOnce.Do(func() {
		p.subscribeMutex.Lock()
		p.closed = true
		collectors := make([]Collector, 0, len(p.subscribed))
		for _, c := range p.subscribed {
			collectors = append(collectors, c)
		}
		p.subscribeMutex.Unlock()
		for _, c := range collectors {
			c.Close()
		}
		p.subscribers.Wait()
		close(p.collectorChan)
		p.fanout.Wait()
		p.workers.Wait()
	})
}

// reporterWorker runs in a goroutine, forwarding events to a reporter.
//
// Each reporter has its own worker goroutine and buffered channel so a slow
// reporter only delays itself until its buffer is full. The worker stops
// when its channel is closed or the Progress context is cancelled.
func (p *Progress) reporterWorker(reporter Reporter, events chan Event) {
	defer p.workers.Done()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			reporter.Report(event)
		case <-p.ctx.Done():
			return
		}
	}
}
