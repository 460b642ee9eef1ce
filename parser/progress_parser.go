// Package parser decodes ddrescue's progress lines into a State, using the
// version Profile selected for the running ddrescue.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/konveyor/rescue-monitor/metrics"
	"github.com/konveyor/rescue-monitor/profile"
	"github.com/konveyor/rescue-monitor/progress"
)

const (
	InitialStatusPhrase = "About to copy"
	recoveredPlaces     = 3
)

var ErrMalformedLine = errors.New("malformed line")

// LineKind is the dispatch branch a line was handled by.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineInitialStatus
	LineInputPosition
	LineOutputPosition
	LineUnreadable
	LineLastRead
	LineRecovered
	LineStatusProgress
	LineTimeRemaining
	LineStatus
	// LineIgnored is a remaining time line on a release that does not
	// print one in that form.
	LineIgnored
)

func (k LineKind) String() string {
	switch k {
	case LineEmpty:
		return "empty"
	case LineInitialStatus:
		return "initial_status"
	case LineInputPosition:
		return "input_position"
	case LineOutputPosition:
		return "output_position"
	case LineUnreadable:
		return "unreadable"
	case LineLastRead:
		return "last_read"
	case LineRecovered:
		return "recovered"
	case LineStatusProgress:
		return "status_progress"
	case LineTimeRemaining:
		return "time_remaining"
	case LineStatus:
		return "status"
	case LineIgnored:
		return "ignored"
	}
	return "unknown"
}

// ProgressParser owns the State of one session. Parse must be called from a
// single goroutine; Snapshot may be called from any.
type ProgressParser struct {
	profile   *profile.Profile
	reporter  progress.Reporter
	log       logr.Logger
	sessionID string

	mu        sync.RWMutex
	state     State
	published map[progress.Field]string
	failures  int
}

// Option configures a ProgressParser.
type Option func(*ProgressParser)

// WithReporter sets where changed values are published.
func WithReporter(r progress.Reporter) Option {
	return func(p *ProgressParser) {
		if r != nil {
			p.reporter = r
		}
	}
}

func WithLogger(log logr.Logger) Option {
	return func(p *ProgressParser) {
		p.log = log
	}
}

// WithSessionID tags every published event.
func WithSessionID(id string) Option {
	return func(p *ProgressParser) {
		p.sessionID = id
	}
}

// New creates a parser for the given profile.
func New(prof *profile.Profile, opts ...Option) *ProgressParser {
	p := &ProgressParser{
		profile:   prof,
		reporter:  progress.NewNoopReporter(),
		log:       logr.Discard(),
		published: map[progress.Field]string{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns a copy of the current state.
func (p *ProgressParser) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Failures is the number of lines that could not be decoded.
func (p *ProgressParser) Failures() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.failures
}

// Parse decodes one line of output. Lines are matched in a fixed order:
//
//  1. the initial status banner ("About to copy ...")
//  2. "ipos:" lines, on releases that print them on their own
//  3. "opos:" lines
//  4. "non-tried:" lines
//  5. "time ..." and "percent ..." lines
//  6. "rescued:" lines, on releases that print them on their own
//  7. status text followed by measurements, split on the profile's marker
//  8. "pct" lines, on releases that print a remaining time there
//  9. anything else without "pct" is a bare status
//
// A line that cannot be decoded leaves the state untouched; the error is
// logged and returned for the caller's information only.
func (p *ProgressParser) Parse(line string) (kind LineKind, err error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return LineEmpty, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedLine, r)
		}
		if err != nil {
			p.mu.Lock()
			p.failures++
			p.mu.Unlock()
			p.log.V(1).Info("unable to parse line", "kind", kind, "line", line, "error", err.Error())
		}
	}()

	var (
		fields profile.Fields
		status *string
		prof   = p.profile
		first  = tokens[0]
		marker = prof.StatusMarker()
	)

	switch {
	case strings.Contains(line, InitialStatusPhrase):
		kind = LineInitialStatus
		err = p.extract(profile.KindInitialStatus, tokens, &fields)
	case first == "ipos:" && prof.Has(profile.KindInputPosition):
		kind = LineInputPosition
		err = p.extract(profile.KindInputPosition, tokens, &fields)
	case first == "opos:":
		kind = LineOutputPosition
		err = p.extract(profile.KindOutputPosition, tokens, &fields)
	case first == "non-tried:" && prof.Has(profile.KindUnreadable):
		kind = LineUnreadable
		err = p.extract(profile.KindUnreadable, tokens, &fields)
	case (first == "time" || first == "percent") && prof.Has(profile.KindLastRead):
		kind = LineLastRead
		err = p.extract(profile.KindLastRead, tokens, &fields)
	case first == "rescued:" && prof.Has(profile.KindRecovered):
		kind = LineRecovered
		err = p.extract(profile.KindRecovered, tokens, &fields)
	case marker != "" && ((strings.Contains(line, marker) && first != "rescued:" && first != "pct") || strings.Contains(line, "ipos:")):
		kind = LineStatusProgress
		text, info, found := strings.Cut(line, marker)
		if !found {
			return kind, fmt.Errorf("%w: no %q in status line", ErrMalformedLine, marker)
		}
		text = strings.TrimSpace(text)
		status = &text
		err = p.extract(profile.KindStatusProgress, strings.Fields(info), &fields)
	case first == "pct" && prof.Has(profile.KindTimeRemaining):
		kind = LineTimeRemaining
		err = p.extract(profile.KindTimeRemaining, tokens, &fields)
	case !strings.Contains(line, "pct"):
		kind = LineStatus
		text := strings.TrimSpace(line)
		status = &text
	default:
		return LineIgnored, nil
	}
	if err != nil {
		return kind, err
	}

	events, err := p.commit(kind, fields, status)
	if err != nil {
		return kind, err
	}
	for _, e := range events {
		p.reporter.Report(e)
	}
	return kind, nil
}

func (p *ProgressParser) extract(kind profile.Kind, tokens []string, out *profile.Fields) error {
	for _, e := range p.profile.Extractors(kind) {
		if e.Extract == nil {
			continue
		}
		if err := e.Extract(tokens, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedLine, e.Name, err)
		}
	}
	return nil
}

// commit merges extracted fields into the state and returns the events for
// every value that changed since it was last published. Nothing is written
// if any value is rejected.
func (p *ProgressParser) commit(kind LineKind, f profile.Fields, status *string) ([]progress.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.state
	var events []progress.Event
	changed := map[progress.Field]string{}
	now := time.Now()

	publish := func(field progress.Field, value string) *progress.Event {
		last, ok := changed[field]
		if !ok {
			last, ok = p.published[field]
		}
		if ok && last == value {
			return nil
		}
		changed[field] = value
		events = append(events, progress.Event{
			Timestamp: now,
			Kind:      progress.KindField,
			SessionID: p.sessionID,
			Field:     field,
			Value:     value,
		})
		return &events[len(events)-1]
	}

	if f.Capacity != nil {
		if next.GotInitialStatus {
			p.log.V(1).Info("ignoring repeated initial status", "capacity", f.Capacity.String())
		} else {
			next.Capacity = *f.Capacity
			next.GotInitialStatus = true
			events = append(events, progress.Event{
				Timestamp: now,
				Kind:      progress.KindRange,
				SessionID: p.sessionID,
				Value:     next.Capacity.String(),
				Total:     next.Capacity.Value,
				Metadata:  map[string]interface{}{"unit": next.Capacity.Unit},
			})
		}
	}

	if f.Recovered != nil {
		if !next.GotInitialStatus || !next.Capacity.Known() {
			// Without a capacity there is no unit to convert to.
			p.log.Info("recovered data reported before capacity is known", "recovered", f.Recovered.String())
			next.Recovered = metrics.Quantity{}
			publish(progress.FieldRecovered, metrics.Unknown)
		} else {
			converted, err := f.Recovered.In(next.Capacity.Unit)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
			}
			converted.Value = metrics.Round(converted.Value, recoveredPlaces)
			next.Recovered = converted
			if e := publish(progress.FieldRecovered, converted.String()); e != nil {
				e.Current = converted.Value
				e.Total = next.Capacity.Value
			}
		}
	}

	set := func(field progress.Field, dst *metrics.Quantity, src *metrics.Quantity) {
		if src == nil {
			return
		}
		*dst = *src
		publish(field, src.String())
	}
	set(progress.FieldInputPosition, &next.InputPosition, f.InputPosition)
	set(progress.FieldOutputPosition, &next.OutputPosition, f.OutputPosition)
	set(progress.FieldCurrentRate, &next.CurrentRate, f.CurrentRate)
	set(progress.FieldAverageRate, &next.AverageRate, f.AverageRate)
	set(progress.FieldUnreadable, &next.Unreadable, f.Unreadable)

	if f.ErrorCount != nil {
		next.ErrorCount = *f.ErrorCount
		publish(progress.FieldErrorCount, strconv.Itoa(next.ErrorCount))
	}
	if f.TimeSinceLastRead != nil {
		next.TimeSinceLastRead = *f.TimeSinceLastRead
		publish(progress.FieldTimeSinceLastRead, next.TimeSinceLastRead)
	}
	if f.TimeRemaining != nil {
		next.TimeRemaining = *f.TimeRemaining
		publish(progress.FieldTimeRemaining, next.TimeRemaining)
	}

	if kind == LineStatusProgress {
		for _, e := range p.profile.Extractors(profile.KindRemainingEstimate) {
			if e.Estimate == nil {
				continue
			}
			remaining := metrics.Unknown
			if next.GotInitialStatus && next.Recovered.Known() {
				remaining = e.Estimate(next.AverageRate, next.Capacity, next.Recovered.Value)
			}
			next.TimeRemaining = remaining
			publish(progress.FieldTimeRemaining, remaining)
		}
	}

	if status != nil && *status != "" && *status != next.Status {
		next.Status = *status
		publish(progress.FieldStatus, next.Status)
	}

	p.state = next
	for field, value := range changed {
		p.published[field] = value
	}
	return events, nil
}
