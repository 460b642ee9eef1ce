package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/konveyor/rescue-monitor/parser"
	"github.com/konveyor/rescue-monitor/profile"
	"github.com/konveyor/rescue-monitor/progress"
	"github.com/konveyor/rescue-monitor/terminal"
)

var ErrSessionEnded = errors.New("session has ended")

// State is the lifecycle stage of a Session.
type State int

const (
	Idle State = iota
	Launching
	Running
	// Draining means ddrescue has exited and its remaining output is being
	// read.
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Launching:
		return "Launching"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Terminated:
		return "Terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is one running or finished ddrescue recovery.
type Session struct {
	id        string
	cfg       Config
	selection profile.Selection
	parser    *parser.ProgressParser
	reporter  progress.Reporter
	prompter  AbortPrompter
	screen    *terminal.Screen
	log       logr.Logger

	// lifetime is cancelled when the session terminates.
	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	state   State
	cmd     *exec.Cmd
	aborted bool
	outcome Outcome
	// finishing is set once the outcome is being classified; later aborts
	// cannot change it.
	finishing bool

	// ending serializes the last event against late abort reminders.
	ending   sync.Mutex
	finished bool

	recovering        atomic.Bool
	trackerOnce       sync.Once
	tracker           *Tracker
	stopTracker       context.CancelFunc
	trackerDone       sync.WaitGroup
	stopAbortOnCancel func() bool
	watchdogOnce      sync.Once
	done              chan struct{}
}

func newSession(id string, cfg Config, selection profile.Selection, sup *Supervisor, log logr.Logger) *Session {
	lifetime, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		cfg:       cfg,
		selection: selection,
		reporter:  sup.reporter,
		prompter:  sup.prompter,
		screen:    terminal.NewScreen(terminal.DefaultScreenRows, terminal.DefaultScreenCols),
		log:       log,
		lifetime:  lifetime,
		cancel:    cancel,
		state:     Launching,
		done:      make(chan struct{}),
	}
	s.parser = parser.New(selection.Profile,
		parser.WithReporter(sup.reporter),
		parser.WithLogger(log.WithName("parser")),
		parser.WithSessionID(id),
	)
	s.tracker = NewTracker(sup.reporter, id)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Selection is the version profile the session decodes output with.
func (s *Session) Selection() profile.Selection {
	return s.selection
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the current progress state.
func (s *Session) Snapshot() parser.State {
	return s.parser.Snapshot()
}

// Aborted reports whether an abort was requested.
func (s *Session) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Pid is the process id of ddrescue, or of the prefix command when one is
// configured.
func (s *Session) Pid() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Output is ddrescue's screen as currently drawn.
func (s *Session) Output() string {
	return s.screen.String()
}

// Elapsed is the elapsed time in seconds as last published.
func (s *Session) Elapsed() int {
	return s.tracker.Elapsed()
}

// Done is closed once the session is Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the terminal record; ok is false until the session has
// terminated.
func (s *Session) Outcome() (Outcome, bool) {
	select {
	case <-s.done:
	default:
		return Outcome{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, true
}

// Wait blocks until the session terminates or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		o, _ := s.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Abort asks ddrescue to stop by sending SIGINT to this session's process.
// It may be called any number of times; every call signals again. While
// ddrescue keeps running a KindAbortPending event is published every
// AbortRetryDelay and the AbortPrompter, if any, is asked whether to signal
// again.
func (s *Session) Abort() error {
	s.mu.Lock()
	if s.state == Terminated || s.finishing {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.aborted = true
	s.mu.Unlock()

	s.log.Info("requesting ddrescue to stop", "pid", s.Pid())
	if err := s.signal(); err != nil {
		return err
	}
	s.watchdogOnce.Do(func() {
		go s.watchdog()
	})
	return nil
}

func (s *Session) signal() error {
	s.mu.RLock()
	cmd := s.cmd
	s.mu.RUnlock()
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("ddrescue is not running")
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to interrupt ddrescue: %w", err)
	}
	return nil
}

func (s *Session) watchdog() {
	delay := s.cfg.AbortRetryDelay
	if delay <= 0 {
		delay = DefaultAbortRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		s.ending.Lock()
		if s.finished {
			s.ending.Unlock()
			return
		}
		s.log.Info("ddrescue is still running after an abort request", "waited", delay.String())
		s.report(progress.Event{
			Kind:    progress.KindAbortPending,
			Message: fmt.Sprintf("ddrescue is still running %s after it was asked to stop", delay),
		})
		s.ending.Unlock()

		if s.prompter != nil && s.prompter.ConfirmAbort(s.lifetime, s.Snapshot()) {
			s.log.Info("signalling ddrescue again")
			if err := s.signal(); err != nil {
				s.log.Error(err, "unable to signal ddrescue again")
			}
		}
		timer.Reset(delay)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Terminated {
		return
	}
	s.log.V(1).Info("session state changed", "from", s.state.String(), "to", state.String())
	s.state = state
}

func (s *Session) setProcess(cmd *exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = cmd
}

func (s *Session) report(e progress.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.SessionID = s.id
	s.reporter.Report(e)
}

// startTracker runs the elapsed time tracker until the session stops
// recovering. It is bound to the session lifetime rather than the Launch
// context, which is cancelled to abort while ddrescue is still draining.
func (s *Session) startTracker() {
	s.trackerOnce.Do(func() {
		ctx, cancel := context.WithCancel(s.lifetime)
		s.stopTracker = cancel
		s.trackerDone.Add(1)
		go func() {
			defer s.trackerDone.Done()
			s.tracker.Run(ctx, s.recovering.Load)
		}()
	})
}

// finish classifies the run, publishes the last event and moves the session
// to Terminated. It is called once, after output is drained and the process
// has been waited for.
func (s *Session) finish(readErr, waitErr error) Outcome {
	s.recovering.Store(false)
	if s.stopTracker != nil {
		s.stopTracker()
	}
	s.trackerDone.Wait()
	if s.stopAbortOnCancel != nil {
		s.stopAbortOnCancel()
	}

	code, ok := exitCode(waitErr)
	state := s.parser.Snapshot()

	s.mu.Lock()
	s.finishing = true
	aborted := s.aborted
	s.mu.Unlock()

	outcome := newOutcome(classify(aborted, state, code), s.id, state, code)
	outcome.Output = s.screen.String()
	if !ok {
		outcome.Err = fmt.Errorf("waiting for ddrescue: %w", waitErr)
	}
	if readErr != nil {
		outcome.Err = errors.Join(outcome.Err, fmt.Errorf("reading ddrescue output: %w", readErr))
	}

	log := s.log.WithValues("result", outcome.Result, "exitCode", outcome.ExitCode, "recovered", outcome.Recovered, "capacity", outcome.Capacity)
	switch {
	case outcome.Err != nil:
		log.Error(outcome.Err, "recovery session failed")
	case outcome.Result == NoInitialStatus:
		log.Info("ddrescue exited before printing its initial status")
	case outcome.Result == BadReturnCode:
		log.Info("ddrescue exited with a nonzero status")
	default:
		log.Info("recovery session ended", "complete", outcome.Complete)
	}

	s.ending.Lock()
	s.finished = true
	s.report(progress.Event{
		Kind:    progress.KindSessionEnded,
		Value:   string(outcome.Result),
		Current: state.Recovered.Value,
		Total:   state.Capacity.Value,
		Metadata: map[string]interface{}{
			"exit_code": outcome.ExitCode,
			"complete":  outcome.Complete,
			"capacity":  outcome.Capacity,
			"recovered": outcome.Recovered,
		},
	})
	s.ending.Unlock()

	s.mu.Lock()
	s.outcome = outcome
	s.state = Terminated
	s.mu.Unlock()
	s.cancel()
	close(s.done)
	return outcome
}
