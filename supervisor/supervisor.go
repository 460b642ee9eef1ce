// Package supervisor runs ddrescue as a child process and turns its output
// into a live progress state.
//
// A Supervisor launches one Session per recovery. The session reads the
// child's combined output through a terminal.Tokenizer, feeds every line to a
// parser.ProgressParser built for the installed ddrescue version and reports
// every change as a progress.Event. Once ddrescue exits the session
// classifies the run into an Outcome.
//
//	sup := supervisor.New(supervisor.WithLogger(log), supervisor.WithReporter(col))
//	session, err := sup.Launch(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	outcome, err := session.Wait(ctx)
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/konveyor/rescue-monitor/parser"
	"github.com/konveyor/rescue-monitor/profile"
	"github.com/konveyor/rescue-monitor/progress"
	"github.com/konveyor/rescue-monitor/terminal"
	"github.com/konveyor/rescue-monitor/tracing"
)

const ptyRows = 24

// AbortPrompter decides whether to signal ddrescue again when it is still
// running after an abort request.
type AbortPrompter interface {
	ConfirmAbort(ctx context.Context, state parser.State) bool
}

// AbortPrompterFunc adapts a function to AbortPrompter.
type AbortPrompterFunc func(ctx context.Context, state parser.State) bool

func (f AbortPrompterFunc) ConfirmAbort(ctx context.Context, state parser.State) bool {
	return f(ctx, state)
}

// Supervisor launches recovery sessions. It holds no per-session state and
// may launch several sessions.
type Supervisor struct {
	table    *profile.Table
	log      logr.Logger
	reporter progress.Reporter
	prompter AbortPrompter
}

// Option configures a Supervisor, or a single Launch.
type Option func(*Supervisor)

// WithLogger sets the logger. Each session logs with its id attached.
func WithLogger(log logr.Logger) Option {
	return func(s *Supervisor) {
		s.log = log
	}
}

// WithReporter sets where session events are published, usually a
// collector subscribed to a progress.Progress.
func WithReporter(r progress.Reporter) Option {
	return func(s *Supervisor) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithAbortPrompter sets who is asked whether to signal ddrescue again when
// an abort takes long.
func WithAbortPrompter(p AbortPrompter) Option {
	return func(s *Supervisor) {
		s.prompter = p
	}
}

// WithTable replaces the version profile table.
func WithTable(t *profile.Table) Option {
	return func(s *Supervisor) {
		if t != nil {
			s.table = t
		}
	}
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		table:    profile.DefaultTable(),
		log:      logr.Discard(),
		reporter: progress.NewNoopReporter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch starts ddrescue as described by cfg and returns the running
// session. Options override the supervisor's settings for this session only.
//
// An error means no session exists: the config was invalid, the version
// could not be resolved or the process could not be started. Cancelling ctx
// afterwards requests an abort, it does not kill ddrescue.
func (s *Supervisor) Launch(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	sup := *s
	for _, opt := range opts {
		opt(&sup)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	requested := cfg.Version
	if requested == "" {
		detected, err := DetectVersion(ctx, cfg.Binary)
		if err != nil {
			return nil, err
		}
		requested = detected
	}
	selection, err := sup.table.Select(requested)
	if err != nil {
		return nil, fmt.Errorf("unable to select a profile for ddrescue %s: %w", requested, err)
	}

	id := uuid.NewString()
	log := sup.log.WithValues("session", id)
	ctx, span := tracing.StartNewSpan(ctx, "recovery_session",
		tracing.SessionAttributes(id, requested, selection.Profile.Version, selection.Clamped)...)

	session := newSession(id, cfg, selection, &sup, log)
	log.Info("launching ddrescue", "args", cfg.Args(), "version", requested, "profile", selection.Profile.Version)
	if warning := selection.Warning(); warning != "" {
		log.Info("ddrescue version is not fully supported", "warning", warning)
		session.report(progress.Event{Kind: progress.KindWarning, Message: warning})
	}

	output, err := session.start()
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Binary, err)
	}
	session.setState(Running)
	session.recovering.Store(true)
	session.stopAbortOnCancel = context.AfterFunc(ctx, func() {
		if err := session.Abort(); err != nil {
			log.V(1).Info("abort on cancellation not sent", "error", err.Error())
		}
	})

	go session.run(ctx, span, output)
	return session, nil
}

// start runs the child with stdout and stderr on one stream and returns the
// read end.
func (s *Session) start() (io.ReadCloser, error) {
	args := s.cfg.Args()
	cmd := exec.Command(args[0], args[1:]...)

	if s.cfg.PTY {
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: terminal.DefaultScreenCols})
		if err != nil {
			return nil, err
		}
		s.setProcess(cmd)
		return ptmx, nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	// Only the child holds the write end now, so the read end sees EOF when
	// it exits.
	w.Close()
	s.setProcess(cmd)
	return r, nil
}

// run drives the session from start to Terminated.
func (s *Session) run(ctx context.Context, span trace.Span, output io.ReadCloser) {
	defer span.End()

	if s.cfg.StartDelay > 0 {
		timer := time.NewTimer(s.cfg.StartDelay)
		<-timer.C
	}

	var (
		g       errgroup.Group
		waitErr error
	)
	g.Go(func() error {
		return s.readLoop(ctx, output)
	})
	g.Go(func() error {
		waitErr = s.cmd.Wait()
		s.recovering.Store(false)
		s.setState(Draining)
		s.log.V(1).Info("ddrescue exited", "error", fmt.Sprint(waitErr))
		return nil
	})
	readErr := g.Wait()
	output.Close()

	outcome := s.finish(readErr, waitErr)
	span.SetAttributes(
		attribute.String("result", string(outcome.Result)),
		attribute.Int("exit_code", outcome.ExitCode),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
	}
}

func (s *Session) readLoop(ctx context.Context, r io.Reader) error {
	_, span := tracing.StartNewSpan(ctx, "reader_loop")
	defer span.End()

	lines := 0
	tok := terminal.NewTokenizer(r)
	for tok.Scan() {
		line := tok.Line()
		lines++
		s.screen.Write(line.Replica)
		s.log.V(3).Info("ddrescue output", "line", line.Text)
		s.log.V(5).Info("ddrescue replica", "bytes", line.Replica)
		s.report(progress.Event{Kind: progress.KindOutput, Message: line.Text, Value: line.Replica})

		kind, err := s.parser.Parse(line.Text)
		if err == nil && kind == parser.LineInitialStatus {
			s.startTracker()
		}
	}
	span.SetAttributes(attribute.Int("lines", lines))
	if err := tok.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
