package supervisor

import (
	"errors"
	"os/exec"

	"github.com/konveyor/rescue-monitor/parser"
)

// Result is why a session ended.
type Result string

const (
	// NoInitialStatus means ddrescue exited before printing its initial
	// status, usually because of bad arguments.
	NoInitialStatus Result = "NoInitialStatus"
	// BadReturnCode means ddrescue exited with a nonzero status.
	BadReturnCode Result = "BadReturnCode"
	Success       Result = "Success"
	// AbortedByOperator takes precedence over every other result.
	AbortedByOperator Result = "AbortedByOperator"
)

// Outcome is the terminal record of a session.
type Outcome struct {
	Result    Result `json:"result" yaml:"result"`
	SessionID string `json:"sessionId" yaml:"sessionId"`
	// ExitCode is ddrescue's exit status, -1 if it was killed by a signal.
	ExitCode int `json:"exitCode" yaml:"exitCode"`
	// Complete is set on Success when everything was recovered.
	Complete  bool   `json:"complete" yaml:"complete"`
	Capacity  string `json:"capacity" yaml:"capacity"`
	Recovered string `json:"recovered" yaml:"recovered"`
	// Output is ddrescue's screen as last drawn.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Err is set when the session failed for a reason other than ddrescue's
	// exit status, e.g. a read error on its output.
	Err error `json:"-" yaml:"-"`
}

// exitCode extracts the exit status from the error returned by Cmd.Wait.
// ok is false when err is not about the exit status.
func exitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return -1, false
}

// classify decides the result of a finished session.
func classify(aborted bool, state parser.State, code int) Result {
	switch {
	case aborted:
		return AbortedByOperator
	case !state.GotInitialStatus:
		return NoInitialStatus
	case code != 0:
		return BadReturnCode
	}
	return Success
}

func newOutcome(result Result, sessionID string, state parser.State, code int) Outcome {
	o := Outcome{
		Result:    result,
		SessionID: sessionID,
		ExitCode:  code,
		Capacity:  state.Capacity.String(),
		Recovered: state.Recovered.String(),
	}
	if result == Success {
		o.Complete = state.Complete()
	}
	return o
}
