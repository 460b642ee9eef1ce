// Package rescue holds the file format of a recovery session report.
package rescue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/konveyor/rescue-monitor/metrics"
	"github.com/konveyor/rescue-monitor/parser"
	"github.com/konveyor/rescue-monitor/supervisor"
)

type Report struct {
	// SessionID identifies the session in logs and traces.
	SessionID string    `yaml:"sessionId" json:"sessionId"`
	StartedAt time.Time `yaml:"startedAt" json:"startedAt"`
	EndedAt   time.Time `yaml:"endedAt" json:"endedAt"`
	// Elapsed is the elapsed time as last shown.
	Elapsed string `yaml:"elapsed,omitempty" json:"elapsed,omitempty"`

	// DDRescueVersion is the version ddrescue reported, Profile the one its
	// output was decoded as.
	DDRescueVersion string `yaml:"ddrescueVersion" json:"ddrescueVersion"`
	Profile         string `yaml:"profile" json:"profile"`
	Warning         string `yaml:"warning,omitempty" json:"warning,omitempty"`

	Command []string `yaml:"command" json:"command"`

	Result   supervisor.Result `yaml:"result" json:"result"`
	ExitCode int               `yaml:"exitCode" json:"exitCode"`
	Complete bool              `yaml:"complete" json:"complete"`
	Message  string            `yaml:"message" json:"message"`
	Error    string            `yaml:"error,omitempty" json:"error,omitempty"`

	Progress Progress `yaml:"progress" json:"progress"`

	// Output is ddrescue's screen as last drawn.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Progress is the final progress state, rendered.
type Progress struct {
	Capacity          string `yaml:"capacity" json:"capacity"`
	Recovered         string `yaml:"recovered" json:"recovered"`
	PercentRecovered  string `yaml:"percentRecovered" json:"percentRecovered"`
	InputPosition     string `yaml:"inputPosition" json:"inputPosition"`
	OutputPosition    string `yaml:"outputPosition" json:"outputPosition"`
	AverageRate       string `yaml:"averageRate" json:"averageRate"`
	CurrentRate       string `yaml:"currentRate" json:"currentRate"`
	Unreadable        string `yaml:"unreadable" json:"unreadable"`
	ErrorCount        int    `yaml:"errorCount" json:"errorCount"`
	TimeSinceLastRead string `yaml:"timeSinceLastRead,omitempty" json:"timeSinceLastRead,omitempty"`
	TimeRemaining     string `yaml:"timeRemaining,omitempty" json:"timeRemaining,omitempty"`
	Status            string `yaml:"status,omitempty" json:"status,omitempty"`
}

func newProgress(s parser.State) Progress {
	percent := metrics.Unknown
	if ratio, ok := s.CompletionRatio(); ok {
		percent = fmt.Sprintf("%.2f%%", ratio*100)
	}
	return Progress{
		Capacity:          s.Capacity.String(),
		Recovered:         s.Recovered.String(),
		PercentRecovered:  percent,
		InputPosition:     s.InputPosition.String(),
		OutputPosition:    s.OutputPosition.String(),
		AverageRate:       s.AverageRate.String(),
		CurrentRate:       s.CurrentRate.String(),
		Unreadable:        s.Unreadable.String(),
		ErrorCount:        s.ErrorCount,
		TimeSinceLastRead: s.TimeSinceLastRead,
		TimeRemaining:     s.TimeRemaining,
		Status:            s.Status,
	}
}

// NewReport builds the report of a terminated session.
func NewReport(session *supervisor.Session, outcome supervisor.Outcome, started, ended time.Time, cfg supervisor.Config) (Report, error) {
	msg, err := Message(outcome)
	if err != nil {
		return Report{}, err
	}
	sel := session.Selection()
	r := Report{
		SessionID:       outcome.SessionID,
		StartedAt:       started,
		EndedAt:         ended,
		Elapsed:         metrics.HumanizeElapsed(session.Elapsed()),
		DDRescueVersion: sel.Requested,
		Profile:         sel.Profile.Version,
		Warning:         sel.Warning(),
		Command:         cfg.Args(),
		Result:          outcome.Result,
		ExitCode:        outcome.ExitCode,
		Complete:        outcome.Complete,
		Message:         msg,
		Progress:        newProgress(session.Snapshot()),
		Output:          outcome.Output,
	}
	if outcome.Err != nil {
		r.Error = outcome.Err.Error()
	}
	return r, nil
}

// Write stores the report at path, as JSON when the file name ends in
// .json and as YAML otherwise.
func Write(path string, r Report) error {
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err = json.MarshalIndent(r, "", "  ")
	default:
		b, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("unable to marshal session report: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("unable to write session report to %s: %w", path, err)
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (Report, error) {
	var r Report
	b, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(b, &r)
	} else {
		err = yaml.Unmarshal(b, &r)
	}
	if err != nil {
		return r, fmt.Errorf("unable to parse session report %s: %w", path, err)
	}
	return r, nil
}
