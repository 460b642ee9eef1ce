package parser

import (
	"github.com/konveyor/rescue-monitor/metrics"
)

// State is the decoded progress of one recovery session.
//
// A Quantity without a unit has not been reported yet and renders as
// metrics.Unknown. Recovered is always expressed in Capacity's unit.
type State struct {
	Capacity          metrics.Quantity `json:"capacity" yaml:"capacity"`
	Recovered         metrics.Quantity `json:"recovered" yaml:"recovered"`
	InputPosition     metrics.Quantity `json:"inputPosition" yaml:"inputPosition"`
	OutputPosition    metrics.Quantity `json:"outputPosition" yaml:"outputPosition"`
	CurrentRate       metrics.Quantity `json:"currentRate" yaml:"currentRate"`
	AverageRate       metrics.Quantity `json:"averageRate" yaml:"averageRate"`
	Unreadable        metrics.Quantity `json:"unreadable" yaml:"unreadable"`
	ErrorCount        int              `json:"errorCount" yaml:"errorCount"`
	TimeSinceLastRead string           `json:"timeSinceLastRead,omitempty" yaml:"timeSinceLastRead,omitempty"`
	TimeRemaining     string           `json:"timeRemaining,omitempty" yaml:"timeRemaining,omitempty"`
	Status            string           `json:"status,omitempty" yaml:"status,omitempty"`
	GotInitialStatus  bool             `json:"gotInitialStatus" yaml:"gotInitialStatus"`
}

// CompletionRatio is recovered/capacity. ok is false until the initial
// status was seen and some recovered data was reported.
func (s State) CompletionRatio() (float64, bool) {
	if !s.GotInitialStatus {
		return 0, false
	}
	return metrics.CompletionRatio(s.Recovered, s.Capacity)
}

// Complete reports whether everything was recovered.
func (s State) Complete() bool {
	ratio, ok := s.CompletionRatio()
	return ok && ratio >= 1
}
