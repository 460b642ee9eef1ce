package progress

// NoopReporter is a no-op implementation of Reporter that discards all events.
//
// This is the default reporter when progress reporting is not explicitly
// configured, both for Progress and for a session launched without a
// reporter.
//
// Example:
//
//	prog, _ := progress.New() // Uses NoopReporter by default
type NoopReporter struct{}

// NewNoopReporter creates a new no-op progress reporter.
func NewNoopReporter() *NoopReporter {
	return &NoopReporter{}
}

// Report discards the event without any action.
func (n *NoopReporter) Report(event Event) {
}
