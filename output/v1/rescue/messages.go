package rescue

import (
	"fmt"
	"sync"

	"github.com/cbroglie/mustache"

	"github.com/konveyor/rescue-monitor/supervisor"
)

// Templates are rendered with the outcome fields as context: result,
// exitCode, capacity, recovered, complete and output.
var messageTemplates = map[string]string{
	"aborted": "Your recovery has been aborted as you requested. " +
		"{{{recovered}}} of {{{capacity}}} was recovered.\n\n" +
		"Your recovered data may be incomplete at this point, so you may want to run " +
		"a second recovery to try and grab the remaining data.",
	"noInitialStatus": "ddrescue's initial status was never printed, which probably means " +
		"ddrescue exited immediately. Please check all of your settings and try again." +
		"{{#output}} Here is ddrescue's output, which may tell you what went wrong:\n\n{{{output}}}{{/output}}",
	"badReturnCode": "ddrescue exited with nonzero exit status {{exitCode}}. Perhaps the output " +
		"file or disk is full? Please check all of your settings and try again." +
		"{{#output}} Here is ddrescue's output, which may tell you what went wrong:\n\n{{{output}}}{{/output}}",
	"complete": "Your recovery is complete, with all {{{capacity}}} recovered from the source.",
	"partial": "Your recovery is finished, but not all of your data appears to have been " +
		"recovered ({{{recovered}}} of {{{capacity}}}). You may want to run a second recovery " +
		"to try and grab the remaining data.",
}

var (
	parsedOnce sync.Once
	parsed     map[string]*mustache.Template
	parseErr   error
)

func templates() (map[string]*mustache.Template, error) {
	parsedOnce.Do(func() {
		parsed = map[string]*mustache.Template{}
		for name, text := range messageTemplates {
			tmpl, err := mustache.ParseString(text)
			if err != nil {
				parseErr = fmt.Errorf("invalid message template %s: %w", name, err)
				return
			}
			parsed[name] = tmpl
		}
	})
	return parsed, parseErr
}

func templateName(o supervisor.Outcome) string {
	switch o.Result {
	case supervisor.AbortedByOperator:
		return "aborted"
	case supervisor.NoInitialStatus:
		return "noInitialStatus"
	case supervisor.BadReturnCode:
		return "badReturnCode"
	}
	if o.Complete {
		return "complete"
	}
	return "partial"
}

// Message renders the operator facing explanation of an outcome.
func Message(o supervisor.Outcome) (string, error) {
	all, err := templates()
	if err != nil {
		return "", err
	}
	ctx := map[string]interface{}{
		"result":    string(o.Result),
		"exitCode":  o.ExitCode,
		"capacity":  o.Capacity,
		"recovered": o.Recovered,
		"complete":  o.Complete,
		"output":    o.Output,
	}
	return all[templateName(o)].Render(ctx)
}
