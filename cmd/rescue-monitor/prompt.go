package main

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/manifoldco/promptui"

	"github.com/konveyor/rescue-monitor/parser"
)

const (
	choiceStop = "Stop ddrescue"
	choiceWait = "Wait"
)

// terminalPrompter asks the operator on the terminal whether to interrupt
// ddrescue again.
type terminalPrompter struct {
	log logr.Logger
}

func (p *terminalPrompter) ConfirmAbort(ctx context.Context, state parser.State) bool {
	if ctx.Err() != nil {
		return false
	}
	label := "ddrescue is still running. Stop it again, or wait a little longer?"
	if state.Status != "" {
		label = "ddrescue is still running (" + state.Status + "). Stop it again, or wait a little longer?"
	}
	prompt := promptui.Select{
		Label: label,
		Items: []string{choiceStop, choiceWait},
		Size:  2,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "▸ {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "✓ {{ . | green }}",
		},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			// Ctrl-C at the prompt is another request to stop.
			return true
		}
		if !errors.Is(err, promptui.ErrEOF) {
			p.log.Error(err, "unable to prompt")
		}
		return false
	}
	return choice == choiceStop
}
