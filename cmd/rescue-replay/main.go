package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/konveyor/rescue-monitor/parser"
	"github.com/konveyor/rescue-monitor/profile"
	"github.com/konveyor/rescue-monitor/progress"
	"github.com/konveyor/rescue-monitor/progress/collector"
	"github.com/konveyor/rescue-monitor/progress/reporter"
	"github.com/konveyor/rescue-monitor/terminal"
)

var (
	ddrescueVersion string
	progressFormat  string
	lineDelay       time.Duration
	readSize        int
	showOutput      bool
	logLevel        int
)

// Replays captured ddrescue output through the parser, to see what a live
// session would have reported.
func ReplayCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rescue-replay <transcript>",
		Short: "Decode a captured ddrescue transcript and print the progress it reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			logrusLog := logrus.New()
			logrusLog.SetOutput(os.Stderr)
			logrusLog.SetFormatter(&logrus.TextFormatter{})
			logrusLog.SetLevel(logrus.Level(logLevel + 5))
			log := logrusr.New(logrusLog)
			yaml.FutureLineWrap()

			return replay(log, args[0])
		},
	}
	rootCmd.Flags().StringVar(&ddrescueVersion, "ddrescue-version", "", "ddrescue version that produced the transcript (required)")
	rootCmd.Flags().StringVar(&progressFormat, "progress-format", "text", "format for progress output: bar, text, or json")
	rootCmd.Flags().DurationVar(&lineDelay, "delay", 0, "pause between lines to watch the progress unfold")
	rootCmd.Flags().IntVar(&readSize, "read-size", 0, "bytes per read, 1 reproduces byte-at-a-time reading")
	rootCmd.Flags().BoolVar(&showOutput, "show-output", false, "include transcript lines in text progress")
	rootCmd.Flags().IntVar(&logLevel, "verbose", 0, "level for logging output")
	rootCmd.MarkFlagRequired("ddrescue-version")
	return rootCmd
}

func main() {
	if err := ReplayCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func replay(log logr.Logger, path string) error {
	transcript, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open transcript: %w", err)
	}
	defer transcript.Close()

	sel, err := profile.DefaultTable().Select(ddrescueVersion)
	if err != nil {
		return err
	}
	sessionID := "replay-" + uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	counter := reporter.NewChannelReporter(ctx, reporter.WithLogger(log))
	counted := make(chan map[string]int)
	go func() {
		counts := map[string]int{}
		for event := range counter.Events() {
			key := string(event.Kind)
			if event.Field != "" {
				key += "/" + string(event.Field)
			}
			counts[key]++
		}
		counted <- counts
	}()

	col := collector.New()
	prog, err := progress.New(
		progress.WithCollectors(col),
		progress.WithReporters(createProgressReporter(), counter),
	)
	if err != nil {
		return err
	}

	if warning := sel.Warning(); warning != "" {
		col.Report(progress.Event{Timestamp: time.Now(), Kind: progress.KindWarning, SessionID: sessionID, Message: warning})
	}

	p := parser.New(sel.Profile,
		parser.WithReporter(col),
		parser.WithLogger(log.WithName("parser")),
		parser.WithSessionID(sessionID),
	)
	screen := terminal.NewScreen(terminal.DefaultScreenRows, terminal.DefaultScreenCols)

	var opts []terminal.TokenizerOption
	if readSize > 0 {
		opts = append(opts, terminal.WithReadSize(readSize))
	}
	tok := terminal.NewTokenizer(transcript, opts...)
	lineKinds := map[string]int{}
	for tok.Scan() {
		line := tok.Line()
		screen.Write(line.Replica)
		col.Report(progress.Event{Timestamp: time.Now(), Kind: progress.KindOutput, SessionID: sessionID, Message: line.Text, Value: line.Replica})

		kind, err := p.Parse(line.Text)
		if err != nil {
			log.Info("line not decoded", "line", line.Text, "error", err.Error())
		}
		lineKinds[kind.String()]++
		if lineDelay > 0 {
			time.Sleep(lineDelay)
		}
	}
	if err := tok.Err(); err != nil {
		log.Error(err, "error reading transcript")
	}

	col.Report(progress.Event{Timestamp: time.Now(), Kind: progress.KindSessionEnded, SessionID: sessionID, Value: "Replayed"})
	prog.Close()
	cancel()
	events := <-counted

	summary := struct {
		Version   string         `yaml:"version"`
		Profile   string         `yaml:"profile"`
		Lines     map[string]int `yaml:"lines"`
		Failures  int            `yaml:"failures"`
		Events    map[string]int `yaml:"events"`
		Extractor []string       `yaml:"extractors"`
		State     parser.State   `yaml:"state"`
	}{
		Version:   sel.Requested,
		Profile:   sel.Profile.Version,
		Lines:     lineKinds,
		Failures:  p.Failures(),
		Events:    events,
		Extractor: sortedNames(sel.Profile),
		State:     p.Snapshot(),
	}
	b, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Screen ===\n%s\n\n=== Summary ===\n%s", screen.String(), b)
	return nil
}

func sortedNames(p *profile.Profile) []string {
	names := p.Names()
	sort.Strings(names)
	return names
}

func createProgressReporter() progress.Reporter {
	switch progressFormat {
	case "json":
		return reporter.NewJSONReporter(os.Stderr)
	case "bar":
		return reporter.NewProgressBarReporter(os.Stderr)
	default:
		if showOutput {
			return reporter.NewTextReporter(os.Stderr, reporter.WithOutput())
		}
		return reporter.NewTextReporter(os.Stderr)
	}
}
