package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/konveyor/rescue-monitor/output/v1/rescue"
	"github.com/konveyor/rescue-monitor/progress"
	"github.com/konveyor/rescue-monitor/progress/collector"
	"github.com/konveyor/rescue-monitor/progress/reporter"
	"github.com/konveyor/rescue-monitor/supervisor"
	"github.com/konveyor/rescue-monitor/tracing"
)

const (
	EXIT_ON_LAUNCH_ERROR = 1
	EXIT_ON_FAILURE      = 2
	EXIT_ON_ABORT        = 130
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile     string
	outputFile     string
	logLevel       int
	enableJaeger   bool
	jaegerEndpoint string
	progressOutput string
	progressFormat string
	showOutput     bool
	noPrompt       bool
)

func RescueCmd() *cobra.Command {
	var errLog logr.Logger
	cfg := supervisor.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:     "rescue-monitor",
		Short:   "Run GNU ddrescue and follow its progress",
		Version: version,
		PreRunE: func(c *cobra.Command, args []string) error {
			logrusErrLog := logrus.New()
			logrusErrLog.SetOutput(os.Stderr)
			errLog = logrusr.New(logrusErrLog)

			if err := cfg.MergeFile(c, configFile); err != nil {
				errLog.Error(err, "failed to load config file", "file", configFile)
				return err
			}
			if err := validateFlags(cfg); err != nil {
				errLog.Error(err, "failed to validate flags")
				return err
			}
			return nil
		},
		Run: func(c *cobra.Command, args []string) {
			logrusLog := logrus.New()
			logrusLog.SetOutput(os.Stdout)
			logrusLog.SetFormatter(&logrus.TextFormatter{})
			// Adding 5 here to move logs to info level
			// setting verbose 1 -> V(2) logs show up
			// setting verbose 2 -> V(3) logs show up, raw ddrescue lines
			// setting verbose 4 -> V(5) logs show up, replica bytes
			logrusLog.SetLevel(logrus.Level(logLevel + 5))
			log := logrusr.New(logrusLog)
			// This will globally prevent the yaml library from auto-wrapping lines at 80 characters
			yaml.FutureLineWrap()

			// The first interrupt aborts ddrescue; the session keeps running
			// until ddrescue has exited.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if enableJaeger {
				tp, err := tracing.InitTracerProvider(log, tracing.Options{
					EnableJaeger:   enableJaeger,
					JaegerEndpoint: jaegerEndpoint,
					ServiceVersion: version,
					Attributes:     tracing.RecoveryAttributes(cfg.Input, cfg.Output, cfg.Map),
				})
				if err != nil {
					errLog.Error(err, "failed to initialize tracing")
					os.Exit(EXIT_ON_LAUNCH_ERROR)
				}
				defer tracing.Shutdown(context.Background(), log, tp)
			}

			sessionCollector := collector.New()
			sessionProgress, err := progress.New(
				progress.WithCollectors(sessionCollector),
				progress.WithReporters(createProgressReporter()),
			)
			if err != nil {
				errLog.Error(err, "unable to set up progress reporting")
				os.Exit(EXIT_ON_LAUNCH_ERROR)
			}

			opts := []supervisor.Option{
				supervisor.WithLogger(log),
				supervisor.WithReporter(sessionCollector),
			}
			if !noPrompt && term.IsTerminal(int(os.Stdin.Fd())) {
				opts = append(opts, supervisor.WithAbortPrompter(&terminalPrompter{log: log}))
			}

			started := time.Now()
			session, err := supervisor.New(opts...).Launch(ctx, cfg)
			if err != nil {
				sessionProgress.Close()
				errLog.Error(err, "unable to launch ddrescue")
				os.Exit(EXIT_ON_LAUNCH_ERROR)
			}

			outcome, _ := session.Wait(context.Background())
			ended := time.Now()
			// Every event is delivered before the outcome is printed.
			sessionProgress.Close()

			message, err := rescue.Message(outcome)
			if err != nil {
				errLog.Error(err, "unable to render outcome message")
			}
			printOutcome(outcome, message)

			if outputFile != "" {
				report, err := rescue.NewReport(session, outcome, started, ended, cfg)
				if err != nil {
					errLog.Error(err, "unable to build session report")
					os.Exit(EXIT_ON_FAILURE)
				}
				log.Info("writing session report to file", "file", outputFile)
				if err := rescue.Write(outputFile, report); err != nil {
					errLog.Error(err, "error writing output file", "file", outputFile)
					os.Exit(EXIT_ON_FAILURE)
				}
			}

			switch outcome.Result {
			case supervisor.Success:
				return
			case supervisor.AbortedByOperator:
				os.Exit(EXIT_ON_ABORT)
			default:
				os.Exit(EXIT_ON_FAILURE)
			}
		},
	}
	cfg.AddFlags(rootCmd)
	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML file with the recovery settings, flags take precedence")
	rootCmd.Flags().StringVar(&outputFile, "output-file", "", "filepath to store the session report (.yaml or .json)")
	rootCmd.Flags().IntVar(&logLevel, "verbose", 0, "level for logging output")
	rootCmd.Flags().BoolVar(&enableJaeger, "enable-jaeger", false, "enable tracer exports to jaeger endpoint")
	rootCmd.Flags().StringVar(&jaegerEndpoint, "jaeger-endpoint", "http://localhost:14268/api/traces", "jaeger endpoint to collect tracing data")
	rootCmd.Flags().StringVar(&progressOutput, "progress-output", "stderr", "where to write progress events (stderr, stdout, or file path)")
	rootCmd.Flags().StringVar(&progressFormat, "progress-format", "auto", "format for progress output: auto, bar, text, or json")
	rootCmd.Flags().BoolVar(&showOutput, "show-output", false, "include ddrescue's own output in text progress")
	rootCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask whether to interrupt ddrescue again after an abort")

	return rootCmd
}

func main() {
	if err := RescueCmd().Execute(); err != nil {
		os.Exit(EXIT_ON_LAUNCH_ERROR)
	}
}

func validateFlags(cfg supervisor.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch progressFormat {
	case "auto", "bar", "text", "json":
	default:
		return fmt.Errorf("must select one of auto, bar, text or json for progress format")
	}
	return nil
}

// createProgressReporter creates a progress reporter based on CLI flags
func createProgressReporter() progress.Reporter {
	if progressOutput == "" {
		return progress.NewNoopReporter()
	}

	var writer *os.File
	switch progressOutput {
	case "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.Create(progressOutput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create progress output file %s: %v\n", progressOutput, err)
			writer = os.Stderr
		} else {
			writer = file
		}
	}

	format := progressFormat
	if format == "auto" {
		format = "text"
		if term.IsTerminal(int(writer.Fd())) {
			format = "bar"
		}
	}

	switch format {
	case "json":
		return reporter.NewJSONReporter(writer)
	case "text":
		if showOutput {
			return reporter.NewTextReporter(writer, reporter.WithOutput())
		}
		return reporter.NewTextReporter(writer)
	default:
		return reporter.NewProgressBarReporter(writer)
	}
}

func printOutcome(o supervisor.Outcome, message string) {
	var result string
	switch {
	case o.Result == supervisor.Success && o.Complete:
		result = color.GreenString("Recovery complete")
	case o.Result == supervisor.Success:
		result = color.YellowString("Recovery finished with missing data")
	case o.Result == supervisor.AbortedByOperator:
		result = color.YellowString("Recovery aborted")
	default:
		result = color.RedString("Recovery failed (%s, exit status %d)", o.Result, o.ExitCode)
	}
	fmt.Fprintf(os.Stderr, "\n%s: %s of %s recovered\n", result, o.Recovered, o.Capacity)
	if message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", message)
	}
	if o.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", color.RedString(o.Err.Error()))
	}
}
