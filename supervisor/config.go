package supervisor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

const (
	DefaultBinary          = "ddrescue"
	DefaultStartDelay      = 2 * time.Second
	DefaultAbortRetryDelay = 10 * time.Second
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything needed to launch one ddrescue run. This type is
// designed to work with cobra commands and with a YAML file:
//
//	cfg := supervisor.DefaultConfig()
//	cmd := &cobra.Command{
//	    Use: "rescue-monitor",
//	    RunE: func(cmd *cobra.Command, args []string) error {
//	        if err := cfg.MergeFile(cmd, configFile); err != nil {
//	            return err
//	        }
//	        session, err := sup.Launch(ctx, cfg)
//	        ...
//	    },
//	}
//	cfg.AddFlags(cmd)
//
// A Config must not be modified once passed to Launch.
type Config struct {
	// Binary is the ddrescue executable, looked up in PATH.
	Binary string `yaml:"binary" json:"binary"`

	// Prefix is prepended to the command line, e.g. ["sudo", "-SH"] or
	// ["pkexec"].
	Prefix []string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Version is the installed ddrescue version. When empty it is detected
	// by running "ddrescue --version".
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
	Map    string `yaml:"map" json:"map"`

	DirectAccess bool `yaml:"directAccess,omitempty" json:"directAccess,omitempty"`
	Overwrite    bool `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
	Reverse      bool `yaml:"reverse,omitempty" json:"reverse,omitempty"`
	Preallocate  bool `yaml:"preallocate,omitempty" json:"preallocate,omitempty"`
	NoSplit      bool `yaml:"noSplit,omitempty" json:"noSplit,omitempty"`

	// Retries is the number of retry passes; negative leaves ddrescue's
	// default.
	Retries int `yaml:"retries" json:"retries"`
	// MaxErrors makes ddrescue give up after that many errors; negative
	// means no limit.
	MaxErrors int `yaml:"maxErrors" json:"maxErrors"`
	// ClusterSize and BlockSize are passed when positive.
	ClusterSize int `yaml:"clusterSize,omitempty" json:"clusterSize,omitempty"`
	BlockSize   int `yaml:"blockSize,omitempty" json:"blockSize,omitempty"`

	// PTY runs ddrescue on a pseudo terminal instead of a pipe.
	PTY bool `yaml:"pty,omitempty" json:"pty,omitempty"`

	// StartDelay is waited between starting ddrescue and reading its output.
	StartDelay time.Duration `yaml:"startDelay" json:"startDelay"`
	// AbortRetryDelay is how long an abort waits before checking whether
	// ddrescue has exited.
	AbortRetryDelay time.Duration `yaml:"abortRetryDelay" json:"abortRetryDelay"`
}

// DefaultConfig returns a Config with every optional setting at its default.
func DefaultConfig() Config {
	return Config{
		Binary:          DefaultBinary,
		Retries:         -1,
		MaxErrors:       -1,
		StartDelay:      DefaultStartDelay,
		AbortRetryDelay: DefaultAbortRetryDelay,
	}
}

// AddFlags adds all configuration flags to the given cobra command, using
// the current values as defaults.
func (c *Config) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Binary, "ddrescue", c.Binary, "ddrescue executable")
	cmd.Flags().StringSliceVar(&c.Prefix, "prefix", c.Prefix, "command prefix for privilege helpers (e.g. 'sudo,-SH' or 'pkexec')")
	cmd.Flags().StringVar(&c.Version, "ddrescue-version", c.Version, "installed ddrescue version, detected when empty")
	cmd.Flags().StringVar(&c.Input, "input", c.Input, "input disk or file to recover from (required)")
	cmd.Flags().StringVar(&c.Output, "output", c.Output, "output disk or image file (required)")
	cmd.Flags().StringVar(&c.Map, "map", c.Map, "ddrescue map file (required)")
	cmd.Flags().BoolVar(&c.DirectAccess, "direct", c.DirectAccess, "use direct disc access for the input (-d)")
	cmd.Flags().BoolVar(&c.Overwrite, "force", c.Overwrite, "overwrite the output device or partition (-f)")
	cmd.Flags().BoolVar(&c.Reverse, "reverse", c.Reverse, "reverse the direction of all passes (-R)")
	cmd.Flags().BoolVar(&c.Preallocate, "preallocate", c.Preallocate, "preallocate space on disc for the output file (-p)")
	cmd.Flags().BoolVar(&c.NoSplit, "no-split", c.NoSplit, "skip the scraping phase (-n)")
	cmd.Flags().IntVar(&c.Retries, "retry-passes", c.Retries, "number of retry passes, negative for ddrescue's default (-r)")
	cmd.Flags().IntVar(&c.MaxErrors, "max-errors", c.MaxErrors, "maximum number of error areas, negative for no limit (-e)")
	cmd.Flags().IntVar(&c.ClusterSize, "cluster-size", c.ClusterSize, "sectors to copy at a time, 0 for ddrescue's default (-c)")
	cmd.Flags().IntVar(&c.BlockSize, "sector-size", c.BlockSize, "sector size of the input device in bytes, 0 for ddrescue's default (-b)")
	cmd.Flags().BoolVar(&c.PTY, "pty", c.PTY, "run ddrescue on a pseudo terminal")
	cmd.Flags().DurationVar(&c.StartDelay, "start-delay", c.StartDelay, "time to wait after starting ddrescue before reading its output")
	cmd.Flags().DurationVar(&c.AbortRetryDelay, "abort-retry-delay", c.AbortRetryDelay, "time to wait for ddrescue to exit after an abort before asking again")
}

// flagFields copies the field bound to a flag from src to dst.
var flagFields = map[string]func(dst, src *Config){
	"ddrescue":          func(dst, src *Config) { dst.Binary = src.Binary },
	"prefix":            func(dst, src *Config) { dst.Prefix = src.Prefix },
	"ddrescue-version":  func(dst, src *Config) { dst.Version = src.Version },
	"input":             func(dst, src *Config) { dst.Input = src.Input },
	"output":            func(dst, src *Config) { dst.Output = src.Output },
	"map":               func(dst, src *Config) { dst.Map = src.Map },
	"direct":            func(dst, src *Config) { dst.DirectAccess = src.DirectAccess },
	"force":             func(dst, src *Config) { dst.Overwrite = src.Overwrite },
	"reverse":           func(dst, src *Config) { dst.Reverse = src.Reverse },
	"preallocate":       func(dst, src *Config) { dst.Preallocate = src.Preallocate },
	"no-split":          func(dst, src *Config) { dst.NoSplit = src.NoSplit },
	"retry-passes":      func(dst, src *Config) { dst.Retries = src.Retries },
	"max-errors":        func(dst, src *Config) { dst.MaxErrors = src.MaxErrors },
	"cluster-size":      func(dst, src *Config) { dst.ClusterSize = src.ClusterSize },
	"sector-size":       func(dst, src *Config) { dst.BlockSize = src.BlockSize },
	"pty":               func(dst, src *Config) { dst.PTY = src.PTY },
	"start-delay":       func(dst, src *Config) { dst.StartDelay = src.StartDelay },
	"abort-retry-delay": func(dst, src *Config) { dst.AbortRetryDelay = src.AbortRetryDelay },
}

// MergeFile loads path over c. Flags explicitly set on cmd keep their value.
// An empty path is a no-op.
func (c *Config) MergeFile(cmd *cobra.Command, path string) error {
	if path == "" {
		return nil
	}
	fromFlags := *c
	fromFile, err := LoadConfig(path)
	if err != nil {
		return err
	}
	*c = fromFile
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(c, &fromFlags)
		}
	})
	return nil
}

// LoadConfig reads a YAML config file. Settings missing from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the config describes a runnable command.
func (c Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("%w: ddrescue binary must be set", ErrInvalidConfig)
	}
	for _, required := range []struct{ name, value string }{
		{"input", c.Input},
		{"output", c.Output},
		{"map", c.Map},
	} {
		if required.value == "" {
			return fmt.Errorf("%w: %s must be set", ErrInvalidConfig, required.name)
		}
	}
	if c.Input == c.Output {
		return fmt.Errorf("%w: input and output must differ", ErrInvalidConfig)
	}
	if c.StartDelay < 0 || c.AbortRetryDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Args renders the full command line, prefix and binary included.
func (c Config) Args() []string {
	args := append([]string{}, c.Prefix...)
	args = append(args, c.Binary, "-v")
	if c.DirectAccess {
		args = append(args, "-d")
	}
	if c.Overwrite {
		args = append(args, "-f")
	}
	if c.Reverse {
		args = append(args, "-R")
	}
	if c.Preallocate {
		args = append(args, "-p")
	}
	if c.NoSplit {
		args = append(args, "-n")
	}
	if c.Retries >= 0 {
		args = append(args, "-r", strconv.Itoa(c.Retries))
	}
	if c.MaxErrors >= 0 {
		args = append(args, "-e", strconv.Itoa(c.MaxErrors))
	}
	if c.ClusterSize > 0 {
		args = append(args, "-c", strconv.Itoa(c.ClusterSize))
	}
	if c.BlockSize > 0 {
		args = append(args, "-b", strconv.Itoa(c.BlockSize))
	}
	return append(args, c.Input, c.Output, c.Map)
}
