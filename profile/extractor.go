// Package profile holds the version-specific knowledge needed to decode
// ddrescue's progress output. Every ddrescue release between 1.14 and 1.25
// prints the same information in a slightly different layout; each layout
// revision is described by a set of Extractors, and a Table groups them into
// one immutable Profile per supported version.
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/konveyor/rescue-monitor/metrics"
)

// Kind identifies which line an extractor understands.
type Kind int

const (
	KindInitialStatus Kind = iota
	KindInputPosition
	KindOutputPosition
	KindUnreadable
	KindLastRead
	KindRecovered
	// KindStatusProgress lines carry free status text followed by
	// measurements, separated by the extractor's Marker.
	KindStatusProgress
	KindTimeRemaining
	// KindRemainingEstimate is not a line but a strategy: releases that do
	// not print a remaining time get one derived from the average rate.
	KindRemainingEstimate
)

func (k Kind) String() string {
	switch k {
	case KindInitialStatus:
		return "initial_status"
	case KindInputPosition:
		return "input_position"
	case KindOutputPosition:
		return "output_position"
	case KindUnreadable:
		return "unreadable"
	case KindLastRead:
		return "last_read"
	case KindRecovered:
		return "recovered"
	case KindStatusProgress:
		return "status_progress"
	case KindTimeRemaining:
		return "time_remaining"
	case KindRemainingEstimate:
		return "remaining_estimate"
	}
	return "unknown"
}

// Fields collects the values extracted from one line. Nil means the line did
// not carry that value.
type Fields struct {
	Capacity          *metrics.Quantity
	InputPosition     *metrics.Quantity
	OutputPosition    *metrics.Quantity
	CurrentRate       *metrics.Quantity
	AverageRate       *metrics.Quantity
	Unreadable        *metrics.Quantity
	Recovered         *metrics.Quantity
	ErrorCount        *int
	TimeSinceLastRead *string
	TimeRemaining     *string
}

// ExtractFunc reads whitespace separated tokens into out.
type ExtractFunc func(tokens []string, out *Fields) error

// EstimateFunc derives the remaining time; recovered is in capacity's unit.
type EstimateFunc func(averageRate, capacity metrics.Quantity, recovered float64) string

// Extractor is one decoding rule together with the ddrescue versions it is
// valid for.
type Extractor struct {
	Name     string
	Kind     Kind
	Versions []string
	// Marker splits status text from measurements (KindStatusProgress only).
	Marker   string
	Extract  ExtractFunc
	Estimate EstimateFunc
}

func (e Extractor) supports(v string) bool {
	for _, s := range e.Versions {
		if s == v {
			return true
		}
	}
	return false
}

var registry []Extractor

func register(e Extractor) {
	registry = append(registry, e)
}

// Registered returns a copy of every built-in extractor, in registration order.
func Registered() []Extractor {
	out := make([]Extractor, len(registry))
	copy(out, registry)
	return out
}

// versionRange expands "1.14", "1.20" into every minor release in between.
func versionRange(from, to string) []string {
	major, lo := splitMinor(from)
	_, hi := splitMinor(to)
	out := make([]string, 0, hi-lo+1)
	for m := lo; m <= hi; m++ {
		out = append(out, fmt.Sprintf("%d.%d", major, m))
	}
	return out
}

func splitMinor(v string) (int, int) {
	major, minor, _ := strings.Cut(v, ".")
	ma, _ := strconv.Atoi(major)
	mi, _ := strconv.Atoi(minor)
	return ma, mi
}

func at(tokens []string, i int) (string, error) {
	if i < 0 {
		i += len(tokens)
	}
	if i < 0 || i >= len(tokens) {
		return "", fmt.Errorf("token %d out of range in %q", i, strings.Join(tokens, " "))
	}
	return tokens[i], nil
}

// quantity parses tokens[i] as a magnitude and tokens[i+1] as its unit.
func quantity(tokens []string, i int) (*metrics.Quantity, error) {
	value, err := at(tokens, i)
	if err != nil {
		return nil, err
	}
	unit, err := at(tokens, i+1)
	if err != nil {
		return nil, err
	}
	q, err := metrics.ParseQuantity(value, unit)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func count(tokens []string, i int) (*int, error) {
	s, err := at(tokens, i)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid error count %q: %w", s, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative error count %q", s)
	}
	return &n, nil
}

// after joins every token following the first occurrence of word.
func after(tokens []string, word string) (*string, error) {
	for i, t := range tokens {
		if t == word {
			s := strings.Join(tokens[i+1:], " ")
			if s == "" {
				return nil, fmt.Errorf("nothing after %q", word)
			}
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%q not found", word)
}

func index(tokens []string, word string) int {
	for i, t := range tokens {
		if t == word {
			return i
		}
	}
	return -1
}
