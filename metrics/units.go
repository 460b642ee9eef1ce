// Package metrics holds the pure calculations used while monitoring a
// recovery: byte-magnitude unit conversion, remaining time estimation and
// humanized durations.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unknown is rendered for any value that cannot be computed yet.
const Unknown = "Unknown"

var ErrUnknownUnit = errors.New("unknown unit")

// Scale is the ordered magnitude scale, each step a factor of 1000.
var Scale = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// unitIndex maps the leading rune of a unit to its position in Scale.
var unitIndex = map[byte]int{
	'B': 0,
	'k': 1, 'K': 1,
	'M': 2,
	'G': 3,
	'T': 4,
	'P': 5,
	'E': 6,
	'Z': 7,
	'Y': 8,
}

// NormalizeUnit turns the spellings ddrescue prints ("MBytes", "kB/s",
// "MB,", "B,") into the canonical symbol from Scale.
func NormalizeUnit(unit string) (string, error) {
	u := strings.TrimSpace(unit)
	u = strings.TrimRight(u, ",")
	u = strings.TrimSuffix(u, "/s")
	if u == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	idx, ok := unitIndex[u[0]]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return Scale[idx], nil
}

func indexOf(unit string) (int, error) {
	u, err := NormalizeUnit(unit)
	if err != nil {
		return 0, err
	}
	return unitIndex[u[0]], nil
}

// ConvertUnits converts value from one unit of Scale to another.
func ConvertUnits(value float64, from, to string) (float64, error) {
	fromIdx, err := indexOf(from)
	if err != nil {
		return 0, err
	}
	toIdx, err := indexOf(to)
	if err != nil {
		return 0, err
	}
	return value * math.Pow10(3*(fromIdx-toIdx)), nil
}

// Quantity is a magnitude paired with its unit symbol. A Quantity without a
// unit has not been observed yet and is rendered as Unknown.
type Quantity struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	// Rate marks throughput quantities, rendered with a "/s" suffix.
	Rate bool `json:"rate,omitempty" yaml:"rate,omitempty"`
}

// ParseQuantity builds a Quantity from the value and unit tokens ddrescue
// prints, e.g. ("1,024", "MB,").
func ParseQuantity(value, unit string) (Quantity, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimRight(value, ","), ",", ""), 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid magnitude %q: %w", value, err)
	}
	if v < 0 {
		return Quantity{}, fmt.Errorf("negative magnitude %q", value)
	}
	u, err := NormalizeUnit(unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{
		Value: v,
		Unit:  u,
		Rate:  strings.HasSuffix(strings.TrimRight(unit, ","), "/s"),
	}, nil
}

// Known reports whether the quantity has been observed.
func (q Quantity) Known() bool {
	return q.Unit != ""
}

// In returns the quantity expressed in unit.
func (q Quantity) In(unit string) (Quantity, error) {
	if !q.Known() {
		return q, fmt.Errorf("%w: quantity has no unit", ErrUnknownUnit)
	}
	v, err := ConvertUnits(q.Value, q.Unit, unit)
	if err != nil {
		return q, err
	}
	u, _ := NormalizeUnit(unit)
	return Quantity{Value: v, Unit: u, Rate: q.Rate}, nil
}

func (q Quantity) String() string {
	if !q.Known() {
		return Unknown
	}
	s := strconv.FormatFloat(q.Value, 'f', -1, 64) + " " + q.Unit
	if q.Rate {
		s += "/s"
	}
	return s
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// CompletionRatio is recovered/capacity. Both are expected in the same unit;
// ok is false when either is unknown or capacity is zero.
func CompletionRatio(recovered, capacity Quantity) (float64, bool) {
	if !recovered.Known() || !capacity.Known() || capacity.Value == 0 {
		return 0, false
	}
	r, err := recovered.In(capacity.Unit)
	if err != nil {
		return 0, false
	}
	return r.Value / capacity.Value, true
}
