package metrics

import (
	"math"
	"strconv"
)

const (
	minute = 60.0
	hour   = 3600.0
	day    = 86400.0
)

// EstimateRemaining derives the time left from the average read rate and the
// data still to recover. recovered must already be in capacity's unit.
// It returns Unknown whenever the rate is zero or any input is unknown, and
// never a negative duration.
func EstimateRemaining(averageRate, capacity Quantity, recovered float64) string {
	if !averageRate.Known() || !capacity.Known() {
		return Unknown
	}
	rate, err := ConvertUnits(averageRate.Value, averageRate.Unit, capacity.Unit)
	if err != nil || rate <= 0 || math.IsNaN(rate) {
		return Unknown
	}
	left := capacity.Value - recovered
	if left < 0 {
		left = 0
	}
	seconds := left / rate
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return Unknown
	}
	return humanize(seconds)
}

// HumanizeElapsed renders a running second counter with the same buckets as
// EstimateRemaining.
func HumanizeElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return humanize(float64(seconds))
}

func humanize(seconds float64) string {
	switch {
	case seconds <= minute:
		return strconv.Itoa(int(math.Round(seconds))) + " seconds"
	case seconds <= hour:
		return formatFloat(Round(seconds/minute, 1)) + " minutes"
	case seconds <= day:
		return formatFloat(Round(seconds/hour, 2)) + " hours"
	default:
		return formatFloat(Round(seconds/day, 2)) + " days"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
