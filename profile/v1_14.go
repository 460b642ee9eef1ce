package profile

import "github.com/konveyor/rescue-monitor/metrics"

func init() {
	// "ipos:    1000 MB,   errors:       0,    average rate:   12345 kB/s"
	register(Extractor{
		Name:     "input_position_errors_average_rate",
		Kind:     KindInputPosition,
		Versions: versionRange("1.14", "1.20"),
		Extract: func(tokens []string, out *Fields) error {
			pos, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			errs, err := count(tokens, 4)
			if err != nil {
				return err
			}
			rate, err := quantity(tokens, 7)
			if err != nil {
				return err
			}
			out.InputPosition, out.ErrorCount, out.AverageRate = pos, errs, rate
			return nil
		},
	})

	// "opos:    1000 MB,     time since last successful read:       0 s"
	register(Extractor{
		Name:     "output_position_last_read",
		Kind:     KindOutputPosition,
		Versions: versionRange("1.14", "1.17"),
		Extract: func(tokens []string, out *Fields) error {
			pos, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			last, err := after(tokens, "read:")
			if err != nil {
				return err
			}
			out.OutputPosition, out.TimeSinceLastRead = pos, last
			return nil
		},
	})

	// Measurements after "rescued:", e.g.
	// "1000 MB,  errsize:       0 B,  current rate:   12345 kB/s"
	register(Extractor{
		Name:     "current_rate_error_size_recovered",
		Kind:     KindStatusProgress,
		Versions: versionRange("1.14", "1.20"),
		Marker:   "rescued:",
		Extract: func(tokens []string, out *Fields) error {
			recovered, err := quantity(tokens, 0)
			if err != nil {
				return err
			}
			unreadable, err := quantity(tokens, 3)
			if err != nil {
				return err
			}
			rate, err := quantity(tokens, 7)
			if err != nil {
				return err
			}
			out.Recovered, out.Unreadable, out.CurrentRate = recovered, unreadable, rate
			return nil
		},
	})

	register(Extractor{
		Name:     "estimate_remaining",
		Kind:     KindRemainingEstimate,
		Versions: versionRange("1.14", "1.19"),
		Estimate: metrics.EstimateRemaining,
	})
}
