package profile

func init() {
	// "opos:    1000 MB,  non-scraped:   0 B,  average rate:   12345 kB/s"
	register(Extractor{
		Name:     "output_position_average_rate",
		Kind:     KindOutputPosition,
		Versions: versionRange("1.21", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			pos, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			rate, err := quantity(tokens, 8)
			if err != nil {
				return err
			}
			out.OutputPosition, out.AverageRate = pos, rate
			return nil
		},
	})

	// "non-tried:   9000 MB,  bad-sector:   0 B,  error rate:   0 B/s"
	register(Extractor{
		Name:     "unreadable",
		Kind:     KindUnreadable,
		Versions: versionRange("1.21", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			q, err := quantity(tokens, 4)
			if err != nil {
				return err
			}
			out.Unreadable = q
			return nil
		},
	})

	// "rescued:   1000 MB,  errors:   0,  run time:   10 s"
	register(Extractor{
		Name:     "recovered_errors",
		Kind:     KindRecovered,
		Versions: []string{"1.21"},
		Extract: func(tokens []string, out *Fields) error {
			recovered, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			errs, err := count(tokens, 4)
			if err != nil {
				return err
			}
			out.Recovered, out.ErrorCount = recovered, errs
			return nil
		},
	})

	// Measurements after "ipos:", e.g.
	// "1000 MB,  non-trimmed:   0 B,  current rate:   12345 kB/s"
	register(Extractor{
		Name:     "current_rate_input_position",
		Kind:     KindStatusProgress,
		Versions: versionRange("1.21", "1.25"),
		Marker:   "ipos:",
		Extract: func(tokens []string, out *Fields) error {
			pos, err := quantity(tokens, 0)
			if err != nil {
				return err
			}
			rate, err := quantity(tokens, 7)
			if err != nil {
				return err
			}
			out.InputPosition, out.CurrentRate = pos, rate
			return nil
		},
	})
}
