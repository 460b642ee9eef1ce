package profile

// "opos:    1000 MB,  run time:   10 s,  successful read:   0 s ago"
func init() {
	register(Extractor{
		Name:     "output_position_last_read",
		Kind:     KindOutputPosition,
		Versions: versionRange("1.18", "1.20"),
		Extract: func(tokens []string, out *Fields) error {
			pos, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			value, err := at(tokens, -3)
			if err != nil {
				return err
			}
			unit, err := at(tokens, -2)
			if err != nil {
				return err
			}
			last := value + " " + unit
			out.OutputPosition, out.TimeSinceLastRead = pos, &last
			return nil
		},
	})
}
