package profile

// "rescued:   1000 MB,  bad areas:   0,  run time:   1s"
func init() {
	register(Extractor{
		Name:     "recovered_bad_areas",
		Kind:     KindRecovered,
		Versions: versionRange("1.22", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			recovered, err := quantity(tokens, 1)
			if err != nil {
				return err
			}
			errs, err := count(tokens, 5)
			if err != nil {
				return err
			}
			out.Recovered, out.ErrorCount = recovered, errs
			return nil
		},
	})
}
