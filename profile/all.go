package profile

import "fmt"

// "About to copy 1000 MBytes from /dev/sda to image"
func init() {
	register(Extractor{
		Name:     "initial_status",
		Kind:     KindInitialStatus,
		Versions: versionRange("1.14", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			i := index(tokens, "About")
			if i < 0 {
				return fmt.Errorf("not an initial status line")
			}
			q, err := quantity(tokens, i+3)
			if err != nil {
				return err
			}
			out.Capacity = q
			return nil
		},
	})
}
