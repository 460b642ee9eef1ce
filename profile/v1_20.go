package profile

import (
	"fmt"
	"strings"
)

func init() {
	// "time since last successful read:   0 s"
	// "percent rescued:  50.00%   time since last successful read:   0 s"
	register(Extractor{
		Name:     "last_read",
		Kind:     KindLastRead,
		Versions: versionRange("1.20", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			last, err := after(tokens, "read:")
			if err != nil {
				return err
			}
			out.TimeSinceLastRead = last
			return nil
		},
	})

	// 1.20 prints the remaining time on the output position line:
	// "opos:    1000 MB,  remaining time:   5 m,  successful read:   0 s ago"
	register(Extractor{
		Name:     "output_position_remaining_time",
		Kind:     KindOutputPosition,
		Versions: []string{"1.20"},
		Extract: func(tokens []string, out *Fields) error {
			remaining, err := remainingTime(tokens)
			if err != nil {
				return err
			}
			out.TimeRemaining = remaining
			return nil
		},
	})

	// "pct rescued:   50.00%,  read errors:   0,  remaining time:   1h 5m"
	register(Extractor{
		Name:     "remaining_time",
		Kind:     KindTimeRemaining,
		Versions: versionRange("1.21", "1.25"),
		Extract: func(tokens []string, out *Fields) error {
			remaining, err := remainingTime(tokens)
			if err != nil {
				return err
			}
			out.TimeRemaining = remaining
			return nil
		},
	})
}

// remainingTime returns the tokens following "remaining time:", up to and
// including the first one that ends a comma separated field.
func remainingTime(tokens []string) (*string, error) {
	i := index(tokens, "remaining")
	if i < 0 || i+1 >= len(tokens) || tokens[i+1] != "time:" {
		return nil, fmt.Errorf("no remaining time in %q", strings.Join(tokens, " "))
	}
	var parts []string
	for _, t := range tokens[i+2:] {
		if strings.HasSuffix(t, ",") {
			parts = append(parts, strings.TrimSuffix(t, ","))
			break
		}
		parts = append(parts, t)
	}
	s := strings.TrimSpace(strings.Join(parts, " "))
	if s == "" {
		return nil, fmt.Errorf("empty remaining time")
	}
	return &s, nil
}
