package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationOr parses a Go duration string, returning def for empty input.
func ParseDurationOr(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
