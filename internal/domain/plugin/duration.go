package plugin

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// DefaultRefreshInterval is the cache TTL used when a source does not set
// refresh_interval, or sets one that does not parse.
const DefaultRefreshInterval = 30 * time.Second

var durationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h)$`)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
}

// ParseDuration parses the manifest duration grammar: a non-negative integer
// followed by exactly one of ms, s, m or h ("500ms", "30s", "5m", "2h").
// Compound values such as "1h30m" are rejected.
func ParseDuration(s string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("%w %q: expected a number followed by ms, s, m or h", ErrInvalidDuration, s)
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidDuration, s, err)
	}
	unit := durationUnits[match[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w %q: value out of range", ErrInvalidDuration, s)
	}
	return time.Duration(n) * unit, nil
}

// IsValidDuration reports whether s matches the manifest duration grammar.
func IsValidDuration(s string) bool {
	_, err := ParseDuration(s)
	return err == nil
}
