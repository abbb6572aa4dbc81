// Package durfmt parses the NUMBER[s|m|h|d] duration shorthand used by
// housekeep's --older-than and by the timeout settings in the config file
// and MUTX_* environment variables. No ecosystem library parses this
// exact grammar: time.ParseDuration neither defaults a bare number to
// seconds nor recognizes a "d" (day) unit, so this is implemented directly
// on strconv rather than pulled from a dependency.
package durfmt

import (
	"strconv"
	"strings"
	"time"

	"github.com/termfx/mutx/internal/mutxerr"
)

// Parse parses s as NUMBER optionally followed by a single unit letter in
// {s, m, h, d}. A bare number defaults to seconds. Anything else is
// InvalidDuration.
func Parse(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, mutxerr.New(mutxerr.InvalidDuration, s)
	}

	unit := time.Second
	numPart := raw
	switch raw[len(raw)-1] {
	case 's':
		unit = time.Second
		numPart = raw[:len(raw)-1]
	case 'm':
		unit = time.Minute
		numPart = raw[:len(raw)-1]
	case 'h':
		unit = time.Hour
		numPart = raw[:len(raw)-1]
	case 'd':
		unit = 24 * time.Hour
		numPart = raw[:len(raw)-1]
	default:
		if raw[len(raw)-1] < '0' || raw[len(raw)-1] > '9' {
			return 0, mutxerr.New(mutxerr.InvalidDuration, s)
		}
	}

	if numPart == "" {
		return 0, mutxerr.New(mutxerr.InvalidDuration, s)
	}

	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil || n < 0 {
		return 0, mutxerr.New(mutxerr.InvalidDuration, s)
	}

	return time.Duration(n * float64(unit)), nil
}
