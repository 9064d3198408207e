package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimeFormat is returned for clock strings that are not a
// valid 24h "HH:MM".
var ErrInvalidTimeFormat = errors.New("invalid time format")

// ToMinutes parses a 24h "HH:MM" clock string into minutes past
// midnight. The string must be exactly two colon-separated integers with
// hour in [0,23] and minute in [0,59].
func ToMinutes(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTimeFormat, clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTimeFormat, clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTimeFormat, clock)
	}
	return hour*60 + minute, nil
}

// FormatMinutes renders minutes past midnight as "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Overlaps reports whether two half-open minute intervals [aStart,aEnd)
// and [bStart,bEnd) intersect. A block ending exactly when another
// starts does not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Span parses a block's start and end clock strings into a minute
// interval, rejecting ranges where the start is not before the end.
func Span(start, end string) (int, int, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return 0, 0, err
	}
	if s >= e {
		return 0, 0, fmt.Errorf("%w: %s does not precede %s", ErrInvalidTimeFormat, start, end)
	}
	return s, e, nil
}
