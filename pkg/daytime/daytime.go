// Package daytime handles wall-clock "HH:MM" values interpreted against a
// single implicit day.
package daytime

import (
	"fmt"
	"time"

	"github.com/fastygo/dayflow/domain"
)

const layout = "15:04"

// ErrMalformed is returned for values that are not a 24-hour HH:MM time. It
// carries the MALFORMED_TIME code.
var ErrMalformed = domain.ErrMalformedTime

// baseDay anchors every parsed value; its choice is arbitrary.
var baseDay = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Parse converts "HH:MM" into an instant on the base day.
func Parse(value string) (time.Time, error) {
	if len(value) != len(layout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, value)
	}
	clock, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, value)
	}
	return baseDay.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
}

// Minutes returns end minus start in whole minutes. The result is negative
// when end is earlier than start; wraparound past midnight is not supported.
func Minutes(start, end string) (int, error) {
	s, err := Parse(start)
	if err != nil {
		return 0, err
	}
	e, err := Parse(end)
	if err != nil {
		return 0, err
	}
	return int(e.Sub(s) / time.Minute), nil
}

// Format renders a minute count as "Hh Mm". Zero parts are omitted, so zero
// renders as "0m".
func Format(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// Clock maps t's wall-clock time, seconds included, onto the base day so it
// can be compared with parsed values.
func Clock(t time.Time) time.Time {
	h, m, s := t.Clock()
	return baseDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}
