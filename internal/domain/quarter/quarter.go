// Package quarter buckets timestamps into calendar quarters.
//
// A quarter is identified by the ISO date of its first day in UTC, e.g.
// "2023-04-01". Labels of that form compare lexicographically in the same
// order as the quarters they name, so they double as sort keys.
package quarter

import (
	"fmt"
	"time"
)

const layout = "2006-01-02"

// maxMillis is the first millisecond of year 10000. Labels past it would
// need a fifth year digit and stop sorting chronologically.
var maxMillis = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Label is the canonical quarter identifier.
type Label string

// Of returns the label of the quarter containing the epoch-millisecond
// timestamp ms.
func Of(ms int64) (Label, error) {
	if ms < 0 || ms >= maxMillis {
		return "", fmt.Errorf("%w: %d", ErrInvalidTimestamp, ms)
	}
	return Start(time.UnixMilli(ms)), nil
}

// Start returns the label of the quarter containing t, evaluated in UTC.
func Start(t time.Time) Label {
	t = t.UTC()
	first := time.Month((int(t.Month())-1)/3*3 + 1)
	return Label(time.Date(t.Year(), first, 1, 0, 0, 0, 0, time.UTC).Format(layout))
}

// Parse validates s as a canonical label.
func Parse(s string) (Label, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
	if t.Day() != 1 || (t.Month()-1)%3 != 0 {
		return "", fmt.Errorf("%w: %q is not a quarter start", ErrInvalidLabel, s)
	}
	return Label(s), nil
}

// Time returns the first instant of the quarter.
func (l Label) Time() (time.Time, error) {
	t, err := time.Parse(layout, string(l))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidLabel, string(l))
	}
	return t, nil
}

// Number returns the quarter of the year, 1 through 4, or 0 for a
// malformed label.
func (l Label) Number() int {
	t, err := l.Time()
	if err != nil {
		return 0
	}
	return (int(t.Month())-1)/3 + 1
}

// Display renders the label the way chart axes show it, e.g. "Q2 2023".
func (l Label) Display() string {
	t, err := l.Time()
	if err != nil {
		return string(l)
	}
	return fmt.Sprintf("Q%d %d", l.Number(), t.Year())
}

func (l Label) String() string { return string(l) }
