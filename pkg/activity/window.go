package activity

import (
	"strings"
	"time"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// LoadLocation resolves a configured day-boundary zone name. Accepted
// values: "local" (or empty), "utc", or an IANA zone name such as
// "Europe/Berlin".
func LoadLocation(name string) (*time.Location, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	default:
		loc, err := time.LoadLocation(strings.TrimSpace(name))
		if err != nil {
			return nil, dberrors.NewConfigErrorWithCause("git.timezone", "unknown timezone name", err)
		}
		return loc, nil
	}
}

// DayWindow returns the window covering the calendar day containing t in
// loc. AddDate is used for the upper bound so DST transition days keep
// their real length.
func DayWindow(t time.Time, loc *time.Location) Window {
	d := t.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// RangeWindow returns the window covering the calendar days of from
// through to, both inclusive, in loc.
func RangeWindow(from, to time.Time, loc *time.Location) Window {
	f := from.In(loc)
	t := to.In(loc)
	start := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return Window{Start: start, End: end}
}

// LookbackWindow returns the window [now-lookback, now), used when neither
// an explicit window nor stored incremental state is available.
func LookbackWindow(now time.Time, lookback time.Duration) Window {
	return Window{Start: now.Add(-lookback), End: now}
}
