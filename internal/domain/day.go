package domain

import (
	"fmt"
	"time"
)

const (
	dayLayout       = "2006-01-02"
	dayLabelLayout  = "02/01/2006"
	timeOfDayLayout = "15:04"
)

// Day is a calendar day in the source timezone, stored as local midnight.
// The zero value is not a valid day.
type Day struct {
	t time.Time
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{t: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// NewDay builds a day from calendar fields in loc.
func NewDay(year int, month time.Month, day int, loc *time.Location) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// ParseDay parses a YYYY-MM-DD string in loc.
func ParseDay(s string, loc *time.Location) (Day, error) {
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// Time returns local midnight of the day.
func (d Day) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d.t.IsZero() }

// AddDays moves the day by n calendar days. DST shifts do not leak into the result.
func (d Day) AddDays(n int) Day {
	y, m, dd := d.t.Date()
	return Day{t: time.Date(y, m, dd+n, 0, 0, 0, 0, d.t.Location())}
}

func (d Day) Before(o Day) bool { return d.t.Before(o.t) }
func (d Day) After(o Day) bool  { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool  { return d.t.Equal(o.t) }

// Compare returns -1, 0 or +1.
func (d Day) Compare(o Day) int { return d.t.Compare(o.t) }

// String renders the day as YYYY-MM-DD.
func (d Day) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}

// Label renders the day as DD/MM/YYYY, the format operators use on the sheet.
func (d Day) Label() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(dayLabelLayout)
}

// MonthKey renders the day's month as YYYY-MM.
func (d Day) MonthKey() string {
	return d.t.Format("2006-01")
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.t.Format(dayLayout) + `"`), nil
}

func minDay(a, b Day) Day {
	if b.Before(a) {
		return b
	}
	return a
}

func maxDay(a, b Day) Day {
	if b.After(a) {
		return b
	}
	return a
}
