package domain

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named time-range selection.
type Period int

const (
	PeriodCustom Period = iota
	PeriodLast24h
	PeriodLast7d
	PeriodLast30d
	PeriodLastYear
)

var periodTokens = map[Period]string{
	PeriodCustom:   "custom",
	PeriodLast24h:  "24h",
	PeriodLast7d:   "7d",
	PeriodLast30d:  "30d",
	PeriodLastYear: "1y",
}

// periodDays is the look-back of each relative period in calendar days.
var periodDays = map[Period]int{
	PeriodLast24h:  1,
	PeriodLast7d:   7,
	PeriodLast30d:  30,
	PeriodLastYear: 365,
}

func (p Period) String() string {
	if s, ok := periodTokens[p]; ok {
		return s
	}
	return fmt.Sprintf("Period(%d)", int(p))
}

// ParsePeriod maps an API token (custom, 24h, 7d, 30d, 1y) to a Period.
// The empty string means custom.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PeriodCustom, nil
	}
	for p, tok := range periodTokens {
		if tok == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// Selection is what the user picked: a relative period, or explicit bounds.
// Zero Start/End on a custom selection mean "from the first day" and "to the
// last day" respectively.
type Selection struct {
	Period Period
	Start  Day
	End    Day
}

// Custom selects explicit inclusive bounds.
func Custom(start, end Day) Selection {
	return Selection{Period: PeriodCustom, Start: start, End: end}
}

// Last selects a relative period.
func Last(p Period) Selection {
	return Selection{Period: p}
}

// DataBounds returns the first and last calendar day in readings. With no
// readings both default to the day of now.
func DataBounds(readings []Reading, now time.Time) (Day, Day) {
	if len(readings) == 0 {
		today := DayOf(now)
		return today, today
	}
	lo, hi := readings[0].Date, readings[0].Date
	for _, r := range readings[1:] {
		lo = minDay(lo, r.Date)
		hi = maxDay(hi, r.Date)
	}
	return lo, hi
}

// ResolveRange maps a selection onto a concrete interval clamped to
// [dataMin, dataMax]. It never fails: reversed custom bounds are swapped.
// now is interpreted in dataMax's location.
func ResolveRange(sel Selection, dataMin, dataMax Day, now time.Time) DateInterval {
	if dataMax.Before(dataMin) {
		dataMin, dataMax = dataMax, dataMin
	}
	clamp := func(d Day) Day {
		return minDay(maxDay(d, dataMin), dataMax)
	}

	if days, ok := periodDays[sel.Period]; ok {
		today := DayOf(now.In(dataMax.Time().Location()))
		end := clamp(minDay(today, dataMax))
		start := maxDay(end.AddDays(-days), dataMin)
		return DateInterval{Start: start, End: end}
	}

	start, end := sel.Start, sel.End
	if start.IsZero() {
		start = dataMin
	}
	if end.IsZero() {
		end = dataMax
	}
	start, end = clamp(start), clamp(end)
	if start.After(end) {
		start, end = end, start
	}
	return DateInterval{Start: start, End: end}
}
