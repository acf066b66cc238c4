package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampParser is one parsing strategy. It returns ok=false when the text
// is not in the strategy's format.
type TimestampParser interface {
	Name() string
	Parse(s string, loc *time.Location) (time.Time, bool)
}

// layoutParser tries a list of time layouts in order.
type layoutParser struct {
	name    string
	layouts []string
}

func (p layoutParser) Name() string { return p.name }

func (p layoutParser) Parse(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range p.layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// jsDateLiteralRe matches the Visualization API literal
// "Date(year, zeroBasedMonth, day[, hour, minute, second])".
var jsDateLiteralRe = regexp.MustCompile(`^Date\(\s*(-?\d+(?:\s*,\s*-?\d+){2,6})\s*\)$`)

// jsDateParser handles Date(...) literals. The month is zero-based on the
// wire and corrected by one here.
type jsDateParser struct{}

func (jsDateParser) Name() string { return "js_date_literal" }

func (jsDateParser) Parse(s string, loc *time.Location) (time.Time, bool) {
	m := jsDateLiteralRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	fields := strings.Split(m[1], ",")
	nums := make([]int, 6)
	for i, f := range fields {
		if i >= len(nums) {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1]+1, nums[2]
	hour, minute, second := nums[3], nums[4], nums[5]

	t, err := strictDate(year, month, day, hour, minute, second, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var errInvalidCalendar = errors.New("invalid calendar value")

// strictDate builds a time and rejects values time.Date would normalize,
// such as February 31st.
func strictDate(year, month, day, hour, minute, second int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, errInvalidCalendar
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, errInvalidCalendar
	}
	return t, nil
}

// DefaultTimestampParsers is the prioritized strategy list: day-first locale
// text, then the legacy Date(...) literal, then ISO forms.
var DefaultTimestampParsers = []TimestampParser{
	layoutParser{name: "day_first", layouts: []string{
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2/1/2006",
	}},
	jsDateParser{},
	layoutParser{name: "iso", layouts: []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		time.RFC3339,
	}},
}

// ParseTimestamp runs the strategies in order; the first success wins.
func ParseTimestamp(s string, loc *time.Location, parsers []TimestampParser) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, p := range parsers {
		if t, ok := p.Parse(s, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
