package domain

import "time"

// Reading is one timestamped operator log row after normalization.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	Operator      string    `json:"operator"`
	RiverLevelM   *float64  `json:"river_level_m"`
	RainMM        *float64  `json:"rain_mm,omitempty"`
	SiltingStatus string    `json:"silting_status,omitempty"`
	IntakeStatus  string    `json:"intake_status,omitempty"`

	// Derived from Timestamp in the source timezone.
	Date      Day    `json:"date"`
	DateLabel string `json:"date_label"`
	TimeOfDay string `json:"time_of_day"`
}

// Level returns the river level and whether the cell held a number.
func (r Reading) Level() (float64, bool) {
	if r.RiverLevelM == nil {
		return 0, false
	}
	return *r.RiverLevelM, true
}

// HasValidLevel reports whether the reading counts toward level statistics:
// the level is numeric and not the zero sentinel.
func (r Reading) HasValidLevel() bool {
	v, ok := r.Level()
	return ok && v != 0
}

// Status returns whichever categorical status the station logs.
func (r Reading) Status() string {
	if r.SiltingStatus != "" {
		return r.SiltingStatus
	}
	return r.IntakeStatus
}

// DailyAggregate is the per-day (optionally per-operator) reduction of level readings.
type DailyAggregate struct {
	Day        Day     `json:"day"`
	Operator   string  `json:"operator,omitempty"`
	MeanLevelM float64 `json:"mean_level_m"`
	MinLevelM  float64 `json:"min_level_m"`
	MaxLevelM  float64 `json:"max_level_m"`
	Count      int     `json:"count"`
}

// DateInterval is an inclusive calendar-day range.
type DateInterval struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

// Contains reports whether t falls on a day inside the interval.
func (i DateInterval) Contains(t time.Time) bool {
	d := DayOf(t.In(i.Start.Time().Location()))
	return !d.Before(i.Start) && !d.After(i.End)
}

// Days returns the number of calendar days spanned, inclusive.
func (i DateInterval) Days() int {
	n := 0
	for d := i.Start; !d.After(i.End); d = d.AddDays(1) {
		n++
	}
	return n
}

// Columns records which optional columns the source table carried.
type Columns struct {
	Rain    bool `json:"rain"`
	Silting bool `json:"silting"`
	Intake  bool `json:"intake"`
}

// Dataset is one fully normalized station table, rebuilt on every load.
type Dataset struct {
	Station  string         `json:"station"`
	Readings []Reading      `json:"readings"`
	Columns  Columns        `json:"columns"`
	Stats    NormalizeStats `json:"stats"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// Source identifies the sheet tab holding one station's log.
type Source struct {
	Station string
	SheetID string
	GID     string
}
