package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// ViewMode selects between raw readings and daily aggregates.
type ViewMode string

const (
	ModeDetailed   ViewMode = "detailed"
	ModeAggregated ViewMode = "aggregated"
)

// ParseViewMode validates a mode name. Empty means detailed.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(s); m {
	case "":
		return ModeDetailed, nil
	case ModeDetailed, ModeAggregated:
		return m, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// ViewRequest is everything a dashboard client can choose.
type ViewRequest struct {
	Selection       Selection
	Mode            ViewMode
	GroupByOperator bool
	// Operators restricts readings to these names; empty keeps all.
	Operators []string
	// Descending orders readings newest first.
	Descending bool
}

// Summary holds the headline indicators for the selected interval.
type Summary struct {
	// MeanLevelM is nil when no valid level exists.
	MeanLevelM *float64 `json:"mean_level_m"`
	// LastLevelM is the most recent valid level; nil means the data is
	// inconsistent for the period.
	LastLevelM      *float64 `json:"last_level_m"`
	TotalReadings   int      `json:"total_readings"`
	ValidReadings   int      `json:"valid_readings"`
	ActiveOperators int      `json:"active_operators"`
}

// PeriodStats is mean/max/min of whatever series is plotted: raw valid
// levels in detailed mode, daily aggregates in aggregated mode.
type PeriodStats struct {
	MeanLevelM float64 `json:"mean_level_m"`
	MaxLevelM  float64 `json:"max_level_m"`
	MinLevelM  float64 `json:"min_level_m"`
}

// CategoryCount is one bucket of a categorical distribution.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MonthlyRain is total rainfall for one YYYY-MM month.
type MonthlyRain struct {
	Month  string  `json:"month"`
	RainMM float64 `json:"rain_mm"`
}

// View is the complete response for one station and request.
type View struct {
	Station            string           `json:"station"`
	Mode               ViewMode         `json:"mode"`
	Interval           DateInterval     `json:"interval"`
	DataStart          Day              `json:"data_start"`
	DataEnd            Day              `json:"data_end"`
	Columns            Columns          `json:"columns"`
	Operators          []string         `json:"operators"`
	Readings           []Reading        `json:"readings"`
	Aggregates         []DailyAggregate `json:"aggregates,omitempty"`
	Summary            Summary          `json:"summary"`
	PeriodStats        *PeriodStats     `json:"period_stats"`
	StatusDistribution []CategoryCount  `json:"status_distribution,omitempty"`
	OperatorActivity   []CategoryCount  `json:"operator_activity"`
	MonthlyRain        []MonthlyRain    `json:"monthly_rain,omitempty"`
	LoadedAt           time.Time        `json:"loaded_at"`
}

// BuildView runs the range selector, validity filter and aggregator over a
// loaded dataset. It returns *EmptyResultError with StageRange when nothing
// survives the interval and operator filters.
func BuildView(ds Dataset, req ViewRequest, now time.Time) (View, error) {
	if req.Mode == "" {
		req.Mode = ModeDetailed
	}
	dataMin, dataMax := DataBounds(ds.Readings, now)
	interval := ResolveRange(req.Selection, dataMin, dataMax, now)

	v := View{
		Station:   ds.Station,
		Mode:      req.Mode,
		Interval:  interval,
		DataStart: dataMin,
		DataEnd:   dataMax,
		Columns:   ds.Columns,
		Operators: Operators(ds.Readings),
		LoadedAt:  ds.LoadedAt,
	}

	selected := FilterInterval(ds.Readings, interval, req.Operators)
	if len(selected) == 0 {
		return v, &EmptyResultError{Stage: StageRange}
	}
	views := FilterValid(selected)

	v.Summary = Summarize(views)
	v.StatusDistribution = StatusDistribution(views.All)
	v.OperatorActivity = OperatorActivity(views.All)
	if ds.Columns.Rain {
		v.MonthlyRain = RainByMonth(ds.Readings)
	}

	if req.Mode == ModeAggregated {
		v.Aggregates = AggregateDaily(views.Valid, req.GroupByOperator)
		v.PeriodStats = AggregateStats(v.Aggregates)
	} else {
		v.PeriodStats = LevelStats(views.Valid)
	}

	v.Readings = views.All
	if req.Descending {
		slices.Reverse(v.Readings)
	}
	return v, nil
}

// Operators returns the distinct operator names, sorted.
func Operators(readings []Reading) []string {
	names := lo.Uniq(lo.Map(readings, func(r Reading, _ int) string { return r.Operator }))
	names = lo.Compact(names)
	slices.Sort(names)
	return names
}

// Summarize computes the headline indicators. Mean and last value use the
// valid view, totals use all rows.
func Summarize(v Views) Summary {
	s := Summary{
		TotalReadings:   len(v.All),
		ValidReadings:   len(v.Valid),
		ActiveOperators: len(lo.Uniq(lo.Map(v.All, func(r Reading, _ int) string { return r.Operator }))),
	}
	if len(v.Valid) == 0 {
		return s
	}
	var sum float64
	last := v.Valid[0]
	for _, r := range v.Valid {
		sum += *r.RiverLevelM
		if !r.Timestamp.Before(last.Timestamp) {
			last = r
		}
	}
	mean := sum / float64(len(v.Valid))
	lastLevel := *last.RiverLevelM
	s.MeanLevelM = &mean
	s.LastLevelM = &lastLevel
	return s
}

// LevelStats is mean/max/min over valid readings. Nil for no readings.
func LevelStats(valid []Reading) *PeriodStats {
	if len(valid) == 0 {
		return nil
	}
	first := *valid[0].RiverLevelM
	ps := PeriodStats{MaxLevelM: first, MinLevelM: first}
	var sum float64
	for _, r := range valid {
		lv := *r.RiverLevelM
		sum += lv
		ps.MaxLevelM = max(ps.MaxLevelM, lv)
		ps.MinLevelM = min(ps.MinLevelM, lv)
	}
	ps.MeanLevelM = sum / float64(len(valid))
	return &ps
}

// AggregateStats is the mean of daily means, max of daily maxima and min of
// daily minima. Nil for no aggregates.
func AggregateStats(aggs []DailyAggregate) *PeriodStats {
	if len(aggs) == 0 {
		return nil
	}
	ps := PeriodStats{MaxLevelM: aggs[0].MaxLevelM, MinLevelM: aggs[0].MinLevelM}
	var sum float64
	for _, a := range aggs {
		sum += a.MeanLevelM
		ps.MaxLevelM = max(ps.MaxLevelM, a.MaxLevelM)
		ps.MinLevelM = min(ps.MinLevelM, a.MinLevelM)
	}
	ps.MeanLevelM = sum / float64(len(aggs))
	return &ps
}

// StatusDistribution counts readings per status label, largest first.
// Readings with no status are left out.
func StatusDistribution(readings []Reading) []CategoryCount {
	labels := lo.Compact(lo.Map(readings, func(r Reading, _ int) string { return r.Status() }))
	return countsDescending(lo.CountValues(labels))
}

// OperatorActivity counts readings per operator, largest first.
func OperatorActivity(readings []Reading) []CategoryCount {
	return countsDescending(lo.CountValues(lo.Map(readings, func(r Reading, _ int) string { return r.Operator })))
}

func countsDescending(counts map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, CategoryCount{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// RainByMonth sums rainfall per month, ascending. Missing rain cells count
// as nothing.
func RainByMonth(readings []Reading) []MonthlyRain {
	totals := make(map[string]float64)
	for _, r := range readings {
		if r.RainMM == nil {
			continue
		}
		totals[r.Date.MonthKey()] += *r.RainMM
	}
	months := lo.Keys(totals)
	slices.Sort(months)
	return lo.Map(months, func(m string, _ int) MonthlyRain {
		return MonthlyRain{Month: m, RainMM: totals[m]}
	})
}
