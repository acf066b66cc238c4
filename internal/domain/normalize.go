package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Schema names the sheet columns. Columns are matched by header text
// (trimmed, case-insensitive), never by position.
type Schema struct {
	Timestamp  string
	Operator   string
	RiverLevel string
	Rain       string
	Silting    string
	Intake     string
}

// DefaultSchema matches the operators' Google Forms response sheets.
var DefaultSchema = Schema{
	Timestamp:  "Carimbo de data/hora",
	Operator:   "NOME",
	RiverLevel: "Nível do Rio (m)",
	Rain:       "Chuva (mm)",
	Silting:    "Assoreamento [Nova]",
	Intake:     "Captação [Gradeamento]",
}

// Unit suffixes stripped from numeric cells.
const (
	levelUnit = "m"
	rainUnit  = "mm"
)

// maxDroppedSamples bounds the row errors kept for diagnostics.
const maxDroppedSamples = 20

// NormalizeStats summarizes one normalization pass.
type NormalizeStats struct {
	RowsIn           int             `json:"rows_in"`
	RowsOut          int             `json:"rows_out"`
	DroppedTimestamp int             `json:"dropped_timestamp"`
	InvalidLevel     int             `json:"invalid_level"`
	InvalidRain      int             `json:"invalid_rain"`
	Dropped          []RowParseError `json:"-"`
}

// Normalizer converts raw sheet tables into typed readings.
type Normalizer struct {
	Schema   Schema
	Location *time.Location
	Parsers  []TimestampParser
}

// NewNormalizer returns a normalizer with the default schema and timestamp
// strategies in loc. A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{
		Schema:   DefaultSchema,
		Location: loc,
		Parsers:  DefaultTimestampParsers,
	}
}

type columnIndex struct {
	timestamp, operator, level int
	rain, silting, intake      int
}

func (n *Normalizer) resolveColumns(header []string) (columnIndex, Columns, error) {
	lookup := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := lookup[key]; !dup {
			lookup[key] = i
		}
	}
	find := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := lookup[headerKey(name)]; ok {
			return i
		}
		return -1
	}

	idx := columnIndex{
		timestamp: find(n.Schema.Timestamp),
		operator:  find(n.Schema.Operator),
		level:     find(n.Schema.RiverLevel),
		rain:      find(n.Schema.Rain),
		silting:   find(n.Schema.Silting),
		intake:    find(n.Schema.Intake),
	}

	var missing []string
	if idx.timestamp < 0 {
		missing = append(missing, n.Schema.Timestamp)
	}
	if idx.operator < 0 {
		missing = append(missing, n.Schema.Operator)
	}
	if idx.level < 0 {
		missing = append(missing, n.Schema.RiverLevel)
	}
	if len(missing) > 0 {
		return columnIndex{}, Columns{}, &SchemaError{Missing: missing}
	}

	cols := Columns{Rain: idx.rain >= 0, Silting: idx.silting >= 0, Intake: idx.intake >= 0}
	return idx, cols, nil
}

func headerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize parses every row of table. Rows whose timestamp fails all
// strategies are dropped; unparseable numeric cells become nil. The result is
// sorted ascending by timestamp. It returns *SchemaError when a required
// column is absent (even with no data rows), and *EmptyResultError when the
// table has no data rows or no row survives. The input is not modified.
func (n *Normalizer) Normalize(table RawTable) ([]Reading, Columns, NormalizeStats, error) {
	stats := NormalizeStats{RowsIn: len(table.Rows)}
	if len(table.Header) == 0 && len(table.Rows) == 0 {
		return nil, Columns{}, stats, &EmptyResultError{Stage: StageFilter}
	}

	idx, cols, err := n.resolveColumns(table.Header)
	if err != nil {
		return nil, Columns{}, stats, err
	}
	if len(table.Rows) == 0 {
		return nil, cols, stats, &EmptyResultError{Stage: StageFilter}
	}

	readings := make([]Reading, 0, len(table.Rows))
	for i, row := range table.Rows {
		rawTS := cell(row, idx.timestamp)
		ts, ok := ParseTimestamp(rawTS, n.Location, n.Parsers)
		if !ok {
			stats.DroppedTimestamp++
			stats.addDropped(RowParseError{Row: i + 1, Column: n.Schema.Timestamp, Value: rawTS})
			continue
		}
		// Offsets written in the cell are honored for the instant; the
		// calendar fields always follow the source timezone.
		ts = ts.In(n.Location)

		r := Reading{
			Timestamp: ts,
			Operator:  strings.TrimSpace(cell(row, idx.operator)),
			Date:      DayOf(ts),
			DateLabel: ts.Format(dayLabelLayout),
			TimeOfDay: ts.Format(timeOfDayLayout),
		}

		rawLevel := cell(row, idx.level)
		if v, ok := ParseMeasurement(rawLevel, levelUnit); ok {
			r.RiverLevelM = &v
		} else if strings.TrimSpace(rawLevel) != "" {
			stats.InvalidLevel++
		}

		if cols.Rain {
			rawRain := cell(row, idx.rain)
			if v, ok := ParseMeasurement(rawRain, rainUnit); ok {
				r.RainMM = &v
			} else if strings.TrimSpace(rawRain) != "" {
				stats.InvalidRain++
			}
		}
		if cols.Silting {
			r.SiltingStatus = strings.TrimSpace(cell(row, idx.silting))
		}
		if cols.Intake {
			r.IntakeStatus = strings.TrimSpace(cell(row, idx.intake))
		}

		readings = append(readings, r)
	}

	slices.SortStableFunc(readings, func(a, b Reading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	stats.RowsOut = len(readings)

	if len(readings) == 0 {
		return nil, cols, stats, &EmptyResultError{Stage: StageFilter}
	}
	return readings, cols, stats, nil
}

func (s *NormalizeStats) addDropped(e RowParseError) {
	if len(s.Dropped) < maxDroppedSamples {
		s.Dropped = append(s.Dropped, e)
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ParseMeasurement parses a numeric cell: an optional trailing unit suffix is
// stripped, a comma decimal separator becomes a period. ok is false for empty
// or non-numeric text.
func ParseMeasurement(s, unit string) (float64, bool) {
	s = strings.TrimSpace(s)
	if unit != "" && len(s) >= len(unit) && strings.EqualFold(s[len(s)-len(unit):], unit) {
		s = strings.TrimSpace(s[:len(s)-len(unit)])
	}
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
