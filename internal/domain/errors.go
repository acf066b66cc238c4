package domain

import (
	"fmt"
	"strings"
)

// FetchError reports that the raw source could not be retrieved.
type FetchError struct {
	Station string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Station, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaError reports required columns missing from the source table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// RowParseError describes a single row that was dropped during normalization.
// It never leaves the normalizer as a returned error.
type RowParseError struct {
	Row    int
	Column string
	Value  string
}

func (e RowParseError) Error() string {
	return fmt.Sprintf("row %d: unparseable %s %q", e.Row, e.Column, e.Value)
}

// Empty-result stages.
const (
	StageFilter = "filter"
	StageRange  = "range"
)

// EmptyResultError is the "no data" state: the table had no rows after
// filtering, or none inside the selected interval.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	if e.Stage == StageRange {
		return "no readings in the selected period"
	}
	return "no readings found"
}
