package domain

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RawTable is a header plus text cells, exactly as the source exported them.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Format identifies the wire format of a raw sheet export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatGViz Format = "gviz"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatGViz:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sheet format %q", s)
	}
}

// Decode dispatches on format.
func Decode(format Format, data []byte) (RawTable, error) {
	if format == FormatGViz {
		return DecodeGViz(data)
	}
	return DecodeCSV(data)
}

// DecodeCSV reads a CSV export. Ragged rows are allowed; short rows are read
// as empty cells by the normalizer.
func DecodeCSV(data []byte) (RawTable, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var table RawTable
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return RawTable{}, fmt.Errorf("decode csv: %w", err)
		}
		if table.Header == nil {
			table.Header = rec
			continue
		}
		if isBlankRecord(rec) {
			continue
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// gviz wire types for the Visualization API JSON response.

type gvizResponse struct {
	Status string      `json:"status"`
	Errors []gvizError `json:"errors"`
	Table  *gvizTable  `json:"table"`
}

type gvizError struct {
	Reason          string `json:"reason"`
	Message         string `json:"message"`
	DetailedMessage string `json:"detailed_message"`
}

type gvizTable struct {
	Cols []gvizCol `json:"cols"`
	Rows []gvizRow `json:"rows"`
}

type gvizCol struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type gvizRow struct {
	C []*gvizCell `json:"c"`
}

type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f"`
}

// DecodeGViz reads the legacy Visualization API JSON export. The payload may
// be wrapped in a google.visualization.Query.setResponse(...) callback.
// Column types drive the conversion of each cell back to text: dates keep
// their Date(...) literal for the timestamp parsers, numbers are formatted
// without exponent.
func DecodeGViz(data []byte) (RawTable, error) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start < 0 || end < start {
		return RawTable{}, errors.New("decode gviz: no JSON object in payload")
	}

	var resp gvizResponse
	if err := json.Unmarshal(data[start:end+1], &resp); err != nil {
		return RawTable{}, fmt.Errorf("decode gviz: %w", err)
	}
	if resp.Status == "error" {
		msg := "unknown error"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].DetailedMessage
			if msg == "" {
				msg = resp.Errors[0].Message
			}
		}
		return RawTable{}, fmt.Errorf("decode gviz: source reported error: %s", msg)
	}
	if resp.Table == nil {
		return RawTable{}, errors.New("decode gviz: missing table")
	}

	table := RawTable{Header: make([]string, len(resp.Table.Cols))}
	for i, col := range resp.Table.Cols {
		label := strings.TrimSpace(col.Label)
		if label == "" {
			label = col.ID
		}
		table.Header[i] = label
	}

	for _, row := range resp.Table.Rows {
		rec := make([]string, len(resp.Table.Cols))
		for i, col := range resp.Table.Cols {
			if i >= len(row.C) || row.C[i] == nil {
				continue
			}
			rec[i] = gvizCellText(col.Type, row.C[i].V)
		}
		if isBlankRecord(rec) {
			continue
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

func gvizCellText(colType string, v any) string {
	if v == nil {
		return ""
	}
	// timeofday cells arrive as [h, m, s, ms].
	if colType == "timeofday" {
		if parts, ok := v.([]any); ok && len(parts) >= 3 {
			return fmt.Sprintf("%02v:%02v:%02v", parts[0], parts[1], parts[2])
		}
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
