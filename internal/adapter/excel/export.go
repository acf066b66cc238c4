// Package excel renders dashboard views as XLSX workbooks.
package excel

import (
	"fmt"
	"io"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	readingsSheet  = "Leituras"
	aggregateSheet = "Agregado"
)

var (
	readingsHeader  = []string{"Data", "Hora", "Operador", "Nível do Rio (m)", "Chuva (mm)", "Status"}
	aggregateHeader = []string{"Dia", "Operador", "Média (m)", "Mínimo (m)", "Máximo (m)", "Leituras"}
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Write renders v to w. The readings sheet is always present; the aggregate
// sheet is added when the view carries daily aggregates.
func Write(w io.Writer, v domain.View) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("%s %s a %s", v.Station, v.Interval.Start.Label(), v.Interval.End.Label()),
		Creator: "hydromon",
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}
	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, readingsSheet, readingsHeader, readingRows(v.Readings), style); err != nil {
		return err
	}
	if len(v.Aggregates) > 0 {
		if _, err := f.NewSheet(aggregateSheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", aggregateSheet, err)
		}
		if err := writeSheet(f, aggregateSheet, aggregateHeader, aggregateRows(v.Aggregates), style); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, style int) error {
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func readingRows(readings []domain.Reading) [][]any {
	rows := make([][]any, len(readings))
	for i, r := range readings {
		rows[i] = []any{r.DateLabel, r.TimeOfDay, r.Operator, optional(r.RiverLevelM), optional(r.RainMM), r.Status()}
	}
	return rows
}

func aggregateRows(aggs []domain.DailyAggregate) [][]any {
	rows := make([][]any, len(aggs))
	for i, a := range aggs {
		rows[i] = []any{a.Day.Label(), a.Operator, a.MeanLevelM, a.MinLevelM, a.MaxLevelM, a.Count}
	}
	return rows
}

// optional leaves the cell blank for missing values.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
