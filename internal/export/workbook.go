package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"market-etl/internal/observability"
	"market-etl/internal/pipeline"
)

const defaultSheet = "Sheet1"

// WriteWorkbook writes one sheet per table into an .xlsx file.
// Numeric columns are stored as numbers, absent values as empty cells.
func WriteWorkbook(t *pipeline.Tables, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, table := range pipeline.TableNames {
		idx, err := f.NewSheet(table)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", table, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, table, t); err != nil {
			return fmt.Errorf("sheet %s: %w", table, err)
		}
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	observability.RecordExport("xlsx")
	return nil
}

func writeSheet(f *excelize.File, table string, t *pipeline.Tables) error {
	header := make([]interface{}, len(Columns[table]))
	for i, c := range Columns[table] {
		header[i] = c
	}
	if err := f.SetSheetRow(table, "A1", &header); err != nil {
		return err
	}

	for i, record := range Records(table, t) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := typedRow(Columns[table], record)
		if err := f.SetSheetRow(table, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// typedRow converts rendered fields into cell values. Numbers stay numeric
// and empty fields become blank cells.
func typedRow(columns, record []string) []interface{} {
	row := make([]interface{}, len(record))
	for i, v := range record {
		switch {
		case v == "":
			row[i] = nil
		case isTextColumn(columns[i]):
			row[i] = v
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				row[i] = n
			} else {
				row[i] = v
			}
		}
	}
	return row
}

func isTextColumn(name string) bool {
	switch name {
	case "ticker", "name", "asset_class", "group", "currency", "source",
		"run_id", "run_timestamp_utc", "tickers_succeeded", "tickers_failed", "notes",
		"trend_regime", "vol_regime":
		return true
	}
	return false
}
