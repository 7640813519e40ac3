package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX
const SheetName = "Forecast"

// Row kinds in the export
const (
	KindInput    = "input"
	KindForecast = "forecast"
)

// WriteXLSX writes one row per point (index, value, kind) to w. The last
// appended points are marked as forecast.
func WriteXLSX(w io.Writer, series []float64, appended int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &[]interface{}{"index", "value", "kind"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	n := len(series)
	appended = clamp(appended, n)
	for i, v := range series {
		kind := KindInput
		if i >= n-appended {
			kind = KindForecast
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &[]interface{}{i, v, kind}); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
