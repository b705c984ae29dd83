package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const indicatorSheet = "Indicators"

// IndicatorRow is one evaluated indicator in an export. Value is nil when the
// indicator has no value for the period.
type IndicatorRow struct {
	Name        string
	Numerator   string
	Denominator string
	Factor      float64
	NumValue    *float64
	DenValue    *float64
	Value       *float64
}

var indicatorHeader = []string{"Indicator", "Numerator", "Denominator", "Factor", "Numerator value", "Denominator value", "Value"}

// WriteIndicatorWorkbook writes rows as a single-sheet xlsx workbook.
func WriteIndicatorWorkbook(w io.Writer, period string, rows []IndicatorRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", indicatorSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetCellValue(indicatorSheet, "A1", "Period"); err != nil {
		return err
	}
	if err := f.SetCellValue(indicatorSheet, "B1", period); err != nil {
		return err
	}
	for i, title := range indicatorHeader {
		if err := setCell(f, i+1, 3, title); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(indicatorSheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(indicatorSheet, "A3", "G3", bold); err != nil {
		return err
	}

	for i, r := range rows {
		row := i + 4
		values := []interface{}{r.Name, r.Numerator, r.Denominator, r.Factor, r.NumValue, r.DenValue, r.Value}
		for col, v := range values {
			if p, ok := v.(*float64); ok {
				if p == nil {
					continue
				}
				v = *p
			}
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(indicatorSheet, "A", "C", 32); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v interface{}) error {
	addr, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(indicatorSheet, addr, v); err != nil {
		return fmt.Errorf("set %s: %w", addr, err)
	}
	return nil
}
