package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"crsp-equity-lab/internal/cds"
	"crsp-equity-lab/internal/timeseries"
)

// AllReturnsSheet is the single sheet the portfolio workbook writes.
const AllReturnsSheet = "All_Returns"

// MonthlyReturnBlock is one portfolio's monthly return series, laid out as a
// two-column block in the workbook.
type MonthlyReturnBlock struct {
	Key     string
	Returns []cds.MonthlyReturn
}

// WriteAllReturnsWorkbook writes every portfolio's monthly returns side by
// side on one sheet. Each block takes two columns headed "<key>_Month" and
// "<key>_Monthly Return"; blocks sit adjacent in caller order.
func WriteAllReturnsWorkbook(path string, blocks []MonthlyReturnBlock) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), AllReturnsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	col := 1
	for _, b := range blocks {
		if err := writeReturnBlock(f, col, b); err != nil {
			return fmt.Errorf("writing block %s: %w", b.Key, err)
		}
		col += 2
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeReturnBlock(f *excelize.File, col int, b MonthlyReturnBlock) error {
	if err := setCell(f, AllReturnsSheet, col, 1, b.Key+"_Month"); err != nil {
		return err
	}
	if err := setCell(f, AllReturnsSheet, col+1, 1, b.Key+"_Monthly Return"); err != nil {
		return err
	}

	for i, m := range b.Returns {
		row := i + 2
		if err := setCell(f, AllReturnsSheet, col, row, m.Month); err != nil {
			return err
		}
		if err := setCell(f, AllReturnsSheet, col+1, row, m.Return); err != nil {
			return err
		}
	}
	return nil
}

// TableSheet names one sheet of a table workbook.
type TableSheet struct {
	Name  string
	Table *timeseries.Table
}

// WriteTableWorkbook writes each table to its own sheet, the date index in
// column A and the data columns following in table order.
func WriteTableWorkbook(path string, sheets []TableSheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("renaming sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(s.Name); err != nil {
				return fmt.Errorf("adding sheet %s: %w", s.Name, err)
			}
		}
		if err := writeTableSheet(f, s.Name, s.Table); err != nil {
			return fmt.Errorf("writing sheet %s: %w", s.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeTableSheet(f *excelize.File, sheet string, t *timeseries.Table) error {
	if err := setCell(f, sheet, 1, 1, "date"); err != nil {
		return err
	}
	cols := t.Columns()
	for j, c := range cols {
		if err := setCell(f, sheet, j+2, 1, c.Name); err != nil {
			return err
		}
	}

	for i, d := range t.Dates() {
		row := i + 2
		if err := setCell(f, sheet, 1, row, d); err != nil {
			return err
		}
		for j, c := range cols {
			v := cellValue(c, i)
			if v == nil {
				continue
			}
			if err := setCell(f, sheet, j+2, row, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellValue(c timeseries.Column, row int) any {
	if c.Text != nil {
		if c.Text[row] == "" {
			return nil
		}
		return c.Text[row]
	}
	if c.Values[row] == nil {
		return nil
	}
	return *c.Values[row]
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
