// Package export renders availability data as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/imsoft/Holistia-sub011/internal/model"
)

// ExcelWriter builds a workbook sheet by sheet, row by row.
type ExcelWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{
		file: excelize.NewFile(),
	}
}

// AddSheet adds a new sheet with the given name and makes it current.
func (w *ExcelWriter) AddSheet(name string) error {
	// Excel caps sheet names at 31 chars
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		_, err := w.file.NewSheet(name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *ExcelWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *ExcelWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

// Save writes the workbook to wr.
func (w *ExcelWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *ExcelWriter) Close() error {
	return w.file.Close()
}

// AvailabilityReport writes a professional's merged availability map as a
// workbook: one "Availability" sheet with a row per slot, dates ascending.
func AvailabilityReport(wr io.Writer, professionalID string, days model.DaySlotMap) error {
	w := NewExcelWriter()
	defer w.Close()

	if err := w.AddSheet("Availability"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Professional", "Date", "Start", "End", "Status", "Reason"}); err != nil {
		return err
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		slots := days[date]
		if len(slots) == 0 {
			if err := w.WriteRow([]interface{}{professionalID, date, "", "", "no schedule", ""}); err != nil {
				return err
			}
			continue
		}
		for _, s := range slots {
			if err := w.WriteRow([]interface{}{professionalID, s.Date, s.StartTime, s.EndTime, string(s.Status), s.Reason}); err != nil {
				return err
			}
		}
	}

	return w.Save(wr)
}
