package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"blockrand/domain/allocation"

	"github.com/xuri/excelize/v2"
)

// EncodeRecord returns the record as a row in Headers order
func EncodeRecord(r allocation.AssignmentRecord) []string {
	return []string{
		r.ID.String(),
		r.SubjectID.String(),
		r.Name,
		strconv.Itoa(r.Age),
		r.Gender.String(),
		r.Key.String(),
		r.Group.String(),
		r.AssignedAt.String(),
	}
}

// AppendCSV appends one record to the log, writing the header first when
// the file is new or empty
func AppendCSV(path string, r allocation.AssignmentRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CSV log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Headers); err != nil {
			return err
		}
	}
	if err := w.Write(EncodeRecord(r)); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// WriteCSV writes a complete copy of the log to path
func WriteCSV(path string, records []allocation.AssignmentRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV copy: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Headers); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(EncodeRecord(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteXLSX writes the spreadsheet mirror of the log with a bold header
// row. The workbook is saved next to path and renamed over it, so readers
// never observe a half-written file.
func WriteXLSX(path, sheet string, records []allocation.AssignmentRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	// Header row
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	// Data rows
	for r, rec := range records {
		rowIdx := r + 2
		for c, v := range EncodeRecord(rec) {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			var value interface{} = v
			if Headers[c] == ColAge {
				value = rec.Age
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".partial.xlsx")
	if err := f.SaveAs(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
