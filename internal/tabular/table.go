package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// FileFormat selects the on-disk encoding of an exported table.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

// Format infers the file format from the path extension.
// Unknown extensions return the lowercase extension without the dot.
func Format(path string) FileFormat {
	return FileFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Table is a rectangular string table with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// WriteCSV encodes t as CSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return errors.NewInternal(err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// WriteXLSX encodes t as a single-sheet workbook named sheet.
func WriteXLSX(w io.Writer, sheet string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.NewInternal(fmt.Errorf("rename sheet: %w", err))
	}

	if err := setRow(f, sheet, 1, t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return errors.NewInternal(fmt.Errorf("freeze header: %w", err))
	}

	if err := f.Write(w); err != nil {
		return errors.NewInternal(fmt.Errorf("write workbook: %w", err))
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.NewInternal(err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return errors.NewInternal(fmt.Errorf("write row %d: %w", row, err))
	}
	return nil
}

// Save atomically writes t to path in the format implied by its extension.
func Save(path, sheet string, t *Table) error {
	if err := ValidateOutputPath(path); err != nil {
		return err
	}
	return WriteAtomic(path, func(w io.Writer) error {
		if Format(path) == FormatXLSX {
			return WriteXLSX(w, sheet, t)
		}
		return WriteCSV(w, t)
	})
}
