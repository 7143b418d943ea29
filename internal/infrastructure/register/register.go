// Package register renders the receipt archive as an .xlsx ledger.
package register

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
)

// SheetName is the ledger worksheet.
const SheetName = "Receipts"

// ContentType is the MIME type of the ledger.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const pageSize = 500

var header = []any{
	"Issued At",
	"Student",
	"Student ID",
	"Email",
	"Fees",
	"Filename",
	"Signed",
	"Size (bytes)",
	"Location",
	"Receipt ID",
}

// Writer builds ledgers from an archive.
type Writer struct {
	archive  receipt.Archive
	location *time.Location
}

// NewWriter creates a Writer that renders timestamps in loc.
func NewWriter(archive receipt.Archive, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{archive: archive, location: loc}
}

// Write renders every archived receipt, newest first, to w.
func (rw *Writer) Write(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2980B9"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return err
	}

	row := 2
	for offset := 0; ; offset += pageSize {
		records, err := rw.archive.List(ctx, receipt.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list receipts: %w", err)
		}
		for _, rec := range records {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []any{
				rec.CreatedAt.In(rw.location).Format("2006-01-02 15:04:05"),
				rec.StudentName,
				rec.StudentID,
				rec.Email,
				rec.Fees,
				rec.Filename,
				rec.SignedWith,
				rec.SizeBytes,
				rec.Location,
				rec.ID,
			}
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return err
			}
			row++
		}
		if len(records) < pageSize {
			break
		}
	}

	if err := adjustColumnsWidth(f, SheetName); err != nil {
		return err
	}

	return f.Write(w)
}

// adjustColumnsWidth sizes each column to its longest value.
func adjustColumnsWidth(f *excelize.File, sheet string) error {
	cols, err := f.GetCols(sheet)
	if err != nil {
		return err
	}

	for idx, col := range cols {
		largest := 8
		for _, cell := range col {
			if n := utf8.RuneCountInString(cell) + 2; n > largest {
				largest = n
			}
		}
		if largest > 80 {
			largest = 80
		}
		name, err := excelize.ColumnNumberToName(idx + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(largest)); err != nil {
			return err
		}
	}
	return nil
}
