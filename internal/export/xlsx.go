package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

const (
	// listingSheet is the sheet holding one row per shop.
	listingSheet = "飲食店リスト"

	// summarySheet is the sheet holding the data-quality counts.
	summarySheet = "サマリー"

	// maxColumnWidth caps auto-sized column widths.
	maxColumnWidth = 50
)

// XLSXWriter outputs listings as an Excel workbook with two sheets: the
// listing itself and a data-quality summary. Column widths are sized to
// the display width of the contents, counting CJK characters as double
// width so Japanese text fits.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report as an Excel workbook.
func (w *XLSXWriter) Write(report *model.ScrapeReport) (int, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // close releases in-memory resources only

	if err := w.writeListingSheet(f, report); err != nil {
		return 0, err
	}
	if err := w.writeSummarySheet(f, report.Summary()); err != nil {
		return 0, err
	}

	// Open on the listing sheet, not the summary.
	f.SetActiveSheet(0)

	n, err := f.WriteTo(w.output)
	return int(n), err
}

// WriteSummary outputs a workbook containing only the summary sheet.
func (w *XLSXWriter) WriteSummary(summary model.Summary) (int, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := w.writeSummarySheet(f, summary); err != nil {
		return 0, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, err
	}

	n, err := f.WriteTo(w.output)
	return int(n), err
}

// writeListingSheet renames the default sheet and fills it with one row
// per listing.
func (w *XLSXWriter) writeListingSheet(f *excelize.File, report *model.ScrapeReport) error {
	if err := f.SetSheetName("Sheet1", listingSheet); err != nil {
		return err
	}

	headerStyle, err := w.headerStyle(f)
	if err != nil {
		return err
	}

	// Column widths track the widest cell per column, seeded by the headers.
	widths := make([]int, len(listingHeaders))
	for i, h := range listingHeaders {
		widths[i] = runewidth.StringWidth(h)
	}

	for i, h := range listingHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(listingSheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(listingSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r := range report.Listings {
		row := listingRow(r+1, &report.Listings[r])
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(listingSheet, cell, value); err != nil {
				return err
			}
			if width := runewidth.StringWidth(value); width > widths[c] {
				widths[c] = width
			}
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if width+2 > maxColumnWidth {
			width = maxColumnWidth - 2
		}
		if err := f.SetColWidth(listingSheet, col, col, float64(width+2)); err != nil {
			return err
		}
	}

	return nil
}

// writeSummarySheet adds the summary sheet with data-quality counts.
func (w *XLSXWriter) writeSummarySheet(f *excelize.File, summary model.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := w.headerStyle(f)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"項目", "件数"},
		{"総件数", strconv.Itoa(summary.Total)},
		{"電話番号あり", strconv.Itoa(summary.WithPhone)},
		{"住所あり", strconv.Itoa(summary.WithAddress)},
		{"ジャンルあり", strconv.Itoa(summary.WithGenre)},
		{"最寄り駅あり", strconv.Itoa(summary.WithStation)},
		{"食べログ", strconv.Itoa(summary.TabelogCount)},
		{"ホットペッパーグルメ", strconv.Itoa(summary.HotPepperCount)},
		{"作成日時", summary.CreatedAt.Format(time.DateTime)},
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(summarySheet, cell, value); err != nil {
				return err
			}
			if r == 0 {
				if err := f.SetCellStyle(summarySheet, cell, cell, headerStyle); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "B", 20)
}

// headerStyle returns the bold white-on-blue style used for header rows.
func (w *XLSXWriter) headerStyle(f *excelize.File) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"366092"},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}
	return style, nil
}
