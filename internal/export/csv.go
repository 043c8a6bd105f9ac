package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// listingHeaders are the column labels shared by the CSV and Excel output.
var listingHeaders = []string{
	"No.", "店名", "電話番号", "住所", "ジャンル",
	"最寄り駅", "営業時間", "情報源", "URL", "取得日時",
}

// listingRow renders one listing as output columns.
func listingRow(n int, l *model.Listing) []string {
	scrapedAt := ""
	if !l.ScrapedAt.IsZero() {
		scrapedAt = l.ScrapedAt.Format("2006-01-02 15:04")
	}
	return []string{
		strconv.Itoa(n),
		l.Name,
		l.Phone,
		l.Address,
		l.Genre,
		l.Station,
		l.OpenTime,
		l.Source.Label(),
		l.URL,
		scrapedAt,
	}
}

// CSVWriter outputs listings in CSV format.
// Output starts with a UTF-8 BOM so Excel on Windows detects the encoding
// of the Japanese columns.
type CSVWriter struct {
	baseWriter

	// bom controls whether a UTF-8 byte order mark is written first.
	bom bool
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithoutBOM disables the UTF-8 byte order mark prefix.
func WithoutBOM() CSVWriterOption {
	return func(w *CSVWriter) {
		w.bom = false
	}
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{
		baseWriter: newBaseWriter(output),
		bom:        true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs all listings as CSV rows with a header row.
func (w *CSVWriter) Write(report *model.ScrapeReport) (int, error) {
	var buf bytes.Buffer
	if w.bom {
		buf.WriteString("\uFEFF")
	}

	cw := csv.NewWriter(&buf)
	if err := cw.Write(listingHeaders); err != nil {
		return 0, err
	}
	for i := range report.Listings {
		if err := cw.Write(listingRow(i+1, &report.Listings[i])); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

// WriteSummary outputs the summary as key-value CSV rows.
func (w *CSVWriter) WriteSummary(summary model.Summary) (int, error) {
	var buf bytes.Buffer
	if w.bom {
		buf.WriteString("\uFEFF")
	}

	cw := csv.NewWriter(&buf)
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
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
