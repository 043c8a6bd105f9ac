// Package export provides output writers for scrape results.
//
// This package contains writers for different output formats:
//   - XLSXWriter: Excel workbook with a listing sheet and a summary sheet
//   - CSVWriter: Flat CSV for spreadsheet import
//   - JSONWriter: Structured JSON for tool integration
//   - MarkdownWriter: Human-readable summary report
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package export
