package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tohoso/restaurant-scraper/internal/checkpoint"
	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/database"
	"github.com/Tohoso/restaurant-scraper/internal/dedup"
	"github.com/Tohoso/restaurant-scraper/internal/export"
	"github.com/Tohoso/restaurant-scraper/internal/log"
	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// Export output formats.
const (
	formatXLSX     = "xlsx"
	formatCSV      = "csv"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// exportExts maps each format to its output file extension.
var exportExts = map[string]string{
	formatXLSX:     ".xlsx",
	formatCSV:      ".csv",
	formatJSON:     ".json",
	formatMarkdown: ".md",
}

// Export data sources.
const (
	fromCheckpoint = "checkpoint"
	fromDB         = "db"
	fromRun        = "run"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export previously collected listings",
		Long: `Export reads listings collected by earlier scrape runs and writes
them in the requested format without touching the network.

By default it reads the checkpoint files of the current (possibly
interrupted) run. With --from db it reads the listing database, which
accumulates results across runs; --from run re-exports the most recent
run's stored report, counters included.

Examples:
  # Export the current checkpoint as Excel
  restscrape export

  # Export everything ever collected, as CSV to stdout
  restscrape export --from db --format csv

  # Excel and CSV in one go, sharing a base name
  restscrape export --format xlsx,csv --output shibuya

  # Markdown report of the last completed run
  restscrape export --from run --format markdown --output report.md`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("format", "f", formatXLSX,
		"Output formats, comma separated: xlsx, csv, json, markdown")
	cmd.Flags().String("from", fromCheckpoint,
		"Data source: checkpoint (current run), db (all runs), or run (latest stored report)")
	cmd.Flags().StringP("output", "o", "",
		"Output path (default: generated name, or stdout for a single text format)")
	cmd.Flags().String("cache-dir", "",
		"Checkpoint directory (default: XDG cache directory)")
	cmd.Flags().String("db-dir", "",
		"Listing database directory (default: XDG data directory)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(os.Stderr, getVerboseFlag(cmd))

	report, err := loadReport(cmd.Context(), from, cacheDir, dbDir, logger)
	if err != nil {
		return err
	}

	paths, err := writeExport(splitFormats(format), output, report)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d listings to %s\n", len(report.Listings), path)
	}
	return nil
}

// splitFormats parses the --format value into individual format names.
func splitFormats(format string) []string {
	var formats []string
	for _, f := range strings.Split(format, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// loadReport builds a report from the requested source. Checkpoint and
// database listings are deduplicated; a stored run is returned as saved,
// counters included.
func loadReport(ctx context.Context, from, cacheDir, dbDir string, logger *slog.Logger) (*model.ScrapeReport, error) {
	if from == fromRun {
		db, err := openListingDB(dbDir)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		report, err := db.GetLatestScrapeRun(ctx)
		if err != nil {
			return nil, err
		}
		if report == nil {
			return nil, errors.New("no stored scrape runs")
		}
		return report, nil
	}

	listings, err := loadListings(ctx, from, cacheDir, dbDir, logger)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("no listings found in %s", from)
	}

	// Checkpoint chunks may span interrupted runs; dedup before export.
	listings, removed := dedup.Listings(listings)

	report := model.NewScrapeReport(nil)
	report.Listings = listings
	report.DuplicatesRemoved = removed
	return report, nil
}

// loadListings reads listings from the requested source.
func loadListings(ctx context.Context, from, cacheDir, dbDir string, logger *slog.Logger) ([]model.Listing, error) {
	switch from {
	case fromCheckpoint:
		if cacheDir == "" {
			cacheDir = config.XDGCacheDir()
		}
		store, err := checkpoint.NewStore(cacheDir, checkpoint.WithStoreLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		return store.LoadResults()
	case fromDB:
		db, err := openListingDB(dbDir)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.ListListings(ctx, 0)
	default:
		return nil, fmt.Errorf("unknown source %q (want checkpoint, db, or run)", from)
	}
}

// openListingDB opens the listing database read-style: it must already
// exist.
func openListingDB(dbDir string) (*database.ListingDB, error) {
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// writeExport writes the report in the requested formats. Several formats
// share one base name and are written through a MultiWriter. It returns
// the output paths; none means stdout was used.
func writeExport(formats []string, output string, report *model.ScrapeReport) ([]string, error) {
	if len(formats) == 0 {
		return nil, errors.New("no output format given")
	}
	for _, f := range formats {
		if _, ok := exportExts[f]; !ok {
			return nil, fmt.Errorf("unknown format %q (want xlsx, csv, json, or markdown)", f)
		}
	}

	// A single text format without an output path goes to stdout.
	if len(formats) == 1 && output == "" && formats[0] != formatXLSX {
		w := newExportWriter(formats[0], os.Stdout)
		if _, err := w.Write(report); err != nil {
			return nil, err
		}
		return nil, nil
	}

	base := output
	switch {
	case base == "":
		base = fmt.Sprintf("restaurant_list_%s", time.Now().Format("20060102_150405"))
	case len(formats) > 1:
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if dir := filepath.Dir(base); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var (
		paths   []string
		writers []export.Writer
		files   []*os.File
	)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, f := range formats {
		path := base
		if output == "" || len(formats) > 1 {
			path = base + exportExts[f]
		}

		file, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return nil, err
		}
		files = append(files, file)
		writers = append(writers, newExportWriter(f, file))
		paths = append(paths, path)
	}

	var w export.Writer = writers[0]
	if len(writers) > 1 {
		w = export.NewMultiWriter(writers...)
	}
	if _, err := w.Write(report); err != nil {
		return nil, err
	}
	return paths, nil
}

// newExportWriter builds the writer for a validated format name.
func newExportWriter(format string, out io.Writer) export.Writer {
	switch format {
	case formatCSV:
		return export.NewCSVWriter(out)
	case formatJSON:
		return export.NewJSONWriter(out, export.WithPrettyPrint())
	case formatMarkdown:
		return export.NewMarkdownWriter(out)
	default:
		return export.NewXLSXWriter(out)
	}
}
