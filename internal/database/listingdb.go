package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// ListingDB provides SQLite-based storage for listings and run history.
// A single database file holds all runs, which keeps cross-run queries
// (cache hits, per-source counts) simple.
type ListingDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ListingDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ListingDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ListingDB, error) {
	dbPath := filepath.Join(dbDir, "restscrape.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &ListingDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ldb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ldb, nil
}

// Close closes the database connection.
func (ldb *ListingDB) Close() error {
	return ldb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (ldb *ListingDB) createTables() error {
	schema := `
	-- Listings cache collected shops across runs, keyed by URL
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		genre TEXT,
		station TEXT,
		open_time TEXT,
		source TEXT NOT NULL,
		url TEXT NOT NULL,
		scraped_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(url)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_name ON listings(name);
	CREATE INDEX IF NOT EXISTS idx_listings_phone ON listings(phone);
	CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source);
	CREATE INDEX IF NOT EXISTS idx_listings_scraped ON listings(scraped_at);

	-- Scrape runs store each run's full report as JSON
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		areas TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		listing_count INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON scrape_runs(finished_at);
	`

	_, err := ldb.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertListing inserts a listing or refreshes the existing row with the
// same URL.
func (ldb *ListingDB) UpsertListing(ctx context.Context, l *model.Listing) error {
	if l.URL == "" {
		return errors.New("listing has no URL")
	}

	query := `
	INSERT INTO listings (name, phone, address, genre, station, open_time, source, url, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		name = excluded.name,
		phone = excluded.phone,
		address = excluded.address,
		genre = excluded.genre,
		station = excluded.station,
		open_time = excluded.open_time,
		source = excluded.source,
		scraped_at = excluded.scraped_at
	`

	_, err := ldb.db.ExecContext(ctx, query,
		l.Name,
		l.Phone,
		l.Address,
		l.Genre,
		l.Station,
		l.OpenTime,
		string(l.Source),
		l.URL,
		l.ScrapedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}

	return nil
}

// UpsertListings inserts or refreshes many listings in one transaction.
// Listings without a URL are skipped.
func (ldb *ListingDB) UpsertListings(ctx context.Context, listings []model.Listing) (int, error) {
	tx, err := ldb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO listings (name, phone, address, genre, station, open_time, source, url, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		name = excluded.name,
		phone = excluded.phone,
		address = excluded.address,
		genre = excluded.genre,
		station = excluded.station,
		open_time = excluded.open_time,
		source = excluded.source,
		scraped_at = excluded.scraped_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for i := range listings {
		l := &listings[i]
		if l.URL == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			l.Name, l.Phone, l.Address, l.Genre, l.Station, l.OpenTime,
			string(l.Source), l.URL,
			l.ScrapedAt.UTC().Format("2006-01-02 15:04:05"),
		); err != nil {
			return saved, fmt.Errorf("failed to upsert listing %s: %w", l.URL, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return saved, fmt.Errorf("failed to commit: %w", err)
	}
	return saved, nil
}

// GetListingByURL retrieves a listing by URL. Returns nil when not found.
func (ldb *ListingDB) GetListingByURL(ctx context.Context, url string) (*model.Listing, error) {
	query := `
	SELECT name, phone, address, genre, station, open_time, source, url, scraped_at
	FROM listings
	WHERE url = ?
	`

	var l model.Listing
	var source, scrapedAt string

	err := ldb.db.QueryRowContext(ctx, query, url).Scan(
		&l.Name,
		&l.Phone,
		&l.Address,
		&l.Genre,
		&l.Station,
		&l.OpenTime,
		&source,
		&l.URL,
		&scrapedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	l.Source = model.Source(source)
	l.ScrapedAt = parseTimestamp(scrapedAt)

	return &l, nil
}

// HasRecentListing checks if a URL was scraped within the specified duration.
// Used to skip shops whose cached data is still fresh.
func (ldb *ListingDB) HasRecentListing(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM listings
	WHERE url = ? AND scraped_at > datetime('now', ?)
	`

	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := ldb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent listing: %w", err)
	}

	return count > 0, nil
}

// ListListings returns all stored listings, newest scrape first. A limit
// of zero means no limit.
func (ldb *ListingDB) ListListings(ctx context.Context, limit int) ([]model.Listing, error) {
	query := `
	SELECT name, phone, address, genre, station, open_time, source, url, scraped_at
	FROM listings
	ORDER BY scraped_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		var source, scrapedAt string

		if err := rows.Scan(
			&l.Name, &l.Phone, &l.Address, &l.Genre, &l.Station, &l.OpenTime,
			&source, &l.URL, &scrapedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		l.Source = model.Source(source)
		l.ScrapedAt = parseTimestamp(scrapedAt)
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// CountBySource returns the number of stored listings per source.
func (ldb *ListingDB) CountBySource(ctx context.Context) (map[model.Source]int, error) {
	rows, err := ldb.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM listings GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Source]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.Source(source)] = count
	}

	return counts, rows.Err()
}

// SaveScrapeRun stores a completed run's report as JSON.
func (ldb *ListingDB) SaveScrapeRun(ctx context.Context, report *model.ScrapeReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO scrape_runs (areas, started_at, listing_count, report_json)
	VALUES (?, ?, ?, ?)
	`

	_, err = ldb.db.ExecContext(ctx, query,
		strings.Join(report.Areas, ","),
		report.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		len(report.Listings),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save scrape run: %w", err)
	}

	return nil
}

// GetLatestScrapeRun retrieves the most recent run's report.
// Returns nil when no runs are stored.
func (ldb *ListingDB) GetLatestScrapeRun(ctx context.Context) (*model.ScrapeReport, error) {
	query := `
	SELECT report_json FROM scrape_runs
	ORDER BY finished_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := ldb.db.QueryRowContext(ctx, query).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}

	var report model.ScrapeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// RunSummary contains summary information about a stored run.
type RunSummary struct {
	// ID is the run's database ID.
	ID int64

	// Areas are the area names the run covered.
	Areas []string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// ListingCount is how many listings the run collected.
	ListingCount int
}

// ListScrapeRuns returns summaries of all stored runs, newest first.
func (ldb *ListingDB) ListScrapeRuns(ctx context.Context) ([]RunSummary, error) {
	query := `
	SELECT id, areas, started_at, finished_at, listing_count
	FROM scrape_runs
	ORDER BY finished_at DESC, id DESC
	`

	rows, err := ldb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var areas, startedAt, finishedAt string

		if err := rows.Scan(&run.ID, &areas, &startedAt, &finishedAt, &run.ListingCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if areas != "" {
			run.Areas = strings.Split(areas, ",")
		}
		run.StartedAt = parseTimestamp(startedAt)
		run.FinishedAt = parseTimestamp(finishedAt)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
