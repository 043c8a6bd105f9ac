// Package database provides SQLite-based storage for collected listings
// and scrape run history.
//
// The listing table acts as a local cache across runs: listings are
// upserted by URL, so re-scraping a shop refreshes its row instead of
// duplicating it. Run history stores each scrape's report as JSON for
// later inspection and export.
package database
