// Package model defines the core data structures for restaurant-scraper.
//
// The central type is Listing, one scraped restaurant record. A ScrapeReport
// accumulates listings and counters over a run and is passed through the
// pipeline steps. Summary condenses a report into the counts shown on the
// spreadsheet summary sheet.
package model
