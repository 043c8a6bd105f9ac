// Package main provides the entry point for the restscrape CLI.
//
// restscrape collects restaurant listings from Tabelog pages and the
// Hot Pepper gourmet API, normalizes and deduplicates them, and exports
// the result as an Excel workbook.
//
// Usage:
//
//	restscrape scrape --areas 渋谷 --limit 100
//	restscrape export --format csv
//
// See --help for all available options.
package main

// main is the entry point for restscrape.
func main() {
	Execute()
}
