// Package pipeline orchestrates a scrape run as a sequence of steps.
//
// Each step receives the accumulating scrape report: collection steps
// append listings, the validation step drops invalid ones, the dedup
// step removes cross-source duplicates. Steps run in order and share no
// state beyond the report, which keeps each source independently
// testable and lets a run mix sources freely.
package pipeline
