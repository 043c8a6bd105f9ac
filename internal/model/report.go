package model

import "time"

// ScrapeReport accumulates the results and counters of one scrape run.
// Pipeline steps append listings and update the counters as they execute.
// Counters are only mutated from pipeline steps, which run sequentially,
// so no locking is needed.
type ScrapeReport struct {
	// Areas are the area names or codes this run targeted.
	Areas []string `json:"areas"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Listings are the accumulated restaurant records.
	Listings []Listing `json:"listings"`

	// PagesFetched counts successfully fetched pages (list, detail, and
	// API pages combined).
	PagesFetched int `json:"pages_fetched"`

	// URLsSkipped counts detail URLs skipped because a checkpoint already
	// recorded them as processed.
	URLsSkipped int `json:"urls_skipped"`

	// RateLimited counts HTTP 429 responses observed during the run.
	RateLimited int `json:"rate_limited"`

	// FetchErrors counts network failures and non-200 responses.
	FetchErrors int `json:"fetch_errors"`

	// Dropped counts listings removed by validation (missing name).
	Dropped int `json:"dropped"`

	// DuplicatesRemoved counts listings removed by deduplication.
	DuplicatesRemoved int `json:"duplicates_removed"`

	// TimedOut is set when the run was cancelled before completing.
	TimedOut bool `json:"timed_out"`

	// ErrorMessage holds the first step error, if any.
	ErrorMessage string `json:"error_message,omitempty"`

	// Error is the underlying error. Not serialized.
	Error error `json:"-"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`
}

// NewScrapeReport creates an empty report for the given areas.
func NewScrapeReport(areas []string) *ScrapeReport {
	return &ScrapeReport{
		Areas:     areas,
		StartedAt: time.Now(),
		Listings:  make([]Listing, 0),
	}
}

// Add appends a listing to the report.
func (r *ScrapeReport) Add(l Listing) {
	r.Listings = append(r.Listings, l)
}

// Summary condenses the report into the counts shown on the summary sheet.
func (r *ScrapeReport) Summary() Summary {
	s := Summary{
		Total:     len(r.Listings),
		CreatedAt: time.Now(),
	}
	for i := range r.Listings {
		l := &r.Listings[i]
		if l.Phone != "" {
			s.WithPhone++
		}
		if l.Address != "" {
			s.WithAddress++
		}
		if l.Genre != "" {
			s.WithGenre++
		}
		if l.Station != "" {
			s.WithStation++
		}
		switch l.Source {
		case SourceTabelog:
			s.TabelogCount++
		case SourceHotPepper:
			s.HotPepperCount++
		}
	}
	return s
}

// Summary holds the data-quality counts for a set of listings.
type Summary struct {
	// Total is the number of listings after validation and dedup.
	Total int `json:"total"`

	// WithPhone counts listings with a phone number.
	WithPhone int `json:"with_phone"`

	// WithAddress counts listings with an address.
	WithAddress int `json:"with_address"`

	// WithGenre counts listings with a genre.
	WithGenre int `json:"with_genre"`

	// WithStation counts listings with a nearest station.
	WithStation int `json:"with_station"`

	// TabelogCount counts listings from Tabelog.
	TabelogCount int `json:"tabelog_count"`

	// HotPepperCount counts listings from the Hot Pepper API.
	HotPepperCount int `json:"hotpepper_count"`

	// CreatedAt is when the summary was generated.
	CreatedAt time.Time `json:"created_at"`
}
