package tabelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/dedup"
	"github.com/Tohoso/restaurant-scraper/internal/fetch"
	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// DefaultBaseURL is the production Tabelog origin. Tests point this at a
// local server.
const DefaultBaseURL = "https://tabelog.com"

const (
	// defaultAreaPause is the wait between areas.
	defaultAreaPause = 5 * time.Second

	// rateLimitBreak is how many rate-limit errors within one area force
	// a move to the next area.
	rateLimitBreak = 5

	// rateLimitAreaPause is the extra wait after abandoning an area due
	// to rate limiting.
	rateLimitAreaPause = time.Minute
)

// Fetcher fetches one URL. Satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Checkpointer records scrape progress. Satisfied by *checkpoint.Store.
type Checkpointer interface {
	IsProcessed(url string) bool
	MarkProcessed(url string)
	Append(l model.Listing) error
}

// Freshness reports whether a listing for the URL was stored within the
// window. Satisfied by *database.ListingDB.
type Freshness interface {
	HasRecentListing(ctx context.Context, url string, window time.Duration) (bool, error)
}

// Stats holds counters accumulated over a scrape.
type Stats struct {
	// PagesFetched counts list and detail pages fetched.
	PagesFetched int

	// URLsSkipped counts detail URLs skipped because a checkpoint or the
	// listing database says they were fetched already.
	URLsSkipped int

	// Dropped counts detail pages rejected by validation (no shop name).
	Dropped int

	// RateLimitHits counts fetches rejected with a rate-limit error.
	RateLimitHits int

	// FetchErrors counts other failed fetches.
	FetchErrors int
}

// Scraper collects restaurant listings from Tabelog area by area.
// Within an area, detail pages are fetched concurrently up to the
// configured limit; the fetcher's politeness delay still spaces the
// requests out.
type Scraper struct {
	fetcher     Fetcher
	store       Checkpointer
	fresh       Freshness
	freshWindow time.Duration
	logger      *slog.Logger
	baseURL     string
	maxPages    int
	concurrency int
	areaPause   time.Duration

	mu    sync.Mutex
	stats Stats
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithBaseURL overrides the Tabelog origin. Used by tests.
func WithBaseURL(u string) ScraperOption {
	return func(s *Scraper) {
		s.baseURL = u
	}
}

// WithMaxPages sets the maximum list pages fetched per area.
func WithMaxPages(n int) ScraperOption {
	return func(s *Scraper) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithConcurrency sets how many detail pages are fetched at once.
func WithConcurrency(n int) ScraperOption {
	return func(s *Scraper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithAreaPause sets the wait between areas. Zero disables it.
func WithAreaPause(d time.Duration) ScraperOption {
	return func(s *Scraper) {
		s.areaPause = d
	}
}

// WithCheckpoint attaches a checkpoint store. Processed URLs are skipped
// and collected listings are appended as they arrive.
func WithCheckpoint(store Checkpointer) ScraperOption {
	return func(s *Scraper) {
		s.store = store
	}
}

// WithFreshness attaches a listing cache. Detail URLs with a stored row
// younger than the window are skipped without a fetch.
func WithFreshness(f Freshness, window time.Duration) ScraperOption {
	return func(s *Scraper) {
		if f != nil && window > 0 {
			s.fresh = f
			s.freshWindow = window
		}
	}
}

// WithScraperLogger sets the logger.
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScraper creates a Scraper using the given fetcher.
func NewScraper(fetcher Fetcher, opts ...ScraperOption) *Scraper {
	s := &Scraper{
		fetcher:     fetcher,
		logger:      slog.Default(),
		baseURL:     DefaultBaseURL,
		maxPages:    config.DefaultMaxPages,
		concurrency: config.DefaultConcurrency,
		areaPause:   defaultAreaPause,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// listURL builds a list page URL for an area code and page number.
func (s *Scraper) listURL(areaCode string, page int) string {
	return fmt.Sprintf("%s/tokyo/%s/rstLst/%d/", s.baseURL, areaCode, page)
}

// Scrape collects up to limit listings across the given areas, in order.
// Listings that fail validation are dropped, not returned. A cancelled
// context returns the listings collected so far along with the error.
func (s *Scraper) Scrape(ctx context.Context, areas []config.Area, limit int) ([]model.Listing, error) {
	var all []model.Listing

	for i, area := range areas {
		if limit > 0 && len(all) >= limit {
			break
		}

		remaining := 0
		if limit > 0 {
			remaining = limit - len(all)
		}

		s.logger.Info("scraping area", "area", area.Name, "code", area.Code)

		results, err := s.scrapeArea(ctx, area, remaining)
		all = append(all, results...)
		if err != nil {
			return all, err
		}

		s.logger.Info("area done", "area", area.Name, "collected", len(results), "total", len(all))

		if i < len(areas)-1 && s.areaPause > 0 {
			if err := sleepCtx(ctx, s.areaPause); err != nil {
				return all, err
			}
		}
	}

	return all, nil
}

// scrapeArea collects up to limit listings from one area: list pages
// first to gather detail URLs, then the detail pages concurrently.
// Results keep URL order regardless of fetch completion order.
func (s *Scraper) scrapeArea(ctx context.Context, area config.Area, limit int) ([]model.Listing, error) {
	urls, err := s.collectDetailURLs(ctx, area, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("detail URLs collected", "area", area.Name, "count", len(urls))

	slots := make([]*model.Listing, len(urls))
	var rateLimits atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, u := range urls {
		if s.skipKnown(ctx, u) {
			s.count(func(st *Stats) { st.URLsSkipped++ })
			continue
		}

		g.Go(func() error {
			// Once the break threshold is hit the area is abandoned;
			// queued URLs become no-ops.
			if int(rateLimits.Load()) >= rateLimitBreak {
				return nil
			}

			listing, err := s.scrapeDetail(gctx, u)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if errors.Is(err, fetch.ErrRateLimited) {
					s.count(func(st *Stats) { st.RateLimitHits++ })
					if int(rateLimits.Add(1)) == rateLimitBreak {
						s.logger.Warn("too many rate limits, moving to next area", "area", area.Name)
					}
					return nil
				}
				s.count(func(st *Stats) { st.FetchErrors++ })
				s.logger.Debug("detail fetch failed", "url", u, "error", err)
				return nil
			}

			if listing == nil {
				// Parsed but invalid (no shop name).
				return nil
			}

			slots[i] = listing

			if s.store != nil {
				if err := s.store.Append(*listing); err != nil {
					return fmt.Errorf("checkpoint append: %w", err)
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()

	results := make([]model.Listing, 0, len(urls))
	for _, l := range slots {
		if l != nil {
			results = append(results, *l)
		}
	}
	if waitErr != nil {
		return results, waitErr
	}

	if int(rateLimits.Load()) >= rateLimitBreak {
		// The abandonment pause already backs this area off; start the
		// next area without the accumulated penalty.
		if rr, ok := s.fetcher.(interface{ ResetRateLimitCount() }); ok {
			rr.ResetRateLimitCount()
		}
		if err := sleepCtx(ctx, rateLimitAreaPause); err != nil {
			return results, err
		}
	}

	return results, nil
}

// skipKnown reports whether a detail URL was already handled, either by
// this run's checkpoint or by a fresh row in the listing database.
func (s *Scraper) skipKnown(ctx context.Context, u string) bool {
	if s.store != nil && s.store.IsProcessed(u) {
		return true
	}
	if s.fresh != nil {
		recent, err := s.fresh.HasRecentListing(ctx, u, s.freshWindow)
		if err != nil {
			s.logger.Debug("freshness check failed", "url", u, "error", err)
			return false
		}
		return recent
	}
	return false
}

// collectDetailURLs walks an area's list pages until maxPages, an empty
// page, or the limit is reached.
func (s *Scraper) collectDetailURLs(ctx context.Context, area config.Area, limit int) ([]string, error) {
	var urls []string

	for page := 1; page <= s.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		if limit > 0 && len(urls) >= limit {
			break
		}

		listURL := s.listURL(area.Code, page)
		body, err := s.fetcher.Fetch(ctx, listURL)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return urls, err
			}
			if errors.Is(err, fetch.ErrRateLimited) {
				s.count(func(st *Stats) { st.RateLimitHits++ })
			} else {
				s.count(func(st *Stats) { st.FetchErrors++ })
			}
			s.logger.Debug("list page fetch failed", "url", listURL, "error", err)
			continue
		}
		s.count(func(st *Stats) { st.PagesFetched++ })

		pageURLs, err := ParseListPage(s.baseURL, bytes.NewReader(body))
		if err != nil {
			return urls, fmt.Errorf("parse list page: %w", err)
		}
		if len(pageURLs) == 0 {
			s.logger.Debug("no more listings", "area", area.Name, "page", page)
			break
		}

		// List pages repeat promoted shops across pages.
		urls = dedup.ByURL(append(urls, pageURLs...))
	}

	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	return urls, nil
}

// scrapeDetail fetches and parses one detail page. Returns (nil, nil)
// when the page parsed but had no shop name; such pages are still marked
// processed so resumes do not refetch them.
func (s *Scraper) scrapeDetail(ctx context.Context, u string) (*model.Listing, error) {
	body, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	s.count(func(st *Stats) { st.PagesFetched++ })

	listing, err := ParseDetail(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	listing.URL = u
	listing.Source = model.SourceTabelog
	listing.ScrapedAt = time.Now()

	if s.store != nil {
		s.store.MarkProcessed(u)
	}

	if err := listing.Validate(); err != nil {
		s.count(func(st *Stats) { st.Dropped++ })
		s.logger.Warn("listing dropped", "url", u, "error", err)
		return nil, nil
	}

	return &listing, nil
}

// count applies a mutation to the stats under the lock.
func (s *Scraper) count(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

// Stats returns a snapshot of the scrape counters.
func (s *Scraper) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
