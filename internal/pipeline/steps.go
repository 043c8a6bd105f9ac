package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/dedup"
	"github.com/Tohoso/restaurant-scraper/internal/hotpepper"
	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/tabelog"
)

// TabelogStep collects listings by scraping Tabelog.
type TabelogStep struct {
	scraper *tabelog.Scraper
	areas   []config.Area
	limit   int
}

// NewTabelogStep creates a Tabelog collection step. A limit of zero
// means unlimited.
func NewTabelogStep(scraper *tabelog.Scraper, areas []config.Area, limit int) *TabelogStep {
	return &TabelogStep{scraper: scraper, areas: areas, limit: limit}
}

// Name returns the step name.
func (s *TabelogStep) Name() string { return "tabelog" }

// Do scrapes the configured areas and appends the listings to the report.
func (s *TabelogStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	listings, err := s.scraper.Scrape(ctx, s.areas, s.limit)

	for _, l := range listings {
		report.Add(l)
	}

	stats := s.scraper.Stats()
	report.PagesFetched += stats.PagesFetched
	report.URLsSkipped += stats.URLsSkipped
	report.RateLimited += stats.RateLimitHits
	report.FetchErrors += stats.FetchErrors
	report.Dropped += stats.Dropped

	if err != nil {
		return fmt.Errorf("tabelog scrape: %w", err)
	}
	return nil
}

// HotPepperStep collects listings from the Hot Pepper gourmet API.
type HotPepperStep struct {
	client  *hotpepper.Client
	areas   []config.Area
	keyword string
	limit   int
	logger  *slog.Logger
}

// NewHotPepperStep creates a Hot Pepper collection step. A limit of zero
// means one API page (100 shops) per search point.
func NewHotPepperStep(client *hotpepper.Client, areas []config.Area, keyword string, limit int, logger *slog.Logger) *HotPepperStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HotPepperStep{client: client, areas: areas, keyword: keyword, limit: limit, logger: logger}
}

// Name returns the step name.
func (s *HotPepperStep) Name() string { return "hotpepper" }

// Do queries the search points covering each area and appends the
// converted listings to the report.
func (s *HotPepperStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	collected := 0

	for _, area := range s.areas {
		if s.limit > 0 && collected >= s.limit {
			break
		}

		for _, point := range config.HotPepperSearchPoints(area.Name) {
			remaining := 0
			if s.limit > 0 {
				remaining = s.limit - collected
				if remaining <= 0 {
					break
				}
			}

			shops, err := s.client.GetAll(ctx, hotpepper.SearchParams{
				Lat:     point.Lat,
				Lng:     point.Lng,
				Keyword: s.keyword,
			}, remaining)
			if err != nil {
				return fmt.Errorf("hot pepper search (%s): %w", area.Name, err)
			}

			for _, shop := range shops {
				l, ok := shop.Listing()
				if !ok {
					report.Dropped++
					continue
				}
				report.Add(l)
				collected++
			}

			s.logger.Info("hot pepper area done", "area", area.Name, "collected", collected)
		}
	}

	return nil
}

// ValidateStep drops listings that fail validation. Collection steps
// already validate their own output; this is the safety net for listings
// merged from checkpoints of older runs.
type ValidateStep struct{}

// NewValidateStep creates a validation step.
func NewValidateStep() *ValidateStep { return &ValidateStep{} }

// Name returns the step name.
func (s *ValidateStep) Name() string { return "validate" }

// Do filters out invalid listings, counting them as dropped.
func (s *ValidateStep) Do(_ context.Context, report *model.ScrapeReport) error {
	valid := report.Listings[:0]
	for _, l := range report.Listings {
		if err := l.Validate(); err != nil {
			report.Dropped++
			continue
		}
		valid = append(valid, l)
	}
	report.Listings = valid
	return nil
}

// DedupStep removes duplicate listings across sources.
type DedupStep struct{}

// NewDedupStep creates a dedup step.
func NewDedupStep() *DedupStep { return &DedupStep{} }

// Name returns the step name.
func (s *DedupStep) Name() string { return "dedup" }

// Do replaces the report's listings with the deduplicated set.
func (s *DedupStep) Do(_ context.Context, report *model.ScrapeReport) error {
	out, removed := dedup.Listings(report.Listings)
	report.Listings = out
	report.DuplicatesRemoved += removed
	return nil
}
