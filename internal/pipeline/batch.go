package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor runs one pipeline per area concurrently. The shared
// fetcher still bounds the total request rate, so batching areas only
// overlaps the per-area waits, it never multiplies the load on the site.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each area, so state
	// never leaks between areas.
	pipelineFactory func(area config.Area) *Pipeline

	// concurrency is the maximum number of areas processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports, one per area, in input order.
	results []*model.ScrapeReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of concurrently processed
// areas. Default is 3.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. The factory is called
// once per area.
func NewBatchProcessor(pipelineFactory func(area config.Area) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     3,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessAreas runs the pipelines for all areas, at most concurrency at a
// time. Returns all reports in input order, even for areas that failed;
// a failed area's error lives in its report. The error return indicates
// cancellation.
func (bp *BatchProcessor) ProcessAreas(ctx context.Context, areas []config.Area) ([]*model.ScrapeReport, error) {
	bp.logger.Info("starting batch processing",
		"areas", len(areas),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.ScrapeReport, len(areas))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, area := range areas {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("processing area",
				"area", area.Name,
				"index", i+1,
				"total", len(areas),
			)

			report := model.NewScrapeReport([]string{area.Name})

			p := bp.pipelineFactory(area)
			err := p.Execute(ctx, report)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("area failed",
					"area", area.Name,
					"error", err,
				)
				// The error is recorded in the report; keep processing
				// the other areas.
				return nil
			}

			bp.logger.Info("area completed",
				"area", area.Name,
				"listings", len(report.Listings),
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"areas", len(areas),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// MergeReports combines per-area reports into a single report: listings
// are concatenated and counters summed. The earliest start time wins.
func MergeReports(reports []*model.ScrapeReport) *model.ScrapeReport {
	var areas []string
	for _, r := range reports {
		if r != nil {
			areas = append(areas, r.Areas...)
		}
	}

	merged := model.NewScrapeReport(areas)
	for _, r := range reports {
		if r == nil {
			continue
		}
		if r.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = r.StartedAt
		}
		merged.Listings = append(merged.Listings, r.Listings...)
		merged.PagesFetched += r.PagesFetched
		merged.URLsSkipped += r.URLsSkipped
		merged.RateLimited += r.RateLimited
		merged.FetchErrors += r.FetchErrors
		merged.Dropped += r.Dropped
		merged.DuplicatesRemoved += r.DuplicatesRemoved
		merged.PerformedSteps = append(merged.PerformedSteps, r.PerformedSteps...)
		if r.TimedOut {
			merged.TimedOut = true
		}
		if r.Error != nil && merged.Error == nil {
			merged.Error = r.Error
			merged.ErrorMessage = r.ErrorMessage
		}
	}

	return merged
}
