package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tohoso/restaurant-scraper/internal/checkpoint"
	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/database"
	"github.com/Tohoso/restaurant-scraper/internal/export"
	"github.com/Tohoso/restaurant-scraper/internal/fetch"
	"github.com/Tohoso/restaurant-scraper/internal/hotpepper"
	"github.com/Tohoso/restaurant-scraper/internal/log"
	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/pipeline"
	"github.com/Tohoso/restaurant-scraper/internal/tabelog"
)

// hotPepperKeyEnv is consulted when --hotpepper-key is not given.
const hotPepperKeyEnv = "HOTPEPPER_API_KEY"

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect restaurant listings from Tabelog and Hot Pepper",
		Long: `Scrape collects restaurant listings for the given Tokyo areas.

Tabelog list pages are paginated and each detail page is fetched with
an adaptive politeness delay. Processed URLs are checkpointed, so an
interrupted run picks up where it stopped. The Hot Pepper gourmet API
is queried per area when an API key is configured.

Examples:
  # Scrape 渋谷 with defaults (100 listings)
  restscrape scrape --areas 渋谷

  # Several areas, higher limit
  restscrape scrape --areas 渋谷,新宿・代々木・大久保 --limit 500

  # All known Tokyo areas
  restscrape scrape --limit 1000

  # Both sources, custom output file
  restscrape scrape --areas 銀座・新橋・有楽町 --source both \
    --hotpepper-key YOUR_KEY --output ginza.xlsx

  # Start over, discarding the existing checkpoint
  restscrape scrape --areas 渋谷 --fresh

Configuration file (.restscrape) example:
  defaults:
    delayMinSeconds: 2
  sites:
    tabelog.com:
      maxPages: 5
      headers:
        Accept-Language: "ja"`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringSliceP("areas", "a", nil,
		"Target area names or Tabelog area codes (default: all Tokyo areas)")
	cmd.Flags().IntP("limit", "l", config.DefaultLimit,
		"Maximum number of listings to collect")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum list pages to fetch per area")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of in-flight HTTP requests")
	cmd.Flags().Duration("delay-min", config.DefaultDelayMin,
		"Minimum politeness delay between requests")
	cmd.Flags().Duration("delay-max", config.DefaultDelayMax,
		"Initial politeness delay; the adaptive delay decays toward the minimum")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request network timeout")
	cmd.Flags().StringP("source", "s", config.SourceTabelog,
		"Data sources: tabelog, hotpepper, or both")
	cmd.Flags().StringP("hotpepper-key", "k", "",
		"Hot Pepper gourmet API key (default: $"+hotPepperKeyEnv+")")
	cmd.Flags().String("keyword", "",
		"Optional search keyword for the Hot Pepper API")
	cmd.Flags().StringP("output", "o", "",
		"Excel output path (default: restaurant_list_<timestamp>.xlsx)")
	cmd.Flags().Bool("no-excel", false,
		"Skip Excel output; results still land in checkpoints and the database")
	cmd.Flags().String("cache-dir", "",
		"Checkpoint directory (default: XDG cache directory)")
	cmd.Flags().Bool("no-db", false,
		"Skip saving listings to the local database")
	cmd.Flags().Bool("fresh", false,
		"Discard the existing checkpoint instead of resuming from it")
	cmd.Flags().Duration("skip-recent", config.DefaultFreshWindow,
		"Skip URLs with a database row younger than this (0 disables)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .restscrape in current or home directory)")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Structured logging with API key masking.
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Graceful shutdown on interrupt: the checkpoint is flushed below even
	// when the context is cancelled mid-run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScrape(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Areas, err = cmd.Flags().GetStringSlice("areas")
	if err != nil {
		return nil, err
	}

	cfg.Limit, err = cmd.Flags().GetInt("limit")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.DelayMin, err = cmd.Flags().GetDuration("delay-min")
	if err != nil {
		return nil, err
	}

	cfg.DelayMax, err = cmd.Flags().GetDuration("delay-max")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Source, err = cmd.Flags().GetString("source")
	if err != nil {
		return nil, err
	}

	cfg.HotPepperKey, err = cmd.Flags().GetString("hotpepper-key")
	if err != nil {
		return nil, err
	}
	if cfg.HotPepperKey == "" {
		cfg.HotPepperKey = os.Getenv(hotPepperKeyEnv)
	}

	cfg.Keyword, err = cmd.Flags().GetString("keyword")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.NoExcel, err = cmd.Flags().GetBool("no-excel")
	if err != nil {
		return nil, err
	}

	cfg.CacheDir, err = cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	cfg.Fresh, err = cmd.Flags().GetBool("fresh")
	if err != nil {
		return nil, err
	}

	cfg.FreshWindow, err = cmd.Flags().GetDuration("skip-recent")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Load per-site overrides from the config file.
	// If the user explicitly specified a config file path, error if not
	// found. If no path was specified, silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	return cfg, nil
}

// runScrape executes the scrape run.
func runScrape(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	areas, err := config.ResolveAreas(cfg.Areas)
	if err != nil {
		return err
	}
	areaNames := make([]string, 0, len(areas))
	for _, a := range areas {
		areaNames = append(areaNames, a.Name)
	}

	logger.Info("starting scrape",
		"areas", areaNames,
		"limit", cfg.Limit,
		"source", cfg.Source,
	)

	// Checkpoint store: resume by default, discard with --fresh.
	store, err := checkpoint.NewStore(cfg.EffectiveCacheDir(),
		checkpoint.WithChunkSize(cfg.ChunkSize),
		checkpoint.WithSaveInterval(cfg.SaveInterval),
		checkpoint.WithStoreLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	if cfg.Fresh {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		logger.Info("checkpoint cleared", "dir", cfg.EffectiveCacheDir())
	} else {
		if err := store.Load(); err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if n := store.ProcessedCount(); n > 0 {
			fmt.Printf("Resuming: %d URLs already processed\n", n)
		}
	}

	fetcher := newFetcher(cfg, store, logger)

	// The listing database is opened up front so that fresh rows can
	// short-circuit detail fetches; the same handle persists the results
	// at the end. A broken database degrades to a plain scrape.
	var db *database.ListingDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.EffectiveDBDir(), database.DefaultOptions())
		if err != nil {
			logger.Warn("listing database unavailable, continuing without it", "error", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	useTabelog := cfg.Source == config.SourceTabelog || cfg.Source == config.SourceBoth
	useHotPepper := cfg.Source == config.SourceHotPepper || cfg.Source == config.SourceBoth

	if useHotPepper && cfg.HotPepperKey == "" {
		// Reachable only with --source both; hotpepper alone fails validation.
		logger.Warn("no Hot Pepper API key configured; collecting from Tabelog only")
		fmt.Fprintln(os.Stderr, "Warning: no Hot Pepper API key, skipping the API source")
		useHotPepper = false
	}

	var hpClient *hotpepper.Client
	if useHotPepper {
		hpClient, err = hotpepper.NewClient(cfg.HotPepperKey,
			hotpepper.WithClientLogger(logger),
		)
		if err != nil {
			return err
		}
	}

	report := model.NewScrapeReport(areaNames)

	fmt.Printf("Scraping %d area(s)...\n", len(areas))
	startTime := time.Now()

	var execErr error
	switch {
	case useTabelog && len(areas) > 1:
		// Multiple areas run as a concurrent batch. Each area gets its
		// own pipeline and scraper; the shared fetcher still bounds the
		// total request rate.
		perArea := (cfg.Limit + len(areas) - 1) / len(areas)
		factory := func(area config.Area) *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			scraper := newTabelogScraper(cfg, fetcher, store, db, logger)
			p.AddStep(pipeline.NewTabelogStep(scraper, []config.Area{area}, perArea))
			return p
		}
		bp := pipeline.NewBatchProcessor(factory, pipeline.WithBatchLogger(logger))
		reports, err := bp.ProcessAreas(ctx, areas)
		report = pipeline.MergeReports(reports)
		if cfg.Limit > 0 && len(report.Listings) > cfg.Limit {
			report.Listings = report.Listings[:cfg.Limit]
		}
		execErr = err
	case useTabelog:
		p := pipeline.New(pipeline.WithLogger(logger))
		scraper := newTabelogScraper(cfg, fetcher, store, db, logger)
		p.AddStep(pipeline.NewTabelogStep(scraper, areas, cfg.Limit))
		execErr = p.Execute(ctx, report)
	}

	if execErr == nil {
		post := pipeline.New(pipeline.WithLogger(logger))
		if hpClient != nil {
			post.AddStep(pipeline.NewHotPepperStep(hpClient, areas, cfg.Keyword, cfg.Limit, logger))
		}
		post.AddStep(pipeline.NewValidateStep())
		post.AddStep(pipeline.NewDedupStep())
		execErr = post.Execute(ctx, report)
	}
	if execErr != nil {
		logger.Error("scrape stopped early", "error", execErr)
	}

	// Persist the checkpoint even after cancellation so the next run
	// resumes instead of re-fetching.
	store.SetDelayState(fetcher.Delay(), fetcher.RateLimitCount())
	if err := store.Flush(); err != nil {
		logger.Error("failed to flush checkpoint", "error", err)
	}
	if err := store.SaveProgress(); err != nil {
		logger.Error("failed to save progress", "error", err)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Collected %d listings in %s\n\n", len(report.Listings), elapsed.Round(time.Second))

	if db != nil {
		// Partial results are still worth keeping after an interrupt.
		if err := saveToDatabase(context.WithoutCancel(ctx), db, report, logger); err != nil {
			logger.Error("failed to save to database", "error", err)
		}
	}

	if !cfg.NoExcel && len(report.Listings) > 0 {
		path, err := writeWorkbook(cfg, report)
		if err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		fmt.Printf("Excel file written: %s\n", path)
	}

	printStatistics(report)

	if report.TimedOut {
		fmt.Fprintln(os.Stderr, "Run was interrupted; partial results were saved. Re-run to resume.")
	}
	return execErr
}

// newFetcher builds the rate-limited fetcher, applying per-site overrides
// from the config file and the delay state from a previous run.
func newFetcher(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger) *fetch.Fetcher {
	siteConfig := cfg.SiteConfigs.GetSiteConfig("tabelog.com")

	delayMin := cfg.DelayMin
	if siteConfig.DelayMinSeconds > 0 {
		delayMin = time.Duration(siteConfig.DelayMinSeconds * float64(time.Second))
	}
	delayMax := cfg.DelayMax
	if siteConfig.DelayMaxSeconds > 0 {
		delayMax = time.Duration(siteConfig.DelayMaxSeconds * float64(time.Second))
	}

	opts := []fetch.Option{
		fetch.WithConcurrency(cfg.Concurrency),
		fetch.WithDelayBounds(delayMin, delayMax),
		fetch.WithInitialDelay(delayMax),
		fetch.WithLogger(logger),
	}
	if len(siteConfig.UserAgents) > 0 {
		opts = append(opts, fetch.WithUserAgents(siteConfig.UserAgents))
	}
	if len(siteConfig.Headers) > 0 {
		opts = append(opts, fetch.WithHeaders(siteConfig.Headers))
	}

	fetcher := fetch.NewFetcher(&http.Client{Timeout: cfg.Timeout}, opts...)

	// Carry the adaptive delay across runs so a resumed run does not
	// hammer a site that was rate limiting the previous one.
	if delay, rateLimitCount := store.DelayState(); delay > 0 {
		fetcher.SetDelayState(delay, rateLimitCount)
	}

	return fetcher
}

// newTabelogScraper builds a scraper sharing the run's fetcher and
// checkpoint store. Batch mode calls this once per area, so each
// scraper's stats stay per-area.
func newTabelogScraper(cfg *config.Config, fetcher *fetch.Fetcher, store *checkpoint.Store, db *database.ListingDB, logger *slog.Logger) *tabelog.Scraper {
	siteConfig := cfg.SiteConfigs.GetSiteConfig("tabelog.com")
	maxPages := cfg.MaxPages
	if siteConfig.MaxPages > 0 {
		maxPages = siteConfig.MaxPages
	}

	opts := []tabelog.ScraperOption{
		tabelog.WithMaxPages(maxPages),
		tabelog.WithConcurrency(cfg.Concurrency),
		tabelog.WithCheckpoint(store),
		tabelog.WithScraperLogger(logger),
	}
	if db != nil && cfg.FreshWindow > 0 {
		opts = append(opts, tabelog.WithFreshness(db, cfg.FreshWindow))
	}

	return tabelog.NewScraper(fetcher, opts...)
}

// saveToDatabase upserts the collected listings and records the run.
func saveToDatabase(ctx context.Context, db *database.ListingDB, report *model.ScrapeReport, logger *slog.Logger) error {
	saved, err := db.UpsertListings(ctx, report.Listings)
	if err != nil {
		return err
	}
	if err := db.SaveScrapeRun(ctx, report); err != nil {
		return err
	}

	logger.Info("listings saved to database", "saved", saved)
	return nil
}

// writeWorkbook writes the Excel output and returns the file path.
func writeWorkbook(cfg *config.Config, report *model.ScrapeReport) (string, error) {
	path := cfg.OutputFile
	if path == "" {
		path = fmt.Sprintf("restaurant_list_%s.xlsx", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := export.NewXLSXWriter(f).Write(report); err != nil {
		return "", err
	}
	return path, nil
}

// printStatistics prints the data-quality summary to stdout.
func printStatistics(report *model.ScrapeReport) {
	s := report.Summary()

	fmt.Println("==================================================")
	fmt.Println("データ品質統計")
	fmt.Println("==================================================")
	fmt.Printf("総件数:         %d\n", s.Total)
	fmt.Printf("電話番号あり:   %d\n", s.WithPhone)
	fmt.Printf("住所あり:       %d\n", s.WithAddress)
	fmt.Printf("ジャンルあり:   %d\n", s.WithGenre)
	fmt.Printf("最寄り駅あり:   %d\n", s.WithStation)
	fmt.Printf("食べログ:       %d\n", s.TabelogCount)
	fmt.Printf("ホットペッパー: %d\n", s.HotPepperCount)
	fmt.Println("--------------------------------------------------")
	fmt.Printf("取得ページ数:   %d\n", report.PagesFetched)
	fmt.Printf("スキップURL数:  %d\n", report.URLsSkipped)
	fmt.Printf("レート制限回数: %d\n", report.RateLimited)
	fmt.Printf("重複除去件数:   %d\n", report.DuplicatesRemoved)
	fmt.Println("==================================================")
}
