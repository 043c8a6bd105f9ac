package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The delay and back-off values mirror what proved workable against
// Tabelog's rate limiting in long-running collection runs.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "restscrape"

	// DefaultTimeout is the per-request network timeout. Tabelog pages
	// are small; 30 seconds is generous even on slow links.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency bounds in-flight requests. Ten keeps throughput
	// reasonable without hammering the site when the adaptive delay is low.
	DefaultConcurrency = 10

	// DefaultDelayMin and DefaultDelayMax bound the randomized politeness
	// sleep before each request. The adaptive delay starts at DelayMax
	// and decays toward DelayMin after sustained success.
	DefaultDelayMin = 1 * time.Second
	DefaultDelayMax = 3 * time.Second

	// DefaultMaxPages is the maximum list pages fetched per area.
	// Tabelog paginates at 20 listings per page.
	DefaultMaxPages = 10

	// DefaultLimit is the maximum listings collected in one run.
	DefaultLimit = 100

	// DefaultSaveInterval is how many accumulated results trigger a
	// checkpoint write. Low enough that an interrupted run loses little.
	DefaultSaveInterval = 10

	// DefaultChunkSize is how many results accumulate in memory before
	// they are flushed to a chunked results file and cleared.
	DefaultChunkSize = 1000

	// DefaultFreshWindow is how long a stored listing counts as fresh.
	// URLs with a database row younger than this are not refetched.
	DefaultFreshWindow = 24 * time.Hour

	// DefaultUserAgent identifies the scraper when no rotation pool is
	// configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultMaxBodySize limits the response body size read per page.
	// 5MB is far above any real listing page and prevents memory
	// exhaustion from unexpected responses.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// Data sources selectable via the --source flag.
const (
	// SourceTabelog scrapes Tabelog HTML only.
	SourceTabelog = "tabelog"

	// SourceHotPepper queries the Hot Pepper gourmet API only.
	SourceHotPepper = "hotpepper"

	// SourceBoth collects from both and deduplicates across them.
	SourceBoth = "both"
)

// Config holds all options for a scrape run. It is populated from CLI
// flags and passed through the application by value reference rather than
// global state.
type Config struct {
	// Areas are the target area names or Tabelog area codes (A1301...).
	// Empty means all known Tokyo areas.
	Areas []string

	// Limit is the maximum number of listings to collect this run.
	Limit int

	// MaxPages is the maximum list pages to fetch per area.
	MaxPages int

	// Concurrency bounds the number of in-flight HTTP requests.
	Concurrency int

	// DelayMin and DelayMax bound the randomized delay before each request.
	DelayMin time.Duration
	DelayMax time.Duration

	// Timeout is the per-request network timeout.
	Timeout time.Duration

	// Source selects the data sources: tabelog, hotpepper, or both.
	Source string

	// HotPepperKey is the Hot Pepper gourmet API key. Required when the
	// source includes hotpepper.
	HotPepperKey string

	// Keyword is an optional search keyword for the Hot Pepper API.
	Keyword string

	// OutputFile is the spreadsheet output path. Empty means a generated
	// name in the current directory.
	OutputFile string

	// NoExcel skips spreadsheet output; results still land in the
	// checkpoint files and listing database.
	NoExcel bool

	// CacheDir is where checkpoint files are written.
	// Empty means the XDG cache directory.
	CacheDir string

	// DBDir is the directory for the SQLite listing database.
	// Empty means the XDG data directory.
	DBDir string

	// SaveToDB indicates whether collected listings are persisted to the
	// listing database.
	SaveToDB bool

	// Fresh discards any existing checkpoint instead of resuming from it.
	Fresh bool

	// FreshWindow is how long a stored listing counts as fresh; URLs with
	// a database row younger than this are skipped. Zero disables the
	// check. Ignored when SaveToDB is false.
	FreshWindow time.Duration

	// SaveInterval is how many results trigger a checkpoint write.
	SaveInterval int

	// ChunkSize is how many results accumulate before a chunk flush.
	ChunkSize int

	// Verbose enables debug-level logging.
	Verbose bool

	// ConfigFilePath is the path to the .restscrape config file.
	// Empty triggers the default search (current dir, then home).
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so callers must start from this constructor rather than a
// zero value.
func NewConfig() *Config {
	return &Config{
		Limit:        DefaultLimit,
		MaxPages:     DefaultMaxPages,
		Concurrency:  DefaultConcurrency,
		DelayMin:     DefaultDelayMin,
		DelayMax:     DefaultDelayMax,
		Timeout:      DefaultTimeout,
		Source:       SourceTabelog,
		SaveToDB:     true,
		FreshWindow:  DefaultFreshWindow,
		SaveInterval: DefaultSaveInterval,
		ChunkSize:    DefaultChunkSize,
	}
}

// XDGDataDir returns the XDG data directory for restscrape.
// On Linux: ~/.local/share/restscrape
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for restscrape.
// On Linux: ~/.config/restscrape
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for restscrape.
// Checkpoint files live here by default.
// On Linux: ~/.cache/restscrape
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// EffectiveCacheDir returns the checkpoint directory, falling back to the
// XDG cache directory when none is configured.
func (c *Config) EffectiveCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return XDGCacheDir()
}

// EffectiveDBDir returns the listing database directory, falling back to
// the XDG data directory when none is configured.
func (c *Config) EffectiveDBDir() string {
	if c.DBDir != "" {
		return c.DBDir
	}
	return XDGDataDir()
}

// Validate checks the configuration and returns the first problem found.
// It is called once after CLI parsing, before any network activity.
func (c *Config) Validate() error {
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.DelayMin < 0 {
		return ErrInvalidDelay
	}
	if c.DelayMax < c.DelayMin {
		return ErrInvalidDelayRange
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	switch c.Source {
	case SourceTabelog, SourceHotPepper, SourceBoth:
	default:
		return ErrInvalidSource
	}
	// The API key is mandatory only when the API is the sole source;
	// with --source both a missing key degrades to tabelog-only with a
	// warning at the CLI layer.
	if c.Source == SourceHotPepper && c.HotPepperKey == "" {
		return ErrMissingAPIKey
	}
	if c.SaveInterval <= 0 {
		return ErrInvalidSaveInterval
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.FreshWindow < 0 {
		return ErrInvalidFreshWindow
	}
	return nil
}
