package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

const (
	// progressFile is the name of the progress checkpoint file.
	progressFile = "progress.json"

	// chunkPattern matches the chunked result files in the directory.
	chunkPattern = "results_*.json"

	// maxProcessedKept bounds how many processed URLs the progress file
	// retains. Older entries age out first; the total count is kept
	// separately so statistics survive the trim.
	maxProcessedKept = 50000
)

// Progress is the on-disk format of the progress checkpoint.
type Progress struct {
	// ProcessedURLs are the most recently processed URLs, capped at
	// maxProcessedKept entries.
	ProcessedURLs []string `json:"processed_urls"`

	// TotalProcessed is the lifetime count, including aged-out URLs.
	TotalProcessed int `json:"total_processed"`

	// Timestamp is when the checkpoint was written.
	Timestamp time.Time `json:"timestamp"`

	// CurrentDelaySeconds is the fetcher's adaptive delay, in seconds.
	CurrentDelaySeconds float64 `json:"current_delay"`

	// RateLimitCount is the fetcher's 429 counter.
	RateLimitCount int `json:"rate_limit_count"`
}

// Store manages checkpoint files in a single directory.
// All methods are safe for concurrent use.
type Store struct {
	// dir is the checkpoint directory.
	dir string

	// chunkSize is how many pending results trigger a chunk flush.
	chunkSize int

	// saveInterval is how many appended results trigger a progress write.
	saveInterval int

	// runStamp names this run's chunk files.
	runStamp string

	// logger receives debug output.
	logger *slog.Logger

	// mu protects all mutable state below.
	mu             sync.Mutex
	processed      map[string]struct{}
	order          []string
	totalProcessed int
	pending        []model.Listing
	chunkIndex     int
	sinceSave      int
	delay          time.Duration
	rateLimitCount int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithChunkSize sets how many pending results trigger a chunk flush.
func WithChunkSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSaveInterval sets how many appended results trigger a progress write.
func WithSaveInterval(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.saveInterval = n
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	s := &Store{
		dir:          dir,
		chunkSize:    1000,
		saveInterval: 10,
		runStamp:     time.Now().Format("20060102_150405"),
		logger:       slog.Default(),
		processed:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Load reads the progress checkpoint if one exists. A missing file is not
// an error; the store simply starts fresh.
func (s *Store) Load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, progressFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = make(map[string]struct{}, len(p.ProcessedURLs))
	s.order = s.order[:0]
	for _, u := range p.ProcessedURLs {
		if _, ok := s.processed[u]; ok {
			continue
		}
		s.processed[u] = struct{}{}
		s.order = append(s.order, u)
	}
	s.totalProcessed = p.TotalProcessed
	if s.totalProcessed < len(s.processed) {
		s.totalProcessed = len(s.processed)
	}
	s.delay = time.Duration(p.CurrentDelaySeconds * float64(time.Second))
	s.rateLimitCount = p.RateLimitCount

	s.logger.Info("checkpoint loaded",
		"processed", len(s.processed),
		"total_processed", s.totalProcessed,
		"delay", s.delay)

	// Continue chunk numbering after the highest existing chunk from any
	// run, so resumed runs never overwrite earlier results.
	chunks, err := s.chunkFiles()
	if err != nil {
		return err
	}
	s.chunkIndex = len(chunks)

	return nil
}

// IsProcessed reports whether the URL was already handled.
func (s *Store) IsProcessed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[url]
	return ok
}

// MarkProcessed records the URL as handled.
func (s *Store) MarkProcessed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[url]; ok {
		return
	}
	s.processed[url] = struct{}{}
	s.order = append(s.order, url)
	s.totalProcessed++
}

// ProcessedCount returns the lifetime number of processed URLs.
func (s *Store) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalProcessed
}

// Append adds a collected listing. It flushes a results chunk when enough
// are pending and writes the progress checkpoint every saveInterval
// results.
func (s *Store) Append(l model.Listing) error {
	s.mu.Lock()
	s.pending = append(s.pending, l)
	flushChunk := len(s.pending) >= s.chunkSize
	s.sinceSave++
	saveProgress := s.sinceSave >= s.saveInterval
	if saveProgress {
		s.sinceSave = 0
	}
	s.mu.Unlock()

	if flushChunk {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	if saveProgress {
		return s.SaveProgress()
	}
	return nil
}

// Flush writes all pending results to a new chunk file. A flush with
// nothing pending is a no-op.
func (s *Store) Flush() error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	s.chunkIndex++
	name := fmt.Sprintf("results_%s_%d.json", s.runStamp, s.chunkIndex)
	s.mu.Unlock()

	if err := s.writeJSON(name, batch); err != nil {
		// Put the batch back so nothing is lost on a failed flush.
		s.mu.Lock()
		s.pending = append(batch, s.pending...)
		s.mu.Unlock()
		return fmt.Errorf("flush results: %w", err)
	}

	s.logger.Debug("results chunk written", "file", name, "count", len(batch))
	return nil
}

// SaveProgress writes the progress checkpoint atomically.
func (s *Store) SaveProgress() error {
	s.mu.Lock()
	urls := s.order
	if len(urls) > maxProcessedKept {
		urls = urls[len(urls)-maxProcessedKept:]
	}
	p := Progress{
		ProcessedURLs:       append([]string(nil), urls...),
		TotalProcessed:      s.totalProcessed,
		Timestamp:           time.Now(),
		CurrentDelaySeconds: s.delay.Seconds(),
		RateLimitCount:      s.rateLimitCount,
	}
	s.mu.Unlock()

	if err := s.writeJSON(progressFile, p); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// SetDelayState records the fetcher's adaptive state for the next
// progress write.
func (s *Store) SetDelayState(delay time.Duration, rateLimitCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
	s.rateLimitCount = rateLimitCount
}

// DelayState returns the adaptive state loaded from the checkpoint.
// A zero delay means no previous state exists.
func (s *Store) DelayState() (time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay, s.rateLimitCount
}

// LoadResults reads every results chunk in the directory, oldest first.
func (s *Store) LoadResults() ([]model.Listing, error) {
	chunks, err := s.chunkFiles()
	if err != nil {
		return nil, err
	}

	var all []model.Listing
	for _, path := range chunks {
		data, err := os.ReadFile(path) //nolint:gosec // Paths come from our own directory listing
		if err != nil {
			return nil, fmt.Errorf("read results chunk: %w", err)
		}
		var batch []model.Listing
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse results chunk %s: %w", filepath.Base(path), err)
		}
		all = append(all, batch...)
	}

	return all, nil
}

// Clear removes the progress checkpoint and all results chunks.
func (s *Store) Clear() error {
	chunks, err := s.chunkFiles()
	if err != nil {
		return err
	}
	for _, path := range chunks {
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	if err := os.Remove(filepath.Join(s.dir, progressFile)); err != nil && !os.IsNotExist(err) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = make(map[string]struct{})
	s.order = nil
	s.totalProcessed = 0
	s.pending = nil
	s.chunkIndex = 0
	s.sinceSave = 0
	s.delay = 0
	s.rateLimitCount = 0

	return nil
}

// chunkFiles returns the paths of all results chunks, sorted by name.
// The run stamp and chunk index in the name keep lexical order equal to
// write order within a run.
func (s *Store) chunkFiles() ([]string, error) {
	chunks, err := filepath.Glob(filepath.Join(s.dir, chunkPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(chunks)
	return chunks, nil
}

// writeJSON marshals v and writes it atomically via a temp file rename.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, filepath.Join(s.dir, name))
}
