package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

func testListing(name, url string) model.Listing {
	return model.Listing{
		Name:      name,
		URL:       url,
		Source:    model.SourceTabelog,
		ScrapedAt: time.Now(),
	}
}

// TestStore_ProcessedRoundTrip tests that processed URLs survive a save
// and reload cycle.
func TestStore_ProcessedRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	s.MarkProcessed("https://tabelog.com/tokyo/A1301/A130101/13000001/")
	s.MarkProcessed("https://tabelog.com/tokyo/A1301/A130101/13000002/")
	s.SetDelayState(2500*time.Millisecond, 3)
	if err := s.SaveProgress(); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	// A second store in the same directory sees the same state.
	s2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !s2.IsProcessed("https://tabelog.com/tokyo/A1301/A130101/13000001/") {
		t.Error("IsProcessed() = false for saved URL")
	}
	if s2.IsProcessed("https://tabelog.com/tokyo/A1301/A130101/13000099/") {
		t.Error("IsProcessed() = true for unseen URL")
	}
	if s2.ProcessedCount() != 2 {
		t.Errorf("ProcessedCount() = %d, want 2", s2.ProcessedCount())
	}

	delay, rateLimits := s2.DelayState()
	if delay != 2500*time.Millisecond {
		t.Errorf("delay = %v, want 2.5s", delay)
	}
	if rateLimits != 3 {
		t.Errorf("rateLimits = %d, want 3", rateLimits)
	}
}

// TestStore_LoadMissingFile tests that a fresh directory loads cleanly.
func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s.Load(); err != nil {
		t.Errorf("Load() on empty dir error = %v", err)
	}
	if s.ProcessedCount() != 0 {
		t.Errorf("ProcessedCount() = %d, want 0", s.ProcessedCount())
	}
}

// TestStore_MarkProcessedIdempotent tests that marking a URL twice counts once.
func TestStore_MarkProcessedIdempotent(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	s.MarkProcessed("https://tabelog.com/tokyo/A1303/A130301/13001234/")
	s.MarkProcessed("https://tabelog.com/tokyo/A1303/A130301/13001234/")

	if s.ProcessedCount() != 1 {
		t.Errorf("ProcessedCount() = %d, want 1", s.ProcessedCount())
	}
}

// TestStore_ChunkFlush tests that results flush to a chunk file once the
// chunk size is reached, and that pending results flush on demand.
func TestStore_ChunkFlush(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir, WithChunkSize(3), WithSaveInterval(100))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for i, name := range []string{"店A", "店B", "店C", "店D"} {
		url := "https://tabelog.com/tokyo/A1301/A130101/1300000" + string(rune('1'+i)) + "/"
		if err := s.Append(testListing(name, url)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	chunks, err := filepath.Glob(filepath.Join(dir, "results_*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunk files = %d, want 1 (threshold flush only)", len(chunks))
	}

	// The fourth listing is still pending until an explicit flush.
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	all, err := s.LoadResults()
	if err != nil {
		t.Fatalf("LoadResults() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("LoadResults() = %d listings, want 4", len(all))
	}
	if all[0].Name != "店A" || all[3].Name != "店D" {
		t.Errorf("listing order lost: first=%q last=%q", all[0].Name, all[3].Name)
	}
}

// TestStore_SaveIntervalWritesProgress tests that progress is written
// automatically every saveInterval appends.
func TestStore_SaveIntervalWritesProgress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir, WithChunkSize(100), WithSaveInterval(2))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	s.MarkProcessed("https://tabelog.com/tokyo/A1301/A130101/13000001/")
	if err := s.Append(testListing("店A", "u1")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "progress.json")); !os.IsNotExist(err) {
		t.Error("progress.json exists before save interval reached")
	}

	if err := s.Append(testListing("店B", "u2")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "progress.json")); err != nil {
		t.Errorf("progress.json missing after save interval: %v", err)
	}
}

// TestStore_ResumeSkipsProcessed is the resume property: a URL processed
// in a previous run is never fetched again by the next one.
func TestStore_ResumeSkipsProcessed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	urls := []string{
		"https://tabelog.com/tokyo/A1301/A130101/13000001/",
		"https://tabelog.com/tokyo/A1301/A130101/13000002/",
		"https://tabelog.com/tokyo/A1301/A130101/13000003/",
	}
	for _, u := range urls {
		first.MarkProcessed(u)
	}
	if err := first.SaveProgress(); err != nil {
		t.Fatal(err)
	}

	resumed, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.Load(); err != nil {
		t.Fatal(err)
	}

	for _, u := range urls {
		if !resumed.IsProcessed(u) {
			t.Errorf("resumed run would reprocess %s", u)
		}
	}
}

// TestStore_ProgressFileFormat pins the on-disk JSON field names, which
// must stay compatible with existing checkpoint files.
func TestStore_ProgressFileFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.MarkProcessed("u1")
	s.SetDelayState(2*time.Second, 1)
	if err := s.SaveProgress(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"processed_urls", "total_processed", "timestamp", "current_delay", "rate_limit_count"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("progress.json missing field %q", field)
		}
	}
}

// TestStore_Clear tests that Clear removes all checkpoint state.
func TestStore_Clear(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir, WithChunkSize(1))
	if err != nil {
		t.Fatal(err)
	}

	s.MarkProcessed("u1")
	if err := s.Append(testListing("店A", "u1")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveProgress(); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if s.ProcessedCount() != 0 {
		t.Errorf("ProcessedCount() = %d after Clear, want 0", s.ProcessedCount())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory has %d entries after Clear, want 0", len(entries))
	}
}
