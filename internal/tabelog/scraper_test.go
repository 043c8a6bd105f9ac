package tabelog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/checkpoint"
	"github.com/Tohoso/restaurant-scraper/internal/config"
	"github.com/Tohoso/restaurant-scraper/internal/fetch"
)

// newTabelogTestServer serves a miniature Tabelog: one area with two list
// pages and three detail pages, one of which has no shop name.
func newTabelogTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/tokyo/A1301/rstLst/1/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000001/">店A</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000002/">店B</a>
</body></html>`)
	})
	mux.HandleFunc("/tokyo/A1301/rstLst/2/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000003/">店C</a>
</body></html>`)
	})
	mux.HandleFunc("/tokyo/A1301/rstLst/3/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>該当するお店はありません</body></html>`)
	})

	detail := func(name, phone string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `<html><body>
<h2 class="display-name"><span>%s</span></h2>
<table>
<tr><th>電話番号</th><td><span class="rstinfo-table__tel-num">%s</span></td></tr>
<tr><th>住所</th><td><p class="rstinfo-table__address">東京都中央区銀座1-1</p></td></tr>
</table>
</body></html>`, name, phone)
		}
	}
	mux.HandleFunc("/tokyo/A1301/A130101/13000001/", detail("店A", "03-1111-1111"))
	mux.HandleFunc("/tokyo/A1301/A130101/13000002/", detail("", "03-2222-2222")) // nameless
	mux.HandleFunc("/tokyo/A1301/A130101/13000003/", detail("店C", "03-3333-3333"))

	return httptest.NewServer(mux)
}

// newScraperTestFetcher returns a real fetcher tuned for tests.
func newScraperTestFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()

	return fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second},
		fetch.WithJitter(0),
		fetch.WithDelayBounds(0, 10*time.Millisecond),
		fetch.WithInitialDelay(0),
		fetch.WithPenalty(0, 0),
		fetch.WithRobotsCheck(false),
	)
}

// TestScraper_Scrape tests a full area scrape against a local server.
func TestScraper_Scrape(t *testing.T) {
	t.Parallel()

	server := newTabelogTestServer(t)
	defer server.Close()

	s := NewScraper(newScraperTestFetcher(t),
		WithBaseURL(server.URL),
		WithMaxPages(5),
		WithAreaPause(0),
	)

	areas := []config.Area{{Name: "銀座・新橋・有楽町", Code: "A1301"}}
	listings, err := s.Scrape(context.Background(), areas, 0)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	// 店B has no name and must be dropped.
	if len(listings) != 2 {
		t.Fatalf("len(listings) = %d, want 2", len(listings))
	}
	if listings[0].Name != "店A" || listings[1].Name != "店C" {
		t.Errorf("names = %q, %q, want 店A, 店C", listings[0].Name, listings[1].Name)
	}
	for _, l := range listings {
		if l.URL == "" || l.ScrapedAt.IsZero() {
			t.Errorf("listing %q missing metadata: %+v", l.Name, l)
		}
		if l.Source.Label() != "食べログ" {
			t.Errorf("Source = %v, want tabelog", l.Source)
		}
	}

	stats := s.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	// 3 list pages (the third empty one stops pagination) + 3 details.
	if stats.PagesFetched != 6 {
		t.Errorf("PagesFetched = %d, want 6", stats.PagesFetched)
	}
}

// TestScraper_Limit tests that the total limit cuts collection short.
func TestScraper_Limit(t *testing.T) {
	t.Parallel()

	server := newTabelogTestServer(t)
	defer server.Close()

	s := NewScraper(newScraperTestFetcher(t),
		WithBaseURL(server.URL),
		WithAreaPause(0),
	)

	listings, err := s.Scrape(context.Background(), []config.Area{{Name: "銀座", Code: "A1301"}}, 1)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("len(listings) = %d, want 1", len(listings))
	}
}

// TestScraper_CheckpointSkip tests that URLs marked processed in a
// checkpoint are not fetched again.
func TestScraper_CheckpointSkip(t *testing.T) {
	t.Parallel()

	server := newTabelogTestServer(t)
	defer server.Close()

	store, err := checkpoint.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store.MarkProcessed(server.URL + "/tokyo/A1301/A130101/13000001/")

	s := NewScraper(newScraperTestFetcher(t),
		WithBaseURL(server.URL),
		WithAreaPause(0),
		WithCheckpoint(store),
	)

	listings, err := s.Scrape(context.Background(), []config.Area{{Name: "銀座", Code: "A1301"}}, 0)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	for _, l := range listings {
		if l.Name == "店A" {
			t.Error("processed URL was scraped again")
		}
	}
	if s.Stats().URLsSkipped != 1 {
		t.Errorf("URLsSkipped = %d, want 1", s.Stats().URLsSkipped)
	}

	// Newly scraped URLs are now recorded for the next resume.
	if !store.IsProcessed(server.URL + "/tokyo/A1301/A130101/13000003/") {
		t.Error("newly scraped URL not marked processed")
	}
}

// TestScraper_RateLimitMovesOn tests that persistent 429s abandon the
// area instead of hammering it.
func TestScraper_RateLimitMovesOn(t *testing.T) {
	t.Parallel()

	var detailHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tokyo/A1301/rstLst/1/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000001/">1</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000002/">2</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000003/">3</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000004/">4</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000005/">5</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000006/">6</a>
<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/13000007/">7</a>
</body></html>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tokyo/A1301/rstLst/2/" {
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
		detailHits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := newScraperTestFetcher(t)
	s := NewScraper(fetcher,
		WithBaseURL(server.URL),
		WithMaxPages(2),
		WithConcurrency(1),
		WithAreaPause(0),
	)

	// The area pause after a rate-limit break is a minute; cap the test.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listings, _ := s.Scrape(ctx, []config.Area{{Name: "銀座", Code: "A1301"}}, 0)
	if len(listings) != 0 {
		t.Errorf("len(listings) = %d, want 0", len(listings))
	}

	// 5 rate-limited detail fetches trigger the break; the remaining
	// detail URLs are never attempted.
	if got := detailHits.Load(); got != 5 {
		t.Errorf("detail fetch attempts = %d, want 5", got)
	}
	if s.Stats().RateLimitHits != 5 {
		t.Errorf("RateLimitHits = %d, want 5", s.Stats().RateLimitHits)
	}

	// Abandoning the area clears the fetcher's penalty counter so the
	// next area starts without the accumulated back-off.
	if got := fetcher.RateLimitCount(); got != 0 {
		t.Errorf("RateLimitCount() = %d after area break, want 0", got)
	}
}

// TestScraper_ConcurrentDetailFetch tests that detail pages within an
// area are fetched in parallel up to the configured bound.
func TestScraper_ConcurrentDetailFetch(t *testing.T) {
	t.Parallel()

	const pages = 10

	var inFlight, maxInFlight atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/tokyo/A1301/rstLst/1/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>")
		for i := 1; i <= pages; i++ {
			fmt.Fprintf(w, `<a class="list-rst__rst-name-target" href="/tokyo/A1301/A130101/1300%04d/">店%d</a>`, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	})
	mux.HandleFunc("/tokyo/A1301/rstLst/2/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)

		fmt.Fprint(w, `<html><body>
<h2 class="display-name"><span>店X</span></h2>
<table><tr><th>住所</th><td><p class="rstinfo-table__address">東京都中央区銀座1-1</p></td></tr></table>
</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewScraper(newScraperTestFetcher(t),
		WithBaseURL(server.URL),
		WithMaxPages(2),
		WithConcurrency(5),
		WithAreaPause(0),
	)

	listings, err := s.Scrape(context.Background(), []config.Area{{Name: "銀座", Code: "A1301"}}, 0)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(listings) != pages {
		t.Fatalf("len(listings) = %d, want %d", len(listings), pages)
	}
	if got := maxInFlight.Load(); got < 2 {
		t.Errorf("max in-flight detail fetches = %d, want at least 2", got)
	}
	if got := maxInFlight.Load(); got > 5 {
		t.Errorf("max in-flight detail fetches = %d, want at most 5", got)
	}
}

// fakeFreshness marks a fixed URL set as recently stored.
type fakeFreshness struct {
	fresh map[string]bool
	calls atomic.Int32
}

func (f *fakeFreshness) HasRecentListing(_ context.Context, url string, _ time.Duration) (bool, error) {
	f.calls.Add(1)
	return f.fresh[url], nil
}

// TestScraper_SkipsFreshListings tests that URLs with a fresh database
// row are skipped without a detail fetch.
func TestScraper_SkipsFreshListings(t *testing.T) {
	t.Parallel()

	server := newTabelogTestServer(t)
	defer server.Close()

	fresh := &fakeFreshness{fresh: map[string]bool{
		server.URL + "/tokyo/A1301/A130101/13000001/": true,
	}}

	s := NewScraper(newScraperTestFetcher(t),
		WithBaseURL(server.URL),
		WithMaxPages(5),
		WithAreaPause(0),
		WithFreshness(fresh, time.Hour),
	)

	listings, err := s.Scrape(context.Background(), []config.Area{{Name: "銀座", Code: "A1301"}}, 0)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	for _, l := range listings {
		if l.Name == "店A" {
			t.Error("fresh URL was scraped again")
		}
	}
	if got := s.Stats().URLsSkipped; got != 1 {
		t.Errorf("URLsSkipped = %d, want 1", got)
	}
	if fresh.calls.Load() == 0 {
		t.Error("freshness check never consulted")
	}
}
