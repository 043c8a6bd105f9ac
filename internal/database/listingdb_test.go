package database

import (
	"context"
	"testing"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/model"
)

// newTestDB creates a ListingDB in a temporary directory.
func newTestDB(t *testing.T) *ListingDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func testListing(name, url string) model.Listing {
	return model.Listing{
		Name:      name,
		Phone:     "03-1234-5678",
		Address:   "東京都渋谷区道玄坂1-2-3",
		Genre:     "居酒屋",
		Station:   "渋谷駅",
		OpenTime:  "17:00〜23:30",
		Source:    model.SourceTabelog,
		URL:       url,
		ScrapedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// TestOpen_NoCreate tests that opening a missing database without the
// create option fails.
func TestOpen_NoCreate(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
	if err == nil {
		t.Fatal("Open() error = nil, want error for missing database")
	}
}

// TestUpsertListing tests insert and refresh of a single listing.
func TestUpsertListing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	l := testListing("鳥貴族 渋谷店", "https://tabelog.com/tokyo/A1303/A130301/13000001/")
	if err := db.UpsertListing(ctx, &l); err != nil {
		t.Fatalf("UpsertListing() error = %v", err)
	}

	got, err := db.GetListingByURL(ctx, l.URL)
	if err != nil {
		t.Fatalf("GetListingByURL() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetListingByURL() = nil, want listing")
	}
	if got.Name != l.Name {
		t.Errorf("Name = %q, want %q", got.Name, l.Name)
	}
	if got.Phone != l.Phone {
		t.Errorf("Phone = %q, want %q", got.Phone, l.Phone)
	}
	if got.Source != model.SourceTabelog {
		t.Errorf("Source = %v, want tabelog", got.Source)
	}
	if got.ScrapedAt.IsZero() {
		t.Error("ScrapedAt is zero, want parsed timestamp")
	}

	// Upserting the same URL refreshes the row instead of duplicating it.
	l.Genre = "焼鳥"
	if err := db.UpsertListing(ctx, &l); err != nil {
		t.Fatalf("UpsertListing() refresh error = %v", err)
	}

	all, err := db.ListListings(ctx, 0)
	if err != nil {
		t.Fatalf("ListListings() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(ListListings()) = %d, want 1 after refresh", len(all))
	}
	if all[0].Genre != "焼鳥" {
		t.Errorf("Genre = %q, want 焼鳥", all[0].Genre)
	}
}

// TestUpsertListing_NoURL tests that listings without a URL are rejected.
func TestUpsertListing_NoURL(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	l := testListing("店A", "")
	if err := db.UpsertListing(context.Background(), &l); err == nil {
		t.Fatal("UpsertListing() error = nil, want error for missing URL")
	}
}

// TestUpsertListings tests batch upsert in a single transaction.
func TestUpsertListings(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	listings := []model.Listing{
		testListing("店A", "https://tabelog.com/tokyo/A1301/A130101/13000001/"),
		testListing("店B", "https://tabelog.com/tokyo/A1301/A130101/13000002/"),
		{Name: "URLなし"}, // skipped
		testListing("店A改", "https://tabelog.com/tokyo/A1301/A130101/13000001/"),
	}

	saved, err := db.UpsertListings(ctx, listings)
	if err != nil {
		t.Fatalf("UpsertListings() error = %v", err)
	}
	if saved != 3 {
		t.Errorf("saved = %d, want 3 (listing without URL skipped)", saved)
	}

	all, err := db.ListListings(ctx, 0)
	if err != nil {
		t.Fatalf("ListListings() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(ListListings()) = %d, want 2 unique URLs", len(all))
	}

	got, err := db.GetListingByURL(ctx, "https://tabelog.com/tokyo/A1301/A130101/13000001/")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "店A改" {
		t.Errorf("Name = %q, want the later upsert 店A改", got.Name)
	}
}

// TestGetListingByURL_NotFound tests the nil return for unknown URLs.
func TestGetListingByURL_NotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	got, err := db.GetListingByURL(context.Background(), "https://tabelog.com/none/")
	if err != nil {
		t.Fatalf("GetListingByURL() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetListingByURL() = %+v, want nil", got)
	}
}

// TestHasRecentListing tests the freshness window check.
func TestHasRecentListing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	l := testListing("店A", "https://tabelog.com/tokyo/A1303/A130301/13000001/")
	if err := db.UpsertListing(ctx, &l); err != nil {
		t.Fatal(err)
	}

	recent, err := db.HasRecentListing(ctx, l.URL, time.Hour)
	if err != nil {
		t.Fatalf("HasRecentListing() error = %v", err)
	}
	if !recent {
		t.Error("HasRecentListing(1h) = false, want true for a just-written row")
	}

	recent, err = db.HasRecentListing(ctx, "https://tabelog.com/none/", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if recent {
		t.Error("HasRecentListing() = true for unknown URL, want false")
	}
}

// TestListListings_Limit tests the result limit.
func TestListListings_Limit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	listings := []model.Listing{
		testListing("店A", "https://tabelog.com/1/"),
		testListing("店B", "https://tabelog.com/2/"),
		testListing("店C", "https://tabelog.com/3/"),
	}
	if _, err := db.UpsertListings(ctx, listings); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListListings(ctx, 2)
	if err != nil {
		t.Fatalf("ListListings() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(ListListings(2)) = %d, want 2", len(got))
	}
}

// TestCountBySource tests per-source counting.
func TestCountBySource(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	a := testListing("店A", "https://tabelog.com/1/")
	b := testListing("店B", "https://www.hotpepper.jp/strJ1/")
	b.Source = model.SourceHotPepper
	c := testListing("店C", "https://tabelog.com/2/")

	if _, err := db.UpsertListings(ctx, []model.Listing{a, b, c}); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountBySource(ctx)
	if err != nil {
		t.Fatalf("CountBySource() error = %v", err)
	}
	if counts[model.SourceTabelog] != 2 {
		t.Errorf("tabelog count = %d, want 2", counts[model.SourceTabelog])
	}
	if counts[model.SourceHotPepper] != 1 {
		t.Errorf("hotpepper count = %d, want 1", counts[model.SourceHotPepper])
	}
}

// TestSaveScrapeRun tests run history round-trip.
func TestSaveScrapeRun(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	latest, err := db.GetLatestScrapeRun(ctx)
	if err != nil {
		t.Fatalf("GetLatestScrapeRun() error = %v", err)
	}
	if latest != nil {
		t.Fatal("GetLatestScrapeRun() on empty database, want nil")
	}

	report := model.NewScrapeReport([]string{"渋谷", "新宿・代々木・大久保"})
	report.Add(testListing("店A", "https://tabelog.com/1/"))
	report.PagesFetched = 12
	report.DuplicatesRemoved = 3

	if err := db.SaveScrapeRun(ctx, report); err != nil {
		t.Fatalf("SaveScrapeRun() error = %v", err)
	}

	latest, err = db.GetLatestScrapeRun(ctx)
	if err != nil {
		t.Fatalf("GetLatestScrapeRun() error = %v", err)
	}
	if latest == nil {
		t.Fatal("GetLatestScrapeRun() = nil, want stored run")
	}
	if len(latest.Listings) != 1 || latest.Listings[0].Name != "店A" {
		t.Errorf("Listings = %+v, want the stored 店A", latest.Listings)
	}
	if latest.PagesFetched != 12 {
		t.Errorf("PagesFetched = %d, want 12", latest.PagesFetched)
	}

	runs, err := db.ListScrapeRuns(ctx)
	if err != nil {
		t.Fatalf("ListScrapeRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(ListScrapeRuns()) = %d, want 1", len(runs))
	}
	if len(runs[0].Areas) != 2 || runs[0].Areas[0] != "渋谷" {
		t.Errorf("Areas = %v, want [渋谷 新宿・代々木・大久保]", runs[0].Areas)
	}
	if runs[0].ListingCount != 1 {
		t.Errorf("ListingCount = %d, want 1", runs[0].ListingCount)
	}
}

// TestParseTimestamp tests the multi-format timestamp parser.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite default", input: "2026-08-23 12:34:56"},
		{name: "iso8601 with Z", input: "2026-08-23T12:34:56Z"},
		{name: "iso8601 without tz", input: "2026-08-23T12:34:56"},
		{name: "rfc3339", input: "2026-08-23T12:34:56+09:00"},
		{name: "garbage", input: "not a time", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q).IsZero() = %v, want %v", tt.input, got.IsZero(), tt.zero)
			}
		})
	}
}
