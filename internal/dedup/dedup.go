package dedup

import (
	"strings"

	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/normalize"
)

// Listings removes duplicates from in, preserving order. A listing is a
// duplicate when a previously seen listing had the same URL, the same
// trimmed name, or the same normalized phone number. Empty keys never
// match each other. Returns the surviving listings and the number removed.
func Listings(in []model.Listing) ([]model.Listing, int) {
	seenURL := make(map[string]struct{}, len(in))
	seenName := make(map[string]struct{}, len(in))
	seenPhone := make(map[string]struct{}, len(in))

	out := make([]model.Listing, 0, len(in))
	removed := 0

	for _, l := range in {
		url := strings.TrimSpace(l.URL)
		name := strings.TrimSpace(l.Name)
		phone := normalize.Phone(l.Phone)

		dup := false
		if url != "" {
			if _, ok := seenURL[url]; ok {
				dup = true
			}
		}
		if !dup && name != "" {
			if _, ok := seenName[name]; ok {
				dup = true
			}
		}
		if !dup && phone != "" {
			if _, ok := seenPhone[phone]; ok {
				dup = true
			}
		}

		if dup {
			removed++
			continue
		}

		if url != "" {
			seenURL[url] = struct{}{}
		}
		if name != "" {
			seenName[name] = struct{}{}
		}
		if phone != "" {
			seenPhone[phone] = struct{}{}
		}
		out = append(out, l)
	}

	return out, removed
}

// ByURL removes only URL duplicates, preserving order. Used while
// collecting detail URLs from list pages, where different shops can
// legitimately share names.
func ByURL(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
