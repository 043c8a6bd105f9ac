// Package fetch provides a polite HTTP fetcher with adaptive rate limiting.
//
// The Fetcher bounds concurrency with a weighted semaphore and sleeps a
// randomized delay before every request. The delay adapts to how the
// target responds: an HTTP 429 multiplies the delay and triggers a
// penalty sleep that grows with each rate-limit hit, while a streak of
// successful requests decays the delay back toward its minimum.
//
// The adaptive state can be exported and restored, so a resumed run
// continues at the pace the previous run had negotiated with the site
// instead of starting aggressive again.
//
// robots.txt is fetched once per host and cached; disallowed paths
// return ErrRobotsDisallowed without touching the target.
package fetch
