package fetch

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the target answered with HTTP 429.
// The fetcher has already recorded the hit and slept its penalty by the
// time callers see this error; retrying the same URL later is safe.
var ErrRateLimited = errors.New("rate limited by target")

// ErrRobotsDisallowed is returned when robots.txt forbids fetching the URL.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-success HTTP status other than 429.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}
