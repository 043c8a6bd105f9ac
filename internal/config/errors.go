package config

import "errors"

var (
	// ErrInvalidLimit means the listing limit is zero or negative.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidMaxPages means the per-area page cap is zero or negative.
	ErrInvalidMaxPages = errors.New("max pages must be positive")

	// ErrInvalidConcurrency means the concurrency bound is zero or negative.
	ErrInvalidConcurrency = errors.New("concurrency must be positive")

	// ErrInvalidDelay means the minimum delay is negative.
	ErrInvalidDelay = errors.New("minimum delay must not be negative")

	// ErrInvalidDelayRange means the maximum delay is below the minimum.
	ErrInvalidDelayRange = errors.New("maximum delay must not be less than minimum delay")

	// ErrInvalidTimeout means the request timeout is zero or negative.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrInvalidSource means the source is not tabelog, hotpepper, or both.
	ErrInvalidSource = errors.New("source must be one of: tabelog, hotpepper, both")

	// ErrMissingAPIKey means hotpepper was selected as the only source
	// without an API key.
	ErrMissingAPIKey = errors.New("hot pepper API key is required for source hotpepper")

	// ErrInvalidSaveInterval means the checkpoint save interval is zero or
	// negative.
	ErrInvalidSaveInterval = errors.New("save interval must be positive")

	// ErrInvalidChunkSize means the results chunk size is zero or negative.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidFreshWindow means the freshness window is negative.
	ErrInvalidFreshWindow = errors.New("freshness window must not be negative")

	// ErrUnknownArea means an area argument matched neither a known area
	// name nor a Tabelog area code.
	ErrUnknownArea = errors.New("unknown area")
)
