package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/semaphore"
)

// Adaptive delay tuning. The delay starts at initialDelay, multiplies by
// backoffFactor on every HTTP 429 (capped at the configured maximum) and
// shrinks by decayFactor once decayThreshold consecutive requests succeed.
const (
	initialDelay   = 2 * time.Second
	maxDelayCap    = 10 * time.Second
	backoffFactor  = 1.5
	decayFactor    = 0.9
	decayThreshold = 10

	// A 429 also triggers a long penalty sleep that grows with every
	// hit: penaltyBase + penaltyStep * rateLimitCount.
	penaltyBase = 30 * time.Second
	penaltyStep = 10 * time.Second

	// defaultJitter is added to every politeness sleep as a random
	// 0..jitter duration, so request timing never looks mechanical.
	defaultJitter = time.Second

	defaultMaxBodySize = 5 * 1024 * 1024
)

// defaultUserAgents is the rotation pool used when none is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Fetcher performs rate-limited HTTP GETs with bounded concurrency.
// All methods are safe for concurrent use.
type Fetcher struct {
	// client performs the HTTP requests.
	client *http.Client

	// sem bounds the number of in-flight requests.
	sem *semaphore.Weighted

	// userAgents is the User-Agent rotation pool.
	userAgents []string

	// headers are extra headers added to every request.
	headers map[string]string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// jitter is the upper bound of the random addition to each delay.
	jitter time.Duration

	// checkRobots enables robots.txt checks before each fetch.
	checkRobots bool

	// logger receives debug and warning output.
	logger *slog.Logger

	// penaltyBase and penaltyStep size the sleep after a 429. Only tests
	// shrink these.
	penaltyBase time.Duration
	penaltyStep time.Duration

	// mu protects the adaptive state and counters below.
	mu             sync.Mutex
	currentDelay   time.Duration
	minDelay       time.Duration
	maxDelay       time.Duration
	successStreak  int
	rateLimitCount int
	stats          Stats

	// robotsMu protects the per-host robots.txt cache.
	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// Stats holds cumulative request counters.
type Stats struct {
	// Requests is the total number of attempted fetches.
	Requests int

	// Successes is the number of fetches that returned HTTP 200.
	Successes int

	// Failures is the number of fetches that errored or returned an
	// unexpected status.
	Failures int

	// RateLimited is the number of HTTP 429 responses received.
	RateLimited int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConcurrency sets the maximum number of in-flight requests.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithDelayBounds sets the minimum and maximum adaptive delay.
func WithDelayBounds(min, max time.Duration) Option {
	return func(f *Fetcher) {
		f.minDelay = min
		f.maxDelay = max
	}
}

// WithInitialDelay sets the starting delay. The delay still adapts from
// there within the configured bounds.
func WithInitialDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.currentDelay = d
	}
}

// WithJitter sets the upper bound of the random addition to each delay.
// Zero disables jitter.
func WithJitter(d time.Duration) Option {
	return func(f *Fetcher) {
		f.jitter = d
	}
}

// WithUserAgents replaces the User-Agent rotation pool.
func WithUserAgents(uas []string) Option {
	return func(f *Fetcher) {
		if len(uas) > 0 {
			f.userAgents = uas
		}
	}
}

// WithHeaders sets extra headers added to every request.
func WithHeaders(h map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = h
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithRobotsCheck enables or disables robots.txt checks.
func WithRobotsCheck(enabled bool) Option {
	return func(f *Fetcher) {
		f.checkRobots = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPenalty overrides the rate-limit penalty sleep parameters.
// Intended for tests; production uses the defaults.
func WithPenalty(base, step time.Duration) Option {
	return func(f *Fetcher) {
		f.penaltyBase = base
		f.penaltyStep = step
	}
}

// NewFetcher creates a Fetcher with the given HTTP client. A nil client
// falls back to a client with a 30 second timeout.
func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	f := &Fetcher{
		client:       client,
		sem:          semaphore.NewWeighted(10),
		userAgents:   defaultUserAgents,
		maxBodySize:  defaultMaxBodySize,
		jitter:       defaultJitter,
		checkRobots:  true,
		logger:       slog.Default(),
		penaltyBase:  penaltyBase,
		penaltyStep:  penaltyStep,
		currentDelay: initialDelay,
		minDelay:     time.Second,
		maxDelay:     maxDelayCap,
		robots:       make(map[string]*robotstxt.RobotsData),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.currentDelay < f.minDelay {
		f.currentDelay = f.minDelay
	}
	if f.currentDelay > f.maxDelay {
		f.currentDelay = f.maxDelay
	}

	return f
}

// Fetch performs a GET request against rawURL and returns the response
// body. It blocks until a concurrency slot is free, sleeps the current
// adaptive delay, and adjusts that delay based on the response.
//
// A 429 response returns ErrRateLimited after the penalty sleep; the
// caller may retry the same URL later. Other non-200 statuses return a
// *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	if f.checkRobots {
		allowed, err := f.robotsAllowed(ctx, rawURL)
		if err != nil {
			f.logger.Debug("robots.txt check failed, proceeding", "url", rawURL, "error", err)
		} else if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
	}

	if err := f.sleepDelay(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req)

	f.mu.Lock()
	f.stats.Requests++
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			f.recordFailure()
			return nil, err
		}
		f.recordSuccess()
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		penalty := f.recordRateLimit()
		f.logger.Warn("rate limited, backing off",
			"url", rawURL,
			"delay", f.Delay(),
			"penalty", penalty)
		if err := sleepCtx(ctx, penalty); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, rawURL)

	default:
		f.recordFailure()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
}

// setHeaders applies a rotated User-Agent, browser-like defaults, and any
// configured extra headers.
func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgents[rand.Intn(len(f.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")

	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
}

// sleepDelay sleeps the current adaptive delay plus random jitter.
func (f *Fetcher) sleepDelay(ctx context.Context) error {
	f.mu.Lock()
	d := f.currentDelay
	f.mu.Unlock()

	if f.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(f.jitter)))
	}

	return sleepCtx(ctx, d)
}

// recordSuccess counts a success and decays the delay toward the minimum
// after a streak of consecutive successes.
func (f *Fetcher) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Successes++
	f.successStreak++
	if f.successStreak >= decayThreshold {
		f.successStreak = 0
		decayed := time.Duration(float64(f.currentDelay) * decayFactor)
		if decayed < f.minDelay {
			decayed = f.minDelay
		}
		f.currentDelay = decayed
	}
}

// recordFailure counts a failure and resets the success streak.
func (f *Fetcher) recordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Failures++
	f.successStreak = 0
}

// recordRateLimit counts a 429, multiplies the delay (capped at the
// maximum), and returns the penalty sleep for this hit.
func (f *Fetcher) recordRateLimit() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.RateLimited++
	f.successStreak = 0
	f.rateLimitCount++

	backed := time.Duration(float64(f.currentDelay) * backoffFactor)
	if backed > f.maxDelay {
		backed = f.maxDelay
	}
	f.currentDelay = backed

	return f.penaltyBase + time.Duration(f.rateLimitCount)*f.penaltyStep
}

// Delay returns the current adaptive delay.
func (f *Fetcher) Delay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentDelay
}

// RateLimitCount returns the number of 429 responses seen so far.
func (f *Fetcher) RateLimitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rateLimitCount
}

// SetDelayState restores the adaptive state from a previous run, clamped
// to the configured bounds. Used when resuming from a checkpoint.
func (f *Fetcher) SetDelayState(delay time.Duration, rateLimitCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if delay < f.minDelay {
		delay = f.minDelay
	}
	if delay > f.maxDelay {
		delay = f.maxDelay
	}
	f.currentDelay = delay

	if rateLimitCount < 0 {
		rateLimitCount = 0
	}
	f.rateLimitCount = rateLimitCount
}

// ResetRateLimitCount zeroes the rate-limit counter, e.g. when moving to
// a new area after repeated 429s.
func (f *Fetcher) ResetRateLimitCount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimitCount = 0
}

// Stats returns a snapshot of the cumulative request counters.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// robotsAllowed reports whether robots.txt permits fetching rawURL.
// The robots.txt of each host is fetched once and cached. Hosts whose
// robots.txt cannot be retrieved are treated as allowing everything.
func (f *Fetcher) robotsAllowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	data, err := f.robotsData(ctx, u)
	if err != nil {
		return true, err
	}

	agent := "restscrape"
	group := data.FindGroup(agent)
	if group == nil {
		return true, nil
	}
	return group.Test(u.Path), nil
}

// robotsData returns the cached robots.txt data for the URL's host,
// fetching it on first use.
func (f *Fetcher) robotsData(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	f.robotsMu.Lock()
	if data, ok := f.robots[u.Host]; ok {
		f.robotsMu.Unlock()
		return data, nil
	}
	f.robotsMu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgents[0])

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	f.robotsMu.Lock()
	f.robots[u.Host] = data
	f.robotsMu.Unlock()

	return data, nil
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
