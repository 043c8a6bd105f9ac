package hotpepper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production gourmet API endpoint.
const DefaultBaseURL = "https://webservice.recruit.co.jp/hotpepper/gourmet/v1/"

const (
	// maxPerRequest is the API's per-request result cap.
	maxPerRequest = 100

	// defaultRange is the search radius code (3 = 1000m).
	defaultRange = 3

	// defaultInterval is the wait between paginated requests.
	defaultInterval = time.Second
)

// ErrMissingAPIKey is returned when the client is constructed without a key.
var ErrMissingAPIKey = errors.New("hot pepper API key is empty")

// APIError is an error reported by the API itself (bad key, bad params).
type APIError struct {
	// Code is the API error code.
	Code int

	// Message is the API error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("hot pepper API error %d: %s", e.Code, e.Message)
}

// Client calls the Hot Pepper gourmet API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	interval   time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithInterval sets the wait between paginated requests.
func WithInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.interval = d
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client with the given API key.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		interval:   defaultInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SearchParams describe one search request.
type SearchParams struct {
	// Lat and Lng center the search. Both zero means no location filter.
	Lat float64
	Lng float64

	// Range is the radius code (1:300m, 2:500m, 3:1000m, 4:2000m,
	// 5:3000m). Zero means the default of 3.
	Range int

	// Keyword is a free-text filter.
	Keyword string

	// Genre is a genre code filter.
	Genre string

	// Count is the number of results per request, capped at 100.
	Count int

	// Start is the 1-based result offset for pagination.
	Start int
}

// SearchResult is one page of search results.
type SearchResult struct {
	// Available is the total number of matching shops.
	Available int

	// Shops are this page's shops.
	Shops []Shop
}

// Search performs a single API request.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("format", "json")

	count := p.Count
	if count <= 0 || count > maxPerRequest {
		count = maxPerRequest
	}
	q.Set("count", strconv.Itoa(count))

	start := p.Start
	if start < 1 {
		start = 1
	}
	q.Set("start", strconv.Itoa(start))

	if p.Lat != 0 || p.Lng != 0 {
		q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(p.Lng, 'f', -1, 64))
		r := p.Range
		if r == 0 {
			r = defaultRange
		}
		q.Set("range", strconv.Itoa(r))
	}
	if p.Keyword != "" {
		q.Set("keyword", p.Keyword)
	}
	if p.Genre != "" {
		q.Set("genre", p.Genre)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hot pepper API status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("parse API response: %w", err)
	}

	if len(r.Results.Errors) > 0 {
		e := r.Results.Errors[0]
		return nil, &APIError{Code: e.Code, Message: e.Message}
	}

	return &SearchResult{
		Available: r.Results.Available,
		Shops:     r.Results.Shops,
	}, nil
}

// GetAll pages through search results until maxCount shops are collected
// or the API runs out, waiting the configured interval between requests.
func (c *Client) GetAll(ctx context.Context, p SearchParams, maxCount int) ([]Shop, error) {
	if maxCount <= 0 {
		maxCount = maxPerRequest
	}

	var all []Shop
	start := 1

	for len(all) < maxCount {
		p.Start = start
		p.Count = maxCount - len(all)
		if p.Count > maxPerRequest {
			p.Count = maxPerRequest
		}

		result, err := c.Search(ctx, p)
		if err != nil {
			return all, err
		}
		if len(result.Shops) == 0 {
			break
		}

		all = append(all, result.Shops...)
		c.logger.Debug("shops fetched", "count", len(all), "available", result.Available)

		start += p.Count

		if len(all) >= maxCount || len(all) >= result.Available {
			break
		}

		if c.interval > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.interval):
			}
		}
	}

	if len(all) > maxCount {
		all = all[:maxCount]
	}
	return all, nil
}
