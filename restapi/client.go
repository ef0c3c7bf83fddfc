// Package restapi is the client of the SÚKL REST service (prehledy.sukl.cz).
// Responses are cached in a bounded LRU and trusted for a TTL, requests are
// held to a fixed-window budget
// and retried with exponential backoff; when every attempt fails a stale
// cache entry is served if one exists.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/juju/ratelimit"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/metrics"
)

const DefaultBaseURL = "https://prehledy.sukl.cz/prehledy/v1"

// maxResponseSize caps the body read from one response.
const maxResponseSize = 32 << 20

// Compile-time check to ensure Client implements MedicineAPI
var _ interfaces.MedicineAPI = (*Client)(nil)

// HTTPClient is the transport used by Client. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	CacheTTL   time.Duration
	CacheSize  int // max cached responses, expired ones included
	RateLimit  int
	RateWindow time.Duration
}

// DefaultConfig returns the production settings of the SÚKL service.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
		CacheTTL:   300 * time.Second,
		CacheSize:  1000,
		RateLimit:  60,
		RateWindow: 60 * time.Second,
	}
}

type cacheEntry struct {
	data     []byte
	storedAt time.Time
}

// Client talks to the SÚKL REST service.
type Client struct {
	cfg    Config
	http   HTTPClient
	bucket *ratelimit.Bucket

	// Expired entries stay until evicted so they can serve as stale fallback
	cache *lru.Cache[string, cacheEntry]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. A nil httpClient gets an *http.Client with cfg.Timeout.
func NewClient(cfg Config, httpClient HTTPClient) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaults.RateWindow
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// The whole budget is refilled at once every window
	limit := int64(cfg.RateLimit)
	bucket := ratelimit.NewBucketWithQuantum(cfg.RateWindow, limit, limit)

	// New only fails for a non-positive size
	cache, _ := lru.New[string, cacheEntry](cfg.CacheSize)

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		bucket: bucket,
		cache:  cache,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) waitForBudget(ctx context.Context) error {
	wait := c.bucket.Take(1)
	if wait > 0 {
		logging.Warn("SÚKL API request budget exhausted, waiting", "wait", wait.String())
	}
	return c.sleep(ctx, wait)
}

func cacheKey(method, endpoint string, params url.Values, body map[string]any) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(endpoint)
	b.WriteByte('?')
	b.WriteString(params.Encode()) // Encode sorts by key

	if len(body) > 0 {
		keys := make([]string, 0, len(body))
		for k := range body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "&%s=%v", k, body[k])
		}
	}
	return b.String()
}

func (c *Client) cached(key string, allowStale bool) ([]byte, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !allowStale && c.now().Sub(entry.storedAt) > c.cfg.CacheTTL {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) store(key string, data []byte) {
	if evicted := c.cache.Add(key, cacheEntry{data: data, storedAt: c.now()}); evicted {
		logging.Debug("SÚKL API cache full, evicted oldest entry", "size", c.cfg.CacheSize)
	}
}

// CacheStats returns the number of total, valid and stale cache entries.
func (c *Client) CacheStats() (total, valid, stale int) {
	now := c.now()
	for _, key := range c.cache.Keys() {
		// Peek does not touch the recency order
		entry, ok := c.cache.Peek(key)
		if !ok {
			continue
		}
		total++
		if now.Sub(entry.storedAt) <= c.cfg.CacheTTL {
			valid++
		}
	}
	return total, valid, total - valid
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	count := c.cache.Len()
	c.cache.Purge()

	logging.Info("SÚKL API cache cleared", "entries", count)
}

// apiErrorBody is the error document of the service.
type apiErrorBody struct {
	Code        json.RawMessage `json:"kodChyby"`
	Description string          `json:"popisChyby"`
}

func parseAPIError(status int, body []byte) *errs.APIError {
	apiErr := &errs.APIError{StatusCode: status, Message: http.StatusText(status)}

	var parsed apiErrorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && len(parsed.Code) > 0 {
		apiErr.Code = strings.Trim(string(parsed.Code), `"`)
		if parsed.Description != "" {
			apiErr.Message = parsed.Description
		}
	}
	return apiErr
}

// request performs one API call through the cache, the budget and the retry loop.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, body map[string]any, useCache bool) ([]byte, error) {
	key := cacheKey(method, endpoint, params, body)
	if useCache {
		if data, ok := c.cached(key, false); ok {
			logging.Debug("SÚKL API cache hit", "endpoint", endpoint)
			return data, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.waitForBudget(ctx); err != nil {
			return nil, err
		}

		logging.Debug("SÚKL API request",
			"method", method,
			"endpoint", endpoint,
			"attempt", attempt+1,
			"max_attempts", c.cfg.MaxRetries,
		)

		data, err := c.do(ctx, method, endpoint, params, body)
		if err == nil {
			if useCache {
				c.store(key, data)
			}
			return data, nil
		}

		lastErr = err
		var apiErr *errs.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, apiErr
		}
		if ctx.Err() != nil {
			break
		}

		logging.Warn("SÚKL API request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)

		if attempt < c.cfg.MaxRetries-1 {
			delay := c.cfg.RetryDelay * time.Duration(1<<attempt)
			logging.Info("Retrying SÚKL API request", "endpoint", endpoint, "delay", delay.String())
			if err := c.sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	if data, ok := c.cached(key, true); ok {
		logging.Warn("Using stale cache entry after failed retries", "endpoint", endpoint, "attempts", c.cfg.MaxRetries)
		return data, nil
	}

	return nil, fmt.Errorf("sukl api request %s %s failed after %d attempts: %w", method, endpoint, c.cfg.MaxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body map[string]any) ([]byte, error) {
	u := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestTotals.WithLabelValues(endpointLabel(endpoint), "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestTotals.WithLabelValues(endpointLabel(endpoint), strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// endpointLabel drops path parameters to keep metric cardinality bounded.
func endpointLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 1 && parts[0] == "lekarny" {
		return "/lekarny/{kod}"
	}
	return endpoint
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	data, err := c.request(ctx, http.MethodGet, endpoint, params, nil, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body map[string]any, out any) error {
	data, err := c.request(ctx, http.MethodPost, endpoint, nil, body, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", endpoint, err)
	}
	return nil
}
