// Meshboard - Mesh Network Operations Console
// Copyright 2026 Meshboard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meshlabs/meshboard

// Package meshapi is the REST client for the mesh backend. It provides
// the baseline snapshots the reconcilers are seeded from before push
// events start flowing.
package meshapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/meshlabs/meshboard/internal/config"
	"github.com/meshlabs/meshboard/internal/metrics"
	"github.com/meshlabs/meshboard/internal/models"
)

// maxErrorBodySize caps how much of an error response body is read back
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// API is the seeding surface consumed by the reconcilers. Implemented by
// Client for production use and by mocks in tests; CircuitBreakerClient
// wraps any implementation with failure protection.
//
// All methods accept a context for cancellation and are safe for
// concurrent use.
type API interface {
	Ping(ctx context.Context) error
	ListUsers(ctx context.Context) ([]models.User, error)
	ListZones(ctx context.Context) ([]models.Zone, error)
	ListAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	ListMessages(ctx context.Context, limit int) ([]models.Message, error)
	GetStatistics(ctx context.Context) (map[string]json.RawMessage, error)
}

// Client talks to the mesh backend REST API with bearer token auth, a
// client-side rate limiter, and exponential backoff on HTTP 429.
type Client struct {
	baseURL        string
	token          string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a REST client from the backend configuration.
func NewClient(cfg *config.BackendConfig) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// readBodyForError reads up to maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// doRequest performs an authenticated GET with rate limiting and
// exponential backoff on HTTP 429 (1s, 2s, 4s, 8s, 16s; Retry-After
// honored when present).
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// getJSON fetches one endpoint and decodes the body into T, recording the
// request outcome and duration per endpoint.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (T, error) {
	var result T

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, reqURL)
	metrics.SeedDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SeedRequests.WithLabelValues(endpoint, "error").Inc()
		return result, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SeedRequests.WithLabelValues(endpoint, "error").Inc()
		body := readBodyForError(resp.Body)
		return result, fmt.Errorf("%s request failed with status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.SeedRequests.WithLabelValues(endpoint, "error").Inc()
		return result, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	metrics.SeedRequests.WithLabelValues(endpoint, "success").Inc()
	return result, nil
}

// Ping verifies connectivity and credentials against the backend.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, c.baseURL+"/api/status")
	if err != nil {
		return fmt.Errorf("failed to ping mesh backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mesh backend ping failed with status: %d", resp.StatusCode)
	}
	return nil
}

// ListUsers retrieves the full user roster.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	return getJSON[[]models.User](ctx, c, "/api/users", nil)
}

// ListZones retrieves all defined zones.
func (c *Client) ListZones(ctx context.Context) ([]models.Zone, error) {
	return getJSON[[]models.Zone](ctx, c, "/api/zones", nil)
}

// ListAlerts retrieves the most recent alerts, newest first.
func (c *Client) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return getJSON[[]models.Alert](ctx, c, "/api/alerts", params)
}

// ListMessages retrieves the most recent messages, newest first.
func (c *Client) ListMessages(ctx context.Context, limit int) ([]models.Message, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return getJSON[[]models.Message](ctx, c, "/api/messages", params)
}

// GetStatistics retrieves the aggregate statistic blocks keyed by domain.
// Blocks stay raw; the stats reconciler replaces them wholesale.
func (c *Client) GetStatistics(ctx context.Context) (map[string]json.RawMessage, error) {
	return getJSON[map[string]json.RawMessage](ctx, c, "/api/statistics", nil)
}
