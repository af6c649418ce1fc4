// Package restutil provides the shared HTTP-JSON plumbing used by every
// source adapter: rate limiting, retry-with-backoff on 429/5xx, and JSON
// decoding into caller-provided targets.
package restutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client is held by each concrete adapter as a pointer field.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
}

// NewClient builds a Client with sane defaults for a public REST API.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		MaxRetries: 3,
	}
}

// GetJSON performs a GET against BaseURL+path, decoding the JSON response
// body into out. Retries on 429 (honoring Retry-After, capped at 5
// minutes) and 5xx with exponential backoff.
func (c *Client) GetJSON(ctx context.Context, path string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, path, headers)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// Get performs a GET and returns the raw response body, applying the same
// rate-limit/retry policy as GetJSON.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	url := c.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(backoff(attempt))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff(attempt))
			resp.Body.Close()
			lastErr = fmt.Errorf("429 too many requests from %s", url)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%d from %s", resp.StatusCode, url)
			time.Sleep(backoff(attempt))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response from %s: %w", url, err)
		}

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%d from %s: %s", resp.StatusCode, url, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("exhausted %d retries against %s: %w", c.MaxRetries, url, lastErr)
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * 250 * time.Millisecond
	if d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}

func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return def
	}
	d := time.Duration(secs) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}

// SatsToBTC converts an integer satoshi amount to BTC.
func SatsToBTC(sats int64) float64 {
	return float64(sats) / 1e8
}

// UnixSecToTime converts a unix-seconds timestamp to time.Time (UTC).
func UnixSecToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
