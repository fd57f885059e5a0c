// internal/common/http/client.go
//
// Package http wraps the standard client with the JSON POST and retry
// pattern the pipeline's outbound calls share.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// initialBackoff is the first retry delay; it doubles per attempt.
const initialBackoff = 100 * time.Millisecond

type Client struct {
	httpClient *http.Client
}

// NewClient builds a client with a transport-level timeout. A zero
// timeout leaves the per-request context as the only bound.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// PostJSON marshals payload and POSTs it, retrying transport errors and
// non-200 statuses up to maxRetries additional attempts with exponential
// backoff. The context bounds the whole exchange including backoff
// waits; a context error is returned as-is so callers can tell timeouts
// from exhausted retries.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}, headers map[string]string, maxRetries int) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode == http.StatusOK {
				return resp, nil
			}
			resp.Body.Close()
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("no successful response after %d attempts: %w", maxRetries+1, lastErr)
}
