package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxAttempts is how many times a request is tried before giving up.
const DefaultMaxAttempts = 3

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the server may succeed on a second try.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

type BaseClient struct {
	baseURL     string
	client      *http.Client
	headers     map[string]string
	maxAttempts int
	onRetry     func(attempt int, err error)
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:     make(map[string]string),
		maxAttempts: DefaultMaxAttempts,
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetMaxAttempts sets the total number of tries per request (minimum 1).
func (c *BaseClient) SetMaxAttempts(n int) {
	c.maxAttempts = max(n, 1)
}

// OnRetry registers a hook called before every retry.
func (c *BaseClient) OnRetry(fn func(attempt int, err error)) {
	c.onRetry = fn
}

// MakeRequest sends the request, retrying immediately on transport errors
// and 5xx responses. Other statuses fail at once. The last error is returned
// once the attempts are used up.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, err := c.do(ctx, method, endpoint, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if statusErr, ok := err.(*StatusError); ok && !statusErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		if attempt < c.maxAttempts {
			log.Warn().
				Err(err).
				Str("method", method).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("request failed, retrying")
			if c.onRetry != nil {
				c.onRetry(attempt, err)
			}
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *BaseClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}
	return responseBody, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodDelete, endpoint, nil)
}
