package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/net/html/charset"

	"showtracker/pkg/env"
)

const (
	defaultUserAgent = "showtracker/1.0"
	maxResponseBytes = 16 << 20
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned when a server keeps answering with a retryable
// status (5xx or 429) after all attempts.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient is the shared HTTP transport for backends: bounded response
// size, a User-Agent, and retries with backoff for transient failures.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	attempts  uint
	delay     time.Duration
}

// NewHTTPClient creates a client whose single attempts time out after
// timeout. Retries stop as soon as the request context is done.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	ua := env.UserAgentHeader()
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: ua,
		attempts:  3,
		delay:     500 * time.Millisecond,
	}
}

// WithRetries returns a copy with a different attempt count and base delay.
func (c *HTTPClient) WithRetries(attempts uint, delay time.Duration) *HTTPClient {
	cp := *c
	cp.attempts = attempts
	cp.delay = delay
	return &cp
}

// Do builds and sends a request, retrying network errors, 5xx and 429
// responses. Other statuses are returned to the caller as-is.
func (c *HTTPClient) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	return retry.DoWithData(
		func() (*Response, error) {
			req, err := build(ctx)
			if err != nil {
				return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			if req.Header.Get("User-Agent") == "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return nil, retry.Unrecoverable(err)
				}
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
			}
			return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// Get is Do for a plain GET with optional headers.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	})
}

// DecodeXML unmarshals a feed, honouring non-UTF-8 encodings declared in the
// XML prolog.
func DecodeXML(data []byte, v any) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder.Decode(v)
}

// DecodeJSON unmarshals a JSON body, reporting a short excerpt on failure.
func DecodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			return fmt.Errorf("invalid JSON near %q: %w", truncate(string(data), 80), err)
		}
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
