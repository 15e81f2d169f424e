// Package httpx is the outbound HTTP helper shared by every upstream call:
// one attempt, bounded by a timeout, with typed failures the handlers can
// map onto response codes. Retry policy belongs to callers; none implement one.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a request when the caller does not override it.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an upstream error body we keep.
const maxErrorBody = 2048

// ErrTimeout marks a request aborted by its deadline.
var ErrTimeout = errors.New("upstream request timed out")

// UpstreamError is a non-2xx upstream response, with the body captured
// best-effort for diagnostics.
type UpstreamError struct {
	URL    string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned HTTP %d", e.URL, e.Status)
}

// ParseError is a 2xx response whose body was not valid JSON.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream %s returned unparseable JSON: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options tune a single FetchJSON call.
type Options struct {
	Headers map[string]string
	Timeout time.Duration
}

// Client wraps an http.Client for JSON upstreams.
type Client struct {
	hc *http.Client
}

// New creates a Client. A nil http.Client gets the default timeout.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{hc: hc}
}

// FetchJSON performs a GET and returns the raw JSON body. Non-2xx responses
// become *UpstreamError, deadline hits become ErrTimeout, and a body that is
// not JSON becomes *ParseError.
func (c *Client) FetchJSON(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			body = nil
		}
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode, Body: string(body)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, &ParseError{URL: url, Err: errors.New("body is not valid JSON")}
	}
	return json.RawMessage(raw), nil
}

// DecodeJSON fetches url and unmarshals the body into out.
func (c *Client) DecodeJSON(ctx context.Context, url string, opts Options, out any) error {
	raw, err := c.FetchJSON(ctx, url, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{URL: url, Err: err}
	}
	return nil
}
