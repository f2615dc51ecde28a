// Package transport provides the rate-limited, retrying HTTP client shared
// by the query and entity-detail endpoints. Every request passes the global
// call gate, and failures are classified and retried per the backoff
// policy before being surfaced.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seekmed/medharvest/pkg/errors"
	"github.com/seekmed/medharvest/pkg/logging"
	"github.com/seekmed/medharvest/pkg/pacing"
)

// DefaultTimeout bounds a single request attempt.
const DefaultTimeout = 60 * time.Second

// DefaultUserAgent identifies the harvester per the endpoint's client
// policy. Overridden from configuration.
const DefaultUserAgent = "medharvest/1.0 (https://github.com/seekmed/medharvest)"

// errorBodyLimit caps how much of an error response body is kept for the
// error message.
const errorBodyLimit = 512

// Client is an HTTP client that waits for the shared call gate before
// every attempt and retries classified failures with backoff.
type Client struct {
	http      *http.Client
	gate      *pacing.Gate
	policy    *pacing.Policy
	clock     pacing.Clock
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithGate sets the shared minimum-interval gate.
func WithGate(g *pacing.Gate) ClientOption {
	return func(c *Client) { c.gate = g }
}

// WithPolicy sets the backoff policy.
func WithPolicy(p *pacing.Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithClock substitutes the clock used for backoff sleeps, for tests.
func WithClock(clock pacing.Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a transport client. Without options it uses a default
// timeout, no gate, and the default backoff policy.
func New(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		policy:    pacing.NewPolicy(),
		clock:     pacing.SystemClock(),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a gated, retrying GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+rawURL, err)
	}
	return c.Do(ctx, req)
}

// PostForm performs a gated, retrying form POST. The body is rebuilt for
// every retry attempt.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	encoded := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(encoded)), nil
	}
	return c.Do(ctx, req)
}

// Do executes the request behind the call gate, retrying classified
// failures until the policy's budget runs out. A non-2xx response comes
// back as a classified error with the response fully consumed; a returned
// response is always 2xx and its body is the caller's to close.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	endpoint := req.URL.Path
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries(); attempt++ {
		if attempt > 0 {
			wait := c.policy.WaitFor(lastErr, attempt-1)
			logging.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("wait", wait).
				Err(lastErr).
				Msg("Retrying request")
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.ExhaustRetries(lastErr, c.policy.MaxRetries()+1)
}

// attempt performs one gated request, classifying any failure.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}
	defer c.gate.Done()

	// Rebuild the body for the second and later attempts.
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.WrapResource("rebuild", "request body", req.URL.Path, err)
		}
		req.Body = body
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapNetwork(req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, apiError(req.URL.Path, resp)
}

// apiError drains and closes an error response and converts it into a
// classified APIError, honoring a Retry-After header when present.
func apiError(endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	apiErr := errors.NewAPIError(endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return apiErr
}

// parseRetryAfter reads a Retry-After header in either the delay-seconds
// or the HTTP-date form. Unparseable or past values yield zero.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
