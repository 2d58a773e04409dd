package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"etf-flow-lab/internal/domain"
)

// Default HTTP client settings.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultMaxRetries        = 2
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultMaxDelay          = 5 * time.Second
	maxBodyBytes             = 4 << 20
)

// ErrNoValue is returned when the response has nothing at the configured path.
var ErrNoValue = errors.New("no value at path")

// ErrNotNumeric is returned when the value at the path is neither a number nor the sentinel.
var ErrNotNumeric = errors.New("value is not numeric")

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// retryable reports whether the server may answer differently next time.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPClient issues rate limited GETs with retries. One client is shared by
// every series fetched from the same provider so the limit applies to all of them.
type HTTPClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	userAgent  string
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRateLimit sets the sustained request rate. rps <= 0 disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxRetries sets maximum retry attempts after the first request.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial and maximum retry delay.
func WithRetryDelay(initial, max time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = initial
		c.maxDelay = max
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// NewHTTPClient creates a client with default limits.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		userAgent:  "etf-flow-lab",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JSONFetcher returns a Fetcher reading the gjson path from the JSON document at url.
func (c *HTTPClient) JSONFetcher(url, path string) Fetcher {
	return FetcherFunc(func(ctx context.Context, _ string) (domain.Value, error) {
		body, err := c.get(ctx, url)
		if err != nil {
			return domain.Value{}, err
		}
		return extract(body, path)
	})
}

func extract(body []byte, path string) (domain.Value, error) {
	if !gjson.ValidBytes(body) {
		return domain.Value{}, fmt.Errorf("parse response: invalid json")
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() || res.Type == gjson.Null {
		return domain.Value{}, fmt.Errorf("%w %q", ErrNoValue, path)
	}
	v, ok := domain.ParseValue(res.String())
	if !ok {
		return domain.Value{}, fmt.Errorf("%w: %q at %q", ErrNotNumeric, res.String(), path)
	}
	return v, nil
}

// get fetches url, retrying transport errors, 429 and 5xx with exponential backoff.
func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxDelay
	b.MaxElapsedTime = 0

	var body []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		body, err = c.do(ctx, url)
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.maxRetries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
