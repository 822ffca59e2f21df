// Package httpclient is the shared outbound HTTP client for search, API,
// image and translation providers. It adds a User-Agent, per-host rate
// limiting and a bounded retry policy.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

const maxBodyBytes = 4 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, logging.Preview(e.Body, 200))
}

// Options configures a Client.
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Retry         config.RetryPolicy
	RatePerSecond float64 // per host; 0 disables limiting
	Logger        *zap.Logger
	Transport     http.RoundTripper
}

// Client wraps net/http with retries and rate limiting.
type Client struct {
	http      *http.Client
	userAgent string
	retry     config.RetryPolicy
	rps       float64
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "contextrag/1.0"
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 1
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
		rps:       opts.RatePerSecond,
		logger:    logging.OrNop(opts.Logger).Named("httpclient"),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	body, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetText issues a GET and returns the body as text.
func (c *Client) GetText(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	body, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, headers)
	return string(body), err
}

// PostJSON marshals in, POSTs it and decodes the JSON reply into out (if non-nil).
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	h := withHeader(headers, "Content-Type", "application/json")
	body, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	}, h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// PostForm POSTs form values and decodes the JSON reply into out.
func (c *Client) PostForm(ctx context.Context, rawURL string, headers map[string]string, form url.Values, out any) error {
	encoded := form.Encode()
	h := withHeader(headers, "Content-Type", "application/x-www-form-urlencoded")
	body, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
	}, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Do runs build under the retry policy and returns the response body.
// build is called once per attempt so request bodies can be replayed.
// 4xx responses are not retried.
func (c *Client) Do(ctx context.Context, build func() (*http.Request, error), headers map[string]string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := build()
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			req.Header.Set("User-Agent", c.userAgent)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			if err := c.wait(ctx, req.URL.Host); err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("calling %s: %w", req.URL.Host, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				serr := &StatusError{Code: resp.StatusCode, Body: string(data)}
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(serr)
				}
				return serr
			}
			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retry.Attempts)),
		retry.Delay(c.retry.DelayDuration()),
		retry.MaxDelay(c.retry.MaxDelayDuration()),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying request", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == code
}

func (c *Client) wait(ctx context.Context, host string) error {
	if c.rps <= 0 {
		return nil
	}
	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.rps), max(1, int(c.rps)))
		c.limiters[host] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

func withHeader(h map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for hk, hv := range h {
		out[hk] = hv
	}
	if _, ok := out[k]; !ok {
		out[k] = v
	}
	return out
}
