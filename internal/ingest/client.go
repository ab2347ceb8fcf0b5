package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5 // requests per second
	defaultRetries   = 2
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

// Option configures a provider client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	rateLimit  int
	retries    int
	backoff    time.Duration
	logger     zerolog.Logger
}

// WithBaseURL points the client at a different host, mostly for tests.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit sets the maximum requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(o *options) { o.rateLimit = requestsPerSecond }
}

// WithRetries sets how many times a rate-limited or 5xx request is repeated.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(o *options) { o.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL:   baseURL,
		timeout:   defaultTimeout,
		rateLimit: defaultRateLimit,
		retries:   defaultRetries,
		backoff:   time.Second,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	jar, _ := cookiejar.New(nil)
	o.httpClient = &http.Client{Timeout: o.timeout, Jar: jar}
	if o.rateLimit < 1 {
		o.rateLimit = 1
	}
	return o
}

// transport is the rate-limited, retrying HTTP layer shared by the providers.
type transport struct {
	provider   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	logger     zerolog.Logger
}

func newTransport(provider string, o options) *transport {
	return &transport{
		provider:   provider,
		httpClient: o.httpClient,
		limiter:    rate.NewLimiter(rate.Limit(o.rateLimit), o.rateLimit),
		retries:    o.retries,
		backoff:    o.backoff,
		logger:     o.logger.With().Str("provider", provider).Logger(),
	}
}

// getJSON fetches urlStr and decodes the body into out, retrying
// rate-limited and server errors with exponential backoff.
func (t *transport) getJSON(ctx context.Context, urlStr, endpoint string, out any) error {
	body, err := t.get(ctx, urlStr, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// get returns the body of a 200 response.
func (t *transport) get(ctx context.Context, urlStr, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * t.backoff
			t.logger.Debug().Int("attempt", attempt).Dur("backoff", wait).Str("endpoint", endpoint).Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := t.doRequest(ctx, urlStr, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		t.logger.Warn().Err(err).Int("attempt", attempt+1).Str("endpoint", endpoint).Msg("request failed")
	}
	return nil, fmt.Errorf("all retries failed: %w", lastErr)
}

func (t *transport) doRequest(ctx context.Context, urlStr, endpoint string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", endpoint, stripURL(err))
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", userAgent)

	t.logger.Debug().Str("endpoint", endpoint).Msg("provider request")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request for %s: %w", endpoint, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &APIError{
			Provider:   t.provider,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Endpoint:   endpoint,
		}
	}
	return body, nil
}

// stripURL drops the request URL from a *url.Error. Provider URLs carry
// API tokens in their query strings.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}
