// Package upstream performs single-page fetches against a hosted CMS
// collection endpoint with bounded retry, backoff, and error classification.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
)

// Prometheus metrics for upstream fetch operations.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summary_upstream_fetches_total",
		Help: "Total upstream page fetches by result",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "summary_upstream_fetch_duration_seconds",
		Help:    "Upstream page fetch duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summary_upstream_retries_total",
		Help: "Total upstream retry attempts",
	})
)

// Config holds the page fetch and retry settings.
type Config struct {
	// AttemptTimeout bounds each individual HTTP attempt, independent of
	// the retry loop's backoff.
	AttemptTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffBase scales the linear backoff: the wait before attempt N+1
	// is N * BackoffBase.
	BackoffBase time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// HTTPClient overrides the transport. The fallback path injects the
	// requester's own client here so its cookies and credentials apply.
	HTTPClient *http.Client
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 6 * time.Second,
		MaxRetries:     2,
		BackoffBase:    300 * time.Millisecond,
		UserAgent:      "summary-access/1.0",
	}
}

// Client fetches single collection pages.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates an upstream client. Zero config fields fall back to defaults.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logging.NewLogger("upstream"),
	}
}

// FetchPage performs one bounded-time GET of a collection page.
//
// A 401 fails immediately with an *AuthRequiredError and is never retried.
// Statuses 429/500/502/503/504 and attempt timeouts are retried with linear
// backoff until the budget runs out, then fail as *TransientError. Any other
// non-2xx status, and malformed payloads, fail as *FatalError.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error

	attempts := c.config.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retriesTotal.Inc()
			backoff := time.Duration(attempt-1) * c.config.BackoffBase

			c.logger.Debug().
				Str("url", pageURL).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying page fetch after backoff")

			select {
			case <-ctx.Done():
				fetchesTotal.WithLabelValues("cancelled").Inc()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		page, err := c.attempt(ctx, pageURL)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("url", pageURL).
					Int("attempt", attempt).
					Msg("Page fetch succeeded after retry")
			}
			fetchesTotal.WithLabelValues("ok").Inc()
			return page, nil
		}

		// Caller gone: stop without burning the retry budget.
		if ctx.Err() != nil {
			fetchesTotal.WithLabelValues("cancelled").Inc()
			return nil, ctx.Err()
		}

		var transient *TransientError
		if errors.As(err, &transient) {
			lastErr = err
			c.logger.Warn().
				Str("url", pageURL).
				Int("attempt", attempt).
				Int("status", transient.StatusCode).
				Msg("Transient upstream failure")
			continue
		}

		var authRequired *AuthRequiredError
		if errors.As(err, &authRequired) {
			fetchesTotal.WithLabelValues("auth_required").Inc()
			c.logger.Warn().
				Str("url", pageURL).
				Msg("Upstream collection requires visitor authentication")
			return nil, err
		}

		fetchesTotal.WithLabelValues("fatal").Inc()
		c.logger.Error().
			Err(err).
			Str("url", pageURL).
			Msg("Fatal upstream failure")
		return nil, err
	}

	fetchesTotal.WithLabelValues("exhausted").Inc()
	c.logger.Warn().
		Str("url", pageURL).
		Int("attempts", attempts).
		Msg("Upstream retry budget exhausted")

	return nil, lastErr
}

// attempt executes a single classified fetch.
func (c *Client) attempt(ctx context.Context, pageURL string) (*Page, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FatalError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Attempt timeouts land here and count as transient.
		return nil, &TransientError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthRequiredError{URL: pageURL}
	case retryable(resp.StatusCode):
		io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{StatusCode: resp.StatusCode, URL: pageURL}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &FatalError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &FatalError{StatusCode: resp.StatusCode, URL: pageURL, Err: err}
	}

	return &page, nil
}
