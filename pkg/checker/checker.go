// Package checker probes service URLs for availability
package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// DefaultRequestTimeout bounds a single probe request
const DefaultRequestTimeout = 10 * time.Second

// HTTPChecker probes service URLs with a bounded number of attempts.
// A check only counts as failed once every attempt has failed; the
// first response below 400 ends the check early.
type HTTPChecker struct {
	client     *http.Client
	attempts   int
	retryDelay time.Duration
	logger     logger.Logger
}

// Option configures an HTTPChecker
type Option func(*HTTPChecker)

// WithClient overrides the HTTP client (for testing)
func WithClient(client *http.Client) Option {
	return func(c *HTTPChecker) {
		c.client = client
	}
}

// New creates a checker performing up to attempts probes per check
func New(attempts int, retryDelay time.Duration, log logger.Logger, opts ...Option) *HTTPChecker {
	if attempts < 1 {
		attempts = 1
	}

	c := &HTTPChecker{
		client:     &http.Client{Timeout: DefaultRequestTimeout},
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Check probes the URL until a success or attempts are exhausted.
// Cancelling the context aborts between attempts; an in-flight request
// is cut short by the request context.
func (c *HTTPChecker) Check(ctx context.Context, url string) types.CheckResult {
	var lastErr string
	var lastStatus int

	for attempt := 1; attempt <= c.attempts; attempt++ {
		start := time.Now()
		status, err := c.probe(ctx, url)
		elapsed := time.Since(start)

		if err == nil && status < http.StatusBadRequest {
			return types.CheckResult{
				Available:    true,
				ResponseTime: elapsed,
				Attempts:     attempt,
				StatusCode:   status,
			}
		}

		if err != nil {
			lastErr = err.Error()
			lastStatus = 0
			c.logger.Warn(fmt.Sprintf("attempt %d/%d: connection to %s failed: %v",
				attempt, c.attempts, url, err))
		} else {
			lastErr = fmt.Sprintf("unexpected status %d", status)
			lastStatus = status
			c.logger.Warn(fmt.Sprintf("attempt %d/%d: %s returned status %d",
				attempt, c.attempts, url, status))
		}

		if attempt < c.attempts {
			select {
			case <-ctx.Done():
				return types.CheckResult{
					Attempts: attempt,
					Err:      ctx.Err().Error(),
				}
			case <-time.After(c.retryDelay):
			}
		}
	}

	return types.CheckResult{
		Available:  false,
		Attempts:   c.attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

func (c *HTTPChecker) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
