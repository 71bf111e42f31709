/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"net/http"

	"github.com/PivotLLM/GatewayAuth/global"
)

// AdvisoryStatus tells how an advisory value came about
type AdvisoryStatus string

const (
	AdvisoryNotAttempted AdvisoryStatus = "not_attempted"
	AdvisoryFetched      AdvisoryStatus = "fetched"
	AdvisorySuppressed   AdvisoryStatus = "suppressed"
)

// Advisory carries the result of a best-effort gateway lookup. Failures are
// recorded in Err with status AdvisorySuppressed and are never returned as
// errors to the caller.
type Advisory[T any] struct {
	Value  T
	Status AdvisoryStatus
	Err    error
}

// Fetched wraps a successfully fetched value
func Fetched[T any](v T) Advisory[T] {
	return Advisory[T]{Value: v, Status: AdvisoryFetched}
}

// Suppressed records a failure that callers should not surface
func Suppressed[T any](err error) Advisory[T] {
	return Advisory[T]{Status: AdvisorySuppressed, Err: err}
}

// NotAttempted is returned when there was nothing to fetch with
func NotAttempted[T any]() Advisory[T] {
	return Advisory[T]{Status: AdvisoryNotAttempted}
}

// OK reports whether the value was fetched
func (a Advisory[T]) OK() bool {
	return a.Status == AdvisoryFetched
}

// ClientOption configures the profile and notifications clients
type ClientOption func(*apiClient)

// apiClient holds what the advisory clients share
type apiClient struct {
	httpClient *http.Client
	logger     global.Logger
	metrics    *MetricsCollector
}

// WithClientHTTPClient sets the base HTTP client
func WithClientHTTPClient(client *http.Client) ClientOption {
	return func(c *apiClient) {
		c.httpClient = client
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger global.Logger) ClientOption {
	return func(c *apiClient) {
		c.logger = logger
	}
}

// WithClientMetrics sets the metrics collector
func WithClientMetrics(metrics *MetricsCollector) ClientOption {
	return func(c *apiClient) {
		c.metrics = metrics
	}
}

func newAPIClient(config *Config, opts []ClientOption) apiClient {
	c := apiClient{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}
	return c
}
