/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a gateway response body is read
const maxResponseBytes = 1 << 20

// authorize sets the Authorization header for token on req
func (c *apiClient) authorize(req *http.Request, token string) {
	header := (&Credential{AccessToken: token}).GetAuthorizationHeader()
	req.Header.Set("Authorization", header)
	if c.logger != nil {
		c.logger.Debugf("%s %s Authorization: %s", req.Method, req.URL.Path,
			SanitizeHeaderForLogging("Authorization", header))
	}
}

// doRequest executes req, reads a bounded body and records metrics under
// endpoint. Transport failures are returned as *NetworkError.
func doRequest(client *http.Client, req *http.Request, endpoint string, metrics *MetricsCollector) (int, []byte, error) {
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		timeout := isTimeout(err)
		netErr := NewNetworkError(req.URL.String(), req.Method, "request failed", err, timeout)
		metrics.RecordRequest(RequestMetrics{
			Endpoint:      endpoint,
			Latency:       time.Since(start),
			ErrorCategory: netErr.Category,
			Timestamp:     start,
		})
		return 0, nil, netErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		netErr := NewNetworkError(req.URL.String(), req.Method, "failed to read response", err, isTimeout(err))
		metrics.RecordRequest(RequestMetrics{
			Endpoint:      endpoint,
			StatusCode:    resp.StatusCode,
			Latency:       time.Since(start),
			ErrorCategory: netErr.Category,
			Timestamp:     start,
		})
		return resp.StatusCode, nil, netErr
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	rm := RequestMetrics{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		Success:    success,
		Timestamp:  start,
	}
	if !success {
		rm.ErrorCategory = categorizeHTTPError(resp.StatusCode)
	}
	metrics.RecordRequest(rm)

	return resp.StatusCode, body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
