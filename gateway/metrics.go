/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/PivotLLM/GatewayAuth/global"
)

// MetricsCollector records gateway requests, poll attempts and authorization
// outcomes. A nil collector is valid and records nothing.
type MetricsCollector struct {
	mu           sync.RWMutex
	logger       global.Logger
	enabled      bool
	startTime    time.Time
	endpoints    map[string]*EndpointStats
	outcomes     map[FlowState]int64
	requestCount int64
	errorCount   int64
	pollAttempts int64
	flowCount    int64
	flowLatency  time.Duration
}

// EndpointStats contains metrics for one gateway endpoint
type EndpointStats struct {
	Endpoint     string                  `json:"endpoint"`
	RequestCount int64                   `json:"request_count"`
	ErrorCount   int64                   `json:"error_count"`
	SuccessCount int64                   `json:"success_count"`
	TotalLatency time.Duration           `json:"total_latency"`
	MinLatency   time.Duration           `json:"min_latency"`
	MaxLatency   time.Duration           `json:"max_latency"`
	AvgLatency   time.Duration           `json:"avg_latency"`
	ErrorsByType map[ErrorCategory]int64 `json:"errors_by_type"`
	LastError    time.Time               `json:"last_error"`
	LastRequest  time.Time               `json:"last_request"`
}

// RequestMetrics represents metrics for a single request
type RequestMetrics struct {
	Endpoint      string        `json:"endpoint"`
	StatusCode    int           `json:"status_code"`
	Latency       time.Duration `json:"latency"`
	Success       bool          `json:"success"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// MetricsSnapshot is a point-in-time copy of the collected metrics
type MetricsSnapshot struct {
	Uptime          time.Duration             `json:"uptime"`
	RequestCount    int64                     `json:"request_count"`
	ErrorCount      int64                     `json:"error_count"`
	PollAttempts    int64                     `json:"poll_attempts"`
	FlowCount       int64                     `json:"flow_count"`
	AvgFlowDuration time.Duration             `json:"avg_flow_duration"`
	Outcomes        map[FlowState]int64       `json:"outcomes"`
	Endpoints       map[string]*EndpointStats `json:"endpoints"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger global.Logger, enabled bool) *MetricsCollector {
	return &MetricsCollector{
		logger:    logger,
		enabled:   enabled,
		startTime: time.Now(),
		endpoints: make(map[string]*EndpointStats),
		outcomes:  make(map[FlowState]int64),
	}
}

func (mc *MetricsCollector) active() bool {
	return mc != nil && mc.enabled
}

// RecordRequest records metrics for a completed gateway request
func (mc *MetricsCollector) RecordRequest(req RequestMetrics) {
	if !mc.active() {
		return
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requestCount++
	if !req.Success {
		mc.errorCount++
	}

	stats, exists := mc.endpoints[req.Endpoint]
	if !exists {
		stats = &EndpointStats{
			Endpoint:     req.Endpoint,
			ErrorsByType: make(map[ErrorCategory]int64),
			MinLatency:   req.Latency,
			MaxLatency:   req.Latency,
		}
		mc.endpoints[req.Endpoint] = stats
	}

	stats.RequestCount++
	stats.LastRequest = req.Timestamp
	stats.TotalLatency += req.Latency

	if req.Success {
		stats.SuccessCount++
	} else {
		stats.ErrorCount++
		stats.LastError = req.Timestamp
		if req.ErrorCategory != "" {
			stats.ErrorsByType[req.ErrorCategory]++
		}
	}

	if req.Latency < stats.MinLatency {
		stats.MinLatency = req.Latency
	}
	if req.Latency > stats.MaxLatency {
		stats.MaxLatency = req.Latency
	}
	stats.AvgLatency = stats.TotalLatency / time.Duration(stats.RequestCount)
}

// RecordPollAttempt counts one token-endpoint poll attempt
func (mc *MetricsCollector) RecordPollAttempt() {
	if !mc.active() {
		return
	}

	mc.mu.Lock()
	mc.pollAttempts++
	mc.mu.Unlock()
}

// RecordFlowOutcome records the terminal state of one device authorization
func (mc *MetricsCollector) RecordFlowOutcome(state FlowState, duration time.Duration) {
	if !mc.active() || !state.IsTerminal() {
		return
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.flowCount++
	mc.flowLatency += duration
	mc.outcomes[state]++
}

// Snapshot returns a copy of the current metrics
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	if mc == nil {
		return MetricsSnapshot{
			Outcomes:  map[FlowState]int64{},
			Endpoints: map[string]*EndpointStats{},
		}
	}

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Uptime:       time.Since(mc.startTime),
		RequestCount: mc.requestCount,
		ErrorCount:   mc.errorCount,
		PollAttempts: mc.pollAttempts,
		FlowCount:    mc.flowCount,
		Outcomes:     make(map[FlowState]int64, len(mc.outcomes)),
		Endpoints:    make(map[string]*EndpointStats, len(mc.endpoints)),
	}
	if mc.flowCount > 0 {
		snapshot.AvgFlowDuration = mc.flowLatency / time.Duration(mc.flowCount)
	}
	for state, count := range mc.outcomes {
		snapshot.Outcomes[state] = count
	}
	for name, stats := range mc.endpoints {
		statsCopy := *stats
		statsCopy.ErrorsByType = make(map[ErrorCategory]int64, len(stats.ErrorsByType))
		for category, count := range stats.ErrorsByType {
			statsCopy.ErrorsByType[category] = count
		}
		snapshot.Endpoints[name] = &statsCopy
	}

	return snapshot
}

// Reset clears all collected metrics
func (mc *MetricsCollector) Reset() {
	if mc == nil {
		return
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.endpoints = make(map[string]*EndpointStats)
	mc.outcomes = make(map[FlowState]int64)
	mc.requestCount = 0
	mc.errorCount = 0
	mc.pollAttempts = 0
	mc.flowCount = 0
	mc.flowLatency = 0
	mc.startTime = time.Now()

	if mc.logger != nil {
		mc.logger.Info("Gateway metrics reset")
	}
}

func (mc *MetricsCollector) logMetricsSummary() {
	if mc.logger == nil {
		return
	}

	s := mc.Snapshot()
	mc.logger.Infof("Gateway metrics: %d requests, %d errors, %d poll attempts, %d authorizations (%d succeeded)",
		s.RequestCount, s.ErrorCount, s.PollAttempts, s.FlowCount, s.Outcomes[StateAuthorized])
}

// StartPeriodicLogging logs a metrics summary every interval until ctx is done
func (mc *MetricsCollector) StartPeriodicLogging(ctx context.Context, interval time.Duration) {
	if !mc.active() || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.logMetricsSummary()
			}
		}
	}()
}
