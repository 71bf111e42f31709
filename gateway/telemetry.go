/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"maps"
	"slices"
	"strings"

	"github.com/PivotLLM/GatewayAuth/global"
)

// Telemetry events emitted by this package
const (
	EventAuthorize = "gateway_authorize"
	EventLogout    = "gateway_logout"
)

// TelemetrySink receives identity and event notifications. Delivery to an
// analytics backend is the host's concern.
type TelemetrySink interface {
	Identify(distinctID string, properties map[string]string)
	Capture(event string, properties map[string]string)
}

// LoggingTelemetrySink writes telemetry calls to a logger
type LoggingTelemetrySink struct {
	logger global.Logger
}

// NewLoggingTelemetrySink creates a sink that logs at debug level
func NewLoggingTelemetrySink(logger global.Logger) *LoggingTelemetrySink {
	return &LoggingTelemetrySink{logger: logger}
}

// Identify implements TelemetrySink
func (s *LoggingTelemetrySink) Identify(distinctID string, properties map[string]string) {
	if s.logger != nil {
		s.logger.Debugf("telemetry identify %s %s", SanitizeEmailOrID(distinctID), formatProperties(properties))
	}
}

// Capture implements TelemetrySink
func (s *LoggingTelemetrySink) Capture(event string, properties map[string]string) {
	if s.logger != nil {
		s.logger.Debugf("telemetry capture %s %s", event, formatProperties(properties))
	}
}

// SanitizeEmailOrID redacts emails and leaves opaque ids untouched
func SanitizeEmailOrID(value string) string {
	if strings.Contains(value, "@") {
		return SanitizeEmailForLogging(value)
	}
	return value
}

func formatProperties(properties map[string]string) string {
	keys := slices.Sorted(maps.Keys(properties))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+properties[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
