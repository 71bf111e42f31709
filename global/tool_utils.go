/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package global

import (
	"fmt"
	"strings"
)

// ParseToolName splits a tool name of the form {provider}_{action}.
// For example: "gateway_whoami" -> ("gateway", "whoami")
func ParseToolName(toolName string) (provider string, action string, err error) {
	if toolName == "" {
		return "", "", fmt.Errorf("tool name cannot be empty")
	}

	provider, action, found := strings.Cut(toolName, "_")
	if !found {
		return "", "", fmt.Errorf("invalid tool name format: %s (expected format: provider_action)", toolName)
	}
	if provider == "" {
		return "", "", fmt.Errorf("provider cannot be empty in tool: %s", toolName)
	}
	if action == "" {
		return "", "", fmt.Errorf("action cannot be empty in tool: %s", toolName)
	}

	return provider, action, nil
}

// BuildToolName constructs a tool name from a provider and an action
func BuildToolName(provider, action string) string {
	return provider + "_" + action
}
