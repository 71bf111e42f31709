/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package global

import (
	"context"
	"fmt"
)

// Parameter describes one argument of a tool
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`    // "string", "number", "boolean"
	Default     any    `json:"default"` // Default value
	Enum        []any  `json:"enum"`    // Valid values
}

// EnhancedDescription appends the default and valid values to the description
func (p Parameter) EnhancedDescription() string {
	desc := p.Description

	if p.Default != nil {
		desc += fmt.Sprintf(" (default: %v)", p.Default)
	}
	if len(p.Enum) > 0 {
		desc += fmt.Sprintf(" (valid: %v)", p.Enum)
	}

	return desc
}

//
// Tools
//

// ToolDefinition represents the structure of a tool
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Hints       ToolHints
	Handler     ToolHandler
}

// ToolHandler defines the function signature for our tool handler
type ToolHandler func(ctx context.Context, options map[string]any) (string, error)

// ToolProvider defines an interface for providing tools
type ToolProvider interface {
	RegisterTools() []ToolDefinition
}
