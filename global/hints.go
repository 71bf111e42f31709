/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package global

// ToolHints are the MCP behavior annotations of a tool. A nil field is
// left unset on the tool.
type ToolHints struct {
	ReadOnly    *bool
	Destructive *bool
	Idempotent  *bool
	OpenWorld   *bool // calls a remote service
}

// BoolPtr returns a pointer to the provided boolean value.
func BoolPtr(b bool) *bool {
	return &b
}

// ReadOnlyHints returns the hints of a tool that only reports state.
// openWorld is set when the tool calls a remote service.
func ReadOnlyHints(openWorld bool) ToolHints {
	return ToolHints{
		ReadOnly:    BoolPtr(true),
		Destructive: BoolPtr(false),
		Idempotent:  BoolPtr(true),
		OpenWorld:   BoolPtr(openWorld),
	}
}

// IsSet reports whether any hint has a value
func (h ToolHints) IsSet() bool {
	return h.ReadOnly != nil || h.Destructive != nil || h.Idempotent != nil || h.OpenWorld != nil
}
