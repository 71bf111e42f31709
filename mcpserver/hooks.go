/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PivotLLM/GatewayAuth/global"
)

//goland:noinspection GoUnusedParameter
func (s *MCPServer) hookAfterListTools(ctx context.Context, id any, request *mcp.ListToolsRequest, result *mcp.ListToolsResult) {
	if s.debug {
		s.logger.Debugf("%s: %v", request.Request.Method, result.Tools)
	} else {
		s.logger.Infof("%s: %d tools returned", request.Request.Method, len(result.Tools))
	}
}

// resultSize returns the number of bytes of text carried by a tool result
func resultSize(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}

	var size int
	for _, content := range result.Content {
		// Content items are usually value types
		switch c := content.(type) {
		case mcp.TextContent:
			size += len(c.Text)
		case *mcp.TextContent:
			size += len(c.Text)
		}
	}
	return size
}

func logToolResult(logger global.Logger, debug bool, toolName string, result *mcp.CallToolResult, elapsed time.Duration) {
	size := resultSize(result)
	failed := result != nil && result.IsError

	switch {
	case failed:
		logger.Warningf("tools/call: %s failed after %s", toolName, elapsed)
	case debug:
		logger.Debugf("tools/call: %s completed in %s, response size: %d bytes", toolName, elapsed, size)
	default:
		logger.Infof("tools/call: %s completed (%d bytes)", toolName, size)
	}
}
