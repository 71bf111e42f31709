/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/GatewayAuth/global"
)

// AddTools registers the tools of every provider with the MCP server
func (s *MCPServer) AddTools() {
	for _, provider := range s.toolProviders {
		for _, toolDef := range provider.RegisterTools() {
			s.srv.AddTool(buildTool(toolDef), s.toolHandler(toolDef))
		}
	}
}

// buildTool converts a tool definition into an MCP tool
func buildTool(toolDef global.ToolDefinition) mcp.Tool {
	toolOptions := []mcp.ToolOption{
		mcp.WithDescription(toolDef.Description),
	}

	for _, param := range toolDef.Parameters {
		options := []mcp.PropertyOption{mcp.Description(param.EnhancedDescription())}
		if param.Required {
			options = append(options, mcp.Required())
		}

		switch param.Type {
		case "number":
			toolOptions = append(toolOptions, mcp.WithNumber(param.Name, options...))
		case "boolean":
			toolOptions = append(toolOptions, mcp.WithBoolean(param.Name, options...))
		default:
			toolOptions = append(toolOptions, mcp.WithString(param.Name, options...))
		}
	}

	hints := toolDef.Hints
	if hints.ReadOnly != nil {
		toolOptions = append(toolOptions, mcp.WithReadOnlyHintAnnotation(*hints.ReadOnly))
	}
	if hints.Destructive != nil {
		toolOptions = append(toolOptions, mcp.WithDestructiveHintAnnotation(*hints.Destructive))
	}
	if hints.Idempotent != nil {
		toolOptions = append(toolOptions, mcp.WithIdempotentHintAnnotation(*hints.Idempotent))
	}
	if hints.OpenWorld != nil {
		toolOptions = append(toolOptions, mcp.WithOpenWorldHintAnnotation(*hints.OpenWorld))
	}

	return mcp.NewTool(toolDef.Name, toolOptions...)
}

// toolHandler adapts a tool definition handler to the MCP server. Handler
// errors are reported as tool results so the client can show them.
func (s *MCPServer) toolHandler(toolDef global.ToolDefinition) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		options := req.GetArguments()
		if options == nil {
			options = map[string]any{}
		}

		result, err := toolDef.Handler(ctx, options)
		if err != nil {
			s.logger.Errorf("Tool %s failed: %v", toolDef.Name, err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}
