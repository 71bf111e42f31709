/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/GatewayAuth/global"
)

// Option defines a function type for configuring the MCPServer.
type Option func(*MCPServer)

// MCPServerTransport is an interface that abstracts the different transport types
//
//goland:noinspection GoNameStartsWithPackageName
type MCPServerTransport interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// MCPServer represents the server instance.
type MCPServer struct {
	listen        string
	srv           *server.MCPServer
	transport     MCPServerTransport
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	logger        global.Logger
	debug         bool
	name          string
	version       string
	noStreaming   bool
	toolProviders []global.ToolProvider
}

func WithListen(listen string) Option {
	return func(m *MCPServer) {
		m.listen = listen
	}
}

func WithLogger(logger global.Logger) Option {
	return func(m *MCPServer) {
		m.logger = logger
	}
}

func WithDebug(debug bool) Option {
	return func(m *MCPServer) {
		m.debug = debug
	}
}

func WithName(name string) Option {
	return func(m *MCPServer) {
		m.name = name
	}
}

func WithVersion(version string) Option {
	return func(m *MCPServer) {
		m.version = version
	}
}

func WithToolProviders(providers []global.ToolProvider) Option {
	return func(s *MCPServer) {
		s.toolProviders = providers
	}
}

func WithNoStreaming(noStreaming bool) Option {
	return func(m *MCPServer) {
		m.noStreaming = noStreaming
	}
}

// New creates a new MCPServer instance with the provided options.
func New(options ...Option) (*MCPServer, error) {
	m := &MCPServer{
		listen:  "localhost:8080",
		name:    "GatewayAuth",
		version: "0.0.1",
	}

	for _, opt := range options {
		opt(m)
	}

	if m.logger == nil {
		return nil, fmt.Errorf("logger not set")
	}

	hooks := &server.Hooks{}
	hooks.AddAfterListTools(m.hookAfterListTools)

	m.srv = server.NewMCPServer(m.name, m.version,
		server.WithLogging(),
		server.WithRecovery(),
		WithRequestLogging(m.logger, m.debug),
		server.WithHooks(hooks),
	)

	m.AddTools()

	return m, nil
}

// Start runs the MCP server in a background goroutine.
func (s *MCPServer) Start() error {
	if s.logger == nil {
		return fmt.Errorf("logger not set")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.noStreaming {
		s.transport = server.NewStreamableHTTPServer(s.srv)
	} else {
		s.transport = server.NewSSEServer(s.srv)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.noStreaming {
			s.logger.Infof("MCP server listening on TCP port %s (HTTP mode)", s.listen)
		} else {
			s.logger.Infof("MCP server listening on TCP port %s (SSE mode)", s.listen)
		}

		// Start returns once the transport is shut down
		if err := s.transport.Start(s.listen); err != nil && s.ctx.Err() == nil {
			s.logger.Errorf("MCP server stopped: %v", err)
		}
	}()
	return nil
}

// Stop signals the MCP server to shut down and waits for the goroutine to exit.
func (s *MCPServer) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	if s.transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		// ErrServerClosed and deadline errors are expected here
		_ = s.transport.Shutdown(ctx)
	}

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(1 * time.Second):
		s.logger.Warning("MCP server did not stop within 1s")
	}
	return nil
}

// WithRequestLogging is a middleware function that logs tool calls and their result size.
func WithRequestLogging(logger global.Logger, debug bool) server.ServerOption {
	return server.WithToolHandlerMiddleware(func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			toolName := request.Params.Name
			if provider, action, err := global.ParseToolName(toolName); err == nil {
				logger.Debugf("tools/call: provider %s action %s arguments %v", provider, action, request.GetArguments())
			} else {
				logger.Debugf("tools/call: %s arguments %v", toolName, request.GetArguments())
			}

			start := time.Now()
			result, err := next(ctx, request)
			logToolResult(logger, debug, toolName, result, time.Since(start))
			return result, err
		}
	})
}
