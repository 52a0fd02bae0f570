// Package mcp exposes the asset tool catalogue over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/provider"
)

// ToolRunner lists and executes the asset tools.
type ToolRunner interface {
	Definitions() []provider.Tool
	Call(ctx context.Context, p tenant.Principal, name, arguments string) (any, error)
}

// Option configures a Server.
type Option func(*Server)

// WithPrincipal sets the principal used when the request context carries
// none, as on stdio where there is no bearer token.
func WithPrincipal(p tenant.Principal) Option {
	return func(s *Server) {
		s.fallback = p
	}
}

// Server wraps the MCP server with the asset tools.
type Server struct {
	mcpServer *server.MCPServer
	tools     ToolRunner
	fallback  tenant.Principal
	logger    *slog.Logger
}

// NewServer creates a new MCP server registering every tool the runner
// defines.
func NewServer(tools ToolRunner, version string, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tools:  tools,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpServer := server.NewMCPServer(
		"damkit",
		version,
		server.WithToolCapabilities(true),
	)

	for _, def := range tools.Definitions() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", def.Name, err)
		}
		mcpServer.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), s.handle(def.Name))
	}

	s.mcpServer = mcpServer
	return s, nil
}

func (s *Server) principal(ctx context.Context) (tenant.Principal, bool) {
	if p, ok := tenant.FromContext(ctx); ok {
		return p, true
	}
	return s.fallback, s.fallback.Valid()
}

func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, ok := s.principal(ctx)
		if !ok {
			return mcp.NewToolResultError("Unauthorized: missing token"), nil
		}

		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.tools.Call(ctx, p, name, string(args))
		if err != nil {
			s.logger.Warn("mcp tool failed",
				slog.String("tool", name),
				slog.String("tenant_id", p.TenantID()),
				slog.Any("error", err),
			)
			return mcp.NewToolResultError("Tool execution failed: " + service.UserMessage(err)), nil
		}

		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
