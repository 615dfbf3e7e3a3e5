// Package mcp exposes the hub tool registry as a Model Context Protocol
// server so external MCP clients can drive the same tools the agent uses.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/casahub/concierge/internal/tool"
)

// Server wraps the tool registry as an MCP server over stdio.
type Server struct {
	registry  *tool.Registry
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer builds an MCP server advertising every registered tool with its
// original JSON schema. Validation and dispatch go through the same registry
// path the agent loop uses.
func NewServer(version string, reg *tool.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry:  reg,
		mcpServer: server.NewMCPServer("concierge", version),
		logger:    logger,
	}
	s.registerTools()
	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	for _, def := range s.registry.Definitions() {
		name := def.Name
		s.mcpServer.AddTool(
			mcp.NewToolWithRawSchema(name, def.Description, def.Parameters),
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args, err := json.Marshal(request.GetArguments())
				if err != nil {
					return mcp.NewToolResultError("invalid arguments"), nil
				}

				res, err := s.registry.Execute(ctx, name, args)
				if err != nil {
					s.logger.Warn("mcp tool call failed", "tool", name, "error", err)
					return mcp.NewToolResultError(err.Error()), nil
				}

				return mcp.NewToolResultText(string(res.Payload)), nil
			},
		)
	}
}
