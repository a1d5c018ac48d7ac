// Package mcp implements the Model Context Protocol server for the harvest
// simulator.
//
// The MCP server exposes the same capabilities as the HTTP API through MCP
// resources and tools, so an agent can list the registered rainfall/runoff
// datasets, run tank sizing simulations and read back earlier runs.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/danielcopelin/stormwater-harvesting/internal/service/simulate"
)

// Server wraps the MCP server with the simulation service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	svc       *simulate.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools and
// prompts.
func New(svc *simulate.Service, version string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"harvest",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{
				Type: "text",
				Text: msg,
			},
		},
		IsError: true,
	}
}
