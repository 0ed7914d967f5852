// Package mcp exposes context building and search as MCP tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/qcrao/copilot/internal/assistant"
)

// Assistant is the part of assistant.Service the tools call.
type Assistant interface {
	BuildWith(ctx context.Context, opts assistant.BuildOptions) (assistant.Built, error)
	SearchLimit(ctx context.Context, query string, limit int) (assistant.SearchResult, error)
}

// Server wraps the MCP server with the copilot tools.
type Server struct {
	mcp          *server.MCPServer
	assistant    Assistant
	defaultLimit int
}

// New creates an MCP server with all tools registered. searchLimit is
// used when a search call names no limit.
func New(a Assistant, version string, searchLimit int) *Server {
	if searchLimit <= 0 {
		searchLimit = assistant.DefaultSearchLimit
	}
	s := &Server{assistant: a, defaultLimit: searchLimit}

	s.mcp = server.NewMCPServer(
		"copilot",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Assemble the notes the user is looking at into a token-budgeted Markdown context: "+
			"current page, visible blocks, sidebar notes and linked references, highest priority first."),
		mcp.WithString("page", mcp.Description("Build around this page title instead of the open page")),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget override (estimated as characters/4)")),
	), s.handleBuildContext)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search pages, daily notes and blocks. Results are ranked exact, prefix, "+
			"word-boundary, then substring matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.handleSearch)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
