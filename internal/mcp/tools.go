package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/qcrao/copilot/internal/assistant"
)

func (s *Server) handleBuildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := assistant.BuildOptions{
		Page:      strings.TrimSpace(req.GetString("page", "")),
		MaxTokens: req.GetInt("max_tokens", 0),
	}
	if opts.MaxTokens < 0 {
		return mcp.NewToolResultError("max_tokens must not be negative"), nil
	}

	built, err := s.assistant.BuildWith(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}

	text := built.Text
	if text == "" {
		text = "No context available."
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewTextContent(summary(built)),
		},
	}, nil
}

// summary reports budget use and any unavailable sources.
func summary(b assistant.Built) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tokens: %d/%d", b.TokensUsed, b.Budget)
	for _, a := range b.Allocations {
		switch {
		case a.Omitted:
			fmt.Fprintf(&sb, "\n%s: omitted", a.Kind)
		case a.Truncated:
			fmt.Fprintf(&sb, "\n%s: truncated to %d tokens", a.Kind, a.Used)
		}
	}
	for _, w := range b.Warnings {
		fmt.Fprintf(&sb, "\nwarning: %s", w.Error())
	}
	return sb.String()
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	limit := req.GetInt("limit", s.defaultLimit)
	if limit <= 0 {
		limit = s.defaultLimit
	}

	res, err := s.assistant.SearchLimit(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(res.Candidates) == 0 && len(res.Warnings) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
