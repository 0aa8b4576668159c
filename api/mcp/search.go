package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/api/search"
)

var (
	searchToolName    = "search_images"
	searchDescription = "Search stored site photos by text description, by a reference image id, or both. " +
		"Results can be restricted to a building and an inclusive shot date range (YYYY-MM-DD) " +
		"and are ordered by descending similarity."
)

// handleSearch processes a search_images request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input search.Input) (*mcp.CallToolResult, search.Output, error) {
	logger := s.config.Logger

	logger.Debug("MCP search request",
		zap.String("query", input.Query),
		zap.String("query_image_id", input.QueryImageID),
		zap.Int("top_k", input.TopK),
	)

	output, err := s.config.Searcher.Search(ctx, input)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return toolError(fmt.Sprintf("Search failed: %v", err)), emptyOutput(), nil
	}

	// Tools returning structured content also return it serialized in a
	// TextContent block for clients that only read text.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), emptyOutput(), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, *output, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// emptyOutput keeps results a JSON array so error results still satisfy the
// tool's output schema.
func emptyOutput() search.Output {
	return search.Output{Results: []search.Result{}}
}
