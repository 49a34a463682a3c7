package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query describing what to find"`
	Kind  string `json:"kind,omitempty" jsonschema:"restrict to 'photo' or 'file'"`
	Level int    `json:"level,omitempty" jsonschema:"association level 0 (narrow) to 3 (broad), default 1"`
	After string `json:"after,omitempty" jsonschema:"only items dated on or after this day (YYYY-MM-DD)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Photos  int                  `json:"photos"`
	Files   int                  `json:"files"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ItemID  string  `json:"item_id"`
	Kind    string  `json:"kind"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed photos and files by meaning",
	}, s.handleSearch)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	filters := domain.SearchFilters{
		Query: input.Query,
		Level: domain.AssociationLevel(input.Level),
	}
	if kind := domain.SourceKind(input.Kind); kind.IsValid() {
		filters.Kind = kind
	}
	if input.After != "" {
		t, err := time.Parse("2006-01-02", input.After)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("invalid after date %q: use YYYY-MM-DD", input.After)
		}
		filters.DateOp = domain.DateOpAfter
		filters.From = &t
	}

	results, err := s.ports.Search.Search(ctx, filters)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results.Results)),
		Photos:  results.Counts.Photos,
		Files:   results.Counts.Files,
	}
	for i, r := range results.Results {
		output.Results[i] = SearchResultOutput{
			ItemID:  r.ItemID,
			Kind:    r.Kind.String(),
			Title:   r.Title,
			Snippet: r.Snippet,
			Source:  r.Origin.Ref(),
			Score:   r.Score,
		}
	}

	return nil, output, nil
}
