package mcp

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// mockSearchService is a test double for driving.SearchService.
type mockSearchService struct {
	results     domain.SearchResults
	err         error
	lastFilters domain.SearchFilters
}

func (m *mockSearchService) Search(_ context.Context, filters domain.SearchFilters) (domain.SearchResults, error) {
	m.lastFilters = filters
	if m.err != nil {
		return domain.SearchResults{}, m.err
	}
	return m.results, nil
}

func (m *mockSearchService) ParseQuery(_ context.Context, query string) (domain.SearchFilters, error) {
	return domain.SearchFilters{Query: query, Level: 1}, nil
}
