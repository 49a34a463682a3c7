package driving

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// SearchService answers semantic queries over the indexed corpus.
// It is stateless and reentrant: concurrent searches are independent,
// each carrying its own cancellation via ctx.
type SearchService interface {
	// Search scores candidates against the query embedding and returns
	// a ranked, bounded result set with lexical context. A cancelled ctx
	// yields domain.ErrSearchCanceled and no partial results.
	Search(ctx context.Context, filters domain.SearchFilters) (domain.SearchResults, error)

	// ParseQuery turns a natural-language query into structured filters
	// using the model gateway, falling back to the literal query.
	ParseQuery(ctx context.Context, query string) (domain.SearchFilters, error)
}

// Refresher reconciles the index with what is still on the device.
type Refresher interface {
	// Refresh re-checks every indexed photo and file, purging those
	// whose source has disappeared.
	Refresh(ctx context.Context, onProgress func(domain.RefreshProgress)) (domain.RefreshStats, error)
}
