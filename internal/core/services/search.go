package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// Ensure RetrievalEngine implements the interface.
var _ driving.SearchService = (*RetrievalEngine)(nil)

// cancelCheckStride is how many candidates are scored between
// cancellation checks.
const cancelCheckStride = 64

// RetrievalEngine converts a query into a vector, scores it against a
// bounded candidate set under a similarity threshold and returns a
// ranked, bounded result set with lexical context.
//
// The engine is stateless and reentrant; each search carries its own
// cancellation via ctx.
type RetrievalEngine struct {
	store   driven.VectorStore
	gateway driven.ModelGateway
}

// NewRetrievalEngine creates a retrieval engine.
func NewRetrievalEngine(store driven.VectorStore, gateway driven.ModelGateway) *RetrievalEngine {
	return &RetrievalEngine{store: store, gateway: gateway}
}

// Search executes one query. An empty or whitespace-only query yields an
// empty result set without calling the model gateway. A cancelled ctx
// fails with domain.ErrSearchCanceled and no partial results.
func (e *RetrievalEngine) Search(ctx context.Context, filters domain.SearchFilters) (domain.SearchResults, error) {
	logger.Section("Search Execution")

	query := filters.TrimmedQuery()
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return domain.SearchResults{Results: []domain.SearchResult{}}, nil
	}
	if e.gateway == nil {
		return domain.SearchResults{}, domain.ErrGatewayUnavailable
	}

	threshold := filters.Level.Threshold()
	logger.Debug("Query: %q, level %d (threshold %.2f)", query, filters.Level, threshold)

	if err := canceled(ctx); err != nil {
		return domain.SearchResults{}, err
	}

	queryVec, err := e.gateway.EmbedText(ctx, query)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("embed query: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(queryVec))

	if err := canceled(ctx); err != nil {
		return domain.SearchResults{}, err
	}

	candidates, err := e.store.FetchCandidates(ctx, domain.CandidateFilterFrom(filters), domain.CandidateLimit)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("fetch candidates: %w", err)
	}
	logger.Debug("Candidates: %d", len(candidates))

	if len(candidates) == 0 {
		return domain.SearchResults{Results: []domain.SearchResult{}}, nil
	}

	top, err := e.scoreCandidates(ctx, candidates, queryVec, threshold)
	if err != nil {
		return domain.SearchResults{}, err
	}
	logger.Debug("Above threshold: %d", len(top))

	if err := canceled(ctx); err != nil {
		return domain.SearchResults{}, err
	}

	results, err := e.hydrate(ctx, top)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("hydrate results: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Counts tally the final result set, not the candidate set.
	var counts domain.SearchCounts
	for i := range results {
		if results[i].Kind == domain.SourceKindPhoto {
			counts.Photos++
		} else {
			counts.Files++
		}
	}

	logger.Info("Final results: %d (%d photos, %d files)", len(results), counts.Photos, counts.Files)
	return domain.SearchResults{Results: results, Counts: counts}, nil
}

// ParseQuery interprets a natural-language query into structured filters
// via the model gateway, falling back to the literal query on failure.
func (e *RetrievalEngine) ParseQuery(ctx context.Context, query string) (domain.SearchFilters, error) {
	fallback := domain.SearchFilters{Query: query, Level: 1}
	if e.gateway == nil {
		return fallback, nil
	}

	filters, err := e.gateway.ParseQuery(ctx, query)
	if err != nil {
		logger.Warn("Query parse failed: %v (using literal query)", err)
		return fallback, nil
	}
	if filters.TrimmedQuery() == "" {
		filters.Query = query
	}
	return filters, nil
}

// scoreCandidates runs brute-force cosine scoring over the candidate
// set, keeping the top-K survivors above the threshold in a bounded
// min-heap. A candidate whose vector dimension does not match the query
// is a corrupt row: it is skipped and logged rather than failing the
// whole query.
func (e *RetrievalEngine) scoreCandidates(
	ctx context.Context,
	candidates []domain.Candidate,
	queryVec []float32,
	threshold float64,
) ([]scoredItem, error) {
	top := newTopK(domain.TopK)
	skipped := 0

	for i := range candidates {
		if i%cancelCheckStride == 0 {
			if err := canceled(ctx); err != nil {
				return nil, err
			}
		}

		score, err := domain.CosineSimilarity(queryVec, candidates[i].Vector)
		if err != nil {
			skipped++
			logger.Warn("Skipping candidate %s: %v", candidates[i].ItemID, err)
			continue
		}
		if score < threshold {
			continue
		}
		top.Offer(candidates[i].ItemID, score)
	}

	if skipped > 0 {
		logger.Warn("Skipped %d candidates with mismatched dimensions", skipped)
	}
	return top.Items(), nil
}

// hydrate attaches display data to the surviving candidates in one
// batched lookup. Items deleted since the fetch are dropped silently.
func (e *RetrievalEngine) hydrate(ctx context.Context, top []scoredItem) ([]domain.SearchResult, error) {
	if len(top) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]string, len(top))
	for i := range top {
		ids[i] = top[i].itemID
	}

	hydrated, err := e.store.HydrateItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(top))
	for _, t := range top {
		h, ok := hydrated[t.itemID]
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			ItemID:     t.itemID,
			Kind:       h.Item.Kind,
			Title:      h.Item.Title(),
			Snippet:    domain.Snippet(h.FirstChunk),
			CreatedAt:  h.Item.CreatedAt,
			ModifiedAt: h.Item.ModifiedAt,
			Origin:     h.Item.Origin,
			Score:      t.score,
		})
	}
	return results, nil
}

// canceled maps a done ctx to the distinct canceled outcome so callers
// can tell cancellation apart from failure.
func canceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return domain.ErrSearchCanceled
	}
	return nil
}

// IsCanceled reports whether an error is the cooperative-cancellation
// outcome rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, domain.ErrSearchCanceled)
}
