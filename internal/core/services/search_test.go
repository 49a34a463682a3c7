package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidsparrow/findmysh/internal/adapters/driven/storage/memory"
	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// seedItem commits one indexed item with the given vector and text.
func seedItem(t *testing.T, store *memory.Store, name string, kind domain.SourceKind, vector []float32, text string) string {
	t.Helper()
	itemID := uuid.NewString()
	origin := domain.Origin{AssetID: "asset-" + itemID}
	if kind == domain.SourceKindFile {
		origin = domain.Origin{LocalPath: "/library/" + itemID}
	}
	bundle := &domain.ItemBundle{
		Item: domain.Item{
			ID:          itemID,
			Kind:        kind,
			Origin:      origin,
			DisplayName: name,
			Status:      domain.ItemStatusIndexed,
			IndexedAt:   time.Now().UTC(),
		},
		Chunks:    domain.SplitText(itemID, text, uuid.NewString),
		Embedding: domain.Embedding{ID: uuid.NewString(), ItemID: itemID, Vector: vector},
	}
	require.NoError(t, store.CommitItem(context.Background(), bundle))
	return itemID
}

func searchGateway(queryVec []float32) *mockGateway {
	gateway := newMockGateway(len(queryVec))
	gateway.embedFn = func(string) ([]float32, error) {
		return queryVec, nil
	}
	return gateway
}

func TestSearchEmptyQuerySkipsGateway(t *testing.T) {
	gateway := newMockGateway(2)
	engine := NewRetrievalEngine(memory.NewStore(), gateway)

	for _, query := range []string{"", "   ", "\t\n"} {
		results, err := engine.Search(context.Background(), domain.SearchFilters{Query: query})
		require.NoError(t, err)
		assert.NotNil(t, results.Results)
		assert.Empty(t, results.Results)
	}
	assert.Equal(t, 0, gateway.embedCount())
}

func TestSearchRanksByScoreDescending(t *testing.T) {
	store := memory.NewStore()
	// Query vector is [1,0]; cosine similarity degrades as the angle grows.
	exact := seedItem(t, store, "invoice.pdf", domain.SourceKindFile, []float32{1, 0}, "invoice total 42")
	close_ := seedItem(t, store, "tax-return.pdf", domain.SourceKindFile, []float32{0.9, 0.2}, "tax filing")
	far := seedItem(t, store, "beach.jpg", domain.SourceKindPhoto, []float32{0, 1}, "")

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{Query: "invoice", Level: 1})
	require.NoError(t, err)

	// The orthogonal vector scores 0, far below every threshold.
	require.Len(t, results.Results, 2)
	assert.Equal(t, exact, results.Results[0].ItemID)
	assert.Equal(t, close_, results.Results[1].ItemID)
	assert.Greater(t, results.Results[0].Score, results.Results[1].Score)
	assert.Equal(t, "invoice total 42", results.Results[0].Snippet)

	assert.Equal(t, domain.SearchCounts{Files: 2}, results.Counts)
	for _, r := range results.Results {
		assert.NotEqual(t, far, r.ItemID)
	}
}

func TestSearchAssociationLevelWidensResults(t *testing.T) {
	store := memory.NewStore()
	// Scores: 1.0 and ~0.707 against query [1,0].
	seedItem(t, store, "exact", domain.SourceKindFile, []float32{1, 0}, "")
	seedItem(t, store, "loose", domain.SourceKindFile, []float32{1, 1}, "")

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	narrow, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 0})
	require.NoError(t, err)
	assert.Len(t, narrow.Results, 1)

	broad, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 3})
	require.NoError(t, err)
	assert.Len(t, broad.Results, 2)
}

func TestSearchBoundsResultCount(t *testing.T) {
	store := memory.NewStore()
	for i := 0; i < domain.TopK+50; i++ {
		seedItem(t, store, fmt.Sprintf("item-%d", i), domain.SourceKindFile, []float32{1, 0}, "")
	}

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 1})
	require.NoError(t, err)
	assert.Len(t, results.Results, domain.TopK)
}

func TestSearchKindFilter(t *testing.T) {
	store := memory.NewStore()
	photo := seedItem(t, store, "p", domain.SourceKindPhoto, []float32{1, 0}, "")
	seedItem(t, store, "f", domain.SourceKindFile, []float32{1, 0}, "")

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{
		Query: "q",
		Kind:  domain.SourceKindPhoto,
		Level: 1,
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, photo, results.Results[0].ItemID)
	assert.Equal(t, domain.SearchCounts{Photos: 1}, results.Counts)
}

func TestSearchExcludesSoftDeleted(t *testing.T) {
	store := memory.NewStore()
	deleted := seedItem(t, store, "gone", domain.SourceKindFile, []float32{1, 0}, "")
	require.NoError(t, store.MarkUserDeleted(context.Background(), deleted))

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 3})
	require.NoError(t, err)
	assert.Empty(t, results.Results)
}

func TestSearchSkipsDimensionMismatchedCandidates(t *testing.T) {
	store := memory.NewStore()
	good := seedItem(t, store, "good", domain.SourceKindFile, []float32{1, 0}, "")
	seedItem(t, store, "corrupt", domain.SourceKindFile, []float32{1, 0, 0}, "")

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 1})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, good, results.Results[0].ItemID)
}

func TestSearchCanceledContext(t *testing.T) {
	store := memory.NewStore()
	seedItem(t, store, "item", domain.SourceKindFile, []float32{1, 0}, "")

	engine := NewRetrievalEngine(store, searchGateway([]float32{1, 0}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, domain.SearchFilters{Query: "q", Level: 1})
	assert.ErrorIs(t, err, domain.ErrSearchCanceled)
	assert.True(t, IsCanceled(err))
}

func TestSearchGatewayFailureIsHard(t *testing.T) {
	store := memory.NewStore()
	seedItem(t, store, "item", domain.SourceKindFile, []float32{1, 0}, "")

	gateway := newMockGateway(2)
	gateway.embedFn = func(string) ([]float32, error) {
		return nil, domain.ErrGatewayUnavailable
	}
	engine := NewRetrievalEngine(store, gateway)

	_, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 1})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

// missingHydrator drops one id from hydration, simulating an item
// deleted between the candidate fetch and the hydration lookup.
type missingHydrator struct {
	driven.VectorStore
	missing string
}

func (m *missingHydrator) HydrateItems(ctx context.Context, ids []string) (map[string]driven.HydratedItem, error) {
	out, err := m.VectorStore.HydrateItems(ctx, ids)
	delete(out, m.missing)
	return out, err
}

func TestSearchDropsResultsMissingAtHydration(t *testing.T) {
	store := memory.NewStore()
	kept := seedItem(t, store, "kept", domain.SourceKindFile, []float32{1, 0}, "")
	vanished := seedItem(t, store, "vanished", domain.SourceKindFile, []float32{1, 0}, "")

	engine := NewRetrievalEngine(&missingHydrator{VectorStore: store, missing: vanished}, searchGateway([]float32{1, 0}))

	results, err := engine.Search(context.Background(), domain.SearchFilters{Query: "q", Level: 1})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, kept, results.Results[0].ItemID)
}

func TestParseQueryFallsBackOnGatewayError(t *testing.T) {
	gateway := newMockGateway(2)
	gateway.parseFn = func(string) (domain.SearchFilters, error) {
		return domain.SearchFilters{}, errors.New("model unavailable")
	}
	engine := NewRetrievalEngine(memory.NewStore(), gateway)

	filters, err := engine.ParseQuery(context.Background(), "tax stuff from march")
	require.NoError(t, err)
	assert.Equal(t, "tax stuff from march", filters.Query)
	assert.Equal(t, domain.AssociationLevel(1), filters.Level)
}

func TestParseQueryPreservesLiteralOnEmptyParse(t *testing.T) {
	gateway := newMockGateway(2)
	gateway.parseFn = func(string) (domain.SearchFilters, error) {
		return domain.SearchFilters{Kind: domain.SourceKindPhoto, Level: 2}, nil
	}
	engine := NewRetrievalEngine(memory.NewStore(), gateway)

	filters, err := engine.ParseQuery(context.Background(), "beach")
	require.NoError(t, err)
	assert.Equal(t, "beach", filters.Query)
	assert.Equal(t, domain.SourceKindPhoto, filters.Kind)
}
