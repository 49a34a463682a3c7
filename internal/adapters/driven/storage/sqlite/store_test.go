package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBundle(kind domain.SourceKind, name, text string, vector []float32) *domain.ItemBundle {
	itemID := uuid.NewString()
	origin := domain.Origin{AssetID: "asset-" + itemID}
	if kind == domain.SourceKindFile {
		origin = domain.Origin{LocalPath: "/library/" + itemID + "_" + name}
	}
	item := domain.Item{
		ID:          itemID,
		Kind:        kind,
		Origin:      origin,
		DisplayName: name,
		Status:      domain.ItemStatusIndexed,
		IndexedAt:   time.Now().UTC(),
	}
	return &domain.ItemBundle{
		Item:   item,
		Chunks: domain.SplitText(itemID, text, uuid.NewString),
		Tags: []domain.Tag{
			{ID: uuid.NewString(), ItemID: itemID, Label: "test", Confidence: 0.9},
		},
		Embedding: domain.Embedding{ID: uuid.NewString(), ItemID: itemID, Vector: vector},
	}
}

func TestCommitItemRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bundle := testBundle(domain.SourceKindFile, "receipt.pdf", "total due 42.00", []float32{0.1, 0.2, 0.3})
	require.NoError(t, store.CommitItem(ctx, bundle))

	item, err := store.GetItem(ctx, bundle.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindFile, item.Kind)
	assert.Equal(t, "receipt.pdf", item.DisplayName)
	assert.Equal(t, domain.ItemStatusIndexed, item.Status)
	assert.Equal(t, bundle.Item.Origin.LocalPath, item.Origin.LocalPath)

	chunks, err := store.GetChunks(ctx, bundle.Item.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "total due 42.00", chunks[0].Content)

	tags, err := store.GetTags(ctx, bundle.Item.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "test", tags[0].Label)
	assert.InDelta(t, 0.9, tags[0].Confidence, 1e-9)
}

func TestCommitItemRejectsInvalidKind(t *testing.T) {
	store := newTestStore(t)

	bundle := testBundle(domain.SourceKindPhoto, "sunset", "", []float32{1})
	bundle.Item.Kind = "video"

	err := store.CommitItem(context.Background(), bundle)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetItemNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetItem(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteItemCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bundle := testBundle(domain.SourceKindFile, "notes.txt", "meeting notes", []float32{0.5})
	require.NoError(t, store.CommitItem(ctx, bundle))
	require.NoError(t, store.DeleteItem(ctx, bundle.Item.ID))

	_, err := store.GetItem(ctx, bundle.Item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := store.GetChunks(ctx, bundle.Item.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	candidates, err := store.FetchCandidates(ctx, domain.CandidateFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMarkUserDeletedNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkUserDeleted(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchCandidatesVectorRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vector := []float32{0.25, -1.5, 3.75, 0}
	bundle := testBundle(domain.SourceKindPhoto, "beach", "", vector)
	require.NoError(t, store.CommitItem(ctx, bundle))

	candidates, err := store.FetchCandidates(ctx, domain.CandidateFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, bundle.Item.ID, candidates[0].ItemID)
	assert.Equal(t, vector, candidates[0].Vector)
}

func TestFetchCandidatesExcludesDeletedAndNonIndexed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kept := testBundle(domain.SourceKindFile, "kept.txt", "kept", []float32{1})
	deleted := testBundle(domain.SourceKindFile, "deleted.txt", "deleted", []float32{1})
	errored := testBundle(domain.SourceKindFile, "errored.txt", "errored", []float32{1})
	errored.Item.Status = domain.ItemStatusError

	require.NoError(t, store.CommitItem(ctx, kept))
	require.NoError(t, store.CommitItem(ctx, deleted))
	require.NoError(t, store.CommitItem(ctx, errored))
	require.NoError(t, store.MarkUserDeleted(ctx, deleted.Item.ID))

	candidates, err := store.FetchCandidates(ctx, domain.CandidateFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, kept.Item.ID, candidates[0].ItemID)
}

func TestFetchCandidatesKindAndDateFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	photo := testBundle(domain.SourceKindPhoto, "old photo", "", []float32{1})
	photo.Item.CreatedAt = &old
	file := testBundle(domain.SourceKindFile, "recent.txt", "recent", []float32{1})
	file.Item.ModifiedAt = &recent

	require.NoError(t, store.CommitItem(ctx, photo))
	require.NoError(t, store.CommitItem(ctx, file))

	photos, err := store.FetchCandidates(ctx, domain.CandidateFilter{Kind: domain.SourceKindPhoto}, 10)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, photo.Item.ID, photos[0].ItemID)

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	after, err := store.FetchCandidates(ctx, domain.CandidateFilter{
		DateOp: domain.DateOpAfter,
		From:   &cutoff,
	}, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, file.Item.ID, after[0].ItemID)

	onDay, err := store.FetchCandidates(ctx, domain.CandidateFilter{
		DateOp: domain.DateOpOnDay,
		From:   &old,
	}, 10)
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, photo.Item.ID, onDay[0].ItemID)
}

func TestFetchCandidatesHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CommitItem(ctx, testBundle(domain.SourceKindFile, "f.txt", "x", []float32{1})))
	}

	candidates, err := store.FetchCandidates(ctx, domain.CandidateFilter{}, 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestHydrateItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withText := testBundle(domain.SourceKindFile, "essay.txt", "first chunk text", []float32{1})
	noText := testBundle(domain.SourceKindPhoto, "sky", "", []float32{1})
	require.NoError(t, store.CommitItem(ctx, withText))
	require.NoError(t, store.CommitItem(ctx, noText))

	hydrated, err := store.HydrateItems(ctx, []string{withText.Item.ID, noText.Item.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, hydrated, 2)

	h, ok := hydrated[withText.Item.ID]
	require.True(t, ok)
	assert.Equal(t, "essay.txt", h.Item.DisplayName)
	assert.Equal(t, "first chunk text", h.FirstChunk)

	h, ok = hydrated[noText.Item.ID]
	require.True(t, ok)
	assert.Empty(t, h.FirstChunk)
}

func TestRefreshSweepStamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := testBundle(domain.SourceKindPhoto, "still here", "", []float32{1})
	gone := testBundle(domain.SourceKindPhoto, "gone", "", []float32{1})
	file := testBundle(domain.SourceKindFile, "file.txt", "x", []float32{1})
	require.NoError(t, store.CommitItem(ctx, seen))
	require.NoError(t, store.CommitItem(ctx, gone))
	require.NoError(t, store.CommitItem(ctx, file))

	require.NoError(t, store.ClearLastSeen(ctx, domain.SourceKindPhoto))
	require.NoError(t, store.TouchLastSeen(ctx, seen.Item.ID, time.Now().UTC()))

	purged, err := store.PurgeUnseen(ctx, domain.SourceKindPhoto)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.GetItem(ctx, gone.Item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetItem(ctx, seen.Item.ID)
	assert.NoError(t, err)

	// The file item is untouched by a photo sweep.
	_, err = store.GetItem(ctx, file.Item.ID)
	assert.NoError(t, err)
}

func TestUsageCountsAndCaps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	usage, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, usage.PhotoCap)
	assert.Equal(t, 10, usage.FileCap)
	assert.Equal(t, 0, usage.PhotoCount)

	photo := testBundle(domain.SourceKindPhoto, "p", "", []float32{1})
	file := testBundle(domain.SourceKindFile, "f.txt", "x", []float32{1})
	deleted := testBundle(domain.SourceKindFile, "d.txt", "x", []float32{1})
	require.NoError(t, store.CommitItem(ctx, photo))
	require.NoError(t, store.CommitItem(ctx, file))
	require.NoError(t, store.CommitItem(ctx, deleted))
	require.NoError(t, store.MarkUserDeleted(ctx, deleted.Item.ID))

	require.NoError(t, store.SetCaps(ctx, 50, 25))

	usage, err = store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.PhotoCount)
	assert.Equal(t, 1, usage.FileCount)
	assert.Equal(t, 50, usage.PhotoCap)
	assert.Equal(t, 25, usage.FileCap)
	assert.Equal(t, 49, usage.PhotoRemaining())
	assert.Equal(t, 24, usage.FileRemaining())
}

func TestSetCapsRejectsNegative(t *testing.T) {
	store := newTestStore(t)
	err := store.SetCaps(context.Background(), -1, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMetadataRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetMetadata(ctx, "unknown_key")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Seeded by the initial migration.
	tier, err := store.GetMetadata(ctx, "user_tier")
	require.NoError(t, err)
	assert.Equal(t, "free", tier)

	require.NoError(t, store.SetMetadata(ctx, "user_tier", "pro"))
	tier, err = store.GetMetadata(ctx, "user_tier")
	require.NoError(t, err)
	assert.Equal(t, "pro", tier)
}

func TestListItemsIncludesSoftDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active := testBundle(domain.SourceKindFile, "a.txt", "x", []float32{1})
	deleted := testBundle(domain.SourceKindFile, "b.txt", "x", []float32{1})
	require.NoError(t, store.CommitItem(ctx, active))
	require.NoError(t, store.CommitItem(ctx, deleted))
	require.NoError(t, store.MarkUserDeleted(ctx, deleted.Item.ID))

	items, err := store.ListItems(ctx, domain.SourceKindFile)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]domain.Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.False(t, byID[active.Item.ID].UserDeleted)
	assert.True(t, byID[deleted.Item.ID].UserDeleted)
}

func TestVectorCodec(t *testing.T) {
	cases := [][]float32{
		nil,
		{0},
		{1.5, -2.25, 3.125},
		{0.123456, 99999.9, -0.000001},
	}
	for _, vec := range cases {
		assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
	}
}
