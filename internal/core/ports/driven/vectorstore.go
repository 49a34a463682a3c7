package driven

import (
	"context"
	"time"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// VectorStore persists items, text chunks, tags and embedding vectors,
// and answers bounded filtered scans. Backed by SQLite.
type VectorStore interface {
	// CommitItem writes an item bundle in a single transaction.
	// The commit is all-or-nothing: item row, chunks, tags and embedding
	// succeed together or none do.
	CommitItem(ctx context.Context, bundle *domain.ItemBundle) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// ListItems returns items of a kind, soft-deleted ones included with
	// their UserDeleted flag set. An empty kind lists both.
	ListItems(ctx context.Context, kind domain.SourceKind) ([]domain.Item, error)

	// GetChunks returns an item's text chunks in order.
	GetChunks(ctx context.Context, itemID string) ([]domain.TextChunk, error)

	// GetTags returns an item's tags.
	GetTags(ctx context.Context, itemID string) ([]domain.Tag, error)

	// DeleteItem hard-deletes an item; chunks, tags and embedding cascade.
	DeleteItem(ctx context.Context, id string) error

	// MarkUserDeleted soft-deletes an item.
	MarkUserDeleted(ctx context.Context, id string) error

	// FetchCandidates returns up to limit (itemID, kind, origin, vector)
	// tuples matching the filter, in arbitrary store order.
	FetchCandidates(ctx context.Context, filter domain.CandidateFilter, limit int) ([]domain.Candidate, error)

	// HydrateItems returns display data for the given ids in one batched
	// lookup: the item plus its first text chunk, keyed by item ID.
	HydrateItems(ctx context.Context, ids []string) (map[string]HydratedItem, error)

	// ClearLastSeen nulls last_seen_at for every item of a kind,
	// preparing a refresh sweep.
	ClearLastSeen(ctx context.Context, kind domain.SourceKind) error

	// TouchLastSeen stamps last_seen_at on one item.
	TouchLastSeen(ctx context.Context, id string, at time.Time) error

	// PurgeUnseen hard-deletes items of a kind whose last_seen_at is
	// still null, returning how many were removed.
	PurgeUnseen(ctx context.Context, kind domain.SourceKind) (int, error)

	// Close releases resources.
	Close() error
}

// HydratedItem is the display data attached to a surviving candidate.
type HydratedItem struct {
	Item domain.Item

	// FirstChunk is the item's first text chunk content, empty when the
	// item owns no chunks.
	FirstChunk string
}
