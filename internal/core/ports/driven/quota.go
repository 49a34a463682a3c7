package driven

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// QuotaStore answers current indexed counts and caps per source kind.
// Ingestion consults it once per run, before enumeration begins.
type QuotaStore interface {
	// Usage returns counts and caps for both kinds.
	Usage(ctx context.Context) (domain.QuotaUsage, error)

	// SetCaps updates the per-kind ceilings.
	SetCaps(ctx context.Context, photoCap, fileCap int) error
}

// MetadataStore holds small app-level key-value state, such as the
// timestamp of the last refresh sweep.
type MetadataStore interface {
	// GetMetadata returns the value for a key, or domain.ErrNotFound.
	GetMetadata(ctx context.Context, key string) (string, error)

	// SetMetadata upserts a key-value pair.
	SetMetadata(ctx context.Context, key, value string) error
}
