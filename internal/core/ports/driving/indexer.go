package driving

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// IngestListener observes ingestion progress. Listeners receive every
// state transition and every progress tick. Delivery is bounded and
// dropping - a slow listener loses ticks rather than blocking the run.
type IngestListener func(domain.IngestProgress)

// Indexer drives ingestion runs. Only one run may be active at a time;
// concurrent starts fail with domain.ErrIngestionInProgress.
type Indexer interface {
	// Start runs a bulk ingestion over freshly enumerated items,
	// up to the remaining quota. It blocks until the run finishes.
	Start(ctx context.Context, opts domain.IngestOptions) error

	// AddFiles ingests user-selected files through the same machine.
	// The input is truncated to the remaining file quota; quota already
	// exhausted before any work is a hard domain.ErrQuotaExceeded.
	AddFiles(ctx context.Context, paths []string) error

	// Cancel requests cooperative cancellation. The in-flight item
	// completes or fails; subsequent items and batches are skipped.
	Cancel()

	// Subscribe registers a progress listener and returns its
	// unsubscribe handle.
	Subscribe(listener IngestListener) (unsubscribe func())
}
