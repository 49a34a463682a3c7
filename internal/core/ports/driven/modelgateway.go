package driven

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// ModelGateway abstracts the remote inference service: text extraction,
// tag generation and embedding generation.
//
// Any call may fail with a transport or model error. The ingestion
// pipeline treats such failures as per-item soft failures; the retrieval
// engine treats them as a hard failure for that query.
type ModelGateway interface {
	// ExtractText extracts text from an item's source. For photos the
	// ref is the asset's image URI; for files it is the library copy's
	// path. An empty string is a valid "no text found" result, not an
	// error.
	ExtractText(ctx context.Context, kind domain.SourceKind, ref string) (string, error)

	// GenerateTags produces short lowercase tags from extracted text.
	// Implementations cap the count (3-7 tags expected).
	GenerateTags(ctx context.Context, text string) ([]domain.Tag, error)

	// EmbedText generates one embedding vector of the corpus-fixed
	// dimension for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// ParseQuery interprets a natural-language query into structured
	// search filters. On model failure or unparseable output it returns
	// filters carrying the literal query.
	ParseQuery(ctx context.Context, query string) (domain.SearchFilters, error)

	// Dimensions returns the embedding vector size. Queries and
	// candidates must share this dimension or scoring is undefined.
	Dimensions() int

	// Close releases resources.
	Close() error
}
