package driven

import (
	"context"

	"github.com/davidsparrow/findmysh/internal/core/domain"
)

// PhotoCatalog enumerates the device photo library.
type PhotoCatalog interface {
	// RequestAccess asks for permission to read the catalog.
	// Returns domain.ErrPermissionDenied when refused.
	RequestAccess(ctx context.Context) error

	// Enumerate returns up to max photo assets, paging internally.
	Enumerate(ctx context.Context, max int) ([]domain.PhotoAsset, error)

	// Contains reports whether the catalog still holds the asset.
	// Used by the refresh sweep.
	Contains(ctx context.Context, assetID string) (bool, error)
}

// FileSource enumerates files awaiting ingestion, such as a drop folder
// the user points findmysh at. Bulk runs pull from it when files are
// included; explicitly selected files bypass it via AddFiles.
type FileSource interface {
	// Enumerate returns up to max pending file paths.
	Enumerate(ctx context.Context, max int) ([]string, error)
}

// FileLibrary is the private sandbox files are copied into before
// extraction, so the original can disappear safely afterwards.
type FileLibrary interface {
	// Import copies the source file into the sandbox under the item ID.
	Import(ctx context.Context, srcPath, itemID string) (domain.CopiedFile, error)

	// Exists reports whether a library path is still present.
	Exists(path string) bool

	// Remove deletes a library copy. Missing paths are not an error.
	Remove(path string) error
}
