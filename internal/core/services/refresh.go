package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// Ensure RefreshService implements the interface.
var _ driving.Refresher = (*RefreshService)(nil)

// lastRefreshKey is the app metadata key recording the last sweep time,
// in Unix milliseconds.
const lastRefreshKey = "last_refresh_at"

// RefreshService reconciles the index with what is still on the device:
// photos no longer in the catalog and files whose library copy vanished
// are purged, everything else gets its last_seen_at re-stamped.
type RefreshService struct {
	store    driven.VectorStore
	photos   driven.PhotoCatalog
	library  driven.FileLibrary
	metadata driven.MetadataStore
}

// NewRefreshService creates a refresh service. The photo catalog is
// optional - a nil catalog skips the photo phase.
func NewRefreshService(
	store driven.VectorStore,
	photos driven.PhotoCatalog,
	library driven.FileLibrary,
	metadata driven.MetadataStore,
) *RefreshService {
	return &RefreshService{store: store, photos: photos, library: library, metadata: metadata}
}

// Refresh runs one reconciliation sweep.
func (s *RefreshService) Refresh(
	ctx context.Context,
	onProgress func(domain.RefreshProgress),
) (domain.RefreshStats, error) {
	logger.Section("Refresh Sweep")

	var stats domain.RefreshStats
	now := time.Now().UTC()
	tick := func(p domain.RefreshProgress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	tick(domain.RefreshProgress{Phase: domain.RefreshCheckingPhotos})

	if err := s.store.ClearLastSeen(ctx, domain.SourceKindPhoto); err != nil {
		return stats, fmt.Errorf("clear last seen: %w", err)
	}

	removed, err := s.sweepPhotos(ctx, now, tick)
	if err != nil {
		return stats, err
	}
	stats.PhotosRemoved = removed

	filesRemoved, err := s.sweepFiles(ctx, tick)
	if err != nil {
		return stats, err
	}
	stats.FilesRemoved = filesRemoved

	if s.metadata != nil {
		ms := strconv.FormatInt(now.UnixMilli(), 10)
		if err := s.metadata.SetMetadata(ctx, lastRefreshKey, ms); err != nil {
			logger.Warn("Recording refresh time failed: %v", err)
		}
	}

	tick(domain.RefreshProgress{Phase: domain.RefreshComplete})
	logger.Info("Refresh complete: %d photos, %d files removed", stats.PhotosRemoved, stats.FilesRemoved)
	return stats, nil
}

// sweepPhotos re-stamps photos still present in the catalog, then purges
// the ones left unseen. A denied catalog leaves photos untouched.
func (s *RefreshService) sweepPhotos(
	ctx context.Context,
	now time.Time,
	tick func(domain.RefreshProgress),
) (int, error) {
	if s.photos == nil {
		return 0, nil
	}
	if err := s.photos.RequestAccess(ctx); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			logger.Warn("Photo access denied, skipping photo sweep")
			return 0, nil
		}
		return 0, fmt.Errorf("photo access: %w", err)
	}

	items, err := s.store.ListItems(ctx, domain.SourceKindPhoto)
	if err != nil {
		return 0, fmt.Errorf("list photos: %w", err)
	}

	for i := range items {
		present, err := s.photos.Contains(ctx, items[i].Origin.AssetID)
		if err != nil {
			return 0, fmt.Errorf("check asset %s: %w", items[i].Origin.AssetID, err)
		}
		if present {
			if err := s.store.TouchLastSeen(ctx, items[i].ID, now); err != nil {
				return 0, fmt.Errorf("touch item %s: %w", items[i].ID, err)
			}
		}
		tick(domain.RefreshProgress{
			Phase:     domain.RefreshCheckingPhotos,
			Processed: i + 1,
			Total:     len(items),
		})
	}

	removed, err := s.store.PurgeUnseen(ctx, domain.SourceKindPhoto)
	if err != nil {
		return 0, fmt.Errorf("purge unseen photos: %w", err)
	}
	return removed, nil
}

// sweepFiles deletes items whose library copy no longer exists.
func (s *RefreshService) sweepFiles(ctx context.Context, tick func(domain.RefreshProgress)) (int, error) {
	tick(domain.RefreshProgress{Phase: domain.RefreshCheckingFiles})

	items, err := s.store.ListItems(ctx, domain.SourceKindFile)
	if err != nil {
		return 0, fmt.Errorf("list files: %w", err)
	}

	removed := 0
	for i := range items {
		if !s.library.Exists(items[i].Origin.LocalPath) {
			if err := s.store.DeleteItem(ctx, items[i].ID); err != nil {
				return removed, fmt.Errorf("delete item %s: %w", items[i].ID, err)
			}
			removed++
		}
		tick(domain.RefreshProgress{
			Phase:     domain.RefreshCheckingFiles,
			Processed: i + 1,
			Total:     len(items),
		})
	}
	return removed, nil
}
