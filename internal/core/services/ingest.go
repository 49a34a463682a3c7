package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
	"github.com/davidsparrow/findmysh/internal/core/ports/driving"
	"github.com/davidsparrow/findmysh/internal/logger"
)

// Ensure IngestionPipeline implements the interface.
var _ driving.Indexer = (*IngestionPipeline)(nil)

// BatchSize is how many items are dispatched between yield points.
const BatchSize = 20

// IngestionPipeline drives items through extraction, tagging, embedding
// and commit. It is a session object: construct one, inject it where
// needed, and its atomic guard keeps runs mutually exclusive.
type IngestionPipeline struct {
	store   driven.VectorStore
	gateway driven.ModelGateway
	quota   driven.QuotaStore
	photos  driven.PhotoCatalog
	files   driven.FileSource
	library driven.FileLibrary

	broadcast *progressBroadcaster
	running   atomic.Bool
	cancelled atomic.Bool

	// Run bookkeeping, guarded while a run mutates it.
	mu          sync.Mutex
	state       domain.IndexState
	processed   int
	total       int
	currentKind domain.SourceKind
	errorCount  int
}

// NewIngestionPipeline creates an ingestion pipeline.
// The photo catalog and file source are optional - a nil catalog means
// bulk runs never see photos, a nil file source means files only arrive
// through AddFiles.
func NewIngestionPipeline(
	store driven.VectorStore,
	gateway driven.ModelGateway,
	quota driven.QuotaStore,
	photos driven.PhotoCatalog,
	files driven.FileSource,
	library driven.FileLibrary,
) *IngestionPipeline {
	return &IngestionPipeline{
		store:     store,
		gateway:   gateway,
		quota:     quota,
		photos:    photos,
		files:     files,
		library:   library,
		broadcast: newProgressBroadcaster(),
		state:     domain.StateIdle,
	}
}

// Subscribe registers a progress listener.
func (p *IngestionPipeline) Subscribe(listener driving.IngestListener) func() {
	return p.broadcast.Subscribe(listener)
}

// Cancel requests cooperative cancellation. The in-flight item completes
// or fails; subsequent items and batches are skipped. Already-committed
// items are not rolled back.
func (p *IngestionPipeline) Cancel() {
	p.cancelled.Store(true)
}

// Running reports whether a run is currently active.
func (p *IngestionPipeline) Running() bool {
	return p.running.Load()
}

// ErrorCount returns how many items soft-failed during the last run.
func (p *IngestionPipeline) ErrorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorCount
}

// Start runs a bulk ingestion over freshly enumerated items up to the
// remaining per-kind quota. It blocks until the run finishes and fails
// fast with domain.ErrIngestionInProgress if a run is already active.
func (p *IngestionPipeline) Start(ctx context.Context, opts domain.IngestOptions) error {
	if !p.running.CompareAndSwap(false, true) {
		return domain.ErrIngestionInProgress
	}
	defer p.running.Store(false)
	p.beginRun()

	logger.Section("Ingestion Run")

	p.setState(domain.StateRequestingPermissions, "")

	usage, err := p.quota.Usage(ctx)
	if err != nil {
		return p.failRun(fmt.Errorf("read quota: %w", err))
	}

	var photoAssets []domain.PhotoAsset
	if opts.IncludePhotos && p.photos != nil && usage.PhotoRemaining() > 0 {
		photoAssets, err = p.enumeratePhotos(ctx, usage.PhotoRemaining(), opts.RequirePhotos)
		if err != nil {
			return p.failRun(err)
		}
	}

	var filePaths []string
	if opts.IncludeFiles && p.files != nil && usage.FileRemaining() > 0 {
		p.setState(domain.StateEnumerating, "")
		filePaths, err = p.files.Enumerate(ctx, usage.FileRemaining())
		if err != nil {
			return p.failRun(fmt.Errorf("enumerate files: %w", err))
		}
	}

	p.setTotal(len(photoAssets) + len(filePaths))
	logger.Info("Run target: %d photos, %d files", len(photoAssets), len(filePaths))

	if len(photoAssets) > 0 {
		p.setKind(domain.SourceKindPhoto)
		p.setState(domain.StateProcessingPhotos, "")
		p.processBatches(ctx, len(photoAssets), func(ctx context.Context, i int) error {
			return p.processPhotoItem(ctx, photoAssets[i])
		})
	}

	if len(filePaths) > 0 && !p.cancelled.Load() {
		p.setKind(domain.SourceKindFile)
		p.setState(domain.StateProcessingFilesIntake, "")
		p.processBatches(ctx, len(filePaths), func(ctx context.Context, i int) error {
			return p.processFileItem(ctx, filePaths[i])
		})
	}

	p.setState(domain.StateComplete, domain.EventComplete)
	return nil
}

// AddFiles ingests user-selected files through the same machine.
// The input is truncated to the remaining file quota; a quota already
// exhausted before any work is a hard failure.
func (p *IngestionPipeline) AddFiles(ctx context.Context, paths []string) error {
	if !p.running.CompareAndSwap(false, true) {
		return domain.ErrIngestionInProgress
	}
	defer p.running.Store(false)
	p.beginRun()

	logger.Section("File Intake")

	usage, err := p.quota.Usage(ctx)
	if err != nil {
		return p.failRun(fmt.Errorf("read quota: %w", err))
	}

	available := usage.FileRemaining()
	if available <= 0 {
		return p.failRun(domain.ErrQuotaExceeded)
	}

	if len(paths) > available {
		logger.Warn("Truncating intake from %d to %d files (quota)", len(paths), available)
		paths = paths[:available]
	}

	p.setTotal(len(paths))
	p.setKind(domain.SourceKindFile)
	p.setState(domain.StateProcessingFilesIntake, "")

	p.processBatches(ctx, len(paths), func(ctx context.Context, i int) error {
		return p.processFileItem(ctx, paths[i])
	})

	p.setState(domain.StateComplete, domain.EventComplete)
	return nil
}

// enumeratePhotos requests catalog access and pages assets up to max.
// Permission denial yields zero candidates unless photos were required.
func (p *IngestionPipeline) enumeratePhotos(ctx context.Context, max int, required bool) ([]domain.PhotoAsset, error) {
	if err := p.photos.RequestAccess(ctx); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) && !required {
			logger.Warn("Photo access denied, skipping photos")
			return nil, nil
		}
		return nil, fmt.Errorf("photo access: %w", err)
	}

	p.setState(domain.StateEnumerating, "")
	assets, err := p.photos.Enumerate(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("enumerate photos: %w", err)
	}
	return assets, nil
}

// processBatches walks items in fixed-size batches, checking for
// cancellation at every batch boundary and at the top of each item.
// Per-item failures are soft: counted as processed, run continues.
func (p *IngestionPipeline) processBatches(ctx context.Context, n int, process func(context.Context, int) error) {
	for start := 0; start < n; start += BatchSize {
		if p.shouldStop(ctx) {
			return
		}

		end := start + BatchSize
		if end > n {
			end = n
		}

		for i := start; i < end; i++ {
			if p.shouldStop(ctx) {
				return
			}

			p.emit(domain.IngestProgress{Event: domain.EventSpawn})

			if err := process(ctx, i); err != nil {
				p.itemFailed(err)
				continue
			}

			p.itemDone()
		}
	}
}

// processPhotoItem drives one photo through the item pipeline.
func (p *IngestionPipeline) processPhotoItem(ctx context.Context, asset domain.PhotoAsset) error {
	itemID := uuid.New().String()

	p.setState(domain.StateExtractingText, domain.EventScan)
	text, err := p.gateway.ExtractText(ctx, domain.SourceKindPhoto, asset.URI)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	tags, err := p.generateTags(ctx, itemID, text)
	if err != nil {
		return err
	}

	vector, err := p.embed(ctx, asset.Filename, text, tags)
	if err != nil {
		return err
	}

	p.setState(domain.StateSaving, domain.EventSave)
	now := time.Now().UTC()
	bundle := &domain.ItemBundle{
		Item: domain.Item{
			ID:          itemID,
			Kind:        domain.SourceKindPhoto,
			Origin:      domain.Origin{AssetID: asset.AssetID},
			DisplayName: asset.Filename,
			CreatedAt:   asset.CreatedAt,
			ModifiedAt:  asset.ModifiedAt,
			Status:      domain.ItemStatusIndexed,
			LastSeenAt:  &now,
			IndexedAt:   now,
		},
		Chunks:    domain.SplitText(itemID, text, newRowID),
		Tags:      tags,
		Embedding: domain.Embedding{ID: newRowID(), ItemID: itemID, Vector: vector},
	}

	if err := p.store.CommitItem(ctx, bundle); err != nil {
		return fmt.Errorf("commit item: %w", err)
	}
	return nil
}

// processFileItem copies one file into the library, then drives it
// through the item pipeline.
func (p *IngestionPipeline) processFileItem(ctx context.Context, srcPath string) error {
	itemID := uuid.New().String()

	p.setState(domain.StateCopyingToLibrary, "")
	copied, err := p.library.Import(ctx, srcPath, itemID)
	if err != nil {
		return fmt.Errorf("copy to library: %w", err)
	}

	p.setState(domain.StateExtractingText, domain.EventScan)
	text, err := p.gateway.ExtractText(ctx, domain.SourceKindFile, copied.LocalPath)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	tags, err := p.generateTags(ctx, itemID, text)
	if err != nil {
		return err
	}

	vector, err := p.embed(ctx, copied.OriginalFilename, text, tags)
	if err != nil {
		return err
	}

	p.setState(domain.StateSaving, domain.EventSave)
	now := time.Now().UTC()
	size := copied.SizeBytes
	bundle := &domain.ItemBundle{
		Item: domain.Item{
			ID:               itemID,
			Kind:             domain.SourceKindFile,
			Origin:           domain.Origin{LocalPath: copied.LocalPath},
			DisplayName:      copied.OriginalFilename,
			OriginalFilename: copied.OriginalFilename,
			CreatedAt:        &now,
			ModifiedAt:       copied.ModifiedAt,
			SizeBytes:        &size,
			Status:           domain.ItemStatusIndexed,
			IndexedAt:        now,
		},
		Chunks:    domain.SplitText(itemID, text, newRowID),
		Tags:      tags,
		Embedding: domain.Embedding{ID: newRowID(), ItemID: itemID, Vector: vector},
	}

	if err := p.store.CommitItem(ctx, bundle); err != nil {
		return fmt.Errorf("commit item: %w", err)
	}
	return nil
}

// generateTags tags the extracted text. Items with no text own no tags.
func (p *IngestionPipeline) generateTags(ctx context.Context, itemID, text string) ([]domain.Tag, error) {
	p.setState(domain.StateTagging, "")
	if text == "" {
		return nil, nil
	}

	tags, err := p.gateway.GenerateTags(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generate tags: %w", err)
	}
	for i := range tags {
		tags[i].ID = newRowID()
		tags[i].ItemID = itemID
	}
	return tags, nil
}

// embed builds the embedding input from name, text and tags and requests
// one vector, checking it against the corpus dimension.
func (p *IngestionPipeline) embed(ctx context.Context, name, text string, tags []domain.Tag) ([]float32, error) {
	p.setState(domain.StateEmbedding, domain.EventEmbed)

	input := domain.EmbeddingInput(name, text, tags)
	vector, err := p.gateway.EmbedText(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("embed item: %w", err)
	}
	if want := p.gateway.Dimensions(); want > 0 && len(vector) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vector), want)
	}
	return vector, nil
}

// --- run bookkeeping ---

func (p *IngestionPipeline) beginRun() {
	p.cancelled.Store(false)
	p.mu.Lock()
	p.state = domain.StateIdle
	p.processed = 0
	p.total = 0
	p.currentKind = ""
	p.errorCount = 0
	p.mu.Unlock()
}

func (p *IngestionPipeline) shouldStop(ctx context.Context) bool {
	return p.cancelled.Load() || ctx.Err() != nil
}

func (p *IngestionPipeline) setState(state domain.IndexState, event domain.IndexEvent) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	p.emit(domain.IngestProgress{Event: event})
}

func (p *IngestionPipeline) setTotal(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
	p.emit(domain.IngestProgress{})
}

func (p *IngestionPipeline) setKind(kind domain.SourceKind) {
	p.mu.Lock()
	p.currentKind = kind
	p.mu.Unlock()
}

// itemDone counts a successful item and emits a progress tick.
func (p *IngestionPipeline) itemDone() {
	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
	p.emit(domain.IngestProgress{})
}

// itemFailed counts a failed item as processed, keeping progress
// monotonic and total-consistent, and moves the run along.
func (p *IngestionPipeline) itemFailed(err error) {
	logger.Warn("Item failed: %v", err)
	p.mu.Lock()
	p.processed++
	p.errorCount++
	p.state = domain.StateErrorItem
	p.mu.Unlock()
	p.emit(domain.IngestProgress{Event: domain.EventError, Error: err.Error()})
}

// failRun marks the run as failed and surfaces the error.
func (p *IngestionPipeline) failRun(err error) error {
	p.mu.Lock()
	p.state = domain.StateError
	p.mu.Unlock()
	p.emit(domain.IngestProgress{Event: domain.EventError, Error: err.Error()})
	return err
}

// emit publishes a progress record built from current run state plus the
// given event/error annotations. Progress is processed/total clamped to
// [0,1]; it measures items attempted, not items succeeded.
func (p *IngestionPipeline) emit(update domain.IngestProgress) {
	p.mu.Lock()
	progress := 0.0
	if p.total > 0 {
		progress = float64(p.processed) / float64(p.total)
	}
	if progress > 1 {
		progress = 1
	}
	record := domain.IngestProgress{
		State:          p.state,
		Progress:       progress,
		ProcessedCount: p.processed,
		TotalCount:     p.total,
		CurrentKind:    p.currentKind,
		Event:          update.Event,
		Error:          update.Error,
	}
	p.mu.Unlock()

	p.broadcast.Publish(record)
}

// newRowID mints an identifier for a stored row.
func newRowID() string {
	return uuid.New().String()
}
