package domain

import "time"

// IndexState is the observable lifecycle of an ingestion run, plus the
// per-item sub-states driven while one item moves through the pipeline.
type IndexState string

// Run-level and per-item states.
const (
	StateIdle                  IndexState = "IDLE"
	StateRequestingPermissions IndexState = "REQUESTING_PERMISSIONS"
	StateEnumerating           IndexState = "ENUMERATING"
	StateProcessingPhotos      IndexState = "PROCESSING_PHOTOS"
	StateProcessingFilesIntake IndexState = "PROCESSING_FILES_INTAKE"
	StateCopyingToLibrary      IndexState = "COPYING_TO_LIBRARY"
	StateExtractingText        IndexState = "EXTRACTING_TEXT"
	StateTagging               IndexState = "TAGGING"
	StateEmbedding             IndexState = "EMBEDDING"
	StateSaving                IndexState = "SAVING"
	StateNextItem              IndexState = "NEXT_ITEM"
	StateComplete              IndexState = "COMPLETE"
	StateError                 IndexState = "ERROR"
	StateErrorItem             IndexState = "ERROR_ITEM"
)

// Terminal returns true for run-terminal states. StateErrorItem is
// transient - the run continues with the next item.
func (s IndexState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// IndexEvent annotates notable progress ticks.
type IndexEvent string

// Available ingestion events.
const (
	EventSpawn    IndexEvent = "spawn"
	EventScan     IndexEvent = "scan"
	EventEmbed    IndexEvent = "embed"
	EventSave     IndexEvent = "save"
	EventComplete IndexEvent = "complete"
	EventError    IndexEvent = "error"
)

// IngestProgress is the record delivered to subscribers on every state
// transition and every progress tick.
type IngestProgress struct {
	// State is the run state at emission time.
	State IndexState

	// Progress is processed/total, clamped to [0,1]. It measures items
	// attempted, not items succeeded.
	Progress float64

	// ProcessedCount is how many items have been attempted so far.
	ProcessedCount int

	// TotalCount is the run's target item count.
	TotalCount int

	// CurrentKind is the kind of the items currently being processed.
	// Empty before processing starts.
	CurrentKind SourceKind

	// Event annotates the tick, when notable.
	Event IndexEvent

	// Error carries the message for ERROR and ERROR_ITEM states.
	Error string
}

// IngestOptions select which sources a bulk ingestion run covers.
type IngestOptions struct {
	IncludePhotos bool
	IncludeFiles  bool

	// RequirePhotos turns photo permission denial into a run-level
	// failure instead of silently yielding zero photo candidates.
	RequirePhotos bool
}

// PhotoAsset is one photo enumerated from the device catalog.
type PhotoAsset struct {
	// AssetID is the catalog handle used to open the photo later.
	AssetID string

	// Filename is the asset's display filename.
	Filename string

	// URI locates the image data for text extraction.
	URI string

	// CreatedAt and ModifiedAt are catalog timestamps, if known.
	CreatedAt  *time.Time
	ModifiedAt *time.Time
}

// CopiedFile describes a file after import into the private library.
// Files are copied before extraction so the original can disappear safely.
type CopiedFile struct {
	// LocalPath is the sandboxed copy's path.
	LocalPath string

	// OriginalFilename is the name the source file had.
	OriginalFilename string

	// SizeBytes is the copy's size.
	SizeBytes int64

	// ModifiedAt is the source modification time, if known.
	ModifiedAt *time.Time
}

// RefreshPhase identifies the stage of a reconciliation sweep.
type RefreshPhase string

// Refresh sweep phases.
const (
	RefreshCheckingPhotos RefreshPhase = "checking_photos"
	RefreshCheckingFiles  RefreshPhase = "checking_files"
	RefreshComplete       RefreshPhase = "complete"
)

// RefreshProgress reports sweep progress per phase.
type RefreshProgress struct {
	Phase     RefreshPhase
	Processed int
	Total     int
}

// RefreshStats summarises a completed sweep.
type RefreshStats struct {
	PhotosRemoved int
	FilesRemoved  int
}
