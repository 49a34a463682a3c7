package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestionInProgress indicates an ingestion run is already active.
	// Only one run may hold the pipeline at a time.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrQuotaExceeded indicates the per-kind item cap leaves no room
	// before any work has started. This aborts the run.
	ErrQuotaExceeded = errors.New("item cap reached")

	// ErrPermissionDenied indicates access to the photo catalog was refused.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSearchCanceled indicates a search was cooperatively cancelled.
	// Callers must not present this as a failure to the end user.
	ErrSearchCanceled = errors.New("search canceled")

	// ErrDimensionMismatch indicates two vectors of different lengths were
	// compared. This is a defect, not a recoverable search condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrGatewayUnavailable indicates the model gateway cannot serve
	// requests: it is not configured, unreachable, or failing upstream.
	ErrGatewayUnavailable = errors.New("model gateway unavailable")
)
