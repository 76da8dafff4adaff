package knowledge

import "errors"

// Sentinel errors for store operations. Callers match with errors.Is to
// pick the right status code or retry behavior.
var (
	// ErrNotFound indicates no chunk exists with the requested ID.
	ErrNotFound = errors.New("chunk not found")

	// ErrInvalidTopK indicates a non-positive result limit.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrBatchSizeMismatch indicates the texts and metadata slices of a
	// batch insert have different lengths.
	ErrBatchSizeMismatch = errors.New("texts and metadata counts differ")

	// ErrStoreLocked indicates another process holds the storage
	// directory lock.
	ErrStoreLocked = errors.New("storage directory is locked by another process")
)
