package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates input no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// Pipeline Errors.

	// ErrExtractionFailure indicates a file is unreadable or corrupt.
	// Ingestion skips the file and continues.
	ErrExtractionFailure = errors.New("extraction failed")

	// ErrNoTextFound indicates extraction succeeded but produced no text.
	// It is a recoverable signal, not a failure of the run.
	ErrNoTextFound = errors.New("no text found")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the dimension the index was established with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptOrMissingIndex indicates a path does not hold a complete,
	// previously saved index.
	ErrCorruptOrMissingIndex = errors.New("index corrupt or missing")

	// External Capability Errors.

	// ErrEmbeddingUnavailable indicates the embedding service failed or is
	// not configured. Transient failures are retried before surfacing.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation (LLM) service failed
	// or is not configured.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// Configuration Errors.

	// ErrInvalidConfiguration indicates settings that cannot be used.
	// Commands fail with it before doing any work.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsUnavailable reports whether err is a provider failure the caller may
// retry later.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrGenerationUnavailable)
}
