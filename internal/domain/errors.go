package domain

import "errors"

var (
	// ErrInputNotFound means the input locator could not be resolved.
	ErrInputNotFound = errors.New("input not found")
	// ErrExtractionFailure is an I/O failure while reading or extracting input.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrEmbeddingUnavailable means the embedding model failed to load for this process.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")
	// ErrChunkEmbeddingFailure is a per-chunk embedding error; never fatal to an ingestion.
	ErrChunkEmbeddingFailure = errors.New("chunk embedding failed")
	// ErrSearchBackendUnavailable is returned by search when embeddings cannot be computed.
	ErrSearchBackendUnavailable = errors.New("search backend unavailable")

	ErrDocumentNotFound        = errors.New("document not found")
	ErrFlowNotFound            = errors.New("flow definition not found")
	ErrDuplicateSource         = errors.New("document with this source already exists")
	ErrInvalidTopK             = errors.New("top_k must be between 1 and 100")
	ErrInvalidStatusTransition = errors.New("invalid processing status transition")
	ErrDimensionMismatch       = errors.New("embedding dimension mismatch")
)

// IsClientError reports whether err was caused by caller input rather than
// by backend availability or internal failure.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrInputNotFound),
		errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, ErrFlowNotFound),
		errors.Is(err, ErrDuplicateSource),
		errors.Is(err, ErrInvalidTopK):
		return true
	default:
		return false
	}
}
