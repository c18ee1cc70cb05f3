package embedding

import "errors"

var (
	// ErrEmbedderUnavailable is returned when the backend's circuit breaker refuses the call.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrEmbeddingFailed is returned when a sub-batch fails after all retries.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidConfig is returned for an unusable batch embedder configuration.
	ErrInvalidConfig = errors.New("invalid batch embedder config")

	errCountMismatch = errors.New("embedding count mismatch")
)
