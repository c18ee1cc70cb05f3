package ingestion

import "errors"

var (
	// ErrParserRequired is returned when a parser is not provided.
	ErrParserRequired = errors.New("parser required")

	// ErrTrackerRegistryRequired is returned when a dedup registry is not provided.
	ErrTrackerRegistryRequired = errors.New("deduplication registry required")

	// ErrEmbedderRequired is returned when a batch embedder is not provided.
	ErrEmbedderRequired = errors.New("batch embedder required")

	// ErrWriterRequired is returned when a store writer is not provided.
	ErrWriterRequired = errors.New("store writer required")

	// ErrInvalidConfig is returned for an unusable ingestion configuration.
	ErrInvalidConfig = errors.New("invalid ingestion config")
)
