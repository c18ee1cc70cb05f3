package dedup

import "errors"

var (
	// ErrEmptyHash is returned when registering an empty hash.
	ErrEmptyHash = errors.New("hash cannot be empty")

	// ErrEmptyCollection is returned when a tracker is requested without a collection name.
	ErrEmptyCollection = errors.New("collection name cannot be empty")

	// ErrInvalidDimension is returned when pinning a non-positive dimension.
	ErrInvalidDimension = errors.New("vector dimension must be positive")

	// ErrPersistence wraps failures of the underlying Persister.
	ErrPersistence = errors.New("deduplication persistence failed")
)
