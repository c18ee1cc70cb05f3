package storage

import (
	"context"

	"github.com/poiesic/kbingest/core"
)

// VectorStore persists embedded chunks grouped into named collections.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert stores record under its ID, replacing any previous record
	// with the same ID in the collection.
	Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error

	// Get returns the record with the given ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, collection, id string) (*core.ChunkRecord, error)

	// Exists reports whether a record with the given ID is stored.
	Exists(ctx context.Context, collection, id string) (bool, error)

	// Count returns the number of records in the collection.
	// An unknown collection has zero records.
	Count(ctx context.Context, collection string) (int, error)

	// DeleteCollection removes every record of the collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases the store's resources.
	Close() error
}
