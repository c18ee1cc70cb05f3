package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB. Records are
// msgpack encoded under chunk:<collection>:<id>.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a vector store on backend. The backend is owned by
// the caller and must outlive the store.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Close is a no-op; the caller closes the backend.
func (s *VectorStore) Close() error {
	return nil
}

// Upsert writes record in a single transaction, keeping InsertedAt of a
// record it replaces.
func (s *VectorStore) Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkKey(collection, record.ID)

		old, err := readChunkRecord(tx, key)
		if err != nil {
			return err
		}

		stored := *record
		stored.Collection = collection
		now := time.Now().UTC()
		stored.UpdatedAt = now
		if old != nil {
			stored.InsertedAt = old.InsertedAt
		} else {
			stored.InsertedAt = now
		}

		value, err := storage.MarshalChunkRecord(&stored)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a single chunk record by ID.
func (s *VectorStore) Get(ctx context.Context, collection, id string) (*core.ChunkRecord, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var record *core.ChunkRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readChunkRecord(tx, makeChunkKey(collection, id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// Exists reports whether a record with id is stored.
func (s *VectorStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	if s.backend.IsClosed() {
		return false, storage.ErrStorageClosed
	}

	found := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeChunkKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// Count returns the number of records in collection.
func (s *VectorStore) Count(ctx context.Context, collection string) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	return s.backend.countPrefix(makeCollectionPrefix(chunkRecordPrefix, collection))
}

// DeleteCollection removes every record of collection.
func (s *VectorStore) DeleteCollection(ctx context.Context, collection string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return s.backend.deletePrefix(makeCollectionPrefix(chunkRecordPrefix, collection))
}

// readChunkRecord returns nil, nil when key is absent.
func readChunkRecord(tx *badger.Txn, key []byte) (*core.ChunkRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.ChunkRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalChunkRecord(val)
		return unmarshalErr
	})
	return record, err
}
