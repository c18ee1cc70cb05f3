package storage

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/kbingest/core"
)

// MemoryStore is a VectorStore kept in process memory. It is used in tests
// and for dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*core.ChunkRecord
	closed      bool
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]*core.ChunkRecord)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}

	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string]*core.ChunkRecord)
		s.collections[collection] = records
	}

	stored := *record
	stored.Collection = collection
	stored.Vector = append([]float32(nil), record.Vector...)
	now := time.Now().UTC()
	if old, ok := records[record.ID]; ok {
		stored.InsertedAt = old.InsertedAt
	} else {
		stored.InsertedAt = now
	}
	stored.UpdatedAt = now
	records[record.ID] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*core.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	record, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *record
	return &out, nil
}

func (s *MemoryStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStorageClosed
	}

	_, ok := s.collections[collection][id]
	return ok, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStorageClosed
	}
	return len(s.collections[collection]), nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}
	delete(s.collections, collection)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
