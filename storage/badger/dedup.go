// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/kbingest/dedup"
	"github.com/poiesic/kbingest/storage"
)

// DedupPersister implements dedup.Persister for BadgerDB.
type DedupPersister struct {
	backend *Backend
}

var _ dedup.Persister = (*DedupPersister)(nil)

// NewDedupPersister creates a new DedupPersister.
func NewDedupPersister(backend *Backend) *DedupPersister {
	return &DedupPersister{
		backend: backend,
	}
}

// Load reads every index entry of collection.
func (p *DedupPersister) Load(ctx context.Context, collection string) (*dedup.Entries, error) {
	entries := &dedup.Entries{Documents: make(map[string]int)}

	err := p.backend.WithTx(func(tx *badger.Txn) error {
		docPrefix := makeCollectionPrefix(dedupDocPrefix, collection)
		if err := iterate(tx, docPrefix, func(item *badger.Item) error {
			hash := hashFromKey(item.Key(), docPrefix)
			return item.Value(func(val []byte) error {
				count, err := storage.UnmarshalCount(val)
				if err != nil {
					return err
				}
				entries.Documents[hash] = count
				return nil
			})
		}); err != nil {
			return err
		}

		chunkPrefix := makeCollectionPrefix(dedupChunkPrefix, collection)
		if err := iterate(tx, chunkPrefix, func(item *badger.Item) error {
			entries.Chunks = append(entries.Chunks, hashFromKey(item.Key(), chunkPrefix))
			return nil
		}); err != nil {
			return err
		}

		sourcePrefix := makeCollectionPrefix(dedupSourcePrefix, collection)
		if err := iterate(tx, sourcePrefix, func(item *badger.Item) error {
			entries.Sources = append(entries.Sources, hashFromKey(item.Key(), sourcePrefix))
			return nil
		}); err != nil {
			return err
		}

		item, err := tx.Get(makeDimensionKey(collection))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err := storage.UnmarshalCount(val)
			if err != nil {
				return err
			}
			entries.Dimension = dim
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AddDocument records a document hash with its chunk count.
func (p *DedupPersister) AddDocument(ctx context.Context, collection, hash string, chunks int) error {
	value, err := storage.MarshalCount(chunks)
	if err != nil {
		return err
	}
	return p.set(makeDedupKey(dedupDocPrefix, collection, hash), value)
}

// AddChunk records a chunk content hash.
func (p *DedupPersister) AddChunk(ctx context.Context, collection, hash string) error {
	return p.set(makeDedupKey(dedupChunkPrefix, collection, hash), nil)
}

// AddSource records a source hash.
func (p *DedupPersister) AddSource(ctx context.Context, collection, hash string) error {
	return p.set(makeDedupKey(dedupSourcePrefix, collection, hash), nil)
}

// SetDimension records the vector dimension of collection. Zero deletes it.
func (p *DedupPersister) SetDimension(ctx context.Context, collection string, dim int) error {
	key := makeDimensionKey(collection)
	if dim == 0 {
		if p.backend.IsClosed() {
			return storage.ErrStorageClosed
		}
		return p.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Delete(key); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	}
	value, err := storage.MarshalCount(dim)
	if err != nil {
		return err
	}
	return p.set(key, value)
}

// Reset removes every hash entry of collection. The dimension is kept.
func (p *DedupPersister) Reset(ctx context.Context, collection string) error {
	return p.backend.deletePrefix(
		makeCollectionPrefix(dedupDocPrefix, collection),
		makeCollectionPrefix(dedupChunkPrefix, collection),
		makeCollectionPrefix(dedupSourcePrefix, collection),
	)
}

func (p *DedupPersister) set(key, value []byte) error {
	if p.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return p.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func iterate(tx *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			return err
		}
	}
	return nil
}
