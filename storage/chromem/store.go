// Package chromem stores embedded chunks in chromem-go collections, either
// in memory or persisted to a directory.
//
// chromem-go normalises vectors on insert, so stored vectors are unit length
// whatever the pipeline's normalisation setting.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/storage"
)

// Reserved metadata keys holding ChunkRecord fields.
const (
	metaPrefix       = "kb_"
	metaContentHash  = metaPrefix + "content_hash"
	metaDocumentHash = metaPrefix + "document_hash"
	metaChunkIndex   = metaPrefix + "chunk_index"
	metaTotalChunks  = metaPrefix + "total_chunks"
	metaSource       = metaPrefix + "source"
	metaInsertedAt   = metaPrefix + "inserted_at"
	metaUpdatedAt    = metaPrefix + "updated_at"
)

var errNoEmbedding = errors.New("chromem store requires precomputed embeddings")

// refuseEmbedding keeps chromem from calling an embedding service of its own.
func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Store implements storage.VectorStore on a chromem-go database.
type Store struct {
	db     *chromem.DB
	logger *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens a store. An empty path keeps everything in memory; otherwise
// collections are persisted under path.
func New(path string, opts ...Option) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chromem-store")
	return s, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("chunk %s has no vector", record.ID)
	}

	c, err := s.db.GetOrCreateCollection(collection, nil, refuseEmbedding)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	inserted := now
	if old, err := c.GetByID(ctx, record.ID); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, old.Metadata[metaInsertedAt]); err == nil {
			inserted = t
		}
	}

	metadata := make(map[string]string, len(record.Metadata)+7)
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata[metaContentHash] = record.ContentHash
	metadata[metaDocumentHash] = record.DocumentHash
	metadata[metaChunkIndex] = strconv.Itoa(record.ChunkIndex)
	metadata[metaTotalChunks] = strconv.Itoa(record.TotalChunks)
	metadata[metaSource] = record.Source
	metadata[metaInsertedAt] = inserted.Format(time.RFC3339Nano)
	metadata[metaUpdatedAt] = now.Format(time.RFC3339Nano)

	return c.AddDocument(ctx, chromem.Document{
		ID:        record.ID,
		Metadata:  metadata,
		Embedding: append([]float32(nil), record.Vector...),
		Content:   record.Content,
	})
}

func (s *Store) Get(ctx context.Context, collection, id string) (*core.ChunkRecord, error) {
	c := s.db.GetCollection(collection, refuseEmbedding)
	if c == nil {
		return nil, storage.ErrNotFound
	}
	doc, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return recordFromDocument(collection, doc), nil
}

func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	_, err := s.Get(ctx, collection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	c := s.db.GetCollection(collection, refuseEmbedding)
	if c == nil {
		return 0, nil
	}
	return c.Count(), nil
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	return s.db.DeleteCollection(collection)
}

// Close is a no-op; persistent collections are written on every upsert.
func (s *Store) Close() error {
	return nil
}

func recordFromDocument(collection string, doc chromem.Document) *core.ChunkRecord {
	record := &core.ChunkRecord{
		ID:           doc.ID,
		Collection:   collection,
		Content:      doc.Content,
		ContentHash:  doc.Metadata[metaContentHash],
		DocumentHash: doc.Metadata[metaDocumentHash],
		Source:       doc.Metadata[metaSource],
		Vector:       doc.Embedding,
		Metadata:     make(map[string]string),
	}
	record.ChunkIndex, _ = strconv.Atoi(doc.Metadata[metaChunkIndex])
	record.TotalChunks, _ = strconv.Atoi(doc.Metadata[metaTotalChunks])
	record.InsertedAt, _ = time.Parse(time.RFC3339Nano, doc.Metadata[metaInsertedAt])
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, doc.Metadata[metaUpdatedAt])

	for k, v := range doc.Metadata {
		if !strings.HasPrefix(k, metaPrefix) {
			record.Metadata[k] = v
		}
	}
	return record
}
