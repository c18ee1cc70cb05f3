// Package pgvector stores embedded chunks in PostgreSQL using the pgvector
// extension. All collections share one table keyed by (collection, id).
package pgvector

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/storage"
)

//go:embed scripts/schema.sql
var schemaSQL string

// Store implements storage.VectorStore on PostgreSQL.
type Store struct {
	db     *sql.DB
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

// Open connects to the database at dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("pgvector: dsn is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "pgvector-store")

	if _, err := db.ExecContext(pingCtx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return s, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO kb_chunks
			(collection, id, content, content_hash, document_hash, chunk_index, total_chunks, source, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			document_hash = EXCLUDED.document_hash,
			chunk_index = EXCLUDED.chunk_index,
			total_chunks = EXCLUDED.total_chunks,
			source = EXCLUDED.source,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = now()
	`
	_, err = s.db.ExecContext(ctx, q,
		collection, record.ID, record.Content, record.ContentHash, record.DocumentHash,
		record.ChunkIndex, record.TotalChunks, record.Source,
		pgvector.NewVector(record.Vector), metadata)
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string) (*core.ChunkRecord, error) {
	const q = `
		SELECT content, content_hash, document_hash, chunk_index, total_chunks, source,
		       embedding, metadata, inserted_at, updated_at
		FROM kb_chunks
		WHERE collection = $1 AND id = $2
	`
	var (
		r        = core.ChunkRecord{ID: id, Collection: collection}
		emb      pgvector.Vector
		metadata []byte
	)
	err := s.db.QueryRowContext(ctx, q, collection, id).Scan(
		&r.Content, &r.ContentHash, &r.DocumentHash, &r.ChunkIndex, &r.TotalChunks, &r.Source,
		&emb, &metadata, &r.InsertedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Vector = emb.Slice()
	if r.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM kb_chunks WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists)
	return exists, err
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kb_chunks WHERE collection = $1`, collection).Scan(&count)
	return count, err
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kb_chunks WHERE collection = $1`, collection)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Info("collection deleted", "collection", collection, "rows", n)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (map[string]string, error) {
	m := make(map[string]string)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return m, nil
}
