package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/retry"
)

const (
	DefaultWriteTimeout     = 30 * time.Second
	DefaultWriteMaxAttempts = 3
	DefaultWriteRetryDelay  = 200 * time.Millisecond
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriteTimeout bounds a single write attempt.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithWriteRetries sets the attempts per write and the base backoff delay.
func WithWriteRetries(maxAttempts int, baseDelay time.Duration) WriterOption {
	return func(w *Writer) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			w.retryDelay = baseDelay
		}
	}
}

// WithWriterLogger sets the logger for the writer.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Writer is the only path from the pipeline to a VectorStore. Writes to one
// collection are serialised; writes to different collections proceed in
// parallel.
type Writer struct {
	store       VectorStore
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter creates a writer over store.
func NewWriter(store VectorStore, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		timeout:     DefaultWriteTimeout,
		maxAttempts: DefaultWriteMaxAttempts,
		retryDelay:  DefaultWriteRetryDelay,
		logger:      slog.Default(),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "store-writer")
	return w
}

// Store returns the underlying vector store.
func (w *Writer) Store() VectorStore {
	return w.store
}

func (w *Writer) collectionLock(collection string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		w.locks[collection] = l
	}
	return l
}

// Upsert writes record into collection. Writing an existing ID replaces it.
// Every attempt runs to completion or timeout even if ctx is cancelled;
// cancellation only stops further retries. Failures wrap ErrStorageWrite.
func (w *Writer) Upsert(ctx context.Context, collection string, record *core.ChunkRecord) error {
	if err := ValidateCollection(collection); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: record without ID", ErrStorageWrite)
	}

	lock := w.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	err := retry.WithBackoff(ctx, func() error {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
		return w.store.Upsert(writeCtx, collection, record)
	}, w.maxAttempts, w.retryDelay)
	if err != nil {
		w.logger.Error("upsert failed", "collection", collection, "id", record.ID, "error", err)
		return fmt.Errorf("%w: %s/%s: %w", ErrStorageWrite, collection, record.ID, err)
	}
	return nil
}

// Exists reports whether id is stored in collection.
func (w *Writer) Exists(ctx context.Context, collection, id string) (bool, error) {
	return w.store.Exists(ctx, collection, id)
}

// Count returns the number of records in collection.
func (w *Writer) Count(ctx context.Context, collection string) (int, error) {
	return w.store.Count(ctx, collection)
}

// DeleteCollection removes collection, waiting for in-flight writes to it.
func (w *Writer) DeleteCollection(ctx context.Context, collection string) error {
	lock := w.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	return w.store.DeleteCollection(ctx, collection)
}
