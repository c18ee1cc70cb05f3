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

// Package kbingest wires the ingestion pipeline from a config.Config.
package kbingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/kbingest/ai"
	"github.com/poiesic/kbingest/ai/gemini"
	"github.com/poiesic/kbingest/ai/openai"
	"github.com/poiesic/kbingest/breaker"
	"github.com/poiesic/kbingest/config"
	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/dedup"
	"github.com/poiesic/kbingest/embedding"
	"github.com/poiesic/kbingest/ingestion"
	"github.com/poiesic/kbingest/parser"
	"github.com/poiesic/kbingest/storage"
	"github.com/poiesic/kbingest/storage/badger"
	"github.com/poiesic/kbingest/storage/chromem"
	"github.com/poiesic/kbingest/storage/pgvector"
	"github.com/poiesic/kbingest/tasks"
)

// KnowledgeBase owns every long lived pipeline component of a process.
type KnowledgeBase struct {
	cfg *config.Config

	backend     *badger.Backend
	store       storage.VectorStore
	writer      *storage.Writer
	trackers    *dedup.Registry
	breakers    *breaker.Registry
	provider    ai.Provider
	embedder    *embedding.BatchEmbedder
	coordinator *ingestion.Coordinator
	handler     *tasks.IngestFileHandler
	tasks       *tasks.Registry
	logger      *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider ai.Provider
	logger   *slog.Logger
	progress io.Writer
}

// WithProvider uses provider instead of building one from the ai config.
// The knowledge base takes ownership and closes it.
func WithProvider(provider ai.Provider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProgress reports directory ingestion progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// Open builds the pipeline described by cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*KnowledgeBase, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	kb := &KnowledgeBase{cfg: cfg, logger: o.logger.With("component", "kbingest")}
	if err := kb.open(ctx, o); err != nil {
		// Close whatever was opened before the failure.
		if closeErr := kb.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	return kb, nil
}

func (kb *KnowledgeBase) open(ctx context.Context, o *options) error {
	logger := o.logger

	if err := kb.openStores(ctx, logger); err != nil {
		return err
	}
	kb.writer = storage.NewWriter(kb.store, storage.WithWriterLogger(logger))

	dedupOpts := []dedup.Option{dedup.WithLogger(logger)}
	if kb.backend != nil {
		dedupOpts = append(dedupOpts, dedup.WithPersister(badger.NewDedupPersister(kb.backend)))
	}
	kb.trackers = dedup.NewRegistry(dedupOpts...)

	breakers, err := breaker.NewRegistry(kb.cfg.BreakerConfig(), breaker.WithLogger(logger))
	if err != nil {
		return err
	}
	kb.breakers = breakers

	kb.provider = o.provider
	if kb.provider == nil {
		kb.provider, err = newProvider(ctx, kb.cfg.AIConfig())
		if err != nil {
			return fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	kb.embedder, err = embedding.NewBatchEmbedder(
		kb.provider.Embedder(),
		kb.breakers.Get(kb.provider.Name()),
		embedding.WithConfig(kb.cfg.EmbeddingConfig()),
		embedding.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	kb.coordinator, err = ingestion.NewCoordinator(
		parser.NewTextParser(logger),
		kb.trackers,
		kb.embedder,
		kb.writer,
		ingestion.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	handlerOpts := []tasks.IngestFileOption{
		tasks.WithBaseConfig(kb.cfg.IngestionConfig()),
		tasks.WithDirectoryConcurrency(kb.cfg.Workers.DirectoryConcurrency),
		tasks.WithHandlerLogger(logger),
	}
	if o.progress != nil {
		handlerOpts = append(handlerOpts, tasks.WithProgress(o.progress))
	}
	kb.handler, err = tasks.NewIngestFileHandler(kb.coordinator, handlerOpts...)
	if err != nil {
		return err
	}

	kb.tasks = tasks.NewRegistry()
	if err := kb.tasks.Register(tasks.IngestFileTaskName, kb.handler.Handle); err != nil {
		return err
	}

	kb.logger.Info("knowledge base ready",
		"store", kb.cfg.Store.Type,
		"backend", kb.provider.Name(),
		"persistent_dedup", kb.backend != nil)
	return nil
}

// openStores opens the vector store. Every store except "memory" also gets a
// badger backend holding the deduplication sets.
func (kb *KnowledgeBase) openStores(ctx context.Context, logger *slog.Logger) error {
	if kb.cfg.Store.Type == config.StoreMemory {
		kb.store = storage.NewMemoryStore()
		return nil
	}

	backend, err := badger.OpenBackend(kb.cfg.BadgerPath(), kb.cfg.Store.InMemory)
	if err != nil {
		return fmt.Errorf("opening badger at %s: %w", kb.cfg.BadgerPath(), err)
	}
	kb.backend = backend

	switch kb.cfg.Store.Type {
	case config.StoreBadger:
		kb.store = badger.NewVectorStore(backend)
	case config.StoreChromem:
		path := kb.cfg.ChromemPath()
		if kb.cfg.Store.InMemory {
			path = ""
		}
		kb.store, err = chromem.New(path, chromem.WithLogger(logger))
	case config.StorePgvector:
		kb.store, err = pgvector.Open(ctx, kb.cfg.Store.DSN, pgvector.WithLogger(logger))
	default:
		err = fmt.Errorf("%w: unknown store type %q", config.ErrInvalidConfig, kb.cfg.Store.Type)
	}
	return err
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case ai.BackendGemini:
		return gemini.NewProvider(ctx, cfg)
	default:
		return openai.NewProvider(cfg)
	}
}

// Close releases every component. It reports all failures.
func (kb *KnowledgeBase) Close() error {
	var errs []error
	if kb.provider != nil {
		if err := kb.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider: %w", err))
		}
	}
	if kb.store != nil {
		if err := kb.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if kb.backend != nil && !kb.backend.IsClosed() {
		if err := kb.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing badger: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		kb.logger.Error("close failed", "error", err)
	}
	return err
}

// Config returns the configuration the knowledge base was opened with.
func (kb *KnowledgeBase) Config() *config.Config {
	return kb.cfg
}

// Coordinator returns the ingestion coordinator.
func (kb *KnowledgeBase) Coordinator() *ingestion.Coordinator {
	return kb.coordinator
}

// Tasks returns the task registry with every handler registered.
func (kb *KnowledgeBase) Tasks() *tasks.Registry {
	return kb.tasks
}

// Ingest ingests one in-memory file.
func (kb *KnowledgeBase) Ingest(ctx context.Context, req ingestion.Request) *core.IngestionResult {
	if req.Config == nil {
		cfg := kb.cfg.IngestionConfig()
		req.Config = &cfg
	}
	return kb.coordinator.Ingest(ctx, req)
}

// IngestFile runs an ingest_file input directly, without a queue.
func (kb *KnowledgeBase) IngestFile(ctx context.Context, in tasks.IngestFileInput) *tasks.IngestFileOutput {
	return kb.handler.Run(ctx, in)
}

// NewPool creates a worker pool dispatching through the task registry.
func (kb *KnowledgeBase) NewPool(queue tasks.Queue, opts ...tasks.PoolOption) (*tasks.Pool, error) {
	opts = append([]tasks.PoolOption{
		tasks.WithWorkers(kb.cfg.Workers.PoolSize),
		tasks.WithPoolLogger(kb.logger),
	}, opts...)
	return tasks.NewPool(kb.tasks, queue, opts...)
}

// ResetDedup forgets every hash recorded for collection. Stored chunks and
// the pinned vector dimension are kept unless purge is set.
func (kb *KnowledgeBase) ResetDedup(ctx context.Context, collection string, purge bool) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if err := kb.trackers.Reset(ctx, collection); err != nil {
		return fmt.Errorf("resetting deduplication for %s: %w", collection, err)
	}
	if purge {
		if err := kb.writer.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", collection, err)
		}
		tracker, err := kb.trackers.ForCollection(ctx, collection)
		if err != nil {
			return err
		}
		if err := tracker.ForgetDimension(ctx); err != nil {
			return fmt.Errorf("forgetting dimension of %s: %w", collection, err)
		}
	}
	kb.logger.Info("deduplication reset", "collection", collection, "purged", purge)
	return nil
}

// Stats describes one collection.
type Stats struct {
	Collection   string
	StoredChunks int
	Dedup        dedup.Stats
	Breakers     []breaker.Snapshot
}

// Stats reports stored chunk and dedup counts for collection.
func (kb *KnowledgeBase) Stats(ctx context.Context, collection string) (*Stats, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	count, err := kb.writer.Count(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", collection, err)
	}
	tracker, err := kb.trackers.ForCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Collection:   collection,
		StoredChunks: count,
		Dedup:        tracker.Stats(),
		Breakers:     kb.breakers.Snapshots(),
	}, nil
}
