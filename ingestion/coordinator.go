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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/dedup"
	"github.com/poiesic/kbingest/embedding"
	"github.com/poiesic/kbingest/parser"
	"github.com/poiesic/kbingest/storage"
)

// Request describes one file to ingest.
type Request struct {
	Data       []byte
	Filename   string
	Collection string
	// Config overrides DefaultConfig when set.
	Config *Config
}

// Coordinator runs ingestions. It holds no per-run state and is safe for
// concurrent use.
type Coordinator struct {
	parser   parser.Parser
	trackers *dedup.Registry
	embedder *embedding.BatchEmbedder
	writer   *storage.Writer
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a coordinator from its collaborators.
func NewCoordinator(
	p parser.Parser,
	trackers *dedup.Registry,
	embedder *embedding.BatchEmbedder,
	writer *storage.Writer,
	opts ...Option,
) (*Coordinator, error) {
	if p == nil {
		return nil, ErrParserRequired
	}
	if trackers == nil {
		return nil, ErrTrackerRegistryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	c := &Coordinator{
		parser:   p,
		trackers: trackers,
		embedder: embedder,
		writer:   writer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "coordinator")
	return c, nil
}

// run carries the state of one ingestion.
type run struct {
	cfg         Config
	collection  string
	doc         *core.Document
	tracker     *dedup.Tracker
	result      *core.IngestionResult
	expectedDim int
	aborted     bool
}

// Ingest ingests one file and reports the outcome. It never returns nil.
func (c *Coordinator) Ingest(ctx context.Context, req Request) *core.IngestionResult {
	result := &core.IngestionResult{Filename: req.Filename}

	cfg := DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return c.fail(result, err)
	}
	if err := storage.ValidateCollection(req.Collection); err != nil {
		return c.fail(result, err)
	}

	tracker, err := c.trackers.ForCollection(ctx, req.Collection)
	if err != nil {
		return c.fail(result, err)
	}

	docHash := core.HashContent(req.Data)
	release, err := tracker.Claim(ctx, docHash)
	if err != nil {
		return c.fail(result, fmt.Errorf("waiting for document claim: %w", err))
	}
	defer release()

	logger := c.logger.With("file", req.Filename, "collection", req.Collection, "document", docHash)

	if cfg.EnableDeduplication {
		if chunks, ok := tracker.DocumentChunks(docHash); ok {
			result.TotalChunks = chunks
			result.SkippedCount = chunks
			result.Finalize(false)
			logger.Info("document already ingested", "chunks", chunks)
			return result
		}
	}

	doc, chunks, err := c.parser.Parse(ctx, req.Data, req.Filename, cfg.parserOptions())
	if err != nil {
		return c.fail(result, err)
	}
	doc.ContentHash = docHash

	r := &run{
		cfg:         cfg,
		collection:  req.Collection,
		doc:         doc,
		tracker:     tracker,
		result:      result,
		expectedDim: cfg.ExpectedDimension,
	}
	if r.expectedDim == 0 {
		r.expectedDim = tracker.Dimension()
	}
	result.TotalChunks = len(chunks)

	pending := c.selectChunks(ctx, r, chunks)
	for start := 0; start < len(pending) && !r.aborted; start += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			c.abort(r, pending[start:], err)
			break
		}
		end := min(start+cfg.BatchSize, len(pending))
		c.processBatch(ctx, r, pending[start:end], pending[end:])
	}

	if !r.aborted && result.ErrorCount == 0 {
		c.registerDocument(ctx, r, len(chunks), logger)
	}

	result.Finalize(r.aborted)
	logger.Info("ingestion finished",
		"status", result.Status,
		"stored", result.StoredCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount)
	return result
}

// selectChunks assigns identities and drops chunks that need no work.
func (c *Coordinator) selectChunks(ctx context.Context, r *run, chunks []*core.Chunk) []*core.Chunk {
	pending := make([]*core.Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))

	for _, chunk := range chunks {
		chunk.AssignIdentity(r.doc.ContentHash, len(chunks))
		if err := core.ValidateChunk(chunk); err != nil {
			r.result.AddChunkError(chunk.ChunkID, err.Error())
			continue
		}

		if r.cfg.EnableDeduplication {
			if _, dup := seen[chunk.ContentHash]; dup || r.tracker.IsDuplicateChunk(chunk.ContentHash) {
				r.result.SkippedCount++
				continue
			}
			seen[chunk.ContentHash] = struct{}{}
		}

		if r.cfg.SkipExisting {
			exists, err := c.writer.Exists(ctx, r.collection, chunk.ChunkID)
			if err != nil {
				r.result.AddChunkError(chunk.ChunkID, fmt.Sprintf("checking store: %v", err))
				continue
			}
			if exists {
				r.result.SkippedCount++
				continue
			}
		}

		pending = append(pending, chunk)
	}
	return pending
}

// processBatch embeds, validates and stores one batch. rest holds the
// chunks after the batch, reported as aborted on a fatal error.
func (c *Coordinator) processBatch(ctx context.Context, r *run, batch, rest []*core.Chunk) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	vectors, embedErr := c.embedder.EmbedBatch(ctx, texts)

	// Vectors embedded before a failure are stored even if the run aborts.
	// Writes are detached from cancellation so an embedded batch is not lost.
	storeCtx := context.WithoutCancel(ctx)
	if r.expectedDim == 0 {
		r.expectedDim = c.pinDimension(storeCtx, r, vectors)
	}
	for i, vector := range vectors {
		chunk := batch[i]
		if err := c.storeChunk(storeCtx, r, chunk, vector); err != nil {
			if r.cfg.FailFast {
				r.result.AddChunkError(chunk.ChunkID, err.Error())
				c.abort(r, append(batch[i+1:len(batch):len(batch)], rest...), err)
				return
			}
			r.result.AddChunkError(chunk.ChunkID, err.Error())
		}
	}

	if embedErr == nil {
		return
	}

	unembedded := batch[len(vectors):]
	if ctx.Err() != nil || r.cfg.FailFast {
		c.abort(r, append(unembedded[:len(unembedded):len(unembedded)], rest...), embedErr)
		return
	}
	for _, chunk := range unembedded {
		r.result.AddChunkError(chunk.ChunkID, embedErr.Error())
	}
}

// storeChunk validates vector and writes the chunk. Validation failures are
// recorded and return nil; only storage failures are returned.
func (c *Coordinator) storeChunk(ctx context.Context, r *run, chunk *core.Chunk, vector []float32) error {
	if err := core.ValidateEmbedding(vector, r.expectedDim, r.cfg.AllowZero); err != nil {
		r.result.AddChunkError(chunk.ChunkID, err.Error())
		return nil
	}
	if r.cfg.Normalize {
		vector = core.NormalizeVector(vector)
	}

	record := core.NewChunkRecord(r.collection, r.doc, chunk, vector)
	if err := c.writer.Upsert(ctx, r.collection, record); err != nil {
		return err
	}
	r.result.StoredCount++

	if err := r.tracker.RegisterChunk(ctx, chunk.ContentHash); err != nil {
		c.logger.Warn("failed to register chunk", "chunk", chunk.ChunkID, "error", err)
	}
	return nil
}

// pinDimension infers the dimension of a collection that has none yet from
// the most common length among the valid vectors of a batch, and pins it on
// the collection's tracker. Another run may have pinned first; its dimension
// wins.
func (c *Coordinator) pinDimension(ctx context.Context, r *run, vectors [][]float32) int {
	dim := inferDimension(vectors, r.cfg.AllowZero)
	if dim == 0 {
		return 0
	}
	pinned, err := r.tracker.PinDimension(ctx, dim)
	if err != nil {
		c.logger.Warn("failed to pin dimension", "collection", r.collection, "dimension", dim, "error", err)
		return dim
	}
	return pinned
}

// inferDimension returns the most common length among vectors that pass
// validation, preferring the earliest on a tie. Zero when none pass.
func inferDimension(vectors [][]float32, allowZero bool) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, vector := range vectors {
		if core.ValidateEmbedding(vector, 0, allowZero) != nil {
			continue
		}
		n := len(vector)
		counts[n]++
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}

// abort reports every chunk in remaining as unprocessed and stops the run.
func (c *Coordinator) abort(r *run, remaining []*core.Chunk, cause error) {
	reason := fmt.Sprintf("aborted: %v", cause)
	for _, chunk := range remaining {
		r.result.AddChunkError(chunk.ChunkID, reason)
	}
	r.aborted = true
	c.logger.Warn("ingestion aborted", "file", r.result.Filename, "unprocessed", len(remaining), "cause", cause)
}

func (c *Coordinator) registerDocument(ctx context.Context, r *run, chunks int, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := r.tracker.RegisterDocument(ctx, r.doc.ContentHash, chunks); err != nil {
		logger.Warn("failed to register document", "error", err)
	}
	if err := r.tracker.RegisterSource(ctx, core.HashString(r.doc.SourcePath)); err != nil {
		logger.Warn("failed to register source", "error", err)
	}
}

// fail records a file level error and returns the finished result.
func (c *Coordinator) fail(result *core.IngestionResult, err error) *core.IngestionResult {
	result.AddFileError(err.Error())
	result.Finalize(true)
	c.logger.Error("ingestion failed", "file", result.Filename, "error", err)
	return result
}
