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

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/ingestion"
	"github.com/poiesic/kbingest/parser"
)

// IngestFileTaskName is the registered name of the ingest_file task.
const IngestFileTaskName = "kbingest.ingest_file"

// DefaultDirectoryConcurrency bounds the files ingested in parallel when a
// task names a directory.
const DefaultDirectoryConcurrency = 4

// IngestFileInput is the wire payload of an ingest_file task.
type IngestFileInput struct {
	ProjectDir   string  `json:"project_dir"`
	StrategyName string  `json:"strategy_name"`
	DatabaseName string  `json:"database_name"`
	SourcePath   string  `json:"source_path"`
	Filename     *string `json:"filename"`
}

// IngestFileDetails reports what an ingest_file task did.
type IngestFileDetails struct {
	Status        core.Status       `json:"status"`
	Filename      string            `json:"filename"`
	DocumentCount int               `json:"document_count"`
	StoredCount   int               `json:"stored_count"`
	SkippedCount  int               `json:"skipped_count"`
	Errors        []core.ChunkError `json:"errors"`
}

// IngestFileOutput is the wire result of an ingest_file task.
type IngestFileOutput struct {
	Success bool              `json:"success"`
	Details IngestFileDetails `json:"details"`
}

// Ingester ingests one file. *ingestion.Coordinator satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) *core.IngestionResult
}

// IngestFileOption configures an IngestFileHandler.
type IngestFileOption func(*IngestFileHandler)

// WithBaseConfig sets the ingestion config that task inputs refine.
func WithBaseConfig(cfg ingestion.Config) IngestFileOption {
	return func(h *IngestFileHandler) {
		h.base = cfg
	}
}

// WithDirectoryConcurrency sets how many files of a directory are ingested at once.
func WithDirectoryConcurrency(n int) IngestFileOption {
	return func(h *IngestFileHandler) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithProgress reports directory ingestion progress to w.
func WithProgress(w io.Writer) IngestFileOption {
	return func(h *IngestFileHandler) {
		h.progress = w
	}
}

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger *slog.Logger) IngestFileOption {
	return func(h *IngestFileHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// IngestFileHandler executes ingest_file tasks.
type IngestFileHandler struct {
	ingester    Ingester
	base        ingestion.Config
	concurrency int
	progress    io.Writer
	logger      *slog.Logger
}

// NewIngestFileHandler creates a handler that feeds files to ingester.
func NewIngestFileHandler(ingester Ingester, opts ...IngestFileOption) (*IngestFileHandler, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	h := &IngestFileHandler{
		ingester:    ingester,
		base:        ingestion.DefaultConfig(),
		concurrency: DefaultDirectoryConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "ingest-file-task")
	return h, nil
}

// RegisterIngestFile registers an ingest_file handler for ingester in reg.
func RegisterIngestFile(reg *Registry, ingester Ingester, opts ...IngestFileOption) error {
	if reg == nil {
		return ErrRegistryRequired
	}
	h, err := NewIngestFileHandler(ingester, opts...)
	if err != nil {
		return err
	}
	return reg.Register(IngestFileTaskName, h.Handle)
}

// Handle is the Handler for ingest_file. Unusable input is reported in the
// output rather than as an error.
func (h *IngestFileHandler) Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var in IngestFileInput
	var out *IngestFileOutput
	if err := json.Unmarshal(payload, &in); err != nil {
		out = failedOutput("", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	} else {
		out = h.Run(ctx, in)
	}
	return json.Marshal(out)
}

// Run executes one ingest_file input. It never returns nil.
func (h *IngestFileHandler) Run(ctx context.Context, in IngestFileInput) *IngestFileOutput {
	cfg, err := h.configFor(in)
	if err != nil {
		return failedOutput(displayName(in), err)
	}

	files, err := resolveFiles(in)
	if err != nil {
		return failedOutput(displayName(in), err)
	}

	logger := h.logger.With("collection", in.DatabaseName, "source", in.SourcePath)
	logger.Info("ingest_file started", "files", len(files))

	results := h.ingestAll(ctx, files, in.DatabaseName, cfg)
	out := aggregate(displayName(in), files, results)

	logger.Info("ingest_file finished",
		"status", out.Details.Status,
		"documents", out.Details.DocumentCount,
		"stored", out.Details.StoredCount,
		"skipped", out.Details.SkippedCount,
		"errors", len(out.Details.Errors))
	return out
}

func (h *IngestFileHandler) configFor(in IngestFileInput) (ingestion.Config, error) {
	cfg := h.base
	if in.StrategyName != "" {
		if !parser.ValidStrategy(in.StrategyName) {
			return cfg, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, in.StrategyName)
		}
		cfg.Strategy = in.StrategyName
	}
	if in.DatabaseName == "" {
		return cfg, fmt.Errorf("%w: database_name is required", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (h *IngestFileHandler) ingestAll(ctx context.Context, files []string, collection string, cfg ingestion.Config) []*core.IngestionResult {
	results := make([]*core.IngestionResult, len(files))

	var tracker *ProgressTracker
	if h.progress != nil && len(files) > 1 {
		tracker = NewProgressTracker(h.progress, len(files), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	// Workers never return errors; a failed file is recorded in its result.
	var g errgroup.Group
	g.SetLimit(h.concurrency)
	for i, path := range files {
		g.Go(func() error {
			results[i] = h.ingestOne(ctx, path, collection, cfg)
			if tracker != nil {
				tracker.Increment(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *IngestFileHandler) ingestOne(ctx context.Context, path, collection string, cfg ingestion.Config) *core.IngestionResult {
	name := filepath.Base(path)
	if err := ctx.Err(); err != nil {
		return fileError(name, fmt.Errorf("aborted: %w", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileError(name, fmt.Errorf("reading %s: %w", name, err))
	}

	return h.ingester.Ingest(ctx, ingestion.Request{
		Data:       data,
		Filename:   path,
		Collection: collection,
		Config:     &cfg,
	})
}

// resolveFiles expands an input into the sorted list of files to ingest.
func resolveFiles(in IngestFileInput) ([]string, error) {
	if in.SourcePath == "" {
		return nil, fmt.Errorf("%w: source_path is required", ErrInvalidInput)
	}
	source := in.SourcePath
	if !filepath.IsAbs(source) {
		source = filepath.Join(in.ProjectDir, source)
	}
	source = filepath.Clean(source)

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if in.Filename != nil {
		if *in.Filename == "" {
			return nil, fmt.Errorf("%w: filename is empty", ErrInvalidInput)
		}
		target := source
		if info.IsDir() {
			target = filepath.Join(source, *in.Filename)
		}
		return []string{target}, nil
	}

	if !info.IsDir() {
		return []string{source}, nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", source, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isHidden(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(source, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in %s", ErrInvalidInput, source)
	}
	slices.Sort(files)
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// aggregate folds per file results into one output. Errors of a directory
// run carry the file they came from.
func aggregate(name string, files []string, results []*core.IngestionResult) *IngestFileOutput {
	total := &core.IngestionResult{Filename: name}
	aborted := false
	for i, r := range results {
		total.StoredCount += r.StoredCount
		total.SkippedCount += r.SkippedCount
		total.TotalChunks += r.TotalChunks
		for _, e := range r.Errors {
			if e.ChunkID == nil && len(files) > 1 {
				e.Reason = filepath.Base(files[i]) + ": " + e.Reason
			}
			total.Errors = append(total.Errors, e)
		}
		if len(files) == 1 && r.Status == core.StatusError {
			aborted = true
		}
	}
	total.Finalize(aborted)
	return outputFrom(total, len(results))
}

func outputFrom(r *core.IngestionResult, documents int) *IngestFileOutput {
	errs := r.Errors
	if errs == nil {
		errs = []core.ChunkError{}
	}
	return &IngestFileOutput{
		Success: r.Status != core.StatusError,
		Details: IngestFileDetails{
			Status:        r.Status,
			Filename:      r.Filename,
			DocumentCount: documents,
			StoredCount:   r.StoredCount,
			SkippedCount:  r.SkippedCount,
			Errors:        errs,
		},
	}
}

func fileError(name string, err error) *core.IngestionResult {
	r := &core.IngestionResult{Filename: name}
	r.AddFileError(err.Error())
	r.Finalize(true)
	return r
}

func failedOutput(name string, err error) *IngestFileOutput {
	return outputFrom(fileError(name, err), 0)
}

func displayName(in IngestFileInput) string {
	if in.Filename != nil && *in.Filename != "" {
		return *in.Filename
	}
	return filepath.Base(in.SourcePath)
}
