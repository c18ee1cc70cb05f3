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

package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/kbingest/ai"
	"github.com/poiesic/kbingest/breaker"
	"github.com/poiesic/kbingest/retry"
)

const (
	DefaultMaxBatchSize = 32
	DefaultMaxAttempts  = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultCallTimeout  = 30 * time.Second
)

// Config controls batching, retries and pacing of backend calls.
type Config struct {
	// MaxBatchSize is the largest number of texts sent in one backend call.
	MaxBatchSize int
	// MaxAttempts is the number of tries per sub-batch, including the first.
	MaxAttempts int
	// RetryDelay is the base delay of the exponential backoff.
	RetryDelay time.Duration
	// CallTimeout bounds a single backend call.
	CallTimeout time.Duration
	// RequestsPerSecond limits backend calls. Zero disables the limit.
	RequestsPerSecond float64
}

// DefaultConfig returns the default batching configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: DefaultMaxBatchSize,
		MaxAttempts:  DefaultMaxAttempts,
		RetryDelay:   DefaultRetryDelay,
		CallTimeout:  DefaultCallTimeout,
	}
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: MaxBatchSize must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: MaxAttempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: RetryDelay must not be negative", ErrInvalidConfig)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: CallTimeout must be positive", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: RequestsPerSecond must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder)

// WithLogger sets the logger for the batch embedder.
func WithLogger(logger *slog.Logger) Option {
	return func(b *BatchEmbedder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(b *BatchEmbedder) {
		b.config = config
	}
}

// BatchEmbedder embeds texts through one backend guarded by one breaker.
// Safe for concurrent use when the wrapped embedder is.
type BatchEmbedder struct {
	embedder ai.Embedder
	breaker  *breaker.Breaker
	config   Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewBatchEmbedder creates a batch embedder for the given backend and breaker.
func NewBatchEmbedder(embedder ai.Embedder, br *breaker.Breaker, opts ...Option) (*BatchEmbedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if br == nil {
		return nil, fmt.Errorf("%w: breaker is required", ErrInvalidConfig)
	}

	b := &BatchEmbedder{
		embedder: embedder,
		breaker:  br,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.config.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(b.config.RequestsPerSecond), 1)
	}
	b.logger = b.logger.With("component", "batch-embedder", "backend", br.Name())
	return b, nil
}

// Breaker returns the breaker guarding the backend.
func (b *BatchEmbedder) Breaker() *breaker.Breaker {
	return b.breaker
}

// EmbedBatch returns one vector per text, in input order.
//
// On error the vectors of the sub-batches that completed before the failure
// are returned along with it, so callers may keep that work.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.config.MaxBatchSize {
		end := min(start+b.config.MaxBatchSize, len(texts))

		vectors, err := b.embedSubBatch(ctx, texts[start:end])
		if err != nil {
			return out, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (b *BatchEmbedder) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.breaker.CanExecute() {
		return nil, fmt.Errorf("%w: circuit for %s is open", ErrEmbedderUnavailable, b.breaker.Name())
	}

	var vectors [][]float32
	attempt := func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.CallTimeout)
		defer cancel()

		result, err := b.embedder.EmbedTexts(callCtx, texts)
		if err != nil {
			return err
		}
		if len(result) != len(texts) {
			return fmt.Errorf("%w: expected %d vectors, got %d", errCountMismatch, len(texts), len(result))
		}
		vectors = result
		return nil
	}
	retryable := func(err error) bool {
		return ctx.Err() == nil && !ai.IsPermanent(err)
	}

	err := retry.WithBackoffIf(ctx, attempt, retryable, b.config.MaxAttempts, b.config.RetryDelay)
	if err == nil {
		b.breaker.RecordSuccess()
		return vectors, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		b.breaker.Abandon()
		return nil, ctxErr
	}

	b.breaker.RecordFailure()
	b.logger.Warn("sub-batch embedding failed", "texts", len(texts), "error", err)
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}
