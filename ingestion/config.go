package ingestion

import (
	"fmt"

	"github.com/poiesic/kbingest/parser"
)

const DefaultBatchSize = 32

// Config holds the per-run options of an ingestion.
type Config struct {
	// BatchSize is the number of chunks embedded and stored together.
	BatchSize int
	// FailFast aborts the run on the first fatal error.
	FailFast bool
	// AllowZero accepts all-zero vectors.
	AllowZero bool
	// EnableDeduplication skips documents and chunks already indexed.
	EnableDeduplication bool
	// ExpectedDimension is the required vector length. Zero uses the
	// dimension pinned on the collection, inferring and pinning it from the
	// first embedded batch when the collection has none.
	ExpectedDimension int
	// Normalize scales vectors to unit length before storing.
	Normalize bool
	// SkipExisting also skips chunks whose ID is already in the store.
	SkipExisting bool

	// ChunkSize, ChunkOverlap and Strategy are passed to the parser.
	ChunkSize    int
	ChunkOverlap int
	Strategy     string
}

// DefaultConfig returns the default ingestion options.
func DefaultConfig() Config {
	return Config{
		BatchSize:           DefaultBatchSize,
		EnableDeduplication: true,
		ChunkSize:           parser.DefaultChunkSize,
		ChunkOverlap:        parser.DefaultChunkOverlap,
		Strategy:            parser.StrategyAuto,
	}
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BatchSize must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.ExpectedDimension < 0 {
		return fmt.Errorf("%w: ExpectedDimension must not be negative", ErrInvalidConfig)
	}
	if c.ChunkSize < 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk size and overlap must not be negative", ErrInvalidConfig)
	}
	size := c.ChunkSize
	if size == 0 {
		size = parser.DefaultChunkSize
	}
	if c.ChunkOverlap >= size {
		return fmt.Errorf("%w: ChunkOverlap %d must be smaller than ChunkSize %d", ErrInvalidConfig, c.ChunkOverlap, size)
	}
	if !parser.ValidStrategy(c.Strategy) {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

func (c Config) parserOptions() parser.Options {
	return parser.Options{
		Strategy:     c.Strategy,
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
	}
}
