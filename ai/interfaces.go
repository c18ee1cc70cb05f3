package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedTexts generates vector embeddings for multiple text strings in one
	// backend call. The returned slice contains embeddings in the same order
	// as the input texts. Errors the backend will never accept on retry are
	// marked with Permanent.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider owns one embedding backend connection.
type Provider interface {
	// Name identifies the backend, e.g. "openai". Circuit breakers are keyed by it.
	Name() string

	// Embedder returns the embedding service. Safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider.
	// After Close is called, the provider and its embedder should not be used.
	Close() error
}
