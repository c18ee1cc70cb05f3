// Package mock provides test double implementations of the embedding interfaces.
//
// The mocks let tests run without an embedding service and give controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "b"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("backend down")
//	}
//
//	// Check call counts and batch sizes
//	count := embedder.CallCount()
//	sizes := embedder.BatchSizes()
//
// # Default Behavior
//
//   - MockEmbedder: returns deterministic unit vectors derived from the text hash
//   - MockProvider: wraps a MockEmbedder under a configurable backend name
package mock
