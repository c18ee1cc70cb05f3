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

// Package ai defines the embedding backend contract used by kbingest.
//
// The ingestion pipeline depends only on the Embedder and Provider
// interfaces declared here; concrete backends live in sub-packages:
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM) via langchaingo
//   - ai/gemini: Google Gemini embeddings via generative-ai-go
//   - ai/mock: test doubles for unit testing without external services
//
// # Error classification
//
// Backends return plain errors for failures worth retrying (timeouts,
// connection resets, rate limiting) and wrap the rest with Permanent. The
// batch embedder retries only the former.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewProvider) return the
// ai.Provider interface. Test constructors (mock.NewMockEmbedder) return
// concrete types so tests can inject behaviour and assert call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"hello", "world"})
package ai
