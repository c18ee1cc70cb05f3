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

package mock

import (
	"sync/atomic"

	"github.com/poiesic/kbingest/ai"
)

// MockProvider is a test double for ai.Provider.
type MockProvider struct {
	name     string
	embedder *MockEmbedder
	closed   atomic.Bool
}

// NewMockProvider creates a provider named "mock" with a default mock embedder.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use NewMockProviderWithEmbedder to keep a handle on the embedder for assertions.
func NewMockProvider() ai.Provider {
	return &MockProvider{name: "mock", embedder: NewMockEmbedder()}
}

// NewMockProviderWithEmbedder creates a mock provider with a custom name and embedder.
func NewMockProviderWithEmbedder(name string, embedder *MockEmbedder) *MockProvider {
	return &MockProvider{name: name, embedder: embedder}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return p.name
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Close records that the provider was closed.
func (p *MockProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed.Load()
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}
