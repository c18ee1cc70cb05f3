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

package core

import "errors"

// Embedding validation errors
var (
	// ErrInvalidEmbedding indicates a vector was rejected before persistence.
	// Every validation failure wraps it.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrEmptyVector indicates the vector has no components.
	ErrEmptyVector = errors.New("embedding vector is empty")

	// ErrDimensionMismatch indicates the vector length differs from the expected dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector indicates every component is within epsilon of zero.
	ErrZeroVector = errors.New("embedding is a zero vector")
)

// Chunk errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingParentHash indicates a chunk has no parent document hash.
	ErrMissingParentHash = errors.New("parent document hash cannot be empty")
)
