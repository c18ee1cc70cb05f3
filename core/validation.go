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

import (
	"fmt"
	"math"
)

// ZeroEpsilon is the magnitude below which a component counts as zero.
const ZeroEpsilon = 1e-10

// ValidateEmbedding checks a vector before it is persisted.
//
// Validation rules:
//   - vector must not be empty
//   - if expectedDim > 0, len(vector) must equal expectedDim
//   - unless allowZero, at least one component must have |x| >= ZeroEpsilon
//
// Every returned error wraps ErrInvalidEmbedding. The vector is never modified.
func ValidateEmbedding(vector []float32, expectedDim int, allowZero bool) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrEmptyVector)
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: %w: expected %d, got %d",
			ErrInvalidEmbedding, ErrDimensionMismatch, expectedDim, len(vector))
	}

	if !allowZero && isZeroVector(vector) {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrZeroVector)
	}

	return nil
}

func isZeroVector(vector []float32) bool {
	for _, v := range vector {
		if math.Abs(float64(v)) >= ZeroEpsilon {
			return false
		}
	}
	return true
}

// ValidateChunk validates a Chunk after the coordinator assigned its identity.
//
// Validation rules:
//   - Content must not be empty
//   - ParentDocumentHash must not be empty
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.ParentDocumentHash == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingParentHash)
	}

	return nil
}
