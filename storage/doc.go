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

// Package storage provides the vector store abstraction for kbingest.
//
// VectorStore decouples the ingestion pipeline from the store that keeps
// embedded chunks. Three implementations ship with the module:
//
//   - storage/badger: embedded key-value store, the default
//   - storage/chromem: embedded chromem-go collections
//   - storage/pgvector: PostgreSQL with the pgvector extension
//
// # Writer
//
// The pipeline never talks to a VectorStore directly. It goes through a
// Writer, which serialises writes per collection, retries transient failures
// and runs every write under its own timeout so a write that has started is
// not cut short by task cancellation:
//
//	store, err := badger.NewVectorStore(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	writer := storage.NewWriter(store)
//	err = writer.Upsert(ctx, "docs", record)
//
// # Idempotence
//
// Upsert is keyed by chunk ID. Writing the same ID twice replaces the record
// and leaves the collection count unchanged.
//
// # Thread Safety
//
// All VectorStore implementations must be safe for concurrent use.
package storage
