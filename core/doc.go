// Package core holds the ingestion data model: documents, chunks, persisted
// chunk records and the per-run result summary.
//
// It also owns the pure helpers every other package agrees on: content
// hashing, deterministic chunk IDs, embedding validation and vector
// normalisation. Nothing in this package performs I/O.
package core
