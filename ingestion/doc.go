// Package ingestion turns one file into stored, embedded chunks.
//
// The Coordinator runs a single ingestion: hash the bytes, skip known
// documents, parse into chunks, assign deterministic chunk IDs, drop chunks
// already indexed, then embed, validate and store the rest batch by batch.
// Each run returns a core.IngestionResult; failures are reported in it
// rather than as Go errors.
//
// With FailFast set, the first fatal error (embedder unavailable, embedding
// failure, storage failure or cancellation) stops the run. Work finished
// before the failure stays stored and every chunk not yet processed is
// reported as an error. Invalid embeddings are never fatal.
package ingestion
