// Package embedding turns ordered lists of texts into ordered lists of vectors.
//
// A BatchEmbedder splits its input into sub-batches no larger than the
// configured size and sends each one to an ai.Embedder. Every sub-batch is
// guarded by the backend's circuit breaker: when the breaker is open the call
// fails with ErrEmbedderUnavailable without contacting the backend.
//
// Transient failures are retried with exponential backoff. Errors marked with
// ai.Permanent are not retried. A sub-batch that still fails counts as one
// breaker failure and surfaces as ErrEmbeddingFailed.
//
// Backend calls run with their own timeout, detached from the caller's
// cancellation, so an in-flight request is allowed to finish. Cancellation is
// observed between attempts and between sub-batches.
package embedding
