// Package dedup tracks which documents, chunks and sources have already been
// ingested into a collection so repeated work can be skipped.
//
// Each collection has its own Tracker holding three hash sets. A Registry
// hands out the shared Tracker per collection; with a Persister configured,
// registrations are written through and trackers are reloaded on first use,
// so the index survives restarts.
package dedup
