package core

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// chunkIDPrefixLen is the number of hex characters of the parent hash kept in a chunk ID.
const chunkIDPrefixLen = 16

// HashContent returns the hex encoded BLAKE2b-256 digest of data.
// Identical bytes always produce identical hashes.
func HashContent(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashString is HashContent for text.
func HashString(text string) string {
	return HashContent([]byte(text))
}

// ChunkID derives the deterministic identifier of the chunk at index within
// the document identified by docHash: the first 16 hex characters of the
// hash, an underscore, and the index zero padded to four digits.
func ChunkID(docHash string, index int) string {
	prefix := docHash
	if len(prefix) > chunkIDPrefixLen {
		prefix = prefix[:chunkIDPrefixLen]
	}
	return fmt.Sprintf("%s_%04d", prefix, index)
}

// Document is one ingested file. It is created once per ingestion run and
// not modified afterwards.
type Document struct {
	Content     string
	SourcePath  string
	ContentHash string            // HashContent of the raw bytes
	Metadata    map[string]string // Parser supplied metadata (e.g. "filename", "strategy")
}

// Chunk is an ordered content slice of a Document.
// The parser fills Content and ChunkIndex; the coordinator assigns the rest.
type Chunk struct {
	Content            string
	ChunkIndex         int // 0-based position within the document
	TotalChunks        int
	ParentDocumentHash string
	ChunkID            string
	ContentHash        string
}

// AssignIdentity fills the derived identity fields of the chunk.
func (c *Chunk) AssignIdentity(parentHash string, total int) {
	c.ParentDocumentHash = parentHash
	c.TotalChunks = total
	c.ChunkID = ChunkID(parentHash, c.ChunkIndex)
	c.ContentHash = HashString(c.Content)
}

// ChunkRecord is the persisted form of an embedded chunk.
type ChunkRecord struct {
	ID           string            `msgpack:"id"`
	Collection   string            `msgpack:"collection"`
	Content      string            `msgpack:"content"`
	ContentHash  string            `msgpack:"content_hash"`
	DocumentHash string            `msgpack:"document_hash"`
	ChunkIndex   int               `msgpack:"chunk_index"`
	TotalChunks  int               `msgpack:"total_chunks"`
	Source       string            `msgpack:"source"`
	Vector       []float32         `msgpack:"vector"`
	Metadata     map[string]string `msgpack:"metadata,omitempty"`
	InsertedAt   time.Time         `msgpack:"inserted_at"` // When the record was first stored
	UpdatedAt    time.Time         `msgpack:"updated_at"`  // When the record was last replaced
}

// NewChunkRecord builds the record persisted for chunk with its vector.
func NewChunkRecord(collection string, doc *Document, chunk *Chunk, vector []float32) *ChunkRecord {
	metadata := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	return &ChunkRecord{
		ID:           chunk.ChunkID,
		Collection:   collection,
		Content:      chunk.Content,
		ContentHash:  chunk.ContentHash,
		DocumentHash: chunk.ParentDocumentHash,
		ChunkIndex:   chunk.ChunkIndex,
		TotalChunks:  chunk.TotalChunks,
		Source:       doc.SourcePath,
		Vector:       vector,
		Metadata:     metadata,
	}
}

// Status is the outcome of one ingestion run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// ChunkError describes one failure recorded during an ingestion run.
// ChunkID is nil for file level failures.
type ChunkError struct {
	ChunkID *string `json:"chunk_id"`
	Reason  string  `json:"reason"`
}

// IngestionResult summarises one ingestion run. It is the only artifact
// returned across the task boundary.
type IngestionResult struct {
	Status       Status
	Filename     string
	StoredCount  int
	SkippedCount int
	ErrorCount   int
	TotalChunks  int
	Errors       []ChunkError
}

// AddChunkError records a failure for the chunk with the given ID.
func (r *IngestionResult) AddChunkError(chunkID string, reason string) {
	id := chunkID
	r.Errors = append(r.Errors, ChunkError{ChunkID: &id, Reason: reason})
	r.ErrorCount = len(r.Errors)
}

// AddFileError records a failure that is not tied to a chunk.
func (r *IngestionResult) AddFileError(reason string) {
	r.Errors = append(r.Errors, ChunkError{Reason: reason})
	r.ErrorCount = len(r.Errors)
}

// Finalize sets Status from the recorded counts. An aborted run is always an error.
func (r *IngestionResult) Finalize(aborted bool) {
	r.ErrorCount = len(r.Errors)
	switch {
	case aborted:
		r.Status = StatusError
	case r.ErrorCount == 0:
		r.Status = StatusSuccess
	case r.StoredCount == 0 && r.SkippedCount == 0:
		r.Status = StatusError
	default:
		r.Status = StatusPartial
	}
}
