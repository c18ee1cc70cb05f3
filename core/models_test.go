package core

import (
	"strings"
	"testing"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty content", content: ""},
		{name: "long content", content: strings.Repeat("a much longer piece of content ", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := HashContent([]byte(tt.content))
			h2 := HashString(tt.content)

			if h1 != h2 {
				t.Errorf("HashContent() and HashString() disagree: %s vs %s", h1, h2)
			}
			if len(h1) != 64 {
				t.Errorf("HashContent() length = %d, want 64 hex chars", len(h1))
			}
		})
	}
}

func TestHashContent_Different(t *testing.T) {
	if HashString("content1") == HashString("content2") {
		t.Errorf("HashContent() produced same hash for different content")
	}
}

func TestChunkID(t *testing.T) {
	tests := []struct {
		name    string
		docHash string
		index   int
		want    string
	}{
		{
			name:    "first chunk",
			docHash: "abc123def456789a0000ffff",
			index:   0,
			want:    "abc123def456789a_0000",
		},
		{
			name:    "third chunk",
			docHash: "abc123def456789a0000ffff",
			index:   2,
			want:    "abc123def456789a_0002",
		},
		{
			name:    "index wider than padding",
			docHash: "abc123def456789a0000ffff",
			index:   12345,
			want:    "abc123def456789a_12345",
		},
		{
			name:    "short hash is used whole",
			docHash: "abc",
			index:   7,
			want:    "abc_0007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChunkID(tt.docHash, tt.index); got != tt.want {
				t.Errorf("ChunkID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkID_StableAcrossRuns(t *testing.T) {
	data := []byte("identical bytes ingested twice")
	first := ChunkID(HashContent(data), 3)
	second := ChunkID(HashContent(data), 3)
	if first != second {
		t.Errorf("ChunkID() not stable: %q vs %q", first, second)
	}
}

func TestChunk_AssignIdentity(t *testing.T) {
	docHash := HashString("document")
	chunk := &Chunk{Content: "hello", ChunkIndex: 1}

	chunk.AssignIdentity(docHash, 4)

	if chunk.ParentDocumentHash != docHash {
		t.Errorf("ParentDocumentHash = %q, want %q", chunk.ParentDocumentHash, docHash)
	}
	if chunk.TotalChunks != 4 {
		t.Errorf("TotalChunks = %d, want 4", chunk.TotalChunks)
	}
	if chunk.ChunkID != docHash[:16]+"_0001" {
		t.Errorf("ChunkID = %q", chunk.ChunkID)
	}
	if chunk.ContentHash != HashString("hello") {
		t.Errorf("ContentHash = %q", chunk.ContentHash)
	}
}

func TestNewChunkRecord_CopiesMetadata(t *testing.T) {
	doc := &Document{SourcePath: "notes.md", Metadata: map[string]string{"filename": "notes.md"}}
	chunk := &Chunk{Content: "hello", ChunkIndex: 0}
	chunk.AssignIdentity(HashString("doc"), 1)

	record := NewChunkRecord("kb", doc, chunk, []float32{1, 0})
	record.Metadata["extra"] = "x"

	if _, ok := doc.Metadata["extra"]; ok {
		t.Errorf("NewChunkRecord() shares the document metadata map")
	}
	if record.ID != chunk.ChunkID || record.Collection != "kb" || record.Source != "notes.md" {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestIngestionResult_Finalize(t *testing.T) {
	tests := []struct {
		name     string
		result   IngestionResult
		aborted  bool
		chunkErr bool
		want     Status
	}{
		{name: "no errors", result: IngestionResult{StoredCount: 3}, want: StatusSuccess},
		{name: "all skipped", result: IngestionResult{SkippedCount: 3}, want: StatusSuccess},
		{name: "errors with stored chunks", result: IngestionResult{StoredCount: 2}, chunkErr: true, want: StatusPartial},
		{name: "errors with skipped chunks", result: IngestionResult{SkippedCount: 2}, chunkErr: true, want: StatusPartial},
		{name: "errors and nothing else", result: IngestionResult{}, chunkErr: true, want: StatusError},
		{name: "aborted", result: IngestionResult{StoredCount: 2}, aborted: true, want: StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			if tt.chunkErr {
				r.AddChunkError("abc_0000", "boom")
			}
			r.Finalize(tt.aborted)
			if r.Status != tt.want {
				t.Errorf("Finalize() status = %q, want %q", r.Status, tt.want)
			}
		})
	}
}

func TestIngestionResult_Errors(t *testing.T) {
	var r IngestionResult
	r.AddChunkError("abc_0001", "storage write failed")
	r.AddFileError("parse failed")

	if r.ErrorCount != 2 {
		t.Fatalf("ErrorCount = %d, want 2", r.ErrorCount)
	}
	if r.Errors[0].ChunkID == nil || *r.Errors[0].ChunkID != "abc_0001" {
		t.Errorf("first error chunk ID = %v", r.Errors[0].ChunkID)
	}
	if r.Errors[1].ChunkID != nil {
		t.Errorf("file error should have nil chunk ID")
	}
}
