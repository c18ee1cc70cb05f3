package chromem

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/storage"
)

func chunkRecord(id string, index int) *core.ChunkRecord {
	return &core.ChunkRecord{
		ID:           id,
		Content:      "content " + id,
		ContentHash:  core.HashString("content " + id),
		DocumentHash: "abc123def456789abcdef",
		ChunkIndex:   index,
		TotalChunks:  3,
		Source:       "notes.md",
		Vector:       []float32{0.6, 0.8},
		Metadata:     map[string]string{"filename": "notes.md"},
	}
}

func TestStore_UpsertGetCount(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, "docs", chunkRecord(fmt.Sprintf("a_%04d", i), i)))
	}
	// Replacing an existing ID keeps the count.
	require.NoError(t, s.Upsert(ctx, "docs", chunkRecord("a_0001", 1)))

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := s.Get(ctx, "docs", "a_0001")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ChunkIndex)
	assert.Equal(t, 3, got.TotalChunks)
	assert.Equal(t, "notes.md", got.Source)
	assert.Equal(t, map[string]string{"filename": "notes.md"}, got.Metadata)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, got.Vector, 1e-6)
	assert.False(t, got.InsertedAt.IsZero())

	exists, err := s.Exists(ctx, "docs", "a_0009")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.Exists(ctx, "missing", "a_0000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_DeleteCollection(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", chunkRecord("a_0000", 0)))
	require.NoError(t, s.DeleteCollection(ctx, "docs"))

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = s.Get(ctx, "docs", "a_0000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "docs", chunkRecord("a_0000", 0)))

	reopened, err := New(dir)
	require.NoError(t, err)
	count, err := reopened.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_RejectsMissingVector(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	r := chunkRecord("a_0000", 0)
	r.Vector = nil
	assert.Error(t, s.Upsert(context.Background(), "docs", r))
}
