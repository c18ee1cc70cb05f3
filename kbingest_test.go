package kbingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/kbingest/ai/mock"
	"github.com/poiesic/kbingest/config"
	"github.com/poiesic/kbingest/core"
	"github.com/poiesic/kbingest/ingestion"
	"github.com/poiesic/kbingest/tasks"
)

func testConfig(t *testing.T, storeType string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Store.Type = storeType
	return cfg
}

func openTest(t *testing.T, cfg *config.Config) (*KnowledgeBase, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProviderWithEmbedder("mock", mock.NewMockEmbedder())
	kb, err := Open(context.Background(), cfg, WithProvider(provider))
	require.NoError(t, err)
	return kb, provider
}

func TestOpen_StoreTypes(t *testing.T) {
	for _, storeType := range []string{config.StoreBadger, config.StoreChromem, config.StoreMemory} {
		t.Run(storeType, func(t *testing.T) {
			kb, provider := openTest(t, testConfig(t, storeType))

			assert.NotNil(t, kb.Coordinator())
			assert.Equal(t, []string{tasks.IngestFileTaskName}, kb.Tasks().Names())
			assert.Equal(t, storeType == config.StoreMemory, kb.backend == nil)

			require.NoError(t, kb.Close())
			assert.True(t, provider.Closed())
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "redis")
	_, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpen_BadDataDir(t *testing.T) {
	cfg := testConfig(t, config.StoreBadger)
	file := filepath.Join(cfg.DataDir, "not_a_dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.DataDir = file

	provider := mock.NewMockProviderWithEmbedder("mock", mock.NewMockEmbedder())
	_, err := Open(context.Background(), cfg, WithProvider(provider))
	assert.Error(t, err)
}

func TestKnowledgeBase_IngestAndStats(t *testing.T) {
	ctx := context.Background()
	kb, _ := openTest(t, testConfig(t, config.StoreBadger))
	defer kb.Close()

	req := ingestion.Request{
		Data:       []byte("The quick brown fox jumps over the lazy dog."),
		Filename:   "fox.txt",
		Collection: "animals",
	}
	first := kb.Ingest(ctx, req)
	require.Equal(t, core.StatusSuccess, first.Status, "%+v", first.Errors)
	require.Equal(t, 1, first.StoredCount)

	second := kb.Ingest(ctx, req)
	assert.Equal(t, core.StatusSuccess, second.Status)
	assert.Equal(t, 0, second.StoredCount)
	assert.Equal(t, 1, second.SkippedCount)

	stats, err := kb.Stats(ctx, "animals")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StoredChunks)
	assert.Equal(t, 1, stats.Dedup.Documents)
	assert.Equal(t, 1, stats.Dedup.Chunks)
	assert.Equal(t, 1, stats.Dedup.Sources)
	require.Len(t, stats.Breakers, 1)
	assert.Equal(t, "mock", stats.Breakers[0].Name)
}

func TestKnowledgeBase_DedupSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.StoreBadger)
	req := ingestion.Request{Data: []byte("persistent content"), Filename: "p.txt", Collection: "docs"}

	kb, _ := openTest(t, cfg)
	require.Equal(t, 1, kb.Ingest(ctx, req).StoredCount)
	require.NoError(t, kb.Close())

	kb, _ = openTest(t, cfg)
	defer kb.Close()
	again := kb.Ingest(ctx, req)
	assert.Equal(t, 0, again.StoredCount)
	assert.Equal(t, 1, again.SkippedCount)

	stats, err := kb.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, mock.DefaultDimension, stats.Dedup.Dimension, "pinned dimension survives reopen")
}

func TestKnowledgeBase_ResetDedup(t *testing.T) {
	ctx := context.Background()
	kb, _ := openTest(t, testConfig(t, config.StoreBadger))
	defer kb.Close()

	req := ingestion.Request{Data: []byte("reset me"), Filename: "r.txt", Collection: "docs"}
	require.Equal(t, 1, kb.Ingest(ctx, req).StoredCount)

	require.NoError(t, kb.ResetDedup(ctx, "docs", false))
	stats, err := kb.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Dedup.Documents)
	assert.Equal(t, 1, stats.StoredChunks, "stored chunks are kept")
	assert.Equal(t, mock.DefaultDimension, stats.Dedup.Dimension)

	// Reingesting overwrites the same chunk ID.
	assert.Equal(t, 1, kb.Ingest(ctx, req).StoredCount)

	require.NoError(t, kb.ResetDedup(ctx, "docs", true))
	stats, err = kb.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.StoredChunks)
	assert.Equal(t, 0, stats.Dedup.Dimension)

	assert.Error(t, kb.ResetDedup(ctx, "bad:name", false))
}

func TestKnowledgeBase_IngestFileTask(t *testing.T) {
	ctx := context.Background()
	kb, _ := openTest(t, testConfig(t, config.StoreMemory))
	defer kb.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\n\nalpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0o644))

	out := kb.IngestFile(ctx, tasks.IngestFileInput{ProjectDir: dir, DatabaseName: "kb", SourcePath: "."})
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Details.DocumentCount)
	assert.Equal(t, 2, out.Details.StoredCount)

	// Through the queue and pool.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("gamma"), 0o644))
	name := "c.txt"
	task, err := tasks.NewTask(tasks.IngestFileTaskName, tasks.IngestFileInput{
		ProjectDir: dir, DatabaseName: "kb", SourcePath: ".", Filename: &name,
	})
	require.NoError(t, err)

	queue := tasks.NewMemoryQueue(1)
	var results []tasks.Result
	pool, err := kb.NewPool(queue, tasks.WithWorkers(1), tasks.WithResultHandler(func(r tasks.Result) {
		results = append(results, r)
	}))
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, queue.Enqueue(ctx, task))
	queue.Close()
	require.NoError(t, pool.Run(ctx))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	var taskOut tasks.IngestFileOutput
	require.NoError(t, json.Unmarshal(results[0].Output, &taskOut))
	assert.True(t, taskOut.Success)
	assert.Equal(t, 1, taskOut.Details.StoredCount)

	stats, err := kb.Stats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.StoredChunks)
}
