package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_EnqueuesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	q := NewMemoryQueue(8)

	w, err := NewWatcher(q, IngestFileInput{DatabaseName: "docs", StrategyName: "markdown"},
		WithExtensions("md"), WithDebounce(100*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "ignored.txt", "x")
	writeFile(t, dir, ".hidden.md", "x")
	writeFile(t, dir, "notes.md", "# first")
	writeFile(t, dir, "notes.md", "# second")

	dequeueCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	task, err := q.Dequeue(dequeueCtx)
	require.NoError(t, err)
	assert.Equal(t, IngestFileTaskName, task.Name)

	var in IngestFileInput
	require.NoError(t, json.Unmarshal(task.Payload, &in))
	assert.Equal(t, "docs", in.DatabaseName)
	assert.Equal(t, "markdown", in.StrategyName)
	require.NotNil(t, in.Filename)
	assert.Equal(t, "notes.md", *in.Filename)
	assert.Equal(t, filepath.Clean(dir), filepath.Clean(in.SourcePath))

	// Writes within the debounce window collapse into one task.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, q.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_Accepts(t *testing.T) {
	w, err := NewWatcher(NewMemoryQueue(1), IngestFileInput{DatabaseName: "docs"}, WithExtensions(".MD", "txt"))
	require.NoError(t, err)

	assert.True(t, w.accepts("/x/a.md"))
	assert.True(t, w.accepts("/x/b.TXT"))
	assert.False(t, w.accepts("/x/c.pdf"))
	assert.False(t, w.accepts("/x/.d.md"))

	all, err := NewWatcher(NewMemoryQueue(1), IngestFileInput{DatabaseName: "docs"})
	require.NoError(t, err)
	assert.True(t, all.accepts("/x/c.pdf"))
}

func TestWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(nil, IngestFileInput{DatabaseName: "docs"})
	assert.ErrorIs(t, err, ErrQueueRequired)

	_, err = NewWatcher(NewMemoryQueue(1), IngestFileInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	w, err := NewWatcher(NewMemoryQueue(1), IngestFileInput{DatabaseName: "docs"})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Run(context.Background(), ""), ErrWatchDirRequired)
	assert.Error(t, w.Run(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

func TestWatcher_SkipsVanishedFiles(t *testing.T) {
	dir := t.TempDir()
	q := NewMemoryQueue(1)
	w, err := NewWatcher(q, IngestFileInput{DatabaseName: "docs"})
	require.NoError(t, err)

	w.enqueue(context.Background(), filepath.Join(dir, "gone.md"))
	assert.Equal(t, 0, q.Len())

	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	w.enqueue(context.Background(), filepath.Join(dir, "sub"))
	assert.Equal(t, 0, q.Len())
}

func TestWatcher_StaleTimerKeepsNewerPending(t *testing.T) {
	w, err := NewWatcher(NewMemoryQueue(1), IngestFileInput{DatabaseName: "docs"}, WithDebounce(time.Hour))
	require.NoError(t, err)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.md")

	w.schedule(ctx, path)
	w.mu.Lock()
	stale := w.pending[path]
	w.mu.Unlock()

	w.schedule(ctx, path)
	w.mu.Lock()
	current := w.pending[path]
	w.mu.Unlock()
	require.NotSame(t, stale, current)

	// The replaced timer fired before it could be stopped.
	assert.False(t, w.release(path, stale))
	w.mu.Lock()
	assert.Same(t, current, w.pending[path])
	w.mu.Unlock()

	w.stopPending()
	w.mu.Lock()
	assert.Empty(t, w.pending)
	w.mu.Unlock()

	assert.False(t, w.release(path, current))
}
