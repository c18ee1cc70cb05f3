package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is enqueued.
const DefaultDebounce = 250 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithExtensions limits the watcher to files with these extensions
// (".md", ".txt"). Default is every file.
func WithExtensions(exts ...string) WatcherOption {
	return func(w *Watcher) {
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions = append(w.extensions, ext)
		}
	}
}

// WithDebounce sets the quiet period before a changed file is enqueued.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher enqueues an ingest_file task for every file created or written in
// a directory.
type Watcher struct {
	queue      Queue
	template   IngestFileInput
	extensions []string
	debounce   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher. template supplies project_dir,
// strategy_name and database_name for the tasks it produces.
func NewWatcher(queue Queue, template IngestFileInput, opts ...WatcherOption) (*Watcher, error) {
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if template.DatabaseName == "" {
		return nil, fmt.Errorf("%w: database_name is required", ErrInvalidInput)
	}
	w := &Watcher{
		queue:    queue,
		template: template,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watcher")
	return w, nil
}

// Run watches dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if dir == "" {
		return ErrWatchDirRequired
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()
	defer w.stopPending()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir, "extensions", w.extensions)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	name := filepath.Base(path)
	if isHidden(name) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(name)))
}

// schedule enqueues path once it has been quiet for the debounce period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		if w.release(path, timer) {
			w.enqueue(ctx, path)
		}
	})
	w.pending[path] = timer
}

// release removes timer from the pending set if it is still the current
// timer of path. A timer that fired after being replaced reports false.
func (w *Watcher) release(path string, timer *time.Timer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[path] != timer {
		return false
	}
	delete(w.pending, path)
	return true
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	in := w.template
	in.SourcePath = filepath.Dir(path)
	name := filepath.Base(path)
	in.Filename = &name

	task, err := NewTask(IngestFileTaskName, in)
	if err != nil {
		w.logger.Error("failed to build task", "file", path, "error", err)
		return
	}
	if err := w.queue.Enqueue(ctx, task); err != nil {
		w.logger.Warn("failed to enqueue task", "file", path, "error", err)
		return
	}
	w.logger.Info("file queued", "file", path, "task", task.ID)
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
