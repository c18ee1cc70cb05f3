package tasks

import (
	"context"
	"sync"
)

// Queue hands tasks from producers to a Pool.
type Queue interface {
	// Enqueue adds task, blocking while the queue is full.
	Enqueue(ctx context.Context, task *Task) error
	// Dequeue blocks until a task is available. It returns ErrQueueClosed
	// once the queue is closed and drained.
	Dequeue(ctx context.Context) (*Task, error)
	Close()
}

// MemoryQueue is a bounded in-process Queue.
type MemoryQueue struct {
	tasks    chan *Task
	done     chan struct{}
	doneOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue holding up to capacity pending tasks.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryQueue{
		tasks: make(chan *Task, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of pending tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

// Close stops accepting tasks. Pending tasks can still be dequeued.
func (q *MemoryQueue) Close() {
	// Blocked producers hold the read lock; wake them before taking the
	// write lock.
	q.doneOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}
