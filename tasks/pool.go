package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultWorkers is the number of tasks a Pool runs at once.
const DefaultWorkers = 4

// Result is the outcome of one dispatched task.
type Result struct {
	Task     *Task
	Output   json.RawMessage
	Err      error
	Duration time.Duration
}

// PoolOption configures a Pool.
type PoolOption func(*Pool) error

// WithWorkers sets the worker count.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) error {
		if n < 1 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		p.workers = n
		return nil
	}
}

// WithResultHandler receives every task result. It is called from worker
// goroutines and must be safe for concurrent use.
func WithResultHandler(fn func(Result)) PoolOption {
	return func(p *Pool) error {
		p.onResult = fn
		return nil
	}
}

// WithPoolLogger sets the logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// Pool drains a Queue and dispatches tasks through a Registry on a bounded
// set of workers.
type Pool struct {
	registry *Registry
	queue    Queue
	workers  int
	onResult func(Result)
	logger   *slog.Logger

	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewPool creates a pool. Call Release when done.
func NewPool(registry *Registry, queue Queue, opts ...PoolOption) (*Pool, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}

	p := &Pool{
		registry: registry,
		queue:    queue,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "task-pool")

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Run dispatches tasks until the queue is closed and drained or ctx is
// cancelled. It waits for running tasks before returning. A closed queue
// returns nil; cancellation returns ctx.Err().
func (p *Pool) Run(ctx context.Context) error {
	defer p.wg.Wait()

	for {
		task, err := p.queue.Dequeue(ctx)
		if errors.Is(err, ErrQueueClosed) {
			p.logger.Info("queue closed, draining workers")
			return nil
		}
		if err != nil {
			return err
		}

		p.wg.Add(1)
		// Submit blocks while every worker is busy.
		if err := p.pool.Submit(func() {
			defer p.wg.Done()
			p.execute(ctx, task)
		}); err != nil {
			p.wg.Done()
			p.report(Result{Task: task, Err: fmt.Errorf("submitting task: %w", err)})
		}
	}
}

func (p *Pool) execute(ctx context.Context, task *Task) {
	start := time.Now()
	logger := p.logger.With("task", task.ID, "name", task.Name)
	logger.Debug("task started")

	out, err := p.registry.Dispatch(ctx, task)
	result := Result{Task: task, Output: out, Err: err, Duration: time.Since(start)}
	if err != nil {
		logger.Error("task failed", "error", err, "duration", result.Duration)
	} else {
		logger.Info("task finished", "duration", result.Duration)
	}
	p.report(result)
}

func (p *Pool) report(r Result) {
	if p.onResult != nil {
		p.onResult(r)
	}
}

// Running returns the number of tasks executing now.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the workers. The pool cannot be used afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}
