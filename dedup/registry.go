package dedup

import (
	"context"
	"log/slog"
	"sync"
)

// Registry owns one Tracker per collection.
type Registry struct {
	persister Persister
	logger    *slog.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// Option configures a Registry.
type Option func(*Registry)

// WithPersister makes trackers write through to p and load from it on first use.
func WithPersister(p Persister) Option {
	return func(r *Registry) {
		r.persister = p
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry. Without a persister trackers live in memory only.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		trackers: make(map[string]*Tracker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForCollection returns the shared tracker of collection, loading it from
// the persister the first time it is requested.
func (r *Registry) ForCollection(ctx context.Context, collection string) (*Tracker, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[collection]; ok {
		return t, nil
	}

	t := newTracker(collection, r.persister, r.logger)
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	r.trackers[collection] = t
	return t, nil
}

// Reset clears the hash sets of collection.
func (r *Registry) Reset(ctx context.Context, collection string) error {
	t, err := r.ForCollection(ctx, collection)
	if err != nil {
		return err
	}
	return t.Reset(ctx)
}
