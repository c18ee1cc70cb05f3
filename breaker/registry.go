package breaker

import (
	"slices"
	"strings"
	"sync"
)

// Registry hands out one Breaker per backend name so that every ingestion
// run using a backend shares its failure state.
type Registry struct {
	config Config
	opts   []Option

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry. Breakers are built lazily with
// config and opts.
func NewRegistry(config Config, opts ...Option) (*Registry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		config:   config,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}, nil
}

// Get returns the breaker for backend, creating it on first use.
func (r *Registry) Get(backend string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[backend]; ok {
		return b
	}
	// config was validated by NewRegistry
	b, _ := New(backend, r.config, r.opts...)
	r.breakers[backend] = b
	return b
}

// Snapshots returns the state of every known breaker ordered by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, len(breakers))
	for i, b := range breakers {
		snapshots[i] = b.Snapshot()
	}
	slices.SortFunc(snapshots, func(a, b Snapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return snapshots
}
