package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Registry maps task names to handlers. It is populated once at process
// startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handler under name. Names must be namespaced and unique.
func (r *Registry) Register(name string, handler Handler) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidTaskName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
	}
	r.handlers[name] = handler
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs task with its registered handler.
func (r *Registry) Dispatch(ctx context.Context, task *Task) (json.RawMessage, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", ErrInvalidInput)
	}
	h, ok := r.Lookup(task.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task.Name)
	}
	return h(ctx, task.Payload)
}
