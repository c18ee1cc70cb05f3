package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work addressed to a registered handler.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt string          `json:"enqueued_at"`
}

// Handler executes a task payload and returns its JSON encoded output.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// NewTask builds a task for name with input encoded as its payload.
func NewTask(name string, input any) (*Task, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ValidateName checks that name has the form <domain>.<name>.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidTaskName
	}
	domain, rest, ok := strings.Cut(name, ".")
	if !ok || domain == "" || rest == "" {
		return fmt.Errorf("%w: %q", ErrNamespaceRequired, name)
	}
	return nil
}
