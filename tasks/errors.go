package tasks

import "errors"

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrDuplicateTask     = errors.New("task already registered")
	ErrInvalidTaskName   = errors.New("invalid task name")
	ErrInvalidInput      = errors.New("invalid task input")
	ErrQueueClosed       = errors.New("queue closed")
	ErrIngesterRequired  = errors.New("ingester is required")
	ErrRegistryRequired  = errors.New("task registry is required")
	ErrQueueRequired     = errors.New("task queue is required")
	ErrWatchDirRequired  = errors.New("watch directory is required")
	ErrNamespaceRequired = errors.New("task name must be namespaced as <domain>.<name>")
)
