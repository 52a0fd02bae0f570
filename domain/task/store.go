package task

import (
	"context"

	"github.com/helixml/damkit/domain/repository"
)

// TaskStore persists queued tasks.
type TaskStore interface {
	// Save creates a task. When a task with the same dedup key is already
	// queued, its priority is raised instead.
	Save(ctx context.Context, task Task) (Task, error)

	// FindPending returns queued tasks, highest priority first.
	FindPending(ctx context.Context, options ...repository.Option) ([]Task, error)

	// CountPending returns the number of queued tasks.
	CountPending(ctx context.Context, options ...repository.Option) (int64, error)

	// Delete removes a task.
	Delete(ctx context.Context, task Task) error

	// Dequeue removes and returns the highest priority task. The bool is
	// false when the queue is empty.
	Dequeue(ctx context.Context) (Task, bool, error)
}

// WithOperation filters by the "type" column.
func WithOperation(op Operation) repository.Option {
	return repository.WithCondition("type", op.String())
}
