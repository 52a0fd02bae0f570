package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/task"
)

// TaskListParams configures task listing.
type TaskListParams struct {
	Operation *task.Operation
	Limit     int
	Offset    int
}

// Queue provides the main interface for enqueuing and managing tasks.
type Queue struct {
	store  task.TaskStore
	logger *slog.Logger
}

// NewQueue creates a new queue service.
func NewQueue(store task.TaskStore, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:  store,
		logger: logger,
	}
}

// Enqueue adds a task to the queue.
// If a task with the same dedup_key exists, it updates the priority instead.
func (s *Queue) Enqueue(ctx context.Context, t task.Task) error {
	_, err := s.store.Save(ctx, t)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Operation(), err)
	}

	s.logger.Debug("task enqueued",
		slog.String("dedup_key", t.DedupKey()),
		slog.String("operation", t.Operation().String()),
	)
	return nil
}

// EnqueueEmbedding queues caption and embedding generation for one asset.
func (s *Queue) EnqueueEmbedding(ctx context.Context, tenantID, assetID string, priority task.Priority) error {
	return s.Enqueue(ctx, task.NewTask(task.OperationGenerateEmbedding, priority, map[string]any{
		"tenant_id": tenantID,
		"asset_id":  assetID,
	}))
}

// EnqueueBackfill queues a backfill of every unembedded image in a tenant.
func (s *Queue) EnqueueBackfill(ctx context.Context, tenantID string, priority task.Priority) error {
	return s.Enqueue(ctx, task.NewTask(task.OperationBackfillEmbeddings, priority, map[string]any{
		"tenant_id": tenantID,
	}))
}

// List returns tasks matching the given params.
// Tasks are sorted by priority (highest first) then by created_at (oldest first).
func (s *Queue) List(ctx context.Context, params *TaskListParams) ([]task.Task, error) {
	var options []repository.Option

	if params != nil && params.Operation != nil {
		options = append(options, task.WithOperation(*params.Operation))
	}
	if params != nil && params.Limit > 0 {
		options = append(options, repository.WithPagination(params.Limit, params.Offset)...)
	}

	return s.store.FindPending(ctx, options...)
}

// Count returns the total number of pending tasks.
func (s *Queue) Count(ctx context.Context) (int64, error) {
	return s.store.CountPending(ctx)
}

// DrainForAsset removes pending tasks whose payload names the asset, so a
// deleted asset is not processed later.
func (s *Queue) DrainForAsset(ctx context.Context, assetID string) (int, error) {
	op := task.OperationGenerateEmbedding
	tasks, err := s.List(ctx, &TaskListParams{Operation: &op})
	if err != nil {
		return 0, fmt.Errorf("find pending tasks: %w", err)
	}

	removed := 0
	for _, t := range tasks {
		id, err := task.PayloadString(t.Payload(), "asset_id")
		if err != nil || id != assetID {
			continue
		}
		if err := s.store.Delete(ctx, t); err != nil {
			return removed, fmt.Errorf("delete task %d: %w", t.ID(), err)
		}
		removed++
	}
	return removed, nil
}
