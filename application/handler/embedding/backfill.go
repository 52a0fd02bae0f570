package embedding

import (
	"context"
	"log/slog"

	"github.com/helixml/damkit/application/handler"
	"github.com/helixml/damkit/application/service"
)

// Backfill handles the BACKFILL_EMBEDDINGS task operation.
type Backfill struct {
	embeddings *service.Embedding
	logger     *slog.Logger
}

// NewBackfill creates a new Backfill handler.
func NewBackfill(embeddings *service.Embedding, logger *slog.Logger) *Backfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{embeddings: embeddings, logger: logger}
}

// Execute processes the BACKFILL_EMBEDDINGS task.
func (h *Backfill) Execute(ctx context.Context, payload map[string]any) error {
	tenantID, err := handler.ExtractString(payload, "tenant_id")
	if err != nil {
		return err
	}

	result, err := h.embeddings.Backfill(ctx, tenantID)
	if err != nil {
		return err
	}

	h.logger.Info("tenant backfill finished",
		slog.String("tenant_id", tenantID),
		slog.String("message", result.Message),
	)
	return nil
}
