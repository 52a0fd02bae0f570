// Package embedding provides task handlers that caption and embed image assets.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helixml/damkit/application/handler"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/repository"
)

// Generate handles the GENERATE_EMBEDDING task operation.
type Generate struct {
	embeddings *service.Embedding
	logger     *slog.Logger
}

// NewGenerate creates a new Generate handler.
func NewGenerate(embeddings *service.Embedding, logger *slog.Logger) *Generate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generate{embeddings: embeddings, logger: logger}
}

// Execute processes the GENERATE_EMBEDDING task.
func (h *Generate) Execute(ctx context.Context, payload map[string]any) error {
	p, err := handler.ExtractAssetPayload(payload)
	if err != nil {
		return err
	}

	a, err := h.embeddings.Generate(ctx, p.TenantID(), p.AssetID())
	if errors.Is(err, repository.ErrNotFound) {
		// Deleted before the worker got to it.
		h.logger.Info("skipping embedding for missing asset", slog.String("asset_id", p.AssetID()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("generate embedding for %s: %w", p.AssetID(), err)
	}

	h.logger.Info("asset embedding generated",
		slog.String("tenant_id", p.TenantID()),
		slog.String("asset_id", a.ID()),
	)
	return nil
}
