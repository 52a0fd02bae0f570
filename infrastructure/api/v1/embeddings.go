package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
)

// EmbeddingsRouter handles embedding generation endpoints.
type EmbeddingsRouter struct {
	client *damkit.Client
	logger *slog.Logger
}

// NewEmbeddingsRouter creates a new EmbeddingsRouter.
func NewEmbeddingsRouter(client *damkit.Client) *EmbeddingsRouter {
	return &EmbeddingsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for embedding endpoints.
func (r *EmbeddingsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/generate", r.Generate)
	router.Post("/backfill", r.Backfill)

	return router
}

// Generate handles POST /api/v1/embeddings/generate. Non-image assets are
// answered with success false and "Not an image".
func (r *EmbeddingsRouter) Generate(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.GenerateEmbeddingRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}
	if strings.TrimSpace(body.AssetID) == "" {
		middleware.WriteMessage(w, req, fmt.Errorf("%w: assetId is required", repository.ErrValidation), r.logger, nil)
		return
	}

	if _, err := r.client.Embeddings.Generate(req.Context(), p.TenantID(), body.AssetID); err != nil {
		if errors.Is(err, service.ErrNotImage) {
			middleware.WriteJSON(w, http.StatusOK, dto.GenerateEmbeddingResponse{Success: false, Message: "Not an image"})
			return
		}
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.GenerateEmbeddingResponse{Success: true, AssetID: body.AssetID})
}

// Backfill handles POST /api/v1/embeddings/backfill. It runs synchronously
// unless ?async=true, in which case a backfill task is queued and 202 is
// returned.
func (r *EmbeddingsRouter) Backfill(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}
	ctx := req.Context()

	if queryBool(req.URL.Query().Get("async")) {
		if err := r.client.Tasks.EnqueueBackfill(ctx, p.TenantID(), task.PriorityUserInitiated); err != nil {
			middleware.WriteMessage(w, req, err, r.logger, nil)
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, dto.BackfillResponse{Success: true, Message: "Backfill queued"})
		return
	}

	result, err := r.client.Embeddings.Backfill(ctx, p.TenantID())
	if err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.BackfillResponse{
		Success:   true,
		Total:     result.Total,
		Processed: result.Processed,
		Failed:    result.Failed,
		Message:   result.Message,
	})
}
