package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
)

// AnalyticsRouter handles analytics endpoints.
type AnalyticsRouter struct {
	client *damkit.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyticsRouter creates a new AnalyticsRouter.
func NewAnalyticsRouter(client *damkit.Client) *AnalyticsRouter {
	return &AnalyticsRouter{
		client: client,
		logger: client.Logger(),
		now:    time.Now,
	}
}

// Routes returns the chi router for analytics endpoints.
func (r *AnalyticsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/summary", r.Summary)
	router.Post("/events", r.Record)

	return router
}

// Summary handles GET /api/v1/analytics/summary.
func (r *AnalyticsRouter) Summary(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	summary, err := r.client.Analytics.Summary(req.Context(), p.TenantID(), r.now())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Record handles POST /api/v1/analytics/events.
func (r *AnalyticsRouter) Record(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}
	ctx := req.Context()

	var body dto.RecordEventRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	eventType, err := analytics.ParseEventType(body.EventType)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.AssetID) == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: asset_id is required", repository.ErrValidation), r.logger)
		return
	}
	if _, err := r.client.Assets.Get(ctx, p.TenantID(), body.AssetID); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	if err := r.client.Analytics.Record(ctx, p, body.AssetID, eventType); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
