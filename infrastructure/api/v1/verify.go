package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/infrastructure/api/jsonapi"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
)

// VerifyRouter handles content verification endpoints.
type VerifyRouter struct {
	client     *damkit.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewVerifyRouter creates a new VerifyRouter.
func NewVerifyRouter(client *damkit.Client) *VerifyRouter {
	return &VerifyRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for verification endpoints.
func (r *VerifyRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Verify)
	router.Get("/history", r.History)

	return router
}

var failed = map[string]any{"success": false}

// Verify handles POST /api/v1/verify. Failures are written as
// {"success": false, "error": ...}.
func (r *VerifyRouter) Verify(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.VerifyRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteMessage(w, req, err, r.logger, failed)
		return
	}

	result, err := r.client.Verification.Verify(req.Context(), p, verification.Request{
		ContentType: verification.ContentType(body.ContentType),
		ContentURL:  body.ContentURL,
		ContentText: body.ContentText,
	})
	if err != nil {
		middleware.WriteMessage(w, req, err, r.logger, failed)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewVerifyResponse(result))
}

// History handles GET /api/v1/verify/history?limit=.
func (r *VerifyRouter) History(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	results, err := r.client.Verification.History(req.Context(), p.TenantID(), queryInt(req, "limit"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resources := make([]*jsonapi.Resource, len(results))
	for i, res := range results {
		resources[i] = r.serializer.VerificationResource(res)
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(resources))
}
