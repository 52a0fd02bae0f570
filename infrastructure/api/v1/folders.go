package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/infrastructure/api/jsonapi"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
)

// FoldersRouter handles folder API endpoints.
type FoldersRouter struct {
	client     *damkit.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewFoldersRouter creates a new FoldersRouter.
func NewFoldersRouter(client *damkit.Client) *FoldersRouter {
	return &FoldersRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for folder endpoints.
func (r *FoldersRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Patch("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)
	router.Get("/{id}/assets", r.ListAssets)

	return router
}

// List handles GET /api/v1/folders.
func (r *FoldersRouter) List(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	listing, err := r.client.Folders.List(req.Context(), p.TenantID())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc := jsonapi.NewListResponse(r.serializer.FolderSummaryResources(listing.Folders)).WithMeta(jsonapi.Meta{
		"message":      listing.Message,
		"total_count":  listing.TotalCount,
		"total_assets": listing.TotalAssets,
		"recent_count": listing.RecentCount,
	})
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Create handles POST /api/v1/folders. A name that matches an existing
// folder case-insensitively is refused with 409 and name suggestions.
func (r *FoldersRouter) Create(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.FolderCreateRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	f, err := r.client.Folders.Create(req.Context(), p, body.Data.Attributes.Name, body.Data.Attributes.Description)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	zero := int64(0)
	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.FolderResource(f, &zero)))
}

// Get handles GET /api/v1/folders/{id}.
func (r *FoldersRouter) Get(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	f, err := r.client.Folders.Get(req.Context(), p.TenantID(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.FolderResource(f, nil)))
}

// Update handles PATCH /api/v1/folders/{id}.
func (r *FoldersRouter) Update(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.FolderUpdateRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	f, err := r.client.Folders.Update(req.Context(), p.TenantID(), chi.URLParam(req, "id"), service.FolderUpdate{
		Name:        body.Data.Attributes.Name,
		Description: body.Data.Attributes.Description,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.FolderResource(f, nil)))
}

// Delete handles DELETE /api/v1/folders/{id}. A folder that still holds
// assets is refused unless ?unfile=true moves them out first.
func (r *FoldersRouter) Delete(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	unfile := queryBool(req.URL.Query().Get("unfile"))
	if err := r.client.Folders.Delete(req.Context(), p.TenantID(), chi.URLParam(req, "id"), unfile); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAssets handles GET /api/v1/folders/{id}/assets.
func (r *FoldersRouter) ListAssets(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}
	ctx := req.Context()
	id := chi.URLParam(req, "id")

	if _, err := r.client.Folders.Get(ctx, p.TenantID(), id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	listing, err := r.client.Assets.List(ctx, p.TenantID(), service.ListParams{
		FolderID: id,
		Limit:    queryInt(req, "limit"),
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	writeAssetListing(w, r.serializer, listing)
}

func writeAssetListing(w http.ResponseWriter, s *jsonapi.Serializer, listing service.AssetListing) {
	resources, included := s.AssetViewResources(listing.Assets)
	doc := jsonapi.NewListResponse(resources).WithMeta(jsonapi.Meta{
		"total_count":   listing.TotalCount,
		"showing_limit": listing.ShowingLimit,
	})
	doc.Included = included
	middleware.WriteJSON(w, http.StatusOK, doc)
}
