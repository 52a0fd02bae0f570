package v1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/infrastructure/api/jsonapi"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
	"github.com/helixml/damkit/infrastructure/storage"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// MessageUploadBlocked is returned when verification refuses an upload.
const MessageUploadBlocked = "Upload blocked: content failed verification"

// AssetsRouter handles asset API endpoints.
type AssetsRouter struct {
	client     *damkit.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewAssetsRouter creates a new AssetsRouter.
func NewAssetsRouter(client *damkit.Client) *AssetsRouter {
	return &AssetsRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for asset endpoints.
func (r *AssetsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Upload)
	router.Post("/from-url", r.UploadFromURL)
	router.Get("/search", r.Search)
	router.Get("/{id}", r.Get)
	router.Patch("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)
	router.Get("/{id}/url", r.SignedURL)

	return router
}

// List handles GET /api/v1/assets?folder_id=&folder_name=&limit=.
func (r *AssetsRouter) List(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	q := req.URL.Query()
	listing, err := r.client.Assets.List(req.Context(), p.TenantID(), service.ListParams{
		FolderID:   q.Get("folder_id"),
		FolderName: q.Get("folder_name"),
		Limit:      queryInt(req, "limit"),
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	writeAssetListing(w, r.serializer, listing)
}

// Upload handles POST /api/v1/assets as multipart form data with a "file"
// part and optional folder_id, description, tags, and verify fields. With
// verify=true images are screened first and blocked content is refused
// with 422.
func (r *AssetsRouter) Upload(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}
	ctx := req.Context()

	req.Body = http.MaxBytesReader(w, req.Body, r.client.MaxUploadBytes()+multipartMemory)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: invalid multipart form: %w", repository.ErrValidation, err), r.logger)
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: Missing file", repository.ErrValidation), r.logger)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > r.client.MaxUploadBytes() {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusRequestEntityTooLarge, "File too large", nil), r.logger)
		return
	}

	var body io.Reader = file
	contentType := header.Header.Get("Content-Type")
	if queryBool(req.FormValue("verify")) {
		data, err := io.ReadAll(file)
		if err != nil {
			middleware.WriteError(w, req, fmt.Errorf("read upload: %w", err), r.logger)
			return
		}
		contentType = storage.DetectContentType(contentType, data)
		if asset.IsImageType(contentType) {
			blocked, err := r.screen(w, req, p, contentType, data)
			if err != nil {
				middleware.WriteError(w, req, err, r.logger)
				return
			}
			if blocked {
				return
			}
		}
		body = bytes.NewReader(data)
	}

	a, err := r.client.Assets.Upload(ctx, p, service.UploadParams{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      body,
		FolderID:    req.FormValue("folder_id"),
		Description: req.FormValue("description"),
		Tags:        splitTags(req.FormValue("tags")),
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.AssetResource(a)))
}

// screen verifies image bytes and writes a 422 when the policy blocks them.
func (r *AssetsRouter) screen(w http.ResponseWriter, req *http.Request, p tenant.Principal, contentType string, data []byte) (bool, error) {
	result, err := r.client.Verification.VerifyBytes(req.Context(), p, contentType, data)
	if err != nil {
		return false, err
	}
	if !verification.ShouldBlock(result.Verdict) {
		return false, nil
	}

	r.logger.Warn("upload blocked by verification",
		slog.String("tenant_id", p.TenantID()),
		slog.String("verification_id", result.ID),
	)
	middleware.WriteJSON(w, http.StatusUnprocessableEntity, dto.BlockedUploadResponse{
		Error:        MessageUploadBlocked,
		Verification: dto.NewVerifyResponse(result),
	})
	return true, nil
}

// UploadFromURL handles POST /api/v1/assets/from-url.
func (r *AssetsRouter) UploadFromURL(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.AssetFromURLRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	attrs := body.Data.Attributes

	a, err := r.client.Assets.UploadFromURL(req.Context(), p, service.URLParams{
		URL:         attrs.URL,
		FolderID:    attrs.FolderID,
		FolderName:  attrs.FolderName,
		Name:        attrs.Name,
		Description: attrs.Description,
		Tags:        attrs.Tags,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.AssetResource(a)))
}

// Search handles GET /api/v1/assets/search?q=&limit=.
func (r *AssetsRouter) Search(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: Missing search query", repository.ErrValidation), r.logger)
		return
	}

	result, err := r.client.Assets.Search(req.Context(), p.TenantID(), query, queryInt(req, "limit"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc := jsonapi.NewListResponse(r.serializer.SearchHitResources(result.Hits)).WithMeta(jsonapi.Meta{
		"message":  result.Message,
		"semantic": result.Semantic,
		"count":    len(result.Hits),
	})
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Get handles GET /api/v1/assets/{id}.
func (r *AssetsRouter) Get(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	a, err := r.client.Assets.Get(req.Context(), p.TenantID(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.AssetResource(a)))
}

// Update handles PATCH /api/v1/assets/{id}. A folder_id attribute moves the
// asset; an empty one takes it out of its folder.
func (r *AssetsRouter) Update(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}
	ctx := req.Context()
	id := chi.URLParam(req, "id")

	var body dto.AssetUpdateRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	attrs := body.Data.Attributes

	a, err := r.client.Assets.Update(ctx, p.TenantID(), id, service.AssetUpdate{
		Name:        attrs.Name,
		Description: attrs.Description,
		Tags:        attrs.Tags,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	if attrs.FolderID != nil && *attrs.FolderID != a.FolderID() {
		a, err = r.client.Assets.Move(ctx, p.TenantID(), id, *attrs.FolderID)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.AssetResource(a)))
}

// Delete handles DELETE /api/v1/assets/{id}. The stored object and the row
// are both removed; a partial failure is reported as a server error.
func (r *AssetsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	if err := r.client.Assets.Delete(req.Context(), p, chi.URLParam(req, "id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusInternalServerError, "Asset delete incomplete: "+err.Error(), err), r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SignedURL handles GET /api/v1/assets/{id}/url?disposition=inline|attachment.
func (r *AssetsRouter) SignedURL(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	u, expires, err := r.client.Assets.SignedURL(req.Context(), p, chi.URLParam(req, "id"), req.URL.Query().Get("disposition"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.SignedURLResponse{URL: u, ExpiresAt: expires.UTC()})
}
