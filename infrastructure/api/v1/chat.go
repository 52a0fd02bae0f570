package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/infrastructure/api/v1/dto"
)

// ChatRouter handles the assistant endpoints. Errors are written as a flat
// {"error": ...} body, which the chat client renders as a reply.
type ChatRouter struct {
	client *damkit.Client
	logger *slog.Logger
}

// NewChatRouter creates a new ChatRouter.
func NewChatRouter(client *damkit.Client) *ChatRouter {
	return &ChatRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for chat endpoints.
func (r *ChatRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Chat)
	router.Post("/uploads", r.Stage)
	router.Get("/sessions/{id}", r.GetSession)
	router.Delete("/sessions/{id}", r.ClearSession)

	return router
}

// Chat handles POST /api/v1/chat.
func (r *ChatRouter) Chat(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	var body dto.ChatRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}
	if len(body.Messages) == 0 && body.Message == "" {
		middleware.WriteMessage(w, req, fmt.Errorf("%w: Missing message", repository.ErrValidation), r.logger, nil)
		return
	}

	messages := make([]chat.Message, len(body.Messages))
	now := time.Now()
	for i, m := range body.Messages {
		messages[i] = chat.Message{Role: chat.CoerceRole(m.Role), Content: m.Content, Timestamp: now}
	}

	reply, err := r.client.Assistant.Chat(req.Context(), p, service.ChatRequest{
		SessionID:    body.SessionID,
		Messages:     messages,
		Message:      body.Message,
		UploadedFile: body.UploadedFile,
	})
	if err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	r.logger.Debug("chat reply",
		slog.String("session_id", reply.SessionID),
		slog.Bool("direct", reply.Direct),
		slog.Int("rounds", reply.Rounds),
	)
	middleware.WriteJSON(w, http.StatusOK, dto.ChatResponse{Response: reply.Response, SessionID: reply.SessionID})
}

// Stage handles POST /api/v1/chat/uploads. The file is kept under the
// tenant's temp prefix until the assistant places it.
func (r *ChatRouter) Stage(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.client.MaxUploadBytes()+multipartMemory)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		middleware.WriteMessage(w, req, fmt.Errorf("%w: invalid multipart form: %w", repository.ErrValidation, err), r.logger, nil)
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		middleware.WriteMessage(w, req, fmt.Errorf("%w: Missing file", repository.ErrValidation), r.logger, nil)
		return
	}
	defer func() { _ = file.Close() }()

	staged, err := r.client.Assets.StageUpload(req.Context(), p, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, staged)
}

// GetSession handles GET /api/v1/chat/sessions/{id}.
func (r *ChatRouter) GetSession(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	sess, err := r.client.Sessions.Get(req.Context(), p, chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewSessionResponse(sess))
}

// ClearSession handles DELETE /api/v1/chat/sessions/{id}.
func (r *ChatRouter) ClearSession(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	if err := r.client.Sessions.Clear(req.Context(), p, chi.URLParam(req, "id")); err != nil {
		middleware.WriteMessage(w, req, err, r.logger, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
