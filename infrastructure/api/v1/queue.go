package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/infrastructure/api/jsonapi"
	"github.com/helixml/damkit/infrastructure/api/middleware"
)

// QueueRouter handles task queue endpoints.
type QueueRouter struct {
	client     *damkit.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewQueueRouter creates a new QueueRouter.
func NewQueueRouter(client *damkit.Client) *QueueRouter {
	return &QueueRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for queue endpoints.
func (r *QueueRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)

	return router
}

// List handles GET /api/v1/queue?operation=. Only the caller's tenant's
// tasks are returned.
func (r *QueueRouter) List(w http.ResponseWriter, req *http.Request) {
	p, ok := principal(w, req, r.logger)
	if !ok {
		return
	}

	params := &service.TaskListParams{}
	if op := req.URL.Query().Get("operation"); op != "" {
		operation := task.Operation(op)
		params.Operation = &operation
	}

	tasks, err := r.client.Tasks.List(req.Context(), params)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var mine []task.Task
	for _, t := range tasks {
		if tenantID, err := task.PayloadString(t.Payload(), "tenant_id"); err == nil && tenantID == p.TenantID() {
			mine = append(mine, t)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.TaskResources(mine)))
}
