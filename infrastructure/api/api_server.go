package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/domain/tenant"
	apimiddleware "github.com/helixml/damkit/infrastructure/api/middleware"
	v1 "github.com/helixml/damkit/infrastructure/api/v1"
	"github.com/helixml/damkit/infrastructure/storage"
	"github.com/helixml/damkit/internal/log"
	mcpinternal "github.com/helixml/damkit/internal/mcp"
)

// requestTimeout bounds every /api/v1 request. Chat requests may run three
// model rounds.
const requestTimeout = 2 * time.Minute

// APIServer provides an HTTP API backed by a damkit Client.
type APIServer struct {
	client       *damkit.Client
	auth         *apimiddleware.Authenticator
	version      string
	corsOrigins  []string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given damkit Client.
// Every /api/v1 route requires a bearer token or API key accepted by auth.
// The MCP endpoint accepts unauthenticated handshakes, but its tools only
// run for an authenticated caller.
func NewAPIServer(client *damkit.Client, auth *apimiddleware.Authenticator) *APIServer {
	return &APIServer{
		client:  client,
		auth:    auth,
		version: "1.0.0",
		logger:  client.Logger(),
	}
}

// WithVersion sets the version reported by the MCP server.
func (a *APIServer) WithVersion(version string) *APIServer {
	if version != "" {
		a.version = version
	}
	return a
}

// WithCORSOrigins sets the browser origins ListenAndServe allows.
func (a *APIServer) WithCORSOrigins(origins []string) *APIServer {
	a.corsOrigins = origins
	return a
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() error {
	if a.router == nil {
		a.Router()
	}
	return a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) error {
	c := a.client

	router.Get("/healthz", healthHandler)
	router.Get("/health", healthHandler)

	if files := c.Files(); files != nil {
		router.Get(damkit.FilesPath+"/*", a.serveFile(files))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(a.auth.Middleware)

		r.Mount("/chat", v1.NewChatRouter(c).Routes())
		r.Mount("/verify", v1.NewVerifyRouter(c).Routes())
		r.Mount("/embeddings", v1.NewEmbeddingsRouter(c).Routes())
		r.Mount("/folders", v1.NewFoldersRouter(c).Routes())
		r.Mount("/assets", v1.NewAssetsRouter(c).Routes())
		r.Mount("/analytics", v1.NewAnalyticsRouter(c).Routes())
		r.Mount("/queue", v1.NewQueueRouter(c).Routes())
	})

	// MCP manages its own session headers and streams responses, so it
	// sits outside the Timeout middleware.
	mcpSrv, err := mcpinternal.NewServer(c.Tools, a.version, a.logger)
	if err != nil {
		return err
	}
	httpHandler := server.NewStreamableHTTPServer(
		mcpSrv.MCPServer(),
		server.WithHTTPContextFunc(a.mcpContext),
	)
	router.Mount("/mcp", httpHandler)
	return nil
}

// mcpContext attaches the caller's principal when the request carries valid
// credentials. Tool handlers refuse to run without one.
func (a *APIServer) mcpContext(ctx context.Context, r *http.Request) context.Context {
	p, err := a.auth.Authenticate(r)
	if err != nil {
		return ctx
	}
	ctx = tenant.WithPrincipal(ctx, p)
	return log.WithPrincipal(ctx, p.TenantID(), p.UserID())
}

// serveFile streams an object from local storage when the URL signature
// produced by LocalStore.SignedURL is valid.
func (a *APIServer) serveFile(files *storage.LocalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		q := r.URL.Query()

		expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
		if err != nil {
			apimiddleware.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid or expired link"})
			return
		}
		disposition := q.Get("disposition")
		if err := files.Verify(key, expires, disposition, q.Get("signature")); err != nil {
			apimiddleware.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid or expired link"})
			return
		}

		obj, err := files.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				apimiddleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
				return
			}
			apimiddleware.WriteError(w, r, err, a.logger)
			return
		}
		defer func() { _ = obj.Body.Close() }()

		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, obj.Body); err != nil {
			a.logger.Warn("stream file", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger, WithCORSOrigins(a.corsOrigins...))
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else if err := a.mountRoutes(server.Router()); err != nil {
		return err
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() (http.Handler, error) {
	if a.router == nil {
		a.Router()
		if err := a.MountRoutes(); err != nil {
			return nil, err
		}
	}
	return a.router, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
