// Package damkit provides a digital asset manager with a chat assistant.
//
// Damkit stores files in folders per tenant, captions and embeds images for
// semantic search, screens content for fakes and restricted material, and
// answers natural-language requests through a tool-calling assistant.
//
// Basic usage:
//
//	client, err := damkit.New(
//	    damkit.WithSQLite(".damkit/damkit.db"),
//	    damkit.WithChatProvider(chat),
//	    damkit.WithEmbeddingProvider(embedder),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	p := tenant.NewPrincipal("alice", "acme")
//
//	// Create a folder; a case-insensitive clash returns *folder.DuplicateError
//	f, err := client.Folders.Create(ctx, p, "Campaigns", "")
//
//	// Ask the assistant
//	reply, err := client.Assistant.Chat(ctx, p, service.ChatRequest{
//	    Message: "show me all my folders",
//	})
package damkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/infrastructure/session"
	"github.com/helixml/damkit/infrastructure/storage"
	"github.com/helixml/damkit/internal/config"
	"github.com/helixml/damkit/internal/database"
	"github.com/helixml/damkit/internal/prompts"
)

// Client is the main entry point for the damkit library.
// The background worker starts automatically on creation.
//
// Access resources via struct fields:
//
//	client.Folders.List(ctx, tenantID)
//	client.Assets.Search(ctx, tenantID, "red car", 10)
//	client.Assistant.Chat(ctx, principal, req)
type Client struct {
	// Public resource fields (direct service access)
	Folders      *service.Folder
	Assets       *service.Asset
	Embeddings   *service.Embedding
	Analytics    *service.Analytics
	Verification *service.Verification
	Sessions     *service.ChatSessions
	Assistant    *service.Assistant
	Tools        *service.Tools
	Profiles     *service.Profiles
	Tasks        *service.Queue

	db      database.Database
	objects asset.ObjectStore
	files   *storage.LocalStore

	// Application services (internal only)
	worker           *service.Worker
	periodicBackfill *service.PeriodicBackfill
	registry         *service.Registry
	embeddingReady   bool
	maxUpload        int64

	closers []io.Closer

	logger  *slog.Logger
	dataDir string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options.
// The background worker is started automatically.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	dbURL, err := buildDatabaseURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("build database url: %w", err)
	}

	db, err := database.NewDatabase(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Create stores
	assetStore := persistence.NewAssetStore(db, logger)
	folderStore := persistence.NewFolderStore(db)
	taskStore := persistence.NewTaskStore(db)
	analyticsStore := persistence.NewAnalyticsStore(db)
	verificationStore := persistence.NewVerificationStore(db)
	profileStore := persistence.NewProfileStore(db)

	objects := cfg.objectStore
	if objects == nil {
		storageDir := cfg.storage.LocalDir()
		if storageDir == "" {
			storageDir = filepath.Join(dataDir, "objects")
		}
		objects, err = storage.New(ctx, cfg.storage, storage.Options{Dir: storageDir, FilesPath: FilesPath})
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("object storage: %w", err), errClose)
		}
	}
	files, _ := objects.(*storage.LocalStore)

	sessionStore := cfg.sessionStore
	if sessionStore == nil {
		store, closeSessions, err := session.New(ctx, cfg.redisURL, cfg.sessionTTL)
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("session store: %w", err), errClose)
		}
		sessionStore = store
		cfg.closers = append(cfg.closers, closerFunc(closeSessions))
	}

	set := prompts.Default()
	if cfg.prompts != nil {
		set = *cfg.prompts
	}

	vision := cfg.visionProvider
	if vision == nil {
		vision = cfg.chatProvider
	}

	// Create application services
	registry := service.NewRegistry()
	queue := service.NewQueue(taskStore, logger)
	folders := service.NewFolder(folderStore, assetStore, logger)
	analyticsSvc := service.NewAnalytics(analyticsStore, assetStore, logger)
	embeddings := service.NewEmbedding(assetStore, objects, vision, cfg.embeddingProvider, set, logger)

	embeddingReady := vision != nil && cfg.embeddingProvider != nil
	assetQueue := queue
	if !embeddingReady {
		// Nothing could process the tasks.
		assetQueue = nil
	}

	fetcher := storage.NewFetcher(cfg.httpClient, cfg.storage.MaxUploadBytes())
	assets := service.NewAsset(assetStore, objects, folders, embeddings, analyticsSvc, assetQueue, fetcher, logger).
		WithSignedURLTTL(cfg.storage.SignedURLTTL())

	sessions := service.NewChatSessions(sessionStore)
	tools := service.NewTools(folders, assets, embeddings, set)

	worker := service.NewWorker(taskStore, registry, logger)
	if cfg.workerPollPeriod > 0 {
		worker.WithPollPeriod(cfg.workerPollPeriod)
	}
	periodicBackfill := service.NewPeriodicBackfill(cfg.periodicBackfill, assetStore, queue, logger)

	client := &Client{
		Folders:          folders,
		Assets:           assets,
		Embeddings:       embeddings,
		Analytics:        analyticsSvc,
		Verification:     service.NewVerification(verificationStore, cfg.chatProvider, set, logger),
		Sessions:         sessions,
		Assistant:        service.NewAssistant(cfg.chatProvider, tools, folders, assets, sessions, set, logger),
		Tools:            tools,
		Profiles:         service.NewProfiles(profileStore),
		Tasks:            queue,
		db:               db,
		objects:          objects,
		files:            files,
		worker:           worker,
		periodicBackfill: periodicBackfill,
		registry:         registry,
		embeddingReady:   embeddingReady,
		maxUpload:        cfg.storage.MaxUploadBytes(),
		closers:          cfg.closers,
		logger:           logger,
		dataDir:          dataDir,
	}

	client.registerHandlers()

	if !cfg.skipProviderValidation {
		if err := client.validateHandlers(); err != nil {
			_ = client.closeResources()
			return nil, err
		}
	}

	// Start the background worker and periodic backfill
	worker.Start(ctx)
	if embeddingReady {
		periodicBackfill.Start(ctx)
	}

	return client, nil
}

// Close releases all resources and stops the background worker.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.periodicBackfill.Stop()
	c.worker.Stop()

	if err := c.closeResources(); err != nil {
		return err
	}

	c.logger.Info("damkit client closed")
	return nil
}

func (c *Client) closeResources() error {
	// Close registered resources (e.g. session stores, caching transports)
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// DataDir returns the prepared data directory.
func (c *Client) DataDir() string {
	return c.dataDir
}

// Files returns the local object store that serves signed URLs under
// FilesPath, or nil when objects live in a remote bucket.
func (c *Client) Files() *storage.LocalStore {
	return c.files
}

// MaxUploadBytes returns the largest file the client accepts.
func (c *Client) MaxUploadBytes() int64 {
	return c.maxUpload
}

// EmbeddingReady reports whether uploads are captioned and embedded in the
// background.
func (c *Client) EmbeddingReady() bool {
	return c.embeddingReady
}

// closerFunc adapts a close function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
