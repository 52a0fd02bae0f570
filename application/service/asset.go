package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/storage"
)

// Asset listing and search limits.
const (
	DefaultListLimit   = 20
	MaxListLimit       = 100
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	// SimilarityThreshold is the minimum cosine similarity for a semantic match.
	SimilarityThreshold = 0.3

	// DefaultSignedURLTTL is how long signed asset URLs stay valid.
	DefaultSignedURLTTL = time.Hour
)

// Content dispositions accepted by SignedURL.
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// UploadParams describes a direct upload.
type UploadParams struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
	FolderID    string
	Description string
	Tags        []string
}

// URLParams describes an import from a remote URL.
type URLParams struct {
	URL         string
	FolderID    string
	FolderName  string
	Name        string
	Description string
	Tags        []string
}

// StagedParams places a staged upload into a folder.
type StagedParams struct {
	TempPath    string
	FolderID    string
	FolderName  string
	Name        string
	Description string
	Tags        []string
}

// ListParams filters an asset listing.
type ListParams struct {
	FolderID   string
	FolderName string
	Limit      int
}

// AssetUpdate holds the fields to change on an asset. Nil fields are kept.
type AssetUpdate struct {
	Name        *string
	Description *string
	Tags        *[]string
}

// AssetView is an asset with the folder it lives in, if any.
type AssetView struct {
	Asset  asset.Asset
	Folder *folder.Folder
}

// AssetListing is a page of assets.
type AssetListing struct {
	Assets       []AssetView
	TotalCount   int64
	ShowingLimit int
}

// SearchHit is one search result. Similarity is set for semantic matches.
type SearchHit struct {
	AssetView
	Similarity *float64
}

// SearchResult is the outcome of an asset search.
type SearchResult struct {
	Message  string
	Semantic bool
	Hits     []SearchHit
}

// Fetcher downloads remote files.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (storage.Fetched, error)
}

// Asset manages asset bytes and rows together.
type Asset struct {
	assets     asset.Store
	objects    asset.ObjectStore
	folders    *Folder
	embeddings *Embedding
	analytics  *Analytics
	queue      *Queue
	fetcher    Fetcher
	urlTTL     time.Duration
	logger     *slog.Logger
}

// NewAsset creates a new Asset service. queue may be nil, in which case
// uploads are not embedded in the background.
func NewAsset(
	assets asset.Store,
	objects asset.ObjectStore,
	folders *Folder,
	embeddings *Embedding,
	analyticsService *Analytics,
	queue *Queue,
	fetcher Fetcher,
	logger *slog.Logger,
) *Asset {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		fetcher = storage.NewFetcher(nil, 0)
	}
	return &Asset{
		assets:     assets,
		objects:    objects,
		folders:    folders,
		embeddings: embeddings,
		analytics:  analyticsService,
		queue:      queue,
		fetcher:    fetcher,
		urlTTL:     DefaultSignedURLTTL,
		logger:     logger,
	}
}

// WithSignedURLTTL sets how long signed URLs stay valid.
func (s *Asset) WithSignedURLTTL(ttl time.Duration) *Asset {
	if ttl > 0 {
		s.urlTTL = ttl
	}
	return s
}

// Get returns one asset of the tenant.
func (s *Asset) Get(ctx context.Context, tenantID, id string) (asset.Asset, error) {
	a, err := s.assets.FindOne(ctx, repository.WithTenantID(tenantID), repository.WithID(id))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return a, nil
}

// Upload stores the bytes under a new key and inserts the asset.
func (s *Asset) Upload(ctx context.Context, p tenant.Principal, params UploadParams) (asset.Asset, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return asset.Asset{}, invalidInput("Missing file name")
	}
	if params.Reader == nil {
		return asset.Asset{}, invalidInput("Missing file")
	}
	if params.FolderID != "" {
		if _, err := s.folders.Get(ctx, p.TenantID(), params.FolderID); err != nil {
			return asset.Asset{}, err
		}
	}

	contentType, body, err := storage.SniffReader(params.ContentType, params.Reader)
	if err != nil {
		return asset.Asset{}, fmt.Errorf("detect content type: %w", err)
	}

	return s.store(ctx, p, stored{
		name:        name,
		contentType: contentType,
		size:        params.Size,
		body:        body,
		folderID:    params.FolderID,
		description: params.Description,
		tags:        params.Tags,
	})
}

// UploadFromURL downloads a remote file into a folder chosen by id or name.
func (s *Asset) UploadFromURL(ctx context.Context, p tenant.Principal, params URLParams) (asset.Asset, error) {
	if strings.TrimSpace(params.URL) == "" {
		return asset.Asset{}, invalidInput("Missing 'url' for upload")
	}

	folderID, err := s.resolveFolder(ctx, p.TenantID(), params.FolderID, params.FolderName)
	if err != nil {
		return asset.Asset{}, err
	}

	fetched, err := s.fetcher.Fetch(ctx, params.URL)
	if err != nil {
		var fe *storage.FetchError
		if errors.As(err, &fe) {
			return asset.Asset{}, &UserError{message: fe.Error(), kind: repository.ErrValidation}
		}
		return asset.Asset{}, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = asset.NameFromURL(params.URL)
	}
	if !strings.Contains(name, ".") {
		name += "." + asset.ExtensionFor(name, fetched.ContentType)
	}

	return s.store(ctx, p, stored{
		name:        name,
		contentType: fetched.ContentType,
		size:        int64(len(fetched.Data)),
		body:        bytes.NewReader(fetched.Data),
		folderID:    folderID,
		description: params.Description,
		tags:        params.Tags,
	})
}

func (s *Asset) resolveFolder(ctx context.Context, tenantID, folderID, folderName string) (string, error) {
	if folderID != "" {
		f, err := s.folders.Get(ctx, tenantID, folderID)
		if err != nil {
			return "", err
		}
		return f.ID(), nil
	}
	if strings.TrimSpace(folderName) != "" {
		f, err := s.folders.FindByName(ctx, tenantID, folderName)
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("Folder not found by name")
		}
		if err != nil {
			return "", err
		}
		return f.ID(), nil
	}
	return "", invalidInput("Provide folder_id or folder_name")
}

type stored struct {
	name        string
	contentType string
	size        int64
	body        io.Reader
	folderID    string
	description string
	tags        []string
}

func (s *Asset) store(ctx context.Context, p tenant.Principal, in stored) (asset.Asset, error) {
	contentType := in.contentType
	if contentType == "" {
		contentType = asset.DefaultContentType
	}
	id := uuid.NewString()
	key := asset.ObjectKey(p.TenantID(), id, asset.ExtensionFor(in.name, contentType))

	if err := s.objects.Put(ctx, key, in.body, in.size, contentType); err != nil {
		return asset.Asset{}, fmt.Errorf("store %s: %w", key, err)
	}

	a := asset.New(id, p.TenantID(), in.folderID, p.UserID(), in.name, key, contentType, in.size).
		WithDescription(in.description).
		WithTags(in.tags)
	return s.insert(ctx, p, a)
}

// insert saves the row, removing the object again when that fails.
func (s *Asset) insert(ctx context.Context, p tenant.Principal, a asset.Asset) (asset.Asset, error) {
	saved, err := s.assets.Save(ctx, a)
	if err != nil {
		if delErr := s.objects.Delete(ctx, a.FilePath()); delErr != nil {
			s.logger.Warn("orphaned object after failed insert",
				slog.String("key", a.FilePath()),
				slog.String("error", delErr.Error()),
			)
		}
		return asset.Asset{}, fmt.Errorf("save asset: %w", err)
	}

	s.analytics.recordQuietly(ctx, p, saved.ID(), analytics.EventUpload)
	s.scheduleEmbedding(ctx, saved)

	s.logger.Info("asset uploaded",
		slog.String("tenant_id", saved.TenantID()),
		slog.String("asset_id", saved.ID()),
		slog.String("file_type", saved.FileType()),
		slog.Int64("file_size", saved.FileSize()),
	)
	return saved, nil
}

func (s *Asset) scheduleEmbedding(ctx context.Context, a asset.Asset) {
	if s.queue == nil || !a.IsImage() || s.embeddings == nil || !s.embeddings.Available() {
		return
	}
	if err := s.queue.EnqueueEmbedding(ctx, a.TenantID(), a.ID(), task.PriorityNormal); err != nil {
		s.logger.Warn("failed to queue embedding",
			slog.String("asset_id", a.ID()),
			slog.String("error", err.Error()),
		)
	}
}

// StageUpload stores a file under the tenant's temp prefix until the
// assistant decides where it goes.
func (s *Asset) StageUpload(ctx context.Context, p tenant.Principal, name, contentType string, size int64, r io.Reader) (chat.UploadedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.UploadedFile{}, invalidInput("Missing file name")
	}

	contentType, body, err := storage.SniffReader(contentType, r)
	if err != nil {
		return chat.UploadedFile{}, fmt.Errorf("detect content type: %w", err)
	}

	key := asset.TempKey(p.TenantID(), uuid.NewString(), asset.ExtensionFor(name, contentType))
	if err := s.objects.Put(ctx, key, body, size, contentType); err != nil {
		return chat.UploadedFile{}, fmt.Errorf("stage %s: %w", key, err)
	}
	return chat.UploadedFile{Path: key, Name: name, Type: contentType, Size: size}, nil
}

// PlaceStaged moves a staged file into a folder, creating the folder by
// name when it does not exist yet.
func (s *Asset) PlaceStaged(ctx context.Context, p tenant.Principal, params StagedParams) (asset.Asset, error) {
	if strings.TrimSpace(params.TempPath) == "" {
		return asset.Asset{}, invalidInput("Missing 'temp_file_path' for upload")
	}
	if !asset.IsTempKeyOf(params.TempPath, p.TenantID()) {
		return asset.Asset{}, invalidInput("Invalid temp_file_path")
	}

	folderID, err := s.folderForStaged(ctx, p, params.FolderID, params.FolderName)
	if err != nil {
		return asset.Asset{}, err
	}

	obj, err := s.objects.Get(ctx, params.TempPath)
	if err != nil {
		return asset.Asset{}, fmt.Errorf("open staged file: %w", err)
	}
	_ = obj.Body.Close()

	ext := strings.TrimPrefix(path.Ext(params.TempPath), ".")
	if ext == "" {
		ext = "bin"
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = path.Base(params.TempPath)
	}

	id := uuid.NewString()
	key := asset.ObjectKey(p.TenantID(), id, ext)
	if err := s.objects.Move(ctx, params.TempPath, key); err != nil {
		return asset.Asset{}, fmt.Errorf("move staged file: %w", err)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = asset.DefaultContentType
	}
	a := asset.New(id, p.TenantID(), folderID, p.UserID(), name, key, contentType, obj.Size).
		WithDescription(params.Description).
		WithTags(params.Tags)
	return s.insert(ctx, p, a)
}

func (s *Asset) folderForStaged(ctx context.Context, p tenant.Principal, folderID, folderName string) (string, error) {
	if folderID != "" {
		f, err := s.folders.Get(ctx, p.TenantID(), folderID)
		if err != nil {
			return "", err
		}
		return f.ID(), nil
	}
	folderName = strings.TrimSpace(folderName)
	if folderName == "" {
		return "", invalidInput("Please specify which folder to upload to (e.g., 'Documents', 'Images', etc.)")
	}

	f, err := s.folders.FindByName(ctx, p.TenantID(), folderName)
	if err == nil {
		return f.ID(), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	created, err := s.folders.Create(ctx, p, folderName, "")
	if err != nil {
		return "", invalidInput("Folder %q not found and couldn't be created: %s", folderName, UserMessage(err))
	}
	return created.ID(), nil
}

// List returns the tenant's assets newest first, optionally within one folder.
func (s *Asset) List(ctx context.Context, tenantID string, params ListParams) (AssetListing, error) {
	limit := clamp(params.Limit, DefaultListLimit, MaxListLimit)

	options := []repository.Option{repository.WithTenantID(tenantID)}
	switch {
	case params.FolderID != "":
		options = append(options, repository.WithFolderID(params.FolderID))
	case strings.TrimSpace(params.FolderName) != "":
		f, err := s.folders.FindByName(ctx, tenantID, params.FolderName)
		if errors.Is(err, repository.ErrNotFound) {
			return AssetListing{}, notFound("Folder not found by name")
		}
		if err != nil {
			return AssetListing{}, err
		}
		options = append(options, repository.WithFolderID(f.ID()))
	}

	total, err := s.assets.Count(ctx, options...)
	if err != nil {
		return AssetListing{}, fmt.Errorf("count assets: %w", err)
	}
	found, err := s.assets.Find(ctx, append(options, repository.WithNewestFirst(), repository.WithLimit(limit))...)
	if err != nil {
		return AssetListing{}, fmt.Errorf("list assets: %w", err)
	}

	views, err := s.withFolders(ctx, tenantID, found)
	if err != nil {
		return AssetListing{}, err
	}
	return AssetListing{Assets: views, TotalCount: total, ShowingLimit: limit}, nil
}

// Search embeds the query and ranks assets by similarity, falling back to
// keyword matching when no embedding is available or nothing is similar.
func (s *Asset) Search(ctx context.Context, tenantID, query string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, invalidInput("Missing search query")
	}
	limit = clamp(limit, DefaultSearchLimit, MaxSearchLimit)

	var vector []float32
	if s.embeddings != nil {
		v, err := s.embeddings.EmbedQuery(ctx, query)
		if err != nil {
			s.logger.Warn("query embedding failed, using keyword search", slog.String("error", err.Error()))
		}
		vector = v
	}

	if len(vector) > 0 {
		scored, err := s.assets.SearchSimilar(ctx, tenantID, vector, SimilarityThreshold, limit)
		if err != nil {
			return SearchResult{}, err
		}
		if len(scored) > 0 {
			found := make([]asset.Asset, len(scored))
			for i, sc := range scored {
				found[i] = sc.Asset
			}
			views, err := s.withFolders(ctx, tenantID, found)
			if err != nil {
				return SearchResult{}, err
			}
			hits := make([]SearchHit, len(views))
			for i, v := range views {
				sim := scored[i].Similarity
				hits[i] = SearchHit{AssetView: v, Similarity: &sim}
			}
			return SearchResult{
				Message:  fmt.Sprintf("Found %d asset(s) matching %q using semantic search.", len(hits), query),
				Semantic: true,
				Hits:     hits,
			}, nil
		}
	}

	found, err := s.assets.SearchKeyword(ctx, tenantID, query, limit)
	if err != nil {
		return SearchResult{}, err
	}
	if len(found) == 0 {
		return SearchResult{Message: fmt.Sprintf("No assets found matching %q.", query), Hits: []SearchHit{}}, nil
	}
	views, err := s.withFolders(ctx, tenantID, found)
	if err != nil {
		return SearchResult{}, err
	}
	hits := make([]SearchHit, len(views))
	for i, v := range views {
		hits[i] = SearchHit{AssetView: v}
	}
	return SearchResult{
		Message: fmt.Sprintf("Found %d asset(s) matching %q.", len(hits), query),
		Hits:    hits,
	}, nil
}

func (s *Asset) withFolders(ctx context.Context, tenantID string, found []asset.Asset) ([]AssetView, error) {
	var ids []string
	seen := map[string]bool{}
	for _, a := range found {
		if id := a.FolderID(); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	byID := map[string]folder.Folder{}
	if len(ids) > 0 {
		folders, err := s.folders.folders.Find(ctx, repository.WithTenantID(tenantID), repository.WithIDIn(ids))
		if err != nil {
			return nil, fmt.Errorf("load asset folders: %w", err)
		}
		for _, f := range folders {
			byID[f.ID()] = f
		}
	}

	views := make([]AssetView, len(found))
	for i, a := range found {
		views[i] = AssetView{Asset: a}
		if f, ok := byID[a.FolderID()]; ok {
			views[i].Folder = &f
		}
	}
	return views, nil
}

// Delete removes the stored object and the row. Both are attempted; any
// failure is returned.
func (s *Asset) Delete(ctx context.Context, p tenant.Principal, id string) error {
	a, err := s.Get(ctx, p.TenantID(), id)
	if err != nil {
		return err
	}

	var objErr, rowErr error
	if err := s.objects.Delete(ctx, a.FilePath()); err != nil {
		objErr = fmt.Errorf("delete object %s: %w", a.FilePath(), err)
	}
	if err := s.assets.Delete(ctx, a); err != nil {
		rowErr = fmt.Errorf("delete asset row: %w", err)
	}
	if err := errors.Join(objErr, rowErr); err != nil {
		s.logger.Error("asset delete incomplete",
			slog.String("asset_id", id),
			slog.Bool("object_deleted", objErr == nil),
			slog.Bool("row_deleted", rowErr == nil),
		)
		return err
	}

	if s.queue != nil {
		if _, err := s.queue.DrainForAsset(ctx, id); err != nil {
			s.logger.Warn("failed to drain asset tasks", slog.String("asset_id", id), slog.String("error", err.Error()))
		}
	}
	s.logger.Info("asset deleted", slog.String("tenant_id", p.TenantID()), slog.String("asset_id", id))
	return nil
}

// SignedURL returns a time-limited URL for the asset and records a view,
// or a download when disposition is attachment.
func (s *Asset) SignedURL(ctx context.Context, p tenant.Principal, id, disposition string) (string, time.Time, error) {
	switch disposition {
	case "", DispositionInline, DispositionAttachment:
	default:
		return "", time.Time{}, invalidInput("Invalid disposition %q", disposition)
	}

	a, err := s.Get(ctx, p.TenantID(), id)
	if err != nil {
		return "", time.Time{}, err
	}

	header := disposition
	if header != "" {
		header = fmt.Sprintf("%s; filename=%q", disposition, a.Name())
	}
	u, err := s.objects.SignedURL(ctx, a.FilePath(), s.urlTTL, header)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign url: %w", err)
	}

	event := analytics.EventView
	if disposition == DispositionAttachment {
		event = analytics.EventDownload
	}
	s.analytics.recordQuietly(ctx, p, a.ID(), event)
	return u, time.Now().Add(s.urlTTL), nil
}

// Move puts the asset into folderID, or into no folder when it is empty.
func (s *Asset) Move(ctx context.Context, tenantID, id, folderID string) (asset.Asset, error) {
	a, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return asset.Asset{}, err
	}
	if folderID != "" {
		if _, err := s.folders.Get(ctx, tenantID, folderID); err != nil {
			return asset.Asset{}, err
		}
	}
	saved, err := s.assets.Save(ctx, a.WithFolderID(folderID))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("move asset: %w", err)
	}
	return saved, nil
}

// Update changes the asset's name, description, or tags.
func (s *Asset) Update(ctx context.Context, tenantID, id string, update AssetUpdate) (asset.Asset, error) {
	a, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return asset.Asset{}, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return asset.Asset{}, invalidInput("Missing file name")
		}
		a = a.WithName(name)
	}
	if update.Description != nil {
		a = a.WithDescription(*update.Description)
	}
	if update.Tags != nil {
		a = a.WithTags(*update.Tags)
	}
	saved, err := s.assets.Save(ctx, a)
	if err != nil {
		return asset.Asset{}, fmt.Errorf("update asset: %w", err)
	}
	return saved, nil
}

func clamp(n, def, maximum int) int {
	if n <= 0 {
		return def
	}
	return min(n, maximum)
}
