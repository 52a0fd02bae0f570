package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/prompts"
)

// maxCaptionImageBytes bounds how much of an image is sent for captioning.
const maxCaptionImageBytes = 20 << 20

// Embedding errors.
var (
	ErrNotImage              = fmt.Errorf("%w: Not an image", repository.ErrValidation)
	ErrEmbeddingUnavailable  = errors.New("no embedding provider configured")
	ErrCaptioningUnavailable = errors.New("no vision provider configured")
)

// BackfillResult reports a backfill run.
type BackfillResult struct {
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}

// Embedding captions image assets and stores the caption's embedding.
type Embedding struct {
	assets   asset.Store
	objects  asset.ObjectStore
	vision   provider.TextGenerator
	embedder provider.Embedder
	prompts  prompts.Set
	logger   *slog.Logger
}

// NewEmbedding creates a new Embedding service. vision and embedder may be
// nil, in which case generation fails and query embedding returns nothing.
func NewEmbedding(
	assets asset.Store,
	objects asset.ObjectStore,
	vision provider.TextGenerator,
	embedder provider.Embedder,
	set prompts.Set,
	logger *slog.Logger,
) *Embedding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedding{
		assets:   assets,
		objects:  objects,
		vision:   vision,
		embedder: embedder,
		prompts:  set,
		logger:   logger,
	}
}

// Available reports whether query embeddings can be produced.
func (s *Embedding) Available() bool {
	return s.embedder != nil
}

// EmbedQuery embeds a search query. It returns nil without an error when
// no embedder is configured.
func (s *Embedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	resp, err := s.embedder.Embed(ctx, provider.NewEmbeddingRequest([]string{text}))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vectors := resp.Embeddings()
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embed query: %w", provider.ErrEmptyResponse)
	}
	return vectors[0], nil
}

// Generate captions one image asset of the tenant, embeds the caption, and
// stores the vector.
func (s *Embedding) Generate(ctx context.Context, tenantID, assetID string) (asset.Asset, error) {
	a, err := s.assets.FindOne(ctx, repository.WithTenantID(tenantID), repository.WithID(assetID))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return s.GenerateFor(ctx, a)
}

// GenerateFor embeds an already loaded asset.
func (s *Embedding) GenerateFor(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if !a.IsImage() {
		return asset.Asset{}, ErrNotImage
	}
	if s.embedder == nil {
		return asset.Asset{}, ErrEmbeddingUnavailable
	}

	caption, err := s.Caption(ctx, a)
	if err != nil {
		return asset.Asset{}, err
	}

	resp, err := s.embedder.Embed(ctx, provider.NewEmbeddingRequest([]string{caption}))
	if err != nil {
		return asset.Asset{}, fmt.Errorf("embed caption: %w", err)
	}
	vectors := resp.Embeddings()
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return asset.Asset{}, fmt.Errorf("embed caption: %w", provider.ErrEmptyResponse)
	}

	if err := s.assets.SetEmbedding(ctx, a.ID(), vectors[0]); err != nil {
		return asset.Asset{}, err
	}

	s.logger.Debug("asset embedded",
		slog.String("asset_id", a.ID()),
		slog.Int("dimension", len(vectors[0])),
	)
	return a.WithEmbedding(vectors[0]), nil
}

// Caption describes an image asset in one short sentence.
func (s *Embedding) Caption(ctx context.Context, a asset.Asset) (string, error) {
	if s.vision == nil {
		return "", ErrCaptioningUnavailable
	}

	obj, err := s.objects.Get(ctx, a.FilePath())
	if err != nil {
		return "", fmt.Errorf("download %s: %w", a.FilePath(), err)
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(obj.Body, maxCaptionImageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", a.FilePath(), err)
	}

	mimeType := a.FileType()
	if mimeType == "" {
		mimeType = obj.ContentType
	}

	cfg := s.prompts.Caption
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.UserImageMessage(cfg.Prompt, provider.Image{MIMEType: mimeType, Data: data}),
	}).WithTemperature(cfg.Temperature).WithMaxTokens(cfg.MaxTokens)

	resp, err := s.vision.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("caption image: %w", err)
	}
	caption := strings.TrimSpace(resp.Content())
	if caption == "" {
		return "", fmt.Errorf("caption image: %w", provider.ErrEmptyResponse)
	}
	return caption, nil
}

// Backfill embeds every image asset of the tenant that has no embedding,
// one at a time. Failures are counted and skipped.
func (s *Embedding) Backfill(ctx context.Context, tenantID string) (BackfillResult, error) {
	pending, err := s.assets.Find(ctx,
		repository.WithTenantID(tenantID),
		asset.WithImagesOnly(),
		asset.WithMissingEmbedding(),
		repository.WithNewestFirst(),
	)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("find assets to backfill: %w", err)
	}
	if len(pending) == 0 {
		return BackfillResult{Message: "No assets to process"}, nil
	}

	result := BackfillResult{Total: len(pending)}
	for _, a := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.GenerateFor(ctx, a); err != nil {
			result.Failed++
			s.logger.Warn("backfill embedding failed",
				slog.String("asset_id", a.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Processed++
	}
	result.Message = fmt.Sprintf("Processed %d assets, %d failed", result.Processed, result.Failed)

	s.logger.Info("embedding backfill finished",
		slog.String("tenant_id", tenantID),
		slog.Int("total", result.Total),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
