package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/internal/database"
)

// AssetStore implements asset.Store using GORM. Similarity search loads the
// tenant's vectors and ranks them in process, which works on both SQLite
// and PostgreSQL.
type AssetStore struct {
	database.Repository[asset.Asset, AssetModel]
	logger *slog.Logger
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(db database.Database, logger *slog.Logger) AssetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return AssetStore{
		Repository: database.NewRepository[asset.Asset, AssetModel](db, AssetMapper{}, "asset"),
		logger:     logger,
	}
}

type storedVector struct {
	ID        string          `gorm:"column:id"`
	Embedding database.Vector `gorm:"column:embedding;type:text"`
}

// SearchSimilar ranks the tenant's embedded assets by cosine similarity.
func (s AssetStore) SearchSimilar(
	ctx context.Context,
	tenantID string,
	vector []float32,
	threshold float64,
	limit int,
) ([]asset.Scored, error) {
	if len(vector) == 0 {
		return []asset.Scored{}, nil
	}

	var rows []storedVector
	err := s.DB(ctx).Model(&AssetModel{}).
		Select("id, embedding").
		Where("tenant_id = ? AND embedding IS NOT NULL", tenantID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load asset vectors: %w", err)
	}

	candidates := make(map[string][]float32, len(rows))
	for _, r := range rows {
		if len(r.Embedding) != len(vector) {
			s.logger.Warn("skipping embedding with mismatched dimension",
				slog.String("asset_id", r.ID),
				slog.Int("dimension", len(r.Embedding)),
			)
			continue
		}
		candidates[r.ID] = r.Embedding
	}

	matches := database.TopKSimilar(vector, candidates, threshold, limit)
	if len(matches) == 0 {
		return []asset.Scored{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	found, err := s.Find(ctx, repository.WithTenantID(tenantID), repository.WithIDIn(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]asset.Asset, len(found))
	for _, a := range found {
		byID[a.ID()] = a
	}

	results := make([]asset.Scored, 0, len(matches))
	for _, m := range matches {
		a, ok := byID[m.ID]
		if !ok {
			continue
		}
		results = append(results, asset.Scored{Asset: a, Similarity: m.Score})
	}
	return results, nil
}

// SearchKeyword matches name or description substrings, or an exact tag,
// case-insensitively, newest first.
func (s AssetStore) SearchKeyword(ctx context.Context, tenantID, query string, limit int) ([]asset.Asset, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []asset.Asset{}, nil
	}
	like := "%" + q + "%"
	quoted, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode tag query: %w", err)
	}
	tagLike := "%" + string(quoted) + "%"

	db := s.DB(ctx).
		Where("tenant_id = ?", tenantID).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR tags LIKE ?", like, like, tagLike).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var models []AssetModel
	if err := db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("keyword search assets: %w", err)
	}

	mapper := s.Mapper()
	assets := make([]asset.Asset, len(models))
	for i, m := range models {
		assets[i] = mapper.ToDomain(m)
	}
	return assets, nil
}

// SetEmbedding stores the vector for one asset.
func (s AssetStore) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	result := s.DB(ctx).Model(&AssetModel{}).
		Where("id = ?", id).
		Update("embedding", database.Vector(vector))
	if result.Error != nil {
		return fmt.Errorf("set asset embedding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("set asset embedding: %w", database.ErrNotFound)
	}
	return nil
}

// Unfile clears folder_id on every asset in the folder.
func (s AssetStore) Unfile(ctx context.Context, tenantID, folderID string) error {
	err := s.DB(ctx).Model(&AssetModel{}).
		Where("tenant_id = ? AND folder_id = ?", tenantID, folderID).
		Update("folder_id", nil).Error
	if err != nil {
		return fmt.Errorf("unfile assets: %w", err)
	}
	return nil
}

// TenantsMissingEmbeddings lists tenants that own unembedded image assets.
func (s AssetStore) TenantsMissingEmbeddings(ctx context.Context) ([]string, error) {
	var tenants []string
	err := s.DB(ctx).Model(&AssetModel{}).
		Distinct("tenant_id").
		Where("embedding IS NULL AND file_type LIKE ?", "image/%").
		Order("tenant_id").
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, fmt.Errorf("find tenants missing embeddings: %w", err)
	}
	return tenants, nil
}
