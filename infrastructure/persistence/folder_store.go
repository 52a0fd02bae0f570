package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/internal/database"
)

// FolderStore implements folder.Store using GORM.
type FolderStore struct {
	database.Repository[folder.Folder, FolderModel]
}

// NewFolderStore creates a new FolderStore.
func NewFolderStore(db database.Database) FolderStore {
	return FolderStore{
		Repository: database.NewRepository[folder.Folder, FolderModel](db, FolderMapper{}, "folder"),
	}
}

type folderCount struct {
	FolderID string
	Count    int64
}

// AssetCounts returns the number of assets per folder for a tenant.
func (s FolderStore) AssetCounts(ctx context.Context, tenantID string) (map[string]int64, error) {
	var rows []folderCount
	err := s.DB(ctx).Model(&AssetModel{}).
		Select("folder_id, COUNT(*) AS count").
		Where("tenant_id = ? AND folder_id IS NOT NULL", tenantID).
		Group("folder_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count assets per folder: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.FolderID] = r.Count
	}
	return counts, nil
}
