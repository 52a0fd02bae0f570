package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/internal/database"
)

// AnalyticsStore implements analytics.Store using GORM.
type AnalyticsStore struct {
	database.Repository[analytics.Event, AnalyticsEventModel]
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(db database.Database) AnalyticsStore {
	return AnalyticsStore{
		Repository: database.NewRepository[analytics.Event, AnalyticsEventModel](db, AnalyticsEventMapper{}, "analytics event"),
	}
}

// Record appends an event.
func (s AnalyticsStore) Record(ctx context.Context, e analytics.Event) error {
	_, err := s.Create(ctx, e)
	return err
}

type typeCount struct {
	EventType string
	Count     int64
}

// CountByType returns the number of events per type for a tenant.
func (s AnalyticsStore) CountByType(ctx context.Context, tenantID string) (map[analytics.EventType]int64, error) {
	var rows []typeCount
	err := s.DB(ctx).Model(&AnalyticsEventModel{}).
		Select("event_type, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}

	counts := make(map[analytics.EventType]int64, len(rows))
	for _, r := range rows {
		counts[analytics.EventType(r.EventType)] = r.Count
	}
	return counts, nil
}

type assetCount struct {
	AssetID string
	Count   int64
}

// AssetActivity returns view plus download counts per asset for a tenant.
func (s AnalyticsStore) AssetActivity(ctx context.Context, tenantID string) (map[string]int64, error) {
	var rows []assetCount
	err := s.DB(ctx).Model(&AnalyticsEventModel{}).
		Select("asset_id, COUNT(*) AS count").
		Where("tenant_id = ? AND asset_id IS NOT NULL", tenantID).
		Where("event_type IN ?", []string{string(analytics.EventView), string(analytics.EventDownload)}).
		Group("asset_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count asset activity: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.AssetID] = r.Count
	}
	return counts, nil
}
