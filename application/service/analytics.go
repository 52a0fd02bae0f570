package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
)

// Analytics records asset activity and builds tenant summaries.
type Analytics struct {
	events analytics.Store
	assets asset.Store
	logger *slog.Logger
	loc    *time.Location
}

// NewAnalytics creates a new Analytics service. Daily stats are bucketed
// in UTC.
func NewAnalytics(events analytics.Store, assets asset.Store, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		events: events,
		assets: assets,
		logger: logger,
		loc:    time.UTC,
	}
}

// Record appends an event for the principal.
func (s *Analytics) Record(ctx context.Context, p tenant.Principal, assetID string, eventType analytics.EventType) error {
	e := analytics.NewEvent(uuid.NewString(), p.TenantID(), assetID, p.UserID(), eventType)
	if err := s.events.Record(ctx, e); err != nil {
		return fmt.Errorf("record %s event: %w", eventType, err)
	}
	return nil
}

// recordQuietly logs instead of failing the caller's operation.
func (s *Analytics) recordQuietly(ctx context.Context, p tenant.Principal, assetID string, eventType analytics.EventType) {
	if s == nil {
		return
	}
	if err := s.Record(ctx, p, assetID, eventType); err != nil {
		s.logger.Warn("analytics event dropped",
			slog.String("asset_id", assetID),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
	}
}

// Summary totals the tenant's events, computes the week over week trend,
// ranks the most active assets, and counts the last 7 days.
func (s *Analytics) Summary(ctx context.Context, tenantID string, now time.Time) (analytics.Summary, error) {
	var (
		totals   map[analytics.EventType]int64
		activity map[string]int64
		recent   []analytics.Event
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.events.CountByType(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = s.events.AssetActivity(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.events.Find(gctx,
			repository.WithTenantID(tenantID),
			repository.WithCreatedSince(now.Add(-14*24*time.Hour)),
		)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Summary{}, fmt.Errorf("analytics summary: %w", err)
	}

	names, err := s.assetNames(ctx, tenantID, analytics.TopAssetIDs(activity, analytics.TopAssetLimit))
	if err != nil {
		return analytics.Summary{}, err
	}

	return analytics.Summary{
		TotalViews:     totals[analytics.EventView],
		TotalDownloads: totals[analytics.EventDownload],
		TotalUploads:   totals[analytics.EventUpload],
		Trend:          analytics.WeekOverWeek(recent, now),
		TopAssets:      analytics.RankAssets(activity, names, analytics.TopAssetLimit),
		DailyStats:     analytics.DailyStats(recent, now, s.loc),
	}, nil
}

func (s *Analytics) assetNames(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	found, err := s.assets.Find(ctx, repository.WithTenantID(tenantID), repository.WithIDIn(ids))
	if err != nil {
		return nil, fmt.Errorf("load top asset names: %w", err)
	}
	for _, a := range found {
		names[a.ID()] = a.Name()
	}
	return names, nil
}
