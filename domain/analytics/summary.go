package analytics

import (
	"math"
	"sort"
	"time"
)

// TopAssetLimit is the number of assets reported as most active.
const TopAssetLimit = 5

// UnknownAssetName labels activity for assets that no longer exist.
const UnknownAssetName = "Unknown Asset"

const day = 24 * time.Hour

// TopAsset is an asset ranked by activity.
type TopAsset struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name"`
	Count   int64  `json:"count"`
}

// DayStat holds event counts for one calendar day.
type DayStat struct {
	Date      string `json:"date"`
	Views     int    `json:"views"`
	Downloads int    `json:"downloads"`
	Uploads   int    `json:"uploads"`
}

// Summary is the analytics overview for a tenant.
type Summary struct {
	TotalViews     int64      `json:"total_views"`
	TotalDownloads int64      `json:"total_downloads"`
	TotalUploads   int64      `json:"total_uploads"`
	Trend          int        `json:"trend"`
	TopAssets      []TopAsset `json:"top_assets"`
	DailyStats     []DayStat  `json:"daily_stats"`
}

// Trend returns the percentage change from previous to recent, rounded to
// the nearest integer, or 0 when previous is 0.
func Trend(recent, previous int) int {
	if previous <= 0 {
		return 0
	}
	return int(math.Round(float64(recent-previous) / float64(previous) * 100))
}

// WeekOverWeek splits events into the last 7 days and the 7 days before
// that, relative to now, and returns their trend.
func WeekOverWeek(events []Event, now time.Time) int {
	weekAgo := now.Add(-7 * day)
	twoWeeksAgo := now.Add(-14 * day)
	var recent, previous int
	for _, e := range events {
		at := e.CreatedAt()
		switch {
		case at.After(weekAgo):
			recent++
		case at.After(twoWeeksAgo):
			previous++
		}
	}
	return Trend(recent, previous)
}

// RankAssets orders asset ids by activity and keeps the top limit, naming
// each from names.
func RankAssets(activity map[string]int64, names map[string]string, limit int) []TopAsset {
	ranked := make([]TopAsset, 0, len(activity))
	for id, count := range activity {
		name := names[id]
		if name == "" {
			name = UnknownAssetName
		}
		ranked = append(ranked, TopAsset{AssetID: id, Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count == ranked[j].Count {
			return ranked[i].AssetID < ranked[j].AssetID
		}
		return ranked[i].Count > ranked[j].Count
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TopAssetIDs returns the ids RankAssets would keep, so names can be
// looked up for just those.
func TopAssetIDs(activity map[string]int64, limit int) []string {
	ranked := RankAssets(activity, nil, limit)
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.AssetID
	}
	return ids
}

// DailyStats counts events per type for the 7 calendar days ending on
// now's day in loc, oldest first.
func DailyStats(events []Event, now time.Time, loc *time.Location) []DayStat {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	stats := make([]DayStat, 7)
	starts := make([]time.Time, 7)
	for i := range 7 {
		start := today.AddDate(0, 0, i-6)
		starts[i] = start
		stats[i].Date = start.Format("Jan 2")
	}

	for _, e := range events {
		at := e.CreatedAt().In(loc)
		for i, start := range starts {
			end := start.AddDate(0, 0, 1)
			if at.Before(start) || !at.Before(end) {
				continue
			}
			switch e.Type() {
			case EventView:
				stats[i].Views++
			case EventDownload:
				stats[i].Downloads++
			case EventUpload:
				stats[i].Uploads++
			}
			break
		}
	}
	return stats
}
