// Package folder provides the folder domain type and its naming rules.
package folder

import (
	"context"
	"time"

	"github.com/helixml/damkit/domain/repository"
)

// RecentWindow is how far back a folder counts as recently created.
const RecentWindow = 7 * 24 * time.Hour

// Folder groups assets within a tenant.
type Folder struct {
	id          string
	tenantID    string
	name        string
	description string
	createdBy   string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewFolder creates a folder that has not been persisted yet.
func NewFolder(id, tenantID, name, description, createdBy string) Folder {
	now := time.Now().UTC()
	return Folder{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		description: description,
		createdBy:   createdBy,
		createdAt:   now,
		updatedAt:   now,
	}
}

// Reconstruct recreates a folder from persistence.
func Reconstruct(id, tenantID, name, description, createdBy string, createdAt, updatedAt time.Time) Folder {
	return Folder{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		description: description,
		createdBy:   createdBy,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the folder id.
func (f Folder) ID() string { return f.id }

// TenantID returns the owning tenant.
func (f Folder) TenantID() string { return f.tenantID }

// Name returns the display name.
func (f Folder) Name() string { return f.name }

// NameKey returns the normalized name used for uniqueness.
func (f Folder) NameKey() string { return NameKey(f.name) }

// Description returns the description.
func (f Folder) Description() string { return f.description }

// CreatedBy returns the id of the user who created the folder.
func (f Folder) CreatedBy() string { return f.createdBy }

// CreatedAt returns the creation time.
func (f Folder) CreatedAt() time.Time { return f.createdAt }

// UpdatedAt returns the last update time.
func (f Folder) UpdatedAt() time.Time { return f.updatedAt }

// IsRecent reports whether the folder was created within RecentWindow of now.
func (f Folder) IsRecent(now time.Time) bool {
	return now.Sub(f.createdAt) <= RecentWindow
}

// WithName returns a copy with a new name.
func (f Folder) WithName(name string) Folder {
	f.name = name
	f.updatedAt = time.Now().UTC()
	return f
}

// WithDescription returns a copy with a new description.
func (f Folder) WithDescription(description string) Folder {
	f.description = description
	f.updatedAt = time.Now().UTC()
	return f
}

// Summary pairs a folder with the number of assets in it.
type Summary struct {
	Folder     Folder
	AssetCount int64
}

// Store persists folders.
type Store interface {
	repository.Store[Folder]

	// Create inserts a new folder. A name clash inside the tenant returns an
	// error wrapping repository.ErrConflict.
	Create(ctx context.Context, f Folder) (Folder, error)

	// AssetCounts returns the asset count per folder id for a tenant.
	AssetCounts(ctx context.Context, tenantID string) (map[string]int64, error)
}

// WithNameKey filters by the normalized name column.
func WithNameKey(name string) repository.Option {
	return repository.WithCondition("name_key", NameKey(name))
}
