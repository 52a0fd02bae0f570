package persistence

import (
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/internal/database"
)

// ProfileStore implements tenant.ProfileStore using GORM.
type ProfileStore struct {
	database.Repository[tenant.Profile, ProfileModel]
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(db database.Database) ProfileStore {
	return ProfileStore{
		Repository: database.NewRepository[tenant.Profile, ProfileModel](db, ProfileMapper{}, "profile"),
	}
}
