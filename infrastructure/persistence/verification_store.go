package persistence

import (
	"context"

	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/internal/database"
)

// VerificationStore implements verification.Store using GORM.
type VerificationStore struct {
	database.Repository[verification.Result, VerificationResultModel]
}

// NewVerificationStore creates a new VerificationStore.
func NewVerificationStore(db database.Database) VerificationStore {
	return VerificationStore{
		Repository: database.NewRepository[verification.Result, VerificationResultModel](db, VerificationMapper{}, "verification result"),
	}
}

// Save inserts a result. Results are immutable once written.
func (s VerificationStore) Save(ctx context.Context, r verification.Result) (verification.Result, error) {
	return s.Create(ctx, r)
}
