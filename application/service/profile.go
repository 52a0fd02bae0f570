package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
)

// Profiles resolves which tenant a user acts in.
type Profiles struct {
	store tenant.ProfileStore
}

// NewProfiles creates a new Profiles service.
func NewProfiles(store tenant.ProfileStore) *Profiles {
	return &Profiles{store: store}
}

// Principal returns the principal for userID. Users without a profile or
// whose profile has no tenant get tenant.ErrNoTenant.
func (s *Profiles) Principal(ctx context.Context, userID string) (tenant.Principal, error) {
	if strings.TrimSpace(userID) == "" {
		return tenant.Principal{}, invalidInput("Missing user id")
	}
	p, err := s.store.FindOne(ctx, repository.WithID(userID))
	if errors.Is(err, repository.ErrNotFound) {
		return tenant.Principal{}, tenant.ErrNoTenant
	}
	if err != nil {
		return tenant.Principal{}, fmt.Errorf("find profile: %w", err)
	}
	if p.TenantID() == "" {
		return tenant.Principal{}, tenant.ErrNoTenant
	}
	return p.Principal(), nil
}

// Register creates or replaces the profile linking userID to tenantID.
func (s *Profiles) Register(ctx context.Context, userID, tenantID, email, fullName string) (tenant.Profile, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(tenantID) == "" {
		return tenant.Profile{}, invalidInput("Both user id and tenant id are required")
	}
	saved, err := s.store.Save(ctx, tenant.NewProfile(userID, tenantID, email, fullName))
	if err != nil {
		return tenant.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return saved, nil
}
