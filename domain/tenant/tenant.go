// Package tenant provides the request principal and user profile types.
package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/helixml/damkit/domain/repository"
)

// ErrNoTenant is returned when a user has no tenant assigned.
var ErrNoTenant = errors.New("no tenant assigned to user")

// Principal identifies who is acting and in which tenant.
type Principal struct {
	userID   string
	tenantID string
}

// NewPrincipal creates a Principal.
func NewPrincipal(userID, tenantID string) Principal {
	return Principal{userID: userID, tenantID: tenantID}
}

// UserID returns the acting user's id.
func (p Principal) UserID() string { return p.userID }

// TenantID returns the tenant the request is scoped to.
func (p Principal) TenantID() string { return p.tenantID }

// Valid reports whether both ids are set.
func (p Principal) Valid() bool { return p.userID != "" && p.tenantID != "" }

type principalKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored on ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Valid()
}

// Profile links a user to a tenant.
type Profile struct {
	id        string
	tenantID  string
	email     string
	fullName  string
	createdAt time.Time
	updatedAt time.Time
}

// NewProfile creates a profile for a new user.
func NewProfile(id, tenantID, email, fullName string) Profile {
	now := time.Now().UTC()
	return Profile{
		id:        id,
		tenantID:  tenantID,
		email:     email,
		fullName:  fullName,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructProfile recreates a profile from persistence.
func ReconstructProfile(id, tenantID, email, fullName string, createdAt, updatedAt time.Time) Profile {
	return Profile{
		id:        id,
		tenantID:  tenantID,
		email:     email,
		fullName:  fullName,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the user id.
func (p Profile) ID() string { return p.id }

// TenantID returns the tenant the user belongs to.
func (p Profile) TenantID() string { return p.tenantID }

// Email returns the user's email.
func (p Profile) Email() string { return p.email }

// FullName returns the user's display name.
func (p Profile) FullName() string { return p.fullName }

// CreatedAt returns the creation time.
func (p Profile) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last update time.
func (p Profile) UpdatedAt() time.Time { return p.updatedAt }

// Principal returns the principal for this profile.
func (p Profile) Principal() Principal { return NewPrincipal(p.id, p.tenantID) }

// ProfileStore persists profiles.
type ProfileStore interface {
	repository.Store[Profile]
}
