// Package analytics provides asset activity events and the pure
// aggregations behind the analytics summary.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/helixml/damkit/domain/repository"
)

// EventType is the kind of activity recorded.
type EventType string

// EventType values.
const (
	EventView     EventType = "view"
	EventDownload EventType = "download"
	EventUpload   EventType = "upload"
)

// ParseEventType validates s as an EventType.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventView, EventDownload, EventUpload:
		return EventType(s), nil
	}
	return "", fmt.Errorf("%w: unknown event type %q", repository.ErrValidation, s)
}

// Event is one append-only activity record.
type Event struct {
	id        string
	tenantID  string
	assetID   string
	userID    string
	eventType EventType
	createdAt time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent(id, tenantID, assetID, userID string, eventType EventType) Event {
	return Event{
		id:        id,
		tenantID:  tenantID,
		assetID:   assetID,
		userID:    userID,
		eventType: eventType,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructEvent recreates an event from persistence.
func ReconstructEvent(id, tenantID, assetID, userID string, eventType EventType, createdAt time.Time) Event {
	return Event{
		id:        id,
		tenantID:  tenantID,
		assetID:   assetID,
		userID:    userID,
		eventType: eventType,
		createdAt: createdAt,
	}
}

// ID returns the event id.
func (e Event) ID() string { return e.id }

// TenantID returns the tenant.
func (e Event) TenantID() string { return e.tenantID }

// AssetID returns the asset the event is about, or "".
func (e Event) AssetID() string { return e.assetID }

// UserID returns the acting user.
func (e Event) UserID() string { return e.userID }

// Type returns the event type.
func (e Event) Type() EventType { return e.eventType }

// CreatedAt returns when the event happened.
func (e Event) CreatedAt() time.Time { return e.createdAt }

// Store persists events.
type Store interface {
	// Record appends an event.
	Record(ctx context.Context, e Event) error

	// Find returns events matching the options.
	Find(ctx context.Context, options ...repository.Option) ([]Event, error)

	// CountByType returns the number of events per type for a tenant.
	CountByType(ctx context.Context, tenantID string) (map[EventType]int64, error)

	// AssetActivity returns view plus download counts per asset for a tenant.
	AssetActivity(ctx context.Context, tenantID string) (map[string]int64, error)
}
