package repository

import "time"

// WithTenantID filters by the "tenant_id" column. Every tenant-owned store
// query carries this option.
func WithTenantID(tenantID string) Option {
	return WithCondition("tenant_id", tenantID)
}

// WithFolderID filters by the "folder_id" column.
func WithFolderID(folderID string) Option {
	return WithCondition("folder_id", folderID)
}

// WithCreatedSince keeps rows created at or after t.
func WithCreatedSince(t time.Time) Option {
	return WithWhere("created_at >= ?", t)
}

// WithCreatedBefore keeps rows created strictly before t.
func WithCreatedBefore(t time.Time) Option {
	return WithWhere("created_at < ?", t)
}

// WithNewestFirst orders by creation time, newest first.
func WithNewestFirst() Option {
	return WithOrderDesc("created_at")
}
