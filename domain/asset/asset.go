// Package asset provides the asset domain type, its stores, and object key rules.
package asset

import (
	"slices"
	"strings"
	"time"
)

// Asset is a stored file with metadata.
type Asset struct {
	id          string
	tenantID    string
	folderID    string
	ownerID     string
	name        string
	description string
	filePath    string
	fileType    string
	fileSize    int64
	tags        []string
	embedding   []float32
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an asset that has not been persisted yet.
func New(id, tenantID, folderID, ownerID, name, filePath, fileType string, fileSize int64) Asset {
	now := time.Now().UTC()
	return Asset{
		id:        id,
		tenantID:  tenantID,
		folderID:  folderID,
		ownerID:   ownerID,
		name:      name,
		filePath:  filePath,
		fileType:  fileType,
		fileSize:  fileSize,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct recreates an asset from persistence.
func Reconstruct(
	id, tenantID, folderID, ownerID, name, description, filePath, fileType string,
	fileSize int64,
	tags []string,
	embedding []float32,
	createdAt, updatedAt time.Time,
) Asset {
	return Asset{
		id:          id,
		tenantID:    tenantID,
		folderID:    folderID,
		ownerID:     ownerID,
		name:        name,
		description: description,
		filePath:    filePath,
		fileType:    fileType,
		fileSize:    fileSize,
		tags:        slices.Clone(tags),
		embedding:   slices.Clone(embedding),
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the asset id.
func (a Asset) ID() string { return a.id }

// TenantID returns the owning tenant.
func (a Asset) TenantID() string { return a.tenantID }

// FolderID returns the containing folder id, or "" when unfiled.
func (a Asset) FolderID() string { return a.folderID }

// OwnerID returns the uploading user's id.
func (a Asset) OwnerID() string { return a.ownerID }

// Name returns the display name.
func (a Asset) Name() string { return a.name }

// Description returns the description.
func (a Asset) Description() string { return a.description }

// FilePath returns the object storage key.
func (a Asset) FilePath() string { return a.filePath }

// FileType returns the MIME type.
func (a Asset) FileType() string { return a.fileType }

// FileSize returns the size in bytes.
func (a Asset) FileSize() int64 { return a.fileSize }

// SizeMB returns the size in megabytes.
func (a Asset) SizeMB() float64 { return float64(a.fileSize) / (1024 * 1024) }

// Tags returns a copy of the tags.
func (a Asset) Tags() []string { return slices.Clone(a.tags) }

// Embedding returns a copy of the embedding vector, or nil.
func (a Asset) Embedding() []float32 { return slices.Clone(a.embedding) }

// HasEmbedding reports whether a vector has been stored.
func (a Asset) HasEmbedding() bool { return len(a.embedding) > 0 }

// CreatedAt returns the creation time.
func (a Asset) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last update time.
func (a Asset) UpdatedAt() time.Time { return a.updatedAt }

// IsImage reports whether the asset's MIME type is an image type.
func (a Asset) IsImage() bool { return IsImageType(a.fileType) }

// IsImageType reports whether contentType names an image.
func IsImageType(contentType string) bool { return strings.HasPrefix(contentType, "image/") }

// WithDescription returns a copy with a new description.
func (a Asset) WithDescription(description string) Asset {
	a.description = description
	a.updatedAt = time.Now().UTC()
	return a
}

// WithName returns a copy with a new name.
func (a Asset) WithName(name string) Asset {
	a.name = name
	a.updatedAt = time.Now().UTC()
	return a
}

// WithTags returns a copy with normalized tags.
func (a Asset) WithTags(tags []string) Asset {
	a.tags = NormalizeTags(tags)
	a.updatedAt = time.Now().UTC()
	return a
}

// WithFolderID returns a copy placed in another folder. An empty id unfiles it.
func (a Asset) WithFolderID(folderID string) Asset {
	a.folderID = folderID
	a.updatedAt = time.Now().UTC()
	return a
}

// WithEmbedding returns a copy carrying an embedding vector.
func (a Asset) WithEmbedding(embedding []float32) Asset {
	a.embedding = slices.Clone(embedding)
	a.updatedAt = time.Now().UTC()
	return a
}

// NormalizeTags trims, lowercases, and deduplicates tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag list.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}

// MatchesKeyword reports whether the asset's name or description contains
// q, or one of its tags equals q, ignoring case.
func (a Asset) MatchesKeyword(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(a.name), q) || strings.Contains(strings.ToLower(a.description), q) {
		return true
	}
	return slices.Contains(a.tags, q)
}
