package asset

import (
	"context"
	"io"
	"time"

	"github.com/helixml/damkit/domain/repository"
)

// Scored pairs an asset with its similarity to a query.
type Scored struct {
	Asset      Asset
	Similarity float64
}

// Store persists assets.
type Store interface {
	repository.Store[Asset]

	// SearchSimilar returns tenant assets whose embeddings have cosine
	// similarity of at least threshold to vector, best first.
	SearchSimilar(ctx context.Context, tenantID string, vector []float32, threshold float64, limit int) ([]Scored, error)

	// SearchKeyword matches name and description substrings or an exact tag.
	SearchKeyword(ctx context.Context, tenantID, query string, limit int) ([]Asset, error)

	// SetEmbedding stores a vector for one asset.
	SetEmbedding(ctx context.Context, id string, vector []float32) error

	// Unfile clears the folder of every asset in folderID.
	Unfile(ctx context.Context, tenantID, folderID string) error

	// TenantsMissingEmbeddings lists tenants that own image assets with no
	// embedding.
	TenantsMissingEmbeddings(ctx context.Context) ([]string, error)
}

// WithMissingEmbedding keeps assets that have no embedding yet.
func WithMissingEmbedding() repository.Option {
	return repository.WithWhere("embedding IS NULL")
}

// WithImagesOnly keeps assets with an image MIME type.
func WithImagesOnly() repository.Option {
	return repository.WithWhere("file_type LIKE ?", "image/%")
}

// WithOwnerID filters by the uploading user.
func WithOwnerID(ownerID string) repository.Option {
	return repository.WithCondition("owner_id", ownerID)
}

// Object is a stored blob read back from object storage.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStore holds asset bytes.
type ObjectStore interface {
	// Put writes size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object at key. The caller closes Body.
	Get(ctx context.Context, key string) (Object, error)

	// Move renames an object.
	Move(ctx context.Context, from, to string) error

	// Delete removes an object.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited download URL.
	SignedURL(ctx context.Context, key string, ttl time.Duration, disposition string) (string, error)
}
