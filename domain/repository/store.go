package repository

import (
	"context"
	"errors"
)

// Sentinel errors shared by every store and service.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates caller input was rejected.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates the write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// Store is the common read/write surface every entity store offers.
type Store[T any] interface {
	// Find returns entities matching the options.
	Find(ctx context.Context, options ...Option) ([]T, error)

	// FindOne returns the first entity matching the options or ErrNotFound.
	FindOne(ctx context.Context, options ...Option) (T, error)

	// Count returns the number of entities matching the options.
	Count(ctx context.Context, options ...Option) (int64, error)

	// Save inserts or updates an entity and returns the stored value.
	Save(ctx context.Context, entity T) (T, error)

	// Delete removes an entity.
	Delete(ctx context.Context, entity T) error
}
