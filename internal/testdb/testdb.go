// Package testdb opens migrated SQLite databases for tests.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/internal/database"
)

// New creates an in-memory SQLite database with every table migrated.
// It is closed when the test finishes.
func New(t *testing.T) database.Database {
	t.Helper()
	return open(t, "sqlite:///:memory:")
}

// NewFile creates a migrated SQLite database in a temporary directory, for
// tests that reopen the database or inspect the file.
func NewFile(t *testing.T) (database.Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "damkit.db")
	return open(t, "sqlite:///"+path), path
}

func open(t *testing.T, url string) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), url)
	if err != nil {
		t.Fatalf("testdb: open database: %v", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("testdb: auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
