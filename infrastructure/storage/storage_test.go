package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/internal/config"
)

func TestNew_Local(t *testing.T) {
	cfg := config.StorageEnv{Backend: "local", PublicURL: "http://dam.test/", SigningKey: "k"}.ToStorageConfig()

	store, err := New(context.Background(), cfg, Options{Dir: t.TempDir(), FilesPath: "/files"})
	require.NoError(t, err)

	local, ok := store.(*LocalStore)
	require.True(t, ok)
	assert.Equal(t, "http://dam.test/files", local.baseURL)
}
