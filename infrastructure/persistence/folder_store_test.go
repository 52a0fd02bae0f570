package persistence_test

import (
	"context"
	"testing"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderStore_UniqueNamePerTenant(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewFolderStore(testdb.New(t))

	_, err := store.Create(ctx, folder.NewFolder("f1", "t1", "Marketing", "", "u1"))
	require.NoError(t, err)

	_, err = store.Create(ctx, folder.NewFolder("f2", "t1", " marketing ", "", "u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = store.Create(ctx, folder.NewFolder("f3", "t2", "Marketing", "", "u2"))
	require.NoError(t, err, "other tenants may reuse the name")
}

func TestFolderStore_FindByNameKey(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewFolderStore(testdb.New(t))

	_, err := store.Create(ctx, folder.NewFolder("f1", "t1", "Client Work", "", "u1"))
	require.NoError(t, err)

	got, err := store.FindOne(ctx, repository.WithTenantID("t1"), folder.WithNameKey("CLIENT WORK"))
	require.NoError(t, err)
	assert.Equal(t, "f1", got.ID())

	_, err = store.FindOne(ctx, repository.WithTenantID("t2"), folder.WithNameKey("client work"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFolderStore_AssetCounts(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	folders := persistence.NewFolderStore(db)
	assets := persistence.NewAssetStore(db, nil)

	_, err := folders.Create(ctx, folder.NewFolder("f1", "t1", "A", "", "u1"))
	require.NoError(t, err)
	_, err = folders.Create(ctx, folder.NewFolder("f2", "t1", "B", "", "u1"))
	require.NoError(t, err)

	for i, folderID := range []string{"f1", "f1", "f2", ""} {
		a := asset.New(string(rune('a'+i)), "t1", folderID, "u1", "file", "k", "image/png", 1)
		_, err := assets.Create(ctx, a)
		require.NoError(t, err)
	}

	counts, err := folders.AssetCounts(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"f1": 2, "f2": 1}, counts)
}

func TestFolderStore_RenameConflict(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewFolderStore(testdb.New(t))

	_, err := store.Create(ctx, folder.NewFolder("f1", "t1", "Alpha", "", "u1"))
	require.NoError(t, err)
	beta, err := store.Create(ctx, folder.NewFolder("f2", "t1", "Beta", "", "u1"))
	require.NoError(t, err)

	_, err = store.Save(ctx, beta.WithName("ALPHA"))
	assert.ErrorIs(t, err, repository.ErrConflict)

	renamed, err := store.Save(ctx, beta.WithName("Gamma"))
	require.NoError(t, err)
	assert.Equal(t, "Gamma", renamed.Name())
}
