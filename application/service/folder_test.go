package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/persistence"
)

// untouchedFolderStore fails the test if the service reaches the store.
type untouchedFolderStore struct {
	folder.Store
	t *testing.T
}

func (s untouchedFolderStore) FindOne(context.Context, ...repository.Option) (folder.Folder, error) {
	s.t.Fatal("store queried for an invalid name")
	return folder.Folder{}, nil
}

func (s untouchedFolderStore) Create(context.Context, folder.Folder) (folder.Folder, error) {
	s.t.Fatal("store written for an invalid name")
	return folder.Folder{}, nil
}

func TestFolder_CreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.folders.Create(ctx, alice, "  Marketing ", "campaign assets")
	require.NoError(t, err)
	assert.Equal(t, "Marketing", created.Name())
	assert.Equal(t, "campaign assets", created.Description())
	assert.Equal(t, "alice", created.CreatedBy())

	_, err = f.folders.Create(ctx, alice, "marketing", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrConflict))

	dup, ok := folder.AsDuplicate(err)
	require.True(t, ok)
	assert.Equal(t, "Marketing", dup.Existing)
	assert.Equal(t, `A folder named "Marketing" already exists. Please choose a different name.`, UserMessage(err))
	year := strconv.Itoa(time.Now().Year())
	assert.Contains(t, dup.Suggestions, "Marketing_v2")
	assert.Contains(t, dup.Suggestions, "Marketing_"+year)
	assert.Contains(t, dup.Suggestions, "Work_Marketing")
}

func TestFolder_SameNameInOtherTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.folders.Create(ctx, alice, "Marketing", "")
	require.NoError(t, err)
	_, err = f.folders.Create(ctx, tenant.NewPrincipal("bob", "t2"), "MARKETING", "")
	require.NoError(t, err)
}

func TestFolder_CreateValidatesBeforeStoreAccess(t *testing.T) {
	svc := NewFolder(untouchedFolderStore{t: t}, nil, nil)

	tests := []struct {
		name    string
		input   string
		want    error
		message string
	}{
		{name: "empty", input: "", want: folder.ErrMissingName, message: "Missing folder name"},
		{name: "whitespace", input: "  \t ", want: folder.ErrMissingName, message: "Missing folder name"},
		{name: "too long", input: strings.Repeat("a", 101), want: folder.ErrNameTooLong, message: "Folder name is too long (max 100 characters)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.input, "")
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, repository.ErrValidation)
			assert.Equal(t, tt.message, UserMessage(err))
		})
	}
}

func TestFolder_UniqueIndexCatchesRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := persistence.NewFolderStore(f.db)

	_, err := store.Create(ctx, folder.NewFolder(uuid.NewString(), "t1", "Brand", "", "alice"))
	require.NoError(t, err)

	_, err = store.Create(ctx, folder.NewFolder(uuid.NewString(), "t1", "BRAND", "", "alice"))
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestFolder_SecondCreateAlwaysDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("recreating a name in any case is refused", prop.ForAll(
		func(name string) bool {
			p := tenant.NewPrincipal("alice", uuid.NewString())
			first, err := f.folders.Create(ctx, p, name, "")
			if err != nil {
				return false
			}
			_, err = f.folders.Create(ctx, p, strings.ToUpper(name), "")
			dup, ok := folder.AsDuplicate(err)
			return ok && dup.Existing == first.Name()
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" && len(s) <= folder.MaxNameLength }),
	))

	properties.TestingRun(t)
}

func TestFolder_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	empty, err := f.folders.List(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, EmptyFolderListMessage, empty.Message)
	assert.Empty(t, empty.Folders)

	docs, err := f.folders.Create(ctx, alice, "Docs", "")
	require.NoError(t, err)
	_, err = f.folders.Create(ctx, alice, "Images", "")
	require.NoError(t, err)
	f.uploadPNG(t, "logo.png", docs.ID())

	listing, err := f.folders.List(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, listing.TotalCount)
	assert.Equal(t, int64(1), listing.TotalAssets)
	assert.Equal(t, "Found 2 folder(s) containing 1 asset(s) total. 2 folder(s) created recently.", listing.Message)

	counts := map[string]int64{}
	for _, s := range listing.Folders {
		counts[s.Folder.Name()] = s.AssetCount
	}
	assert.Equal(t, map[string]int64{"Docs": 1, "Images": 0}, counts)
}

func TestFolder_FindByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.folders.Create(ctx, alice, "Photos", "")
	require.NoError(t, err)

	found, err := f.folders.FindByName(ctx, "t1", " photos ")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), found.ID())

	_, err = f.folders.FindByName(ctx, "t1", "videos")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFolder_UpdateRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.folders.Create(ctx, alice, "Drafts", "")
	require.NoError(t, err)
	_, err = f.folders.Create(ctx, alice, "Final", "")
	require.NoError(t, err)

	recased := "DRAFTS"
	updated, err := f.folders.Update(ctx, "t1", a.ID(), FolderUpdate{Name: &recased})
	require.NoError(t, err)
	assert.Equal(t, "DRAFTS", updated.Name())

	clash := "final"
	_, err = f.folders.Update(ctx, "t1", a.ID(), FolderUpdate{Name: &clash})
	dup, ok := folder.AsDuplicate(err)
	require.True(t, ok)
	assert.Equal(t, "Final", dup.Existing)

	desc := "work in progress"
	updated, err = f.folders.Update(ctx, "t1", a.ID(), FolderUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "work in progress", updated.Description())
}

func TestFolder_DeleteNonEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.folders.Create(ctx, alice, "Docs", "")
	require.NoError(t, err)
	a := f.uploadPNG(t, "logo.png", docs.ID())

	err = f.folders.Delete(ctx, "t1", docs.ID(), false)
	require.ErrorIs(t, err, ErrFolderNotEmpty)

	require.NoError(t, f.folders.Delete(ctx, "t1", docs.ID(), true))

	_, err = f.folders.Get(ctx, "t1", docs.ID())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	unfiled, err := f.assets.Get(ctx, "t1", a.ID())
	require.NoError(t, err)
	assert.Empty(t, unfiled.FolderID())
}
