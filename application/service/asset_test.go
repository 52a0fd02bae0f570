package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/analytics"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/task"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/storage"
)

func TestAsset_UploadStoresObjectAndRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.uploadPNG(t, "logo.png", "")

	assert.Equal(t, "image/png", a.FileType())
	assert.Equal(t, int64(len(pngBytes)), a.FileSize())
	assert.Equal(t, "t1/"+a.ID()+".png", a.FilePath())
	assert.Equal(t, "alice", a.OwnerID())

	obj, err := f.objects.Get(ctx, a.FilePath())
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, pngBytes, data)

	events, err := f.events.Find(ctx, repository.WithTenantID("t1"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, analytics.EventUpload, events[0].Type())

	pending, err := f.taskStore.FindPending(ctx, task.WithOperation(task.OperationGenerateEmbedding))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID(), pending[0].Payload()["asset_id"])
}

func TestAsset_UploadTextIsNotQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.uploadText(t, "notes.txt", "meeting notes")
	assert.Equal(t, "text/plain", a.FileType())

	n, err := f.taskStore.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAsset_UploadRejectsUnknownFolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.assets.Upload(context.Background(), alice, UploadParams{
		Name:     "logo.png",
		Reader:   bytes.NewReader(pngBytes),
		FolderID: "missing",
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAsset_UploadFromURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/logo.png", "/images/banner":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	brand, err := f.folders.Create(ctx, alice, "Brand", "")
	require.NoError(t, err)

	t.Run("by folder name", func(t *testing.T) {
		a, err := f.assets.UploadFromURL(ctx, alice, URLParams{URL: srv.URL + "/images/logo.png", FolderName: "brand"})
		require.NoError(t, err)
		assert.Equal(t, "logo.png", a.Name())
		assert.Equal(t, brand.ID(), a.FolderID())
		assert.Equal(t, "image/png", a.FileType())
	})

	t.Run("name without extension", func(t *testing.T) {
		a, err := f.assets.UploadFromURL(ctx, alice, URLParams{URL: srv.URL + "/images/banner", FolderID: brand.ID()})
		require.NoError(t, err)
		assert.Equal(t, "banner.png", a.Name())
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name    string
			params  URLParams
			message string
		}{
			{name: "missing url", params: URLParams{FolderID: brand.ID()}, message: "Missing 'url' for upload"},
			{name: "no folder", params: URLParams{URL: srv.URL + "/images/logo.png"}, message: "Provide folder_id or folder_name"},
			{name: "unknown folder", params: URLParams{URL: srv.URL + "/images/logo.png", FolderName: "Nope"}, message: "Folder not found by name"},
			{name: "remote 404", params: URLParams{URL: srv.URL + "/gone.png", FolderID: brand.ID()}, message: "Failed to fetch file: 404 Not Found"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.assets.UploadFromURL(ctx, alice, tt.params)
				require.Error(t, err)
				assert.Equal(t, tt.message, UserMessage(err))
			})
		}
	})
}

func TestAsset_StageAndPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	staged, err := f.assets.StageUpload(ctx, alice, "holiday.png", "", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(staged.Path, "t1/temp/"))
	assert.Equal(t, "image/png", staged.Type)

	a, err := f.assets.PlaceStaged(ctx, alice, StagedParams{
		TempPath:    staged.Path,
		FolderName:  "Images",
		Name:        "Holiday",
		Description: "beach photo",
	})
	require.NoError(t, err)
	assert.Equal(t, "Holiday", a.Name())
	assert.Equal(t, "beach photo", a.Description())
	assert.Equal(t, "image/png", a.FileType())
	assert.Equal(t, "t1/"+a.ID()+".png", a.FilePath())

	images, err := f.folders.FindByName(ctx, "t1", "images")
	require.NoError(t, err)
	assert.Equal(t, images.ID(), a.FolderID())

	_, err = f.objects.Get(ctx, staged.Path)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestAsset_PlaceStagedRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		params  StagedParams
		message string
	}{
		{name: "missing path", params: StagedParams{FolderName: "Images"}, message: "Missing 'temp_file_path' for upload"},
		{name: "other tenant", params: StagedParams{TempPath: "t2/temp/x.png", FolderName: "Images"}, message: "Invalid temp_file_path"},
		{name: "escape", params: StagedParams{TempPath: "t1/temp/../t2/x.png", FolderName: "Images"}, message: "Invalid temp_file_path"},
		{name: "no folder", params: StagedParams{TempPath: "t1/temp/x.png"}, message: "Please specify which folder to upload to (e.g., 'Documents', 'Images', etc.)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assets.PlaceStaged(ctx, alice, tt.params)
			require.ErrorIs(t, err, repository.ErrValidation)
			assert.Equal(t, tt.message, UserMessage(err))
		})
	}
}

func TestAsset_ListClampsLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.folders.Create(ctx, alice, "Docs", "")
	require.NoError(t, err)
	f.uploadPNG(t, "a.png", docs.ID())
	f.uploadPNG(t, "b.png", "")

	all, err := f.assets.List(ctx, "t1", ListParams{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, all.ShowingLimit)
	assert.Equal(t, int64(2), all.TotalCount)
	require.Len(t, all.Assets, 2)

	defaulted, err := f.assets.List(ctx, "t1", ListParams{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, defaulted.ShowingLimit)

	inDocs, err := f.assets.List(ctx, "t1", ListParams{FolderName: "DOCS"})
	require.NoError(t, err)
	require.Len(t, inDocs.Assets, 1)
	assert.Equal(t, "a.png", inDocs.Assets[0].Asset.Name())
	require.NotNil(t, inDocs.Assets[0].Folder)
	assert.Equal(t, "Docs", inDocs.Assets[0].Folder.Name())

	_, err = f.assets.List(ctx, "t1", ListParams{FolderName: "Nope"})
	assert.Equal(t, "Folder not found by name", UserMessage(err))
}

func TestAsset_SearchSemantic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.uploadPNG(t, "logo.png", "")
	require.NoError(t, f.assetStore.SetEmbedding(ctx, a.ID(), []float32{1, 0, 0}))
	f.embedder.vectors = map[string][]float32{"company logo": {0.9, 0.1, 0}}

	result, err := f.assets.Search(ctx, "t1", "company logo", 0)
	require.NoError(t, err)
	assert.True(t, result.Semantic)
	assert.Equal(t, `Found 1 asset(s) matching "company logo" using semantic search.`, result.Message)
	require.Len(t, result.Hits, 1)
	require.NotNil(t, result.Hits[0].Similarity)
	assert.Greater(t, *result.Hits[0].Similarity, SimilarityThreshold)
}

func TestAsset_SearchFallsBackToKeywords(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing similar", func(t *testing.T) {
		f := newFixture(t)
		a := f.uploadPNG(t, "logo.png", "")
		require.NoError(t, f.assetStore.SetEmbedding(ctx, a.ID(), []float32{1, 0, 0}))

		result, err := f.assets.Search(ctx, "t1", "logo", 0)
		require.NoError(t, err)
		assert.False(t, result.Semantic)
		assert.Equal(t, `Found 1 asset(s) matching "logo".`, result.Message)
		require.Len(t, result.Hits, 1)
		assert.Nil(t, result.Hits[0].Similarity)
	})

	t.Run("no embedder", func(t *testing.T) {
		f := newFixture(t, withoutEmbedder())
		f.uploadText(t, "brief.txt", "brief")

		result, err := f.assets.Search(ctx, "t1", "BRIEF", 0)
		require.NoError(t, err)
		assert.Len(t, result.Hits, 1)
	})

	t.Run("embedder failing", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.err = assert.AnError
		f.uploadText(t, "brief.txt", "brief")

		result, err := f.assets.Search(ctx, "t1", "brief", 0)
		require.NoError(t, err)
		assert.Len(t, result.Hits, 1)
	})

	t.Run("no match", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.assets.Search(ctx, "t1", "unicorn", 0)
		require.NoError(t, err)
		assert.Equal(t, `No assets found matching "unicorn".`, result.Message)
		assert.Empty(t, result.Hits)
	})

	t.Run("empty query", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.assets.Search(ctx, "t1", "   ", 0)
		assert.Equal(t, "Missing search query", UserMessage(err))
	})
}

func TestAsset_DeleteRemovesObjectRowAndTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.uploadPNG(t, "logo.png", "")
	require.NoError(t, f.assets.Delete(ctx, alice, a.ID()))

	_, err := f.assets.Get(ctx, "t1", a.ID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.objects.Get(ctx, a.FilePath())
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	n, err := f.taskStore.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAsset_DeleteReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withObjectStore(func(s asset.ObjectStore) asset.ObjectStore {
		return failingDeletes{ObjectStore: s}
	}))

	a := f.uploadPNG(t, "logo.png", "")
	err := f.assets.Delete(ctx, alice, a.ID())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete object")

	_, err = f.assets.Get(ctx, "t1", a.ID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAsset_DeleteIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.uploadPNG(t, "logo.png", "")
	err := f.assets.Delete(ctx, tenant.NewPrincipal("mallory", "t2"), a.ID())
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.assets.Get(ctx, "t1", a.ID())
	require.NoError(t, err)
}

func TestAsset_SignedURLRecordsEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.uploadPNG(t, "logo.png", "")

	u, expires, err := f.assets.SignedURL(ctx, alice, a.ID(), DispositionAttachment)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://dam.test/files/"))
	assert.True(t, expires.After(a.CreatedAt()))

	_, _, err = f.assets.SignedURL(ctx, alice, a.ID(), "")
	require.NoError(t, err)

	_, _, err = f.assets.SignedURL(ctx, alice, a.ID(), "sideways")
	require.ErrorIs(t, err, repository.ErrValidation)

	totals, err := f.events.CountByType(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[analytics.EventUpload])
	assert.Equal(t, int64(1), totals[analytics.EventDownload])
	assert.Equal(t, int64(1), totals[analytics.EventView])
}

func TestAsset_MoveAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.folders.Create(ctx, alice, "Docs", "")
	require.NoError(t, err)
	a := f.uploadPNG(t, "logo.png", "")

	moved, err := f.assets.Move(ctx, "t1", a.ID(), docs.ID())
	require.NoError(t, err)
	assert.Equal(t, docs.ID(), moved.FolderID())

	_, err = f.assets.Move(ctx, "t1", a.ID(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	name := "brand-logo.png"
	tags := []string{"brand", "logo"}
	updated, err := f.assets.Update(ctx, "t1", a.ID(), AssetUpdate{Name: &name, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "brand-logo.png", updated.Name())
	assert.Equal(t, []string{"brand", "logo"}, updated.Tags())

	blank := " "
	_, err = f.assets.Update(ctx, "t1", a.ID(), AssetUpdate{Name: &blank})
	assert.Equal(t, "Missing file name", UserMessage(err))
}
