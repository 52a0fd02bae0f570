package embedding

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/application/service"
	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/infrastructure/storage"
	"github.com/helixml/damkit/internal/prompts"
	"github.com/helixml/damkit/internal/testdb"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type captioner struct{ caption string }

func (c captioner) ChatCompletion(context.Context, provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	return provider.NewChatCompletionResponse(c.caption, "stop", nil, provider.Usage{}), nil
}

type fixedEmbedder struct{ vector []float32 }

func (e fixedEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	out := make([][]float32, len(req.Texts()))
	for i := range out {
		out[i] = e.vector
	}
	return provider.NewEmbeddingResponse(out, provider.Usage{}), nil
}

type env struct {
	assets     persistence.AssetStore
	objects    *storage.LocalStore
	embeddings *service.Embedding
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testdb.New(t)
	objects, err := storage.NewLocalStore(storage.LocalConfig{Dir: t.TempDir(), SigningKey: "k"})
	require.NoError(t, err)
	assets := persistence.NewAssetStore(db, nil)
	return env{
		assets:  assets,
		objects: objects,
		embeddings: service.NewEmbedding(assets, objects,
			captioner{caption: "a blue square"}, fixedEmbedder{vector: []float32{0, 0, 1}},
			prompts.Default(), nil),
	}
}

func (e env) addImage(t *testing.T, tenantID, id string) asset.Asset {
	t.Helper()
	ctx := context.Background()
	key := asset.ObjectKey(tenantID, id, "png")
	require.NoError(t, e.objects.Put(ctx, key, bytes.NewReader(pngBytes), int64(len(pngBytes)), "image/png"))
	a, err := e.assets.Save(ctx, asset.New(id, tenantID, "", "alice", id+".png", key, "image/png", int64(len(pngBytes))))
	require.NoError(t, err)
	return a
}

func TestGenerate_Execute(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addImage(t, "t1", "a1")

	h := NewGenerate(e.embeddings, nil)
	require.NoError(t, h.Execute(ctx, map[string]any{"tenant_id": "t1", "asset_id": "a1"}))

	stored, err := e.assets.FindOne(ctx, repository.WithID("a1"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, stored.Embedding())
}

func TestGenerate_SkipsDeletedAsset(t *testing.T) {
	e := newEnv(t)
	h := NewGenerate(e.embeddings, nil)
	assert.NoError(t, h.Execute(context.Background(), map[string]any{"tenant_id": "t1", "asset_id": "gone"}))
}

func TestGenerate_RejectsBadPayload(t *testing.T) {
	e := newEnv(t)
	h := NewGenerate(e.embeddings, nil)
	assert.Error(t, h.Execute(context.Background(), map[string]any{"asset_id": "a1"}))
}

func TestGenerate_NonImageFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.assets.Save(ctx, asset.New("doc", "t1", "", "alice", "doc.pdf", "t1/doc.pdf", "application/pdf", 10))
	require.NoError(t, err)

	h := NewGenerate(e.embeddings, nil)
	err = h.Execute(ctx, map[string]any{"tenant_id": "t1", "asset_id": "doc"})
	assert.ErrorIs(t, err, service.ErrNotImage)
}

func TestBackfill_Execute(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addImage(t, "t1", "a1")
	e.addImage(t, "t1", "a2")
	e.addImage(t, "t2", "b1")

	h := NewBackfill(e.embeddings, nil)
	require.NoError(t, h.Execute(ctx, map[string]any{"tenant_id": "t1"}))

	missing, err := e.assets.TenantsMissingEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, missing)

	assert.Error(t, h.Execute(ctx, map[string]any{}))
}
