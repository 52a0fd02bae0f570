package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/infrastructure/provider"
)

func TestEmbedding_GenerateCaptionsAndStores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.model.responses = []provider.ChatCompletionResponse{textReply("  A red company logo on white.  ")}
	f.embedder.vectors = map[string][]float32{"A red company logo on white.": {0.1, 0.2, 0.3}}

	a := f.uploadPNG(t, "logo.png", "")
	embedded, err := f.embeddings.Generate(ctx, "t1", a.ID())
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedded.Embedding())

	stored, err := f.assetStore.FindOne(ctx, repository.WithID(a.ID()))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored.Embedding())

	calls := f.model.calls()
	require.Len(t, calls, 1)
	temp, ok := calls[0].Temperature()
	require.True(t, ok)
	assert.InDelta(t, 0.4, temp, 1e-9)
	assert.Equal(t, 100, calls[0].MaxTokens())

	msgs := calls[0].Messages()
	require.Len(t, msgs, 1)
	images := msgs[0].Images()
	require.Len(t, images, 1)
	assert.Equal(t, "image/png", images[0].MIMEType)
	assert.Equal(t, pngBytes, images[0].Data)
}

func TestEmbedding_GenerateRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("not an image", func(t *testing.T) {
		f := newFixture(t)
		a := f.uploadText(t, "notes.txt", "hello")
		_, err := f.embeddings.Generate(ctx, "t1", a.ID())
		require.ErrorIs(t, err, ErrNotImage)
		assert.ErrorIs(t, err, repository.ErrValidation)
		assert.Empty(t, f.model.calls())
	})

	t.Run("other tenant", func(t *testing.T) {
		f := newFixture(t)
		a := f.uploadPNG(t, "logo.png", "")
		_, err := f.embeddings.Generate(ctx, "t2", a.ID())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("no embedder", func(t *testing.T) {
		f := newFixture(t, withoutEmbedder())
		a := f.uploadPNG(t, "logo.png", "")
		_, err := f.embeddings.Generate(ctx, "t1", a.ID())
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})

	t.Run("empty caption", func(t *testing.T) {
		f := newFixture(t)
		f.model.responses = []provider.ChatCompletionResponse{textReply("   ")}
		a := f.uploadPNG(t, "logo.png", "")
		_, err := f.embeddings.Generate(ctx, "t1", a.ID())
		assert.ErrorIs(t, err, provider.ErrEmptyResponse)
	})
}

func TestEmbedding_BackfillCountsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.uploadPNG(t, "first.png", "")
	f.uploadPNG(t, "second.png", "")
	f.uploadText(t, "notes.txt", "skip me")

	f.model.reply = func(provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
		if len(f.model.requests) == 1 {
			return provider.ChatCompletionResponse{}, errors.New("vision model overloaded")
		}
		return textReply("a photo"), nil
	}
	f.embedder.fallback = []float32{1, 0}

	result, err := f.embeddings.Backfill(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "Processed 1 assets, 1 failed", result.Message)

	missing, err := f.assetStore.Find(ctx, repository.WithTenantID("t1"), asset.WithImagesOnly(), asset.WithMissingEmbedding())
	require.NoError(t, err)
	require.Len(t, missing, 1)

	tenants, err := f.assetStore.TenantsMissingEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, tenants)
}

func TestEmbedding_BackfillNothingToDo(t *testing.T) {
	f := newFixture(t)
	f.uploadText(t, "notes.txt", "text only")

	result, err := f.embeddings.Backfill(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Message: "No assets to process"}, result)
}

func TestEmbedding_EmbedQuery(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, withoutEmbedder())
	v, err := f.embeddings.EmbedQuery(ctx, "logo")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, f.embeddings.Available())

	f = newFixture(t)
	v, err = f.embeddings.EmbedQuery(ctx, "  ")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, f.embedder.texts)

	f.embedder.fallback = nil
	_, err = f.embeddings.EmbedQuery(ctx, "logo")
	assert.ErrorIs(t, err, provider.ErrEmptyResponse)
}
