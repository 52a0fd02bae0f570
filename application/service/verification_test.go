package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/config"
	"github.com/helixml/damkit/internal/prompts"
	"github.com/helixml/damkit/internal/testdb"
)

const violentVerdict = `{
  "is_fake": false,
  "confidence_score": 0.2,
  "detected_issues": ["Violence: visible blood"],
  "analysis_summary": "Graphic injury shown.",
  "recommendations": "Do not publish."
}`

func newVerification(t *testing.T, model provider.TextGenerator) (*Verification, persistence.VerificationStore) {
	t.Helper()
	store := persistence.NewVerificationStore(testdb.New(t))
	return NewVerification(store, model, prompts.Default(), nil), store
}

func TestVerification_ImageVerdictIsStored(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []provider.ChatCompletionResponse{textReply(violentVerdict)}}
	svc, store := newVerification(t, model)

	img := provider.Image{MIMEType: "image/png", Data: pngBytes}
	result, err := svc.Verify(ctx, alice, verification.Request{
		ContentType: verification.ContentImage,
		ContentURL:  img.DataURL(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "t1", result.TenantID)
	assert.Equal(t, "alice", result.UserID)
	assert.Equal(t, img.DataURL(), result.ContentURL)
	assert.Equal(t, []string{"Violence: visible blood"}, result.Verdict.DetectedIssues)
	assert.True(t, verification.ShouldBlock(result.Verdict))

	saved, err := store.Find(ctx, repository.WithTenantID("t1"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, result.ID, saved[0].ID)

	calls := model.calls()
	require.Len(t, calls, 1)
	req := calls[0]
	msgs := req.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, provider.RoleSystem, msgs[0].Role())
	assert.Equal(t, prompts.Default().Verification.System, msgs[0].Content())
	require.Len(t, msgs[1].Images(), 1)
	assert.Equal(t, pngBytes, msgs[1].Images()[0].Data)

	temp, ok := req.Temperature()
	require.True(t, ok)
	assert.InDelta(t, 0.3, temp, 1e-9)
	assert.Equal(t, 2048, req.MaxTokens())
	require.NotNil(t, req.ResponseSchema())
	assert.Equal(t, "verification_verdict", req.ResponseSchema().Name)
}

func TestVerification_TextContent(t *testing.T) {
	model := &scriptedModel{responses: []provider.ChatCompletionResponse{textReply("```json\n" +
		`{"is_fake": true, "confidence_score": 0.6, "detected_issues": [], "analysis_summary": "Unverified claim.", "recommendations": "Check sources."}` +
		"\n```")}}
	svc, _ := newVerification(t, model)

	result, err := svc.Verify(context.Background(), alice, verification.Request{
		ContentType: verification.ContentText,
		ContentText: "The moon is made of cheese.",
	})
	require.NoError(t, err)
	assert.True(t, result.Verdict.IsFake)
	assert.Equal(t, []string{}, result.Verdict.DetectedIssues)
	assert.Equal(t, verification.DecisionWarn, verification.Evaluate(result.Verdict))

	msgs := model.calls()[0].Messages()
	assert.Contains(t, msgs[1].Content(), "The moon is made of cheese.")
	assert.Empty(t, msgs[1].Images())
}

func TestVerification_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid request never reaches the model", func(t *testing.T) {
		model := &scriptedModel{}
		svc, _ := newVerification(t, model)
		_, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentImage})
		require.ErrorIs(t, err, repository.ErrValidation)
		assert.Empty(t, model.calls())
	})

	t.Run("provider error is returned", func(t *testing.T) {
		model := &scriptedModel{err: provider.NewProviderError("chat completion", 429, "slow down", nil)}
		svc, store := newVerification(t, model)
		_, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentURL, ContentText: "https://example.com"})
		require.Error(t, err)
		assert.Equal(t, provider.MessageRateLimited, provider.ErrorText(err))

		saved, err := store.Find(ctx)
		require.NoError(t, err)
		assert.Empty(t, saved)
		assert.Len(t, model.calls(), 1)
	})

	t.Run("unparseable verdict", func(t *testing.T) {
		model := &scriptedModel{responses: []provider.ChatCompletionResponse{textReply("I think it is fine.")}}
		svc, _ := newVerification(t, model)
		_, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentText, ContentText: "hi"})
		assert.ErrorContains(t, err, "parse verdict")
	})

	t.Run("no model", func(t *testing.T) {
		svc, _ := newVerification(t, nil)
		_, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentText, ContentText: "hi"})
		assert.ErrorIs(t, err, ErrVerificationUnavailable)
	})
}

func TestVerification_VerifyBytes(t *testing.T) {
	model := &scriptedModel{responses: []provider.ChatCompletionResponse{textReply(violentVerdict)}}
	svc, _ := newVerification(t, model)

	result, err := svc.VerifyBytes(context.Background(), alice, "image/png", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, verification.ContentImage, result.ContentType)
	assert.Equal(t, "image/png", model.calls()[0].Messages()[1].Images()[0].MIMEType)
}

func TestVerification_History(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []provider.ChatCompletionResponse{textReply(violentVerdict), textReply(violentVerdict)}}
	svc, _ := newVerification(t, model)

	_, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentText, ContentText: "first"})
	require.NoError(t, err)
	second, err := svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentText, ContentText: "second"})
	require.NoError(t, err)

	history, err := svc.History(ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, second.ID, history[0].ID)

	other, err := svc.History(ctx, "t2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestVerification_RateLimitIsNotRetried(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	endpoint := config.NewEndpointWithOptions(
		config.WithBaseURL(srv.URL),
		config.WithModel("gpt-4o-mini"),
		config.WithAPIKey("k"),
	)
	model, err := provider.FromEndpoint(ctx, &endpoint, provider.KindChat, nil)
	require.NoError(t, err)
	defer func() { _ = model.Close() }()

	svc, store := newVerification(t, model)
	_, err = svc.Verify(ctx, alice, verification.Request{ContentType: verification.ContentText, ContentText: "Moon landing was staged"})
	require.Error(t, err)
	assert.Equal(t, provider.MessageRateLimited, provider.ErrorText(err))
	assert.Equal(t, int64(1), hits.Load())

	saved, err := store.Find(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved)
}
