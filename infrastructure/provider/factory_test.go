package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/damkit/internal/config"
)

func TestFromEndpoint(t *testing.T) {
	ctx := context.Background()

	p, err := FromEndpoint(ctx, nil, KindChat, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	unconfigured := config.NewEndpoint()
	p, err = FromEndpoint(ctx, &unconfigured, KindChat, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	chat := config.NewEndpointWithOptions(config.WithModel("gpt-4o-mini"), config.WithAPIKey("k"))
	p, err = FromEndpoint(ctx, &chat, KindChat, nil)
	require.NoError(t, err)
	assert.True(t, p.SupportsTextGeneration())
	assert.False(t, p.SupportsEmbedding())

	embed := config.NewEndpointWithOptions(
		config.WithProvider(config.ProviderGemini),
		config.WithModel("text-embedding-004"),
		config.WithAPIKey("k"),
	)
	p, err = FromEndpoint(ctx, &embed, KindEmbedding, nil)
	require.NoError(t, err)
	assert.IsType(t, &GeminiProvider{}, p)
	assert.True(t, p.SupportsEmbedding())

	bad := config.NewEndpointWithOptions(config.WithProvider("bedrock"), config.WithModel("m"))
	_, err = FromEndpoint(ctx, &bad, KindChat, nil)
	require.Error(t, err)
}

func TestFromEndpoint_DefaultsFailFast(t *testing.T) {
	tests := []struct {
		name     string
		provider config.Provider
		suffix   string
		status   int
	}{
		{name: "openai rate limited", provider: config.ProviderOpenAI, status: http.StatusTooManyRequests},
		{name: "openai unavailable", provider: config.ProviderOpenAI, status: http.StatusServiceUnavailable},
		{name: "gemini rate limited", provider: config.ProviderGemini, suffix: "/", status: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"slow down","type":"error","status":"RESOURCE_EXHAUSTED"}}`, tt.status)
			}))
			defer srv.Close()

			endpoint := config.NewEndpointWithOptions(
				config.WithProvider(tt.provider),
				config.WithBaseURL(srv.URL+tt.suffix),
				config.WithModel("m"),
				config.WithAPIKey("k"),
			)
			assert.Equal(t, 0, endpoint.MaxRetries())

			p, err := FromEndpoint(context.Background(), &endpoint, KindChat, nil)
			require.NoError(t, err)

			_, err = p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{UserMessage("hi")}))
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode())
			assert.NotContains(t, err.Error(), "max retries exceeded")
			assert.Equal(t, int64(1), calls.Load())
		})
	}
}
