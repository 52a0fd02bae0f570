package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/helixml/damkit/internal/config"
)

// Kind selects which model an endpoint serves.
type Kind int

// Kind values.
const (
	KindChat Kind = iota
	KindEmbedding
)

// FromEndpoint builds a provider for a configured endpoint. A nil or
// unconfigured endpoint returns (nil, nil).
func FromEndpoint(ctx context.Context, endpoint *config.Endpoint, kind Kind, transport http.RoundTripper) (FullProvider, error) {
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	var chatModel, embeddingModel string
	switch kind {
	case KindChat:
		chatModel = endpoint.Model()
	case KindEmbedding:
		embeddingModel = endpoint.Model()
	}

	switch endpoint.Provider() {
	case config.ProviderGemini:
		p, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:         endpoint.APIKey(),
			BaseURL:        endpoint.BaseURL(),
			ChatModel:      chatModel,
			EmbeddingModel: embeddingModel,
			MaxTokens:      endpoint.MaxTokens(),
			Timeout:        endpoint.Timeout(),
			MaxRetries:     retriesFor(endpoint.MaxRetries()),
			InitialDelay:   endpoint.InitialDelay(),
			BackoffFactor:  endpoint.BackoffFactor(),
			Transport:      transport,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderOpenAI, "":
		return NewOpenAIProviderFromConfig(OpenAIConfig{
			APIKey:         endpoint.APIKey(),
			BaseURL:        endpoint.BaseURL(),
			ChatModel:      chatModel,
			EmbeddingModel: embeddingModel,
			MaxTokens:      endpoint.MaxTokens(),
			Timeout:        endpoint.Timeout(),
			MaxRetries:     retriesFor(endpoint.MaxRetries()),
			InitialDelay:   endpoint.InitialDelay(),
			BackoffFactor:  endpoint.BackoffFactor(),
			Transport:      transport,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", endpoint.Provider())
	}
}

// retriesFor maps a configured zero to "no retries" rather than the default.
func retriesFor(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
