package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/config"
)

// clientOptions returns the damkit.Option slice derived from AppConfig:
// database, storage, sessions, and the chat, vision, and embedding models.
// Callers append entrypoint-specific options before passing the slice to
// damkit.New.
func clientOptions(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) ([]damkit.Option, error) {
	opts := []damkit.Option{
		damkit.WithDatabaseURL(cfg.DBURL()),
		damkit.WithDataDir(cfg.DataDir()),
		damkit.WithLogger(logger),
		damkit.WithStorageConfig(cfg.Storage()),
		damkit.WithSessionTTL(cfg.SessionTTL()),
		damkit.WithPeriodicBackfillConfig(cfg.PeriodicBackfill()),
		damkit.WithWorkerPollPeriod(cfg.WorkerPollPeriod()),
	}
	if url := cfg.RedisURL(); url != "" {
		opts = append(opts, damkit.WithRedisURL(url))
	}

	providerOpts, err := providerOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return append(opts, providerOpts...), nil
}

// providerOptions builds a provider for every configured endpoint. Each is
// registered as a closer so the client releases it.
func providerOptions(ctx context.Context, cfg config.AppConfig) ([]damkit.Option, error) {
	var transport http.RoundTripper
	if dir := cfg.HTTPCacheDir(); dir != "" {
		transport = provider.NewCachingTransport(dir, nil)
	}

	var opts []damkit.Option

	chat, err := provider.FromEndpoint(ctx, cfg.ChatEndpoint(), provider.KindChat, transport)
	if err != nil {
		return nil, fmt.Errorf("chat endpoint: %w", err)
	}
	if chat != nil {
		opts = append(opts, damkit.WithChatProvider(chat), damkit.WithCloser(chat))
	}

	vision, err := provider.FromEndpoint(ctx, cfg.VisionEndpoint(), provider.KindChat, transport)
	if err != nil {
		return nil, fmt.Errorf("vision endpoint: %w", err)
	}
	if vision != nil {
		opts = append(opts, damkit.WithVisionProvider(vision), damkit.WithCloser(vision))
	}

	embedder, err := provider.FromEndpoint(ctx, cfg.EmbeddingEndpoint(), provider.KindEmbedding, transport)
	if err != nil {
		return nil, fmt.Errorf("embedding endpoint: %w", err)
	}
	if embedder != nil {
		opts = append(opts, damkit.WithEmbeddingProvider(embedder), damkit.WithCloser(embedder))
	}

	return opts, nil
}

// newClient creates a client from configuration.
func newClient(ctx context.Context, cfg config.AppConfig, logger *slog.Logger, extra ...damkit.Option) (*damkit.Client, error) {
	if _, err := config.PrepareDataDir(cfg.DataDir()); err != nil {
		return nil, err
	}
	opts, err := clientOptions(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := damkit.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create damkit client: %w", err)
	}
	return client, nil
}
