package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/infrastructure/api"
	apimiddleware "github.com/helixml/damkit/infrastructure/api/middleware"
	"github.com/helixml/damkit/internal/config"
	"github.com/helixml/damkit/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.damkit)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/damkit.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  JWT_SECRET                   Secret that signs and verifies bearer tokens
  JWT_ISSUER                   Required "iss" claim, if set
  API_KEYS                     Comma-separated static keys (sent with X-Tenant-ID)
  CORS_ALLOWED_ORIGINS         Comma-separated browser origins (default: *)

  CHAT_ENDPOINT_*              Tool-calling chat model
    PROVIDER                   openai or gemini (default: openai)
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 0, fail immediately)
  VISION_ENDPOINT_*            Captioning model (default: the chat endpoint)
  EMBEDDING_ENDPOINT_*         Embedding model
  GOOGLE_API_KEY               Key for gemini endpoints without their own

  STORAGE_BACKEND              local, minio or s3 (default: local)
  STORAGE_BUCKET               Bucket name (default: assets)
  STORAGE_PUBLIC_URL           Public base URL for local signed links
  STORAGE_MAX_UPLOAD_BYTES     Largest accepted file (default: 52428800)

  REDIS_URL                    Keep chat sessions in Redis
  PERIODIC_BACKFILL_ENABLED    Embed missing images periodically (default: false)
  SKIP_PROVIDER_VALIDATION     Start without vision or embedding models`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(ctx context.Context, envFile, host string, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.Configure(cfg)
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting damkit", attrs...)

	var extra []damkit.Option
	if cfg.SkipProviderValidation() {
		extra = append(extra, damkit.WithSkipProviderValidation())
	}
	client, err := newClient(ctx, cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close damkit client", slog.Any("error", err))
		}
	}()

	auth, err := newAuthenticator(cfg, client)
	if err != nil {
		return err
	}

	apiServer := api.NewAPIServer(client, auth).
		WithVersion(version).
		WithCORSOrigins(cfg.CORSOrigins())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newAuthenticator builds the request authenticator. Tokens without a
// tenant claim are resolved through registered profiles.
func newAuthenticator(cfg config.AppConfig, client *damkit.Client) (*apimiddleware.Authenticator, error) {
	authCfg := cfg.Auth()
	return apimiddleware.NewAuthenticator(
		apimiddleware.NewAuthConfig(authCfg.JWTSecret(), authCfg.Issuer(), authCfg.TokenTTL(), cfg.APIKeys()),
		client.Profiles,
	)
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
