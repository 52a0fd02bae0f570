package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/internal/log"
	"github.com/helixml/damkit/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var (
		envFile  string
		userID   string
		tenantID string
	)

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

Every tool call runs as the given user in the given tenant. Logs go to
stderr because stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd, envFile, userID, tenantID)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&userID, "user", "mcp", "User ID recorded on created folders and assets")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant whose assets the tools operate on")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runStdio(cmd *cobra.Command, envFile, userID, tenantID string) error {
	p := tenant.NewPrincipal(userID, tenantID)
	if !p.Valid() {
		return errors.New("--user and --tenant must not be empty")
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
		slog.String("tenant_id", tenantID),
	)

	var extra []damkit.Option
	if cfg.SkipProviderValidation() {
		extra = append(extra, damkit.WithSkipProviderValidation())
	}
	client, err := newClient(cmd.Context(), cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close damkit client", slog.Any("error", err))
		}
	}()

	mcpServer, err := mcp.NewServer(client.Tools, version, logger, mcp.WithPrincipal(p))
	if err != nil {
		return err
	}
	return mcpServer.ServeStdio()
}
