package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixml/damkit"
	"github.com/helixml/damkit/internal/log"
)

func backfillCmd() *cobra.Command {
	var (
		envFile  string
		tenantID string
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Caption and embed every image of a tenant that has no embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(tenantID) == "" {
				return errors.New("--tenant is required")
			}

			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := log.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.LogFormat(), cfg.LogLevel())
			client, err := newClient(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Embeddings.Backfill(ctx, tenantID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (total %d, processed %d, failed %d)\n",
				result.Message, result.Total, result.Processed, result.Failed)
			return err
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant whose images are embedded")

	return cmd
}

// skipValidation lets commands that never process tasks start without
// vision or embedding models.
func skipValidation() damkit.Option {
	return damkit.WithSkipProviderValidation()
}
