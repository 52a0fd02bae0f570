package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixml/damkit/internal/log"
)

func tokenCmd() *cobra.Command {
	var (
		envFile  string
		userID   string
		tenantID string
		email    string
		fullName string
		register bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		Long: `Issue a JWT signed with JWT_SECRET for a user.

With --register the user's profile is stored so that tokens without a
tenant claim still resolve to the tenant. Otherwise the tenant is embedded
in the token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" || strings.TrimSpace(tenantID) == "" {
				return errors.New("--user and --tenant are required")
			}

			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			if !cfg.Auth().IsConfigured() {
				return errors.New("JWT_SECRET is not set")
			}

			ctx := cmd.Context()
			logger := log.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.LogFormat(), "WARN")
			client, err := newClient(ctx, cfg, logger, skipValidation())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			auth, err := newAuthenticator(cfg, client)
			if err != nil {
				return err
			}

			claimTenant := tenantID
			if register {
				if _, err := client.Profiles.Register(ctx, userID, tenantID, email, fullName); err != nil {
					return fmt.Errorf("register profile: %w", err)
				}
				claimTenant = ""
			}

			token, err := auth.Issue(userID, claimTenant)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&userID, "user", "", "User ID (token subject)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&email, "email", "", "Email stored on the profile (with --register)")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name stored on the profile (with --register)")
	cmd.Flags().BoolVar(&register, "register", false, "Store a profile instead of embedding the tenant in the token")

	return cmd
}
