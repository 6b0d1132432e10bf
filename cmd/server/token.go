package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "podium/internal/jwt_token"
	"podium/internal/platform/middleware"
	id "podium/pkg/domain"
)

// tokenCommand mints a moderator bearer token. The API has no login flow.
func tokenCommand() *cobra.Command {
	var (
		adminID string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := commonRun()
			if err != nil {
				return err
			}
			admin := id.NewAdminID()
			if adminID != "" {
				if admin, err = id.ParseAdminID(adminID); err != nil {
					return err
				}
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateAccessToken(admin, middleware.RoleAdmin, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminID, "admin-id", "", "moderator id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTTL)")
	return cmd
}
