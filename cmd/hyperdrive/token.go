package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/hyperdrive/internal/access"
)

var (
	tokenOrg  string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <actor_id>",
	Short: "Issue a bearer token for an actor",
	Long: `Issue an HS256 bearer token signed with api.auth.jwt_secret. The token
carries the actor's organization and role.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "Organization ID")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(access.RoleViewer), "Actor role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (0 = api.auth.token_ttl)")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HasJWT() {
		return fmt.Errorf("api.auth.jwt_secret is not configured")
	}

	role, err := access.ParseRole(tokenRole)
	if err != nil {
		return err
	}
	if tokenOrg == "" && !(access.Actor{Role: role}).CrossOrg() && role != access.RoleShopper {
		return fmt.Errorf("--org is required for role %s", role)
	}

	verifier, err := access.NewTokenVerifier(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.Leeway)
	if err != nil {
		return err
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.API.Auth.TokenTTL
	}

	token, err := verifier.Sign(access.Actor{ID: args[0], OrganizationID: tokenOrg, Role: role}, ttl, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
