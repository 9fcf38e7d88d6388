package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smart-maintenance/internal/auth"
	"smart-maintenance/internal/config"
)

var tokenFlags struct {
	tenantID string
	role     string
	subject  string
	ttl      time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with AUTH_JWT_SECRET",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		role, ok := auth.NormalizeRole(tokenFlags.role)
		if !ok {
			return fmt.Errorf("unknown role %q", tokenFlags.role)
		}
		tenantID := tokenFlags.tenantID
		if tenantID == "" {
			tenantID = cfg.TenantID
		}
		token, err := auth.IssueJWT([]byte(cfg.JWTSecret), tenantID, role, tokenFlags.subject, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.tenantID, "tenant", "", "tenant id (defaults to TENANT_ID)")
	f.StringVar(&tokenFlags.role, "role", string(auth.RoleOperator), "viewer, operator or admin")
	f.StringVar(&tokenFlags.subject, "subject", "cli", "token subject")
	f.DurationVar(&tokenFlags.ttl, "ttl", 24*time.Hour, "token lifetime")
}
