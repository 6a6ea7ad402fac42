package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vicmordi/AIHelpdesk/internal/auth"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

var (
	tokenUser string
	tokenOrg  string
	tokenRole string
	tokenName string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "organization id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleEmployee), "employee, support_admin or super_admin")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("org")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Sign a token with AUTH_JWT_SECRET the way the identity service does.

Examples:
  helpdeskctl token --user u-1 --org o-1 --role super_admin --name "Rita"`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	role := domain.Role(tokenRole)
	switch role {
	case domain.RoleEmployee, domain.RoleSupportAdmin, domain.RoleSuperAdmin:
	default:
		return apperrors.NewValidationError("unknown role", map[string]any{"role": tokenRole})
	}
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tm.Issue(domain.Actor{
		UserID:         tokenUser,
		OrganizationID: tokenOrg,
		Name:           tokenName,
		Role:           role,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]string{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
	})
}
