package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/api/middleware"
	"sphincs.io/sphincs/internal/app"
)

type tokenOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		username string
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := e.user()
			if err != nil {
				return err
			}
			if role != middleware.RoleStaff && role != middleware.RoleManager {
				return fmt.Errorf("unknown role %q (want %s or %s)", role, middleware.RoleStaff, middleware.RoleManager)
			}
			cfg, err := e.load()
			if err != nil {
				return err
			}

			jwtCfg := app.JWTConfig(cfg.Security)
			if ttl > 0 {
				jwtCfg.ExpiresIn = ttl
			}
			token, expiresAt, err := middleware.GenerateToken(jwtCfg, userID, username, role)
			if err != nil {
				return err
			}
			if e.opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), tokenOutput{Token: token, ExpiresAt: expiresAt.UTC()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "operator", "Username carried in the token")
	cmd.Flags().StringVar(&role, "role", middleware.RoleStaff, "Role carried in the token: staff or manager")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to security.token_ttl)")
	return cmd
}
