package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/websubhub/internal/httpapi"
)

func newTokenCommand() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an admin token",
		Long: `Generate an admin JWT signed with the hub's auth secret. The token is created
locally; the hub is not contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("secret is required (--secret or WEBSUBHUB_AUTH_SECRET)")
			}

			signed, expiresAt, err := httpapi.NewJWTAuth(secret).GenerateToken(subject, true, ttl)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			fmt.Fprintf(cmd.ErrOrStderr(), "Token for %s expires at %s\n", subject, expiresAt.Format(timeFormat))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("WEBSUBHUB_AUTH_SECRET"), "Auth secret configured on the hub")
	cmd.Flags().StringVar(&subject, "subject", "admin", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
