package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/smartlink-preview/internal/auth"
	"github.com/JakeFAU/smartlink-preview/internal/id/uuid"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for the owner endpoints (local testing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if e.cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is required to issue tokens")
			}
			if !uuid.IsUUID(args[0]) {
				return fmt.Errorf("user id %q is not a UUID", args[0])
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be > 0")
			}
			verifier, err := auth.NewVerifier(e.cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			token, err := verifier.Sign(args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
