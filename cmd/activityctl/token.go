package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/activities/internal/auth"
	authlib "example.com/activities/pkg/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		scopes []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := authlib.Sign(authlib.Config{Secret: c.cfg.JWTSecret, Issuer: c.cfg.JWTIssuer}, args[0], scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite}, "Scopes to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
