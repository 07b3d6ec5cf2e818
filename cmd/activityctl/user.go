package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/activities/internal/persistence"
)

func newUserCmd(c *cli) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage user profiles mirrored from the identity service",
	}

	add := &cobra.Command{
		Use:   "add <user-id> <username>",
		Short: "Create or rename a user profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := persistence.Open(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer backend.Close(ctx)

			if err := backend.Store.UpsertUser(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("upsert user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved to %s store\n", args[0], args[1], backend.Driver)
			return nil
		},
	}

	user.AddCommand(add)
	return user
}
