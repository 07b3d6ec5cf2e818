// Command activityctl is the operator CLI for the activities service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/activities/internal/config"
	"example.com/activities/internal/logger"
)

type cli struct {
	envFile string
	cfg     config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "activityctl",
		Short:         "Operate the activities service",
		Long:          `Apply migrations, provision users, mint tokens and try out proximity ranking against the configured geocoder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(c.envFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Optional env file read before the environment")

	root.AddCommand(
		newMigrateCmd(c),
		newRankCmd(c),
		newUserCmd(c),
		newTokenCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
