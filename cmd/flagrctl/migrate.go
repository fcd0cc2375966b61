package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rrens/flagr/internal/repository/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the postgres storage schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			dsn := cfg.Storage.Postgres.DSN()
			if args[0] == "down" {
				if err := postgres.RollbackMigrations(dsn); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			}

			if err := postgres.RunMigrations(dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
