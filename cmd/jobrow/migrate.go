package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx, g.driver, g.dsn, g.mongoDatabase, g.logger)
			if err != nil {
				return err
			}
			defer b.Close(ctx) //nolint:errcheck

			if err := b.store.Migrate(ctx); err != nil {
				return err
			}
			g.logger.Info("schema up to date", "driver", g.driver)
			return nil
		},
	}
}
