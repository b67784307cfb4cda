package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to every store",
		Long: `Apply schema migrations to every store.

Each module is applied only to the store the router places it in. A module
that is not routed is only ever applied to the default store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger := loadConfig()
			topo, err := openTopology(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer topo.stores.Close()

			return topo.migrate(ctx, logger)
		},
	}
}
