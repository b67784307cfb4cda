package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/observer-server/internal/repository/postgres"
	"github.com/dtroode/observer-server/internal/service"
)

func cleanupTokensCmd() *cobra.Command {
	var (
		days   int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired refresh families and verification tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			ctx := cmd.Context()

			cfg, logger := loadConfig()
			topo, err := openTopology(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer topo.stores.Close()

			identity := topo.identity()
			cleanup := service.NewCleanup(
				postgres.NewRefreshFamilyRepository(identity),
				postgres.NewRegistrationRepository(identity),
				logger,
			)

			report, err := cleanup.Run(ctx, time.Duration(days)*24*time.Hour, dryRun)
			if err != nil {
				return err
			}

			verb := "Deleted"
			if report.DryRun {
				verb = "Would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d refresh families and %d verification tokens older than %d days\n",
				verb, report.RefreshFamilies, report.VerificationTokens, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", int(service.DefaultCleanupAge/(24*time.Hour)), "Only remove state that expired more than this many days ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count matching rows without deleting them")
	return cmd
}
