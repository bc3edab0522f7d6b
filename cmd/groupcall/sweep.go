package main

import (
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// sweep runs one pass and exits, for cron-style deployments.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry sweep pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		// Inline so report generation finishes before the process exits.
		injector := setupDI(cfg, log, services.Inline)
		defer closeResources(injector, cfg, log)

		sweeper, err := do.Invoke[*services.ExpirySweeper](injector)
		if err != nil {
			return err
		}

		result, err := sweeper.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().
			Int("candidates", result.Candidates).
			Int("deleted", result.Deleted).
			Int("completed", result.Completed).
			Int("failed", result.Failed).
			Msg("sweep finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
