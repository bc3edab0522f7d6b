package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for migrate")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
		defer cancel()

		db, err := repositories.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repositories.Migrate(context.Background(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
