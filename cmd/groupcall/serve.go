package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, realtime relay, feedback worker and expiry sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		autoMigrate, _ := cmd.Flags().GetBool("migrate")

		injector := setupDI(cfg, log, services.Go)
		defer closeResources(injector, cfg, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.DatabaseURL != "" && autoMigrate {
			db, err := do.Invoke[*sql.DB](injector)
			if err != nil {
				return err
			}
			if err := repositories.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		} else if cfg.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		}

		router, err := do.Invoke[*gin.Engine](injector)
		if err != nil {
			return err
		}
		worker, err := do.Invoke[*services.FeedbackWorker](injector)
		if err != nil {
			return err
		}
		sweeper, err := do.Invoke[*services.ExpirySweeper](injector)
		if err != nil {
			return err
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := worker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("feedback worker stopped")
			}
		}()
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			stop()
			wg.Wait()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			log.Info().Msg("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Dur("timeout", shutdownTimeout).Msg("graceful shutdown did not complete")
			_ = srv.Close()
		}
		wg.Wait()
		log.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", true, "Apply database migrations before serving")
}
