package main

import (
	"fmt"
	"os"

	"github.com/preetsinghmakkar/groupcall/internal/config"
	"github.com/preetsinghmakkar/groupcall/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "groupcall",
	Short: "Live group-discussion session coordinator",
	Long: `groupcall runs the session admission API, the realtime relay, the transcript
feedback worker and the expiry sweeper.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.IsDevelopment()), nil
}
