package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sympcheck/internal/config"
	"github.com/crimson-sun/sympcheck/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:   "sympcheck",
		Short: "Rank probable conditions for a set of symptoms",
		Long: "sympcheck trains a random forest on a symptom/disease dataset and ranks\n" +
			"the most probable conditions for a set of symptoms. Results are\n" +
			"informational and not a medical diagnosis.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(trainCmd(&cfg))
	rootCmd.AddCommand(predictCmd(&cfg))
	rootCmd.AddCommand(symptomsCmd(&cfg))
	rootCmd.AddCommand(statusCmd(&cfg))
	rootCmd.AddCommand(runsCmd(&cfg))
	return rootCmd
}
