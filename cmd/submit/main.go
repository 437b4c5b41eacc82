package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sluice/internal/config"
	"sluice/internal/engine"
	"sluice/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "submit",
	Short:         "Submit the Spark job to Dataproc and print its driver output",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		e, err := engine.Bootstrap(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.Close(context.WithoutCancel(cmd.Context()), "sluice_submit"); err != nil {
				logging.L().Warn("close clients", "err", err)
			}
		}()
		_, err = e.Submit(cmd.Context(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "sluice.yml", "runtime config file")
}

func main() {
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.L().Error("submit failed", "err", err)
		stop()
		os.Exit(1)
	}
}
