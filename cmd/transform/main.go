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
	"sluice/internal/pipeline"
)

var (
	args         pipeline.Args
	configPath   string
	pipelinePath string
)

var rootCmd = &cobra.Command{
	Use:           "transform",
	Short:         "Normalize a delimited file and write it to object storage and BigQuery",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&args.Input, "path_input", "", "input file or prefix (gs://bucket/key or local path)")
	f.StringVar(&args.Output, "path_output", "", "output prefix (gs://bucket/prefix/ or local directory)")
	f.StringVar(&args.Format, "formato", "", "output format: parquet, csv or json")
	f.StringVar(&args.Table, "table_bq", "", "destination table, dataset.table")
	f.StringVar(&configPath, "config", "sluice.yml", "runtime config file")
	f.StringVar(&pipelinePath, "pipeline", "", "pipeline file (default: built-in pipeline)")
	for _, name := range []string{"path_input", "path_output", "formato", "table_bq"} {
		_ = rootCmd.MarkFlagRequired(name)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	file, err := config.LoadPipelineSpec(pipelinePath)
	if err != nil {
		return err
	}

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(context.WithoutCancel(ctx), "sluice_transform"); err != nil {
			logging.L().Warn("close clients", "err", err)
		}
	}()

	rep, err := e.Transform(ctx, file, args)
	if err != nil {
		return err
	}
	logging.L().Info("run finished",
		"run", rep.RunID,
		"rows_read", rep.RowsRead,
		"rows_out", rep.RowsOut,
		"nulled", rep.Nulled.Total(),
		"ok", rep.OK())
	return rep.Err()
}

func main() {
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.L().Error("transform failed", "err", err)
		stop()
		os.Exit(1)
	}
}
