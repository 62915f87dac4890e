package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"streamloader/internal/app"
	"streamloader/internal/config"
)

func main() {
	logger, _ := zap.NewProduction(zap.AddStacktrace(zap.FatalLevel))
	defer logger.Sync()
	sugar := logger.Sugar()

	rootCmd := &cobra.Command{
		Use:   "streamloader <nodes> <bursts-per-min> <observation-types>",
		Short: "Stream synthetic sensor observations into an ingestion stream",
		Long: `streamloader generates simulated sensor observations for nodes 1..nodes-1
and submits them in paced batches to Kinesis, Kafka or Postgres, retrying
rejected records with exponential backoff.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ParseRunArgs(args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return app.StartProducerApp(context.Background(), cfg, sugar)
		},
	}

	if err := rootCmd.Execute(); err != nil {
		sugar.Errorw("producer exited", "error", err)
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
