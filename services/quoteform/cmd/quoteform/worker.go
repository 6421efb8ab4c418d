package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/southernunderground/quoteform/libs/shared/database"
	"github.com/southernunderground/quoteform/services/quoteform/internal/server"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued quote submissions",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := server.OpenSubmissionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	worker, consumer, err := server.NewWorkerConsumer(cfg, store, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info("worker consuming",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.ConsumerGroup()),
	)
	if err := ignoreCanceled(worker.RunConsumer(ctx, consumer)); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
