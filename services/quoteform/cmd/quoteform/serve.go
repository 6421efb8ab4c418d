package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/southernunderground/quoteform/libs/components/quoteform"
	"github.com/southernunderground/quoteform/libs/shared/mq"
	"github.com/southernunderground/quoteform/services/quoteform/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Runs the form session API on HTTP_PORT. With SUBMIT_SENDER=queue and
RUN_WORKER_IN_SERVER=true the queue worker runs in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := server.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("closing backend", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(server.Options{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Sender:      backend.Sender,
		Coordinator: backend.Coordinator,
	})
	if err != nil {
		return err
	}

	var worker *quoteform.QueueWorker
	var consumer *mq.Consumer
	if cfg.RunWorkerInServer && backend.Store != nil {
		worker, consumer, err = server.NewWorkerConsumer(cfg, backend.Store, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.HTTP.Start(cfg.ListenAddr())
	})
	g.Go(func() error {
		return srv.Sessions.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.HTTP.Shutdown(context.WithoutCancel(gctx))
	})
	if consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(worker.RunConsumer(gctx, consumer))
		})
	}

	return ignoreCanceled(g.Wait())
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
