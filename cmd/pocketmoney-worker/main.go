package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pocketmoney/internal/cli"
	"pocketmoney/internal/events"
	gsheet "pocketmoney/internal/sheets/google"
	"pocketmoney/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting pocketmoney-worker")

	if !cfg.MirrorEnabled() {
		logger.Info("Sheet mirroring disabled - no GOOGLE_SPREADSHEET_ID provided, nothing to do")
		return
	}

	store := cli.OpenBackend(logger, cfg)
	defer store.Close()

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	mirror := worker.NewMirrorWorker(store, sheetsClient, cfg.MirrorBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Drain anything left over from a previous run before consuming events.
	if n, err := mirror.ProcessPending(ctx); err != nil {
		logger.Error("Startup mirror pass failed", "error", err)
	} else if n > 0 {
		logger.Info("Startup mirror pass complete", "mirrored", n)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mirror.Run(ctx, cfg.MirrorInterval)
	})

	// AMQP events wake the worker between polls; optional.
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			return client.Consume(ctx, mirror.HandleEvent)
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic polling only")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
