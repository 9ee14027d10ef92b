package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/cli"
	applog "spendwise/internal/log"
	"spendwise/internal/sheets"
	gsheet "spendwise/internal/sheets/google"
	"spendwise/internal/sheets/memory"
	"spendwise/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger := cli.SetupLogger("info", os.Stdout)
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(applog.ComponentWorker)
	logger.Info("Starting spendwise-worker", applog.FieldOperation, applog.OpStartup)

	app, err := cli.NewApp(context.Background(), cfg, logger, cli.AppOptions{})
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	var exporter sheets.NudgeExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			NudgesSheet:     cfg.GoogleNudgesSheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleNudgesSheet)
		exporter = client
	} else {
		logger.Info("Google Sheets disabled - keeping nudge exports in memory")
		exporter = memory.New()
	}

	nudgeWorker := worker.NewNudgeWorker(app.Nudges, exporter)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Warn("AMQP_URL not set - relying on periodic refresh only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on anything ingested while the worker was down.
	if err := nudgeWorker.Refresh(ctx); err != nil {
		logger.Error("Startup nudge refresh failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeTransactionsIngested(gctx, nudgeWorker.HandleIngested)
		})
	}
	g.Go(func() error {
		nudgeWorker.RunPeriodic(gctx, cfg.NudgeRefreshInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
