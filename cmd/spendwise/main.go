package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendwise/internal/buildinfo"
	"spendwise/internal/cli"
	apphttp "spendwise/internal/http"
	applog "spendwise/internal/log"
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
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)

	app, err := cli.NewApp(context.Background(), cfg, logger, cli.AppOptions{Publish: true})
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UploadsPerMinute:   cfg.UploadsPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	}, app.Ingest, app.Insights, app.Nudges, app.Store)

	// Uploads stream through the handler, so the write deadline has to
	// cover the whole request timeout.
	srv.ReadTimeout = cfg.RequestTimeout + 5*time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		stats := srv.Stats()
		logger.Info("HTTP server stopped", "total_requests", stats.TotalRequests, "in_flight", stats.InFlight)
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	})

	logger.Info("Starting spendwise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"version", buildinfo.Version,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
