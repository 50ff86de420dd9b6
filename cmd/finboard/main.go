package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/export/sheets"
	apphttp "finboard/internal/http"
	"finboard/internal/refresh"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	manager := cli.NewCredentialManager(logger, repo, amqpClient)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	source, err := backend.New(backendCfg, logger.Slog())
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []refresh.Option{
		refresh.WithLogger(logger),
		refresh.WithRecorder(repo),
	}
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := sheets.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		opts = append(opts, refresh.WithExporter(exporter))
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	}

	controller := refresh.New(source, manager, manager.Bus(), refresh.Config{
		Interval:        cfg.RefreshInterval,
		ExportOnRefresh: cfg.ExportOnRefresh,
	}, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard: controller,
		Session:   manager,
		History:   repo,
		Logger:    logger,

		TrustedProxies: cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := controller.Deactivate(shutdownCtx); err != nil {
			logger.Warn("Dashboard deactivation error", "error", err)
		}
	})

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeCredentialChanged(ctx, manager.HandleRemote)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Credential change consumption stopped", "error", err)
			}
		}()
	}

	if err := controller.Activate(ctx); err != nil {
		logger.Error("Failed to activate dashboard", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"refresh_interval", controller.Interval())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
