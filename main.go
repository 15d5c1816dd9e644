package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"plant-telemetry-pipeline/internal/config"
	"plant-telemetry-pipeline/internal/database"
	"plant-telemetry-pipeline/internal/export"
	"plant-telemetry-pipeline/internal/metrics"
	"plant-telemetry-pipeline/internal/middleware"
	"plant-telemetry-pipeline/internal/pipeline"
	"plant-telemetry-pipeline/internal/plantapi"
)

const release = "plant-telemetry-pipeline@dev"

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "plant-telemetry-pipeline",
		Short:        "Collect plant telemetry, load it into a relational store and export daily summaries",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the scheduler with health and metrics endpoints",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer()
			},
		},
		&cobra.Command{
			Use:   "etl",
			Short: "Extract, transform and load once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context(), false)
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Export daily summaries and apply retention once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context(), true)
			},
		},
		&cobra.Command{
			Use:   "init-db",
			Short: "Create the schema if it does not exist",
			RunE: func(cmd *cobra.Command, args []string) error {
				return initDB()
			},
		},
	)

	return rootCmd
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// setup loads configuration, opens the database and builds the pipeline.
// The caller must call the returned cleanup function.
func setup(logger *slog.Logger, cfg *config.Config, withExport bool) (*database.DB, *pipeline.Pipeline, func(), error) {
	flushSentry, err := pipeline.InitSentry(cfg.SentryDSN, release)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		flushSentry()
		return nil, nil, nil, err
	}
	if err := db.Init(); err != nil {
		db.Close()
		flushSentry()
		return nil, nil, nil, err
	}

	client := plantapi.NewClient(cfg.PlantAPIURL,
		plantapi.WithTimeout(cfg.PlantAPITimeout),
		plantapi.WithRetries(cfg.PlantAPIRetries),
		plantapi.WithRateLimit(cfg.PlantAPIRateLimit),
		plantapi.WithLogger(logger),
	)

	var exporter pipeline.SummaryExporter
	if withExport {
		store, err := export.NewMinioStore(export.MinioConfig{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3BucketName,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			db.Close()
			flushSentry()
			return nil, nil, nil, err
		}
		exporter = export.NewExporter(store, export.DuckDBEncoder{},
			export.WithDatasetPrefix(cfg.S3DatasetPrefix),
			export.WithLogger(logger),
		)
	}

	p := pipeline.New(db, client, exporter, pipeline.Settings{
		BatchSize:              cfg.ExtractBatchSize,
		MaxConsecutiveFailures: cfg.ExtractMaxFailures,
		RetentionWindow:        cfg.RetentionWindow,
	}, pipeline.WithLogger(logger))

	cleanup := func() {
		db.Close()
		flushSentry()
	}
	return db, p, cleanup, nil
}

func runOnce(ctx context.Context, exportRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if exportRun {
		if err := cfg.ValidateExport(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	_, p, cleanup, err := setup(logger, cfg, exportRun)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exportRun {
		report, err := p.RunExport(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d summaries from %d readings, deleted %d readings\n",
			report.Summaries, report.Readings, report.Deleted)
		return nil
	}

	report, err := p.RunETL(ctx)
	if err != nil {
		return err
	}
	if report.Load == nil {
		fmt.Printf("Probed %d plant IDs, nothing to load\n", report.Probed)
		return nil
	}
	fmt.Printf("Probed %d plant IDs: %d found, %d anomalies; loaded %d new and %d updated plants, %d readings\n",
		report.Probed, report.Found, report.Anomalies,
		report.Load.PlantsInserted, report.Load.PlantsUpdated, report.Load.Readings)
	return nil
}

func initDB() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		return err
	}
	fmt.Printf("Schema ready (%s)\n", db.Dialect())
	return nil
}

func runServer() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Exports run only when the object store is configured
	exportEnabled := cfg.ValidateExport() == nil
	if !exportEnabled {
		logger.Warn("Object store not configured, scheduled exports disabled")
	}

	logger.Info("Starting plant-telemetry-pipeline",
		"database_driver", cfg.DatabaseDriver,
		"plant_api", cfg.PlantAPIURL,
		"etl_interval", cfg.ETLInterval,
		"export_interval", cfg.ExportInterval,
		"export_enabled", exportEnabled,
		"log_level", cfg.LogLevel)

	db, p, cleanup, err := setup(logger, cfg, exportEnabled)
	if err != nil {
		logger.Error("Failed to initialise pipeline", "error", err)
		return err
	}
	defer cleanup()

	logger.Info("Database opened successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exportInterval := cfg.ExportInterval
	if !exportEnabled {
		exportInterval = 0
	}
	scheduler := pipeline.NewScheduler(p, cfg.ETLInterval, exportInterval, pipeline.WithSchedulerLogger(logger))

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("Scheduler failed", "error", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		go func() {
			logger.Info("Starting table row collector")
			metrics.StartTableRowCollector(ctx, db, 15*time.Second)
		}()

		mux := http.NewServeMux()
		mux.Handle("/metrics", middleware.Instrument(metrics.EndpointMetrics, promhttp.Handler()))
		mux.Handle("/health", middleware.InstrumentFunc(metrics.EndpointHealth, middleware.HealthHandler(db, 2*time.Second)))

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	// Stop scheduler; a run in progress sees the cancelled context
	cancel()
	<-schedulerDone

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
	return nil
}
