package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwatch/driftwatch/internal/alerting"
	"github.com/driftwatch/driftwatch/internal/api"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/db"
	"github.com/driftwatch/driftwatch/internal/driftrun"
	"github.com/driftwatch/driftwatch/internal/export"
	"github.com/driftwatch/driftwatch/internal/ingestion"
	"github.com/driftwatch/driftwatch/internal/middleware"
	"github.com/driftwatch/driftwatch/internal/repository"
	"github.com/driftwatch/driftwatch/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Create repositories
	projectRepo := repository.NewProjectRepository(conn.Pool)
	thresholdRepo := repository.NewThresholdConfigRepository(conn.Pool)
	datasetRepo := repository.NewDatasetRepository(conn.Pool)
	runRepo := repository.NewDriftRunRepository(conn)
	alertRepo := repository.NewAlertRepository(conn.Pool)
	logRepo := repository.NewIngestionLogRepository(conn.Pool)

	// Create services
	runService := driftrun.NewService(
		runRepo,
		datasetRepo,
		projectRepo,
		thresholdRepo,
		alertRepo,
		zapLogger,
		driftrun.WithBinCount(cfg.Drift.BinCount),
		driftrun.WithDefaultThresholds(cfg.Drift.DefaultDSIThreshold, cfg.Drift.DefaultDriftRatioThreshold),
		driftrun.WithNotifier(alerting.NewLogNotifier(zapLogger)),
	)
	ingestionService := ingestion.NewService(datasetRepo, projectRepo, logRepo, zapLogger)
	exportService := export.NewService(runRepo, projectRepo, zapLogger)

	// Background run processor
	registry := prometheus.DefaultRegisterer
	runner := driftrun.NewRunner(runService, runRepo, zapLogger, cfg.Runner.Interval, cfg.Runner.BatchSize, cfg.Runner.StaleTimeout, registry)
	runner.Start(ctx)

	// HTTP surface
	apiServer := api.NewServer(
		projectRepo,
		thresholdRepo,
		datasetRepo,
		alertRepo,
		logRepo,
		runService,
		ingestion.NewHTTPHandler(ingestionService),
		export.NewHTTPHandler(exportService),
		zapLogger,
	)

	mux := http.NewServeMux()
	apiServer.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	httpMetrics := middleware.NewHTTPMetrics(registry)
	handler := corsHandler.Handler(
		middleware.Logging(zapLogger)(
			middleware.APIKey(cfg.Auth.RequireAPIKey, cfg.Auth.APIKeys)(
				httpMetrics.Wrap(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("Starting drift monitoring server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server")

	runner.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
