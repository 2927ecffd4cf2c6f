package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/accesswatch/accesswatch-backend/internal/api/rest"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/cache"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/config"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/database"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/repository"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/telemetry"
	"github.com/accesswatch/accesswatch-backend/internal/metrics"
	"github.com/accesswatch/accesswatch-backend/internal/service/analysis"
	"github.com/accesswatch/accesswatch-backend/internal/service/detection"
	"github.com/accesswatch/accesswatch-backend/internal/service/ingest"
	"github.com/accesswatch/accesswatch-backend/internal/service/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to set up zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "accesswatch-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.TracingEnabled || cfg.Telemetry.MetricsEnabled,
		SamplingRate:   1.0,
		ExportTimeout:  30 * time.Second,
		BatchTimeout:   5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down telemetry", "error", err)
		}
	}()

	registry, err := metrics.NewRegistry("accesswatch-backend")
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	pool, err := database.NewConnectionPool(&cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	eventRepo := repository.NewEventRepository(pool.Pool())
	alertRepo := repository.NewAlertRepository(pool.Pool())
	actionRepo := repository.NewActionRepository(pool.Pool())
	profileRepo := repository.NewProfileRepository(pool.Pool())
	mappingRepo := repository.NewNameMappingRepository(pool.Pool())

	// Failed-attempt counts go through Redis when it is configured.
	var counter detection.FailedAttemptCounter = eventRepo
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewClient(&cfg.Redis, zapLogger)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		counter = cache.NewAttemptCounter(redisClient, eventRepo, zapLogger)
	}

	detectionCfg := cfg.Detection.ToDetection()
	signals := detection.NewDefaultSignals(detectionCfg, counter)
	engine := detection.NewEngine(profileRepo, signals, detectionCfg, logger)

	analysisSvc := analysis.NewService(eventRepo, alertRepo, engine, cfg.Detection.BatchSize, registry, logger)
	go analysisSvc.Run(ctx, cfg.Detection.SweepInterval, cfg.Detection.Simulation)

	if cfg.Response.Enabled {
		executors := response.NewDefaultExecutors(nil, logger)
		orchestrator := response.NewOrchestrator(alertRepo, actionRepo, executors, registry, logger)
		go orchestrator.Run(ctx, cfg.Response.SweepInterval, cfg.Detection.Simulation)
	}

	if cfg.Kafka.Enabled {
		var pseudo *ingest.Pseudonymizer
		if cfg.Ingest.PseudonymizeUsers {
			pseudo, err = ingest.NewPseudonymizer(cfg.Ingest.PseudonymizerSecret, mappingRepo)
			if err != nil {
				log.Fatalf("Failed to create pseudonymizer: %v", err)
			}
		}
		consumer := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			GroupID:       cfg.Kafka.GroupID,
			RatePerSecond: cfg.Ingest.RatePerSecond,
		}, eventRepo, pseudo, registry, logger)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("ingest consumer stopped", "error", err)
			}
		}()
	}

	handler := rest.NewHandler(analysisSvc, alertRepo, actionRepo, mappingRepo, logger)
	server := rest.NewServer(&cfg.Server, handler, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", "error", err)
	}
}
