package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/config"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/database"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/repository"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/telemetry"
	"github.com/accesswatch/accesswatch-backend/internal/service/ingest"
)

// loader bulk-imports a historical sign-in CSV export into the event
// store, typically to seed behavior profiles before live ingestion.
func main() {
	var (
		path       = flag.String("file", "", "Path to the CSV export")
		simulation = flag.Bool("simulation", true, "Flag loaded events as simulation data")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("-file is required")
	}

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

	pool, err := database.NewConnectionPool(&cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	eventRepo := repository.NewEventRepository(pool.Pool())

	var pseudo *ingest.Pseudonymizer
	if cfg.Ingest.PseudonymizeUsers {
		mappings := repository.NewNameMappingRepository(pool.Pool())
		pseudo, err = ingest.NewPseudonymizer(cfg.Ingest.PseudonymizerSecret, mappings)
		if err != nil {
			log.Fatalf("Failed to create pseudonymizer: %v", err)
		}
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer f.Close()

	loader := ingest.NewCSVLoader(eventRepo, pseudo, nil, *simulation, logger)
	result, err := loader.Load(context.Background(), f)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	logger.Info("load finished",
		"file", *path,
		"loaded", result.Loaded,
		"rejected", result.Rejected)
}
