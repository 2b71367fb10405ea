package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quiz-sense/cmd/seed/internal/seedmodels"
	"quiz-sense/internal/adapter/embedding"
	"quiz-sense/internal/config"
	"quiz-sense/internal/database"
	"quiz-sense/internal/domain"
	"quiz-sense/internal/logger"
	"quiz-sense/internal/repository"
	"quiz-sense/internal/service"

	"go.uber.org/zap"
)

func main() {
	seedFile := flag.String("file", "config/seed/questions.yaml", "path to the YAML question bank")
	skipBackfill := flag.Bool("skip-backfill", false, "import questions without generating reference embeddings")
	migrate := flag.Bool("migrate", true, "apply pending migrations before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger is not initialized yet
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting question seeding", zap.String("file", *seedFile))
	file, err := seedmodels.Load(*seedFile)
	if err != nil {
		log.Fatal("Failed to load seed file", zap.Error(err))
	}
	questions, err := file.Questions()
	if err != nil {
		log.Fatal("Seed file contains invalid questions", zap.Error(err))
	}

	db, err := database.Open(cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if *migrate {
		if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	provider, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		log.Fatal("Failed to create embedding provider", zap.Error(err))
	}

	repo := repository.NewQuestionDatabaseAdapter(db)
	registry := domain.NewModelRegistry(cfg.EmbeddingModels(), cfg.Embedding.DefaultModel)
	backfill := service.NewBackfillService(repo, provider, registry, cfg.Embedding.BackfillConcurrency, cfg.Embedding.Timeout, log)

	imported, err := backfill.ImportQuestions(ctx, questions)
	if err != nil {
		log.Fatal("Failed to import questions", zap.Error(err))
	}
	log.Info("Questions imported",
		zap.Int("imported", imported.Imported),
		zap.Int("invalid", imported.Invalid))

	if *skipBackfill {
		return
	}

	report, err := backfill.BackfillEmbeddings(ctx)
	if err != nil {
		log.Fatal("Failed to backfill embeddings", zap.Error(err))
	}
	log.Info("Seeding completed",
		zap.Int("questions", report.Questions),
		zap.Int("generated", report.Generated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}
