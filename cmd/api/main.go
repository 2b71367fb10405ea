// @title Quiz Sense API
// @version 1.0
// @description Short-answer quizzes scored by semantic similarity between the answer and a reference answer.
// @host localhost:8090
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type 'Bearer SESSION_TOKEN' with the token returned by /quiz/start.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "quiz-sense/cmd/api/docs"
	"quiz-sense/internal/adapter"
	"quiz-sense/internal/adapter/embedding"
	"quiz-sense/internal/cache"
	"quiz-sense/internal/config"
	"quiz-sense/internal/database"
	"quiz-sense/internal/domain"
	"quiz-sense/internal/handler"
	"quiz-sense/internal/logger"
	"quiz-sense/internal/middleware"
	"quiz-sense/internal/repository"
	"quiz-sense/internal/service"
	"quiz-sense/internal/telemetry"
	"quiz-sense/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.Telemetry, cfg.Logger.Env)
	if err != nil {
		appLogger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	provider, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to create embedding provider", zap.Error(err))
	}
	appLogger.Info("Embedding provider initialized", zap.String("source", cfg.Embedding.Source))

	db, err := database.Open(cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	tokens, err := service.NewSessionTokenService(cfg.Session.TokenSecret, cfg.Session.TokenTTL)
	if err != nil {
		appLogger.Fatal("Failed to create session token service", zap.Error(err))
	}

	registry := domain.NewModelRegistry(cfg.EmbeddingModels(), cfg.Embedding.DefaultModel)
	questionRepository := repository.NewQuestionDatabaseAdapter(db)
	evaluator := service.NewAnswerEvaluator(provider, registry, cfg.Embedding.Timeout)
	sessionStore := service.NewCacheSessionStore(cacheAdapter, cfg.Quiz.SessionTTL)
	quizService := service.NewQuizService(questionRepository, evaluator, sessionStore, tokens, registry, cfg.Quiz)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization," + middleware.SessionHeader,
		MaxAge:       300,
	}))
	app.Use(recover.New())

	app.Get("/swagger/*", swagger.HandlerDefault)

	handler.RegisterRoutes(app,
		handler.NewQuizHandler(quizService),
		handler.NewHealthHandler(cacheAdapter),
		tokens,
		middleware.NewValidationMiddleware(validation.NewValidator(cfg.Quiz.MaxCount)),
	)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		appLogger.Warn("Failed to flush traces", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
