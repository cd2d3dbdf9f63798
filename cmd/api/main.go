package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/xiaokaoba/shenlun-go-api/internal/config"
	"github.com/xiaokaoba/shenlun-go-api/internal/database"
	"github.com/xiaokaoba/shenlun-go-api/internal/handler"
	"github.com/xiaokaoba/shenlun-go-api/internal/middleware"
	"github.com/xiaokaoba/shenlun-go-api/internal/repository"
	"github.com/xiaokaoba/shenlun-go-api/internal/router"
	"github.com/xiaokaoba/shenlun-go-api/internal/service"
	"github.com/xiaokaoba/shenlun-go-api/pkg/ai"
	cloud "github.com/xiaokaoba/shenlun-go-api/pkg/cloudinary"
	"github.com/xiaokaoba/shenlun-go-api/pkg/grading"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSUrl != "" {
		natsConn, err = nats.Connect(cfg.NATSUrl)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, grading events disabled")
		} else {
			defer natsConn.Close()
		}
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIAPIBase,
		Model:       cfg.OpenAIModel,
		Temperature: float32(cfg.OpenAITemperature),
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create grader: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	statusInfo := service.AIStatusInfo{
		Model:      cfg.OpenAIModel,
		APIBase:    cfg.OpenAIAPIBase,
		Configured: cfg.AIConfigured(),
	}
	resultStore := grading.NewRedisResultStore(redisClient, cfg.ResultStorePrefix, logger)
	essayService := service.NewEssayService(grader, historyRepo, resultStore, validate, natsConn, statusInfo, logger)
	questionService := service.NewQuestionService(questionRepo, uploader, validate, logger)
	historyService := service.NewHistoryService(historyRepo, logger)
	practiceService := service.NewPracticeService(questionRepo, historyService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EssayHandler:    handler.NewEssayHandler(essayService, logger),
		QuestionHandler: handler.NewQuestionHandler(questionService, logger),
		PracticeHandler: handler.NewPracticeHandler(practiceService, logger),
		HistoryHandler:  handler.NewHistoryHandler(historyService, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
