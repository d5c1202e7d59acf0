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
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/config"
	"github.com/arka-labs/sentra-go-api/internal/database"
	"github.com/arka-labs/sentra-go-api/internal/grading"
	"github.com/arka-labs/sentra-go-api/internal/handler"
	"github.com/arka-labs/sentra-go-api/internal/ledger"
	"github.com/arka-labs/sentra-go-api/internal/middleware"
	"github.com/arka-labs/sentra-go-api/internal/proctor"
	"github.com/arka-labs/sentra-go-api/internal/repository"
	"github.com/arka-labs/sentra-go-api/internal/router"
	"github.com/arka-labs/sentra-go-api/internal/service"
	"github.com/arka-labs/sentra-go-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	aiClient, err := buildAIClient(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create ai client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	catalog := repository.NewProblemCatalog(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger)
	solved := ledger.New(redisClient, cfg.LedgerKeyPrefix, cfg.PassThreshold, logger)
	verdicts := ledger.NewVerdictStore(redisClient, cfg.VerdictKeyPrefix, cfg.VerdictTTL, logger)
	prompts := grading.NewPromptBuilder(cfg.DescriptionLimit)

	problemService := service.NewProblemService(catalog, solved, validate, logger)
	submissionService := service.NewSubmissionService(catalog, solved, verdicts, aiClient, prompts, validate, logger, service.SubmissionConfig{
		PassThreshold:  cfg.PassThreshold,
		GradingTimeout: cfg.GradingTimeout,
	})
	proctorService := service.NewProctorService(proctor.Config{
		MaxTier:      cfg.MaxViolations,
		ReentryDelay: cfg.ReentryDelay,
		DedupeWindow: cfg.DedupeWindow,
		Enabled:      true,
	}, validate, logger)

	problemHandler := handler.NewProblemHandler(problemService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, validate, logger)
	proctorHandler := handler.NewProctorHandler(proctorService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ProblemHandler:    problemHandler,
		SubmissionHandler: submissionHandler,
		ProctorHandler:    proctorHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildAIClient(cfg config.Config, logger zerolog.Logger) (ai.Client, error) {
	switch cfg.AIProvider {
	case "anthropic":
		client, err := ai.NewAnthropicClient(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
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
