package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gradewise/gradewise-backend/internal/cache"
	"github.com/gradewise/gradewise-backend/internal/clock"
	"github.com/gradewise/gradewise-backend/internal/config"
	"github.com/gradewise/gradewise-backend/internal/database"
	"github.com/gradewise/gradewise-backend/internal/handler"
	"github.com/gradewise/gradewise-backend/internal/logger"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/gradewise/gradewise-backend/internal/router"
	"github.com/gradewise/gradewise-backend/internal/service"
	"github.com/gradewise/gradewise-backend/internal/validator"
	"github.com/gradewise/gradewise-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Gradewise Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	clk := clock.NewSystem()

	// Repositories.
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	statsRepo := repository.NewStatisticsRepository(pool)

	// Services.
	progressCache := cache.NewProgressCache(rdb)
	tokenService := service.NewTokenService(cfg)
	gate := service.NewEnrollmentGate(enrollmentRepo, assessmentRepo)
	attemptService := service.NewAttemptService(
		attemptRepo, answerRepo, questionRepo, assessmentRepo, gate,
		progressCache, clk, cfg.SubmitGrace, log,
	)
	statsService := service.NewStatisticsService(statsRepo, attemptRepo, assessmentRepo)
	paperService := service.NewPaperService(questionRepo, gate, progressCache, clk, log)

	// Handlers.
	handlers := &router.Handlers{
		Attempt:    handler.NewAttemptHandler(attemptService, paperService, log),
		Statistics: handler.NewStatisticsHandler(statsService, log),
		WS:         handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
	}

	// Background workers.
	workerCtx, workerCancel := context.WithCancel(context.Background())

	expiryWorker := worker.NewExpiryWorker(attemptRepo, clk, cfg.ExpirySweepInterval, cfg.SubmitGrace, log)
	go expiryWorker.Start(workerCtx)

	r := router.SetupRouter(tokenService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the sweep worker.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
