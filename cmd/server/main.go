package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/clock"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/router"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
	"github.com/stemsi/exstem-session/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("session_store", cfg.SessionStore).
		Msg("Starting ExStem Session")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	archiveRepo := repository.NewArchiveRepository(pool)

	var (
		store     service.SessionStore
		snapshots handler.MonitorSnapshotter
	)
	switch cfg.SessionStore {
	case config.StoreRedis:
		store = repository.NewRedisSessionStore(rdb, cfg.SessionRetention)
	default:
		store = repository.NewSessionRepository(pool)
		snapshots = service.NewMonitorService(repository.NewMonitorRepository(pool))
	}

	// ─── Initialize Services ───────────────────────────────────────────
	clk := clock.Real{}
	authService := service.NewAuthService(cfg.JWTSecret)
	examService := service.NewExamService(examRepo, rdb, cfg.ExamCacheTTL, log)
	scheduleValidator := service.NewScheduleValidator(cfg.ScheduleEditMargin)
	scheduleService := service.NewScheduleService(examRepo, scheduleValidator, clk, log)
	recorder := service.NewAnswerRecorder(store, examService, service.NewAnswerAuditQueue(rdb), log)
	lifecycle := service.NewSessionLifecycle(service.LifecycleDeps{
		Store:     store,
		Catalog:   examService,
		Validator: scheduleValidator,
		Recorder:  recorder,
		Scorer:    service.NewScorer(service.ScoringPolicyFromConfig(cfg.Scoring)),
		Clock:     clk,
		Events:    service.NewMonitorPublisher(rdb),
		Results:   service.NewResultArchiveQueue(rdb),
	}, log)
	answerLimiter := middleware.NewAnswerRateLimiter(rdb, clk, cfg.AutosaveRateLimit, time.Minute, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(lifecycle, examService, log),
		Schedule: handler.NewScheduleHandler(scheduleService, examService, log),
		Exam:     handler.NewExamHandler(examService, log),
		WS:       handler.NewWSHandler(lifecycle, answerLimiter, log, cfg.AllowedOrigins),
		Monitor:  handler.NewMonitorHandler(rdb, examService, snapshots, log),
		System:   handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	for _, w := range []interface{ Start(context.Context) }{
		worker.NewAnswerAuditWorker(archiveRepo, rdb, log),
		worker.NewResultArchiveWorker(archiveRepo, rdb, log),
	} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.Start(workerCtx)
		}()
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, answerLimiter, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
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

	// 2. Stop background workers and wait for their buffers to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
