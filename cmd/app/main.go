// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/config"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
	aiAdapters "github.com/peterjabraham/debatable-sub001/internal/infra/adapters/ai"
	"github.com/peterjabraham/debatable-sub001/internal/infra/cache"
	pg "github.com/peterjabraham/debatable-sub001/internal/infra/db/postgres"
	"github.com/peterjabraham/debatable-sub001/internal/infra/logging"
	"github.com/peterjabraham/debatable-sub001/internal/infra/metrics"
	red "github.com/peterjabraham/debatable-sub001/internal/infra/redis"
	"github.com/peterjabraham/debatable-sub001/internal/infra/sched"
	"github.com/peterjabraham/debatable-sub001/internal/infra/web"
	"github.com/peterjabraham/debatable-sub001/internal/infra/worker"
	"github.com/peterjabraham/debatable-sub001/internal/retry"
	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	contextCache := cache.NewContextCache(redisClient, cfg.Redis.TTL, logger)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	convRepo := cache.NewConversationRepoCacheDecorator(pg.NewConversationRepo(pool), contextCache, logger)

	// ---- AI adapter (OpenAI primary, Gemini fallback) ----
	var ai adapter.AIServiceAdapter
	provider := "openai"
	switch {
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter()
		provider = "noop"
		logger.Info().Msg("AI adapter: noop (dev mode)")
	case cfg.AI.OpenAIKey != "":
		primary, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		ai = primary
		if cfg.AI.GeminiKey != "" {
			fallback, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, "")
			if err != nil {
				logger.Fatal().Err(err).Msg("gemini adapter")
			}
			ai = aiAdapters.NewFailoverAdapter(primary, fallback, logger)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: openai")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		provider = "gemini"
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: gemini")
	default:
		logger.Fatal().Msg("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	extractionRetry := retry.Options{
		MaxAttempts:       cfg.Queue.MaxAttempts,
		InitialDelay:      cfg.Queue.InitialDelay,
		MaxDelay:          cfg.Queue.MaxDelay,
		BackoffMultiplier: 2,
	}
	queueUC := usecase.NewJobQueueUseCase(jobRepo, logger)
	convUC := usecase.NewConversationUseCase(convRepo, ai, extractionRetry, logger)

	// ---- Workers ----
	workerPool := worker.NewPool(cfg.Queue.Workers, logger)
	workerPool.Start(ctx)
	processor := worker.NewJobProcessor(jobRepo, convUC, ai, rateLimiter, cfg.Queue, provider, cfg.AI.DefaultModel, logger)
	go processor.Start(ctx, workerPool)

	cleanup := sched.NewCleanupWorker(cfg.Queue.CleanupInterval, cfg.Queue.TerminalRetention, queueUC, logger)
	go func() { _ = cleanup.Run(ctx) }()

	// ---- HTTP ----
	server := web.NewServer(queueUC, convUC, cfg.Server.APIKey, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	workerPool.Stop()
}
