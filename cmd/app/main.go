package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"research-compass/internal/config"
	"research-compass/internal/domain/ports/adapter"
	aiAdapters "research-compass/internal/infra/adapters/ai"
	pg "research-compass/internal/infra/db/postgres"
	"research-compass/internal/infra/logging"
	"research-compass/internal/infra/metrics"
	"research-compass/internal/infra/objectstore"
	red "research-compass/internal/infra/redis"
	"research-compass/internal/infra/security"
	"research-compass/internal/infra/vectorindex"
	"research-compass/internal/infra/web"
	"research-compass/internal/pipeline"
	"research-compass/internal/queue"
	"research-compass/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()
	go pg.CollectPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	contextCache := red.NewContextCache(redisClient)
	turnWindow := red.NewTurnWindow(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Encryption (at-rest message bodies) ----
	var encSvc *security.EncryptionService
	if key := cfg.Security.EncryptionKey; key != "" {
		encSvc, err = security.NewEncryptionService(key)
		if err != nil {
			log.Fatalf("encryption: %v", err)
		}
	} else {
		logger.Warn().Msg("security.encryption_key not set; messages stored in plaintext")
	}

	// ---- Object store + vector index (idempotent provisioning) ----
	store, err := objectstore.NewMinioStore(&cfg.Storage, logger)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("bucket provisioning: %v", err)
	}
	index := vectorindex.NewQdrantIndex(&cfg.Vector, logger)
	if err := index.EnsureCollection(ctx, cfg.Vector.Collection, cfg.Vector.Dimensions); err != nil {
		log.Fatalf("collection provisioning: %v", err)
	}

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	workspaceRepo := pg.NewPostgresWorkspaceRepo(pool)
	resourceRepo := pg.NewPostgresResourceRepo(pool)
	messageRepo := pg.NewPostgresMessageRepo(pool, encSvc)

	// ---- AI provider ----
	var provider adapter.ModelProvider
	switch cfg.AI.Provider {
	case "openai":
		provider, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIURL, cfg.AI.ChatModel, cfg.AI.EmbeddingModel, cfg.Vector.Dimensions)
	case "gemini":
		provider, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.ChatModel, cfg.AI.EmbeddingModel, cfg.Vector.Dimensions, cfg.AI.MaxOutputTokens)
	case "noop":
		provider = aiAdapters.NewNoopProvider()
	default:
		log.Fatalf("unknown ai.provider %q", cfg.AI.Provider)
	}
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}
	provider = aiAdapters.NewLimitedProvider(provider, cfg.AI.ConcurrentLimit)
	logger.Info().Str("provider", cfg.AI.Provider).Str("chat_model", cfg.AI.ChatModel).Msg("ai provider ready")

	// ---- Queues ----
	registry := queue.NewRegistry(redisClient, queue.Options{
		Concurrency:     cfg.Queue.Concurrency,
		LockDuration:    cfg.Queue.LockDuration,
		MaxAttempts:     cfg.Queue.MaxAttempts,
		Retention:       cfg.Queue.Retention,
		ReclaimInterval: cfg.Queue.ReclaimInterval,
	}, logger)

	resourcePipeline := pipeline.NewResourcePipeline(resourceRepo, workspaceRepo, store, index, provider,
		pipeline.ResourceOptions{Collection: cfg.Vector.Collection}, logger)
	resourceQueue := registry.Register(ctx, "resource", resourcePipeline.Process)

	conversationPipeline := pipeline.NewConversationPipeline(workspaceRepo, messageRepo, contextCache, turnWindow, provider, logger)
	messageQueue := registry.Register(ctx, "message", conversationPipeline.Process)

	// ---- Use cases ----
	workspaceUC := usecase.NewWorkspaceUseCase(workspaceRepo, txManager, contextCache, provider, logger)
	resourceUC := usecase.NewResourceUseCase(resourceRepo, workspaceRepo, store, resourceQueue, logger)
	conversationUC := usecase.NewConversationUseCase(workspaceRepo, messageRepo, rateLimiter,
		cfg.Conversation.RateLimit, cfg.Conversation.RateWindow, messageQueue, logger)

	// ---- HTTP ----
	api := web.NewServer(workspaceUC, resourceUC, conversationUC, registry, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
