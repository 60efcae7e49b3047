package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/pixel-quest/internal/cachestore"
	"github.com/jwebster45206/pixel-quest/internal/config"
	"github.com/jwebster45206/pixel-quest/internal/contentcache"
	"github.com/jwebster45206/pixel-quest/internal/engine"
	"github.com/jwebster45206/pixel-quest/internal/generator"
	"github.com/jwebster45206/pixel-quest/internal/handlers"
	"github.com/jwebster45206/pixel-quest/internal/logger"
	"github.com/jwebster45206/pixel-quest/internal/metrics"
	"github.com/jwebster45206/pixel-quest/internal/middleware"
	"github.com/jwebster45206/pixel-quest/internal/ratelimit"
	"github.com/jwebster45206/pixel-quest/internal/session"
	"github.com/jwebster45206/pixel-quest/internal/storage"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Pixel Quest API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"generator", cfg.Generator,
		"cache_backend", cfg.CacheBackend,
		"session_backend", cfg.SessionBackend,
		"rate_limit_backend", cfg.RateLimitBackend)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startCancel()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = cachestore.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		waiter := storage.NewRedisStorage(redisClient, cfg.SessionTTL, log)
		if err := waiter.WaitForConnection(startCtx, 30, 2*time.Second); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
	}

	cacheStore, err := cachestore.Open(startCtx, cachestore.Options{
		Backend:    cachestore.Backend(cfg.CacheBackend),
		SQLitePath: cfg.SQLitePath,
		RedisURL:   cfg.RedisURL,
		TTL:        cfg.CacheTTL,
	}, log)
	if err != nil {
		log.Error("Failed to open content cache", "error", err)
		os.Exit(1)
	}

	var sessions storage.Storage
	switch cfg.SessionBackend {
	case "redis":
		sessions = storage.NewRedisStorage(redisClient, cfg.SessionTTL, log)
	default:
		sessions = storage.NewMockStorage()
		log.Warn("Sessions are kept in memory and lost on restart")
	}

	var limiter ratelimit.Limiter
	policies := map[ratelimit.Bucket]ratelimit.Policy{
		ratelimit.BucketStory: {Limit: cfg.StoryRateLimit, Window: cfg.StoryRateWindow},
		ratelimit.BucketImage: {Limit: cfg.ImageRateLimit, Window: cfg.ImageRateWindow},
	}
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = ratelimit.NewRedisLimiter(redisClient, policies)
	default:
		limiter = ratelimit.NewMemoryLimiter(policies)
	}

	gen, closeGen, err := newGenerator(startCtx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize generator", "error", err)
		os.Exit(1)
	}
	defer closeGen()

	m := metrics.New()
	cache := contentcache.New(cacheStore,
		contentcache.WithTimeout(cfg.GenerationTimeout),
		contentcache.WithLogger(log),
		contentcache.WithMetrics(m))

	seed, err := state.NewSeed()
	if err != nil {
		log.Error("Failed to seed dice", "error", err)
		os.Exit(1)
	}

	var manager *session.Manager
	eng := engine.New(cache, gen,
		engine.WithLimiter(limiter),
		engine.WithRoller(state.NewRoller(seed)),
		engine.WithDelays(cfg.RollDelay, cfg.ConsumeDelay),
		engine.WithIllustrations(cfg.Illustrations),
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithObserver(func(ctx context.Context, gs *state.GameState) { manager.Observe(ctx, gs) }),
	)
	manager = session.NewManager(eng, sessions, log)

	router := handlers.NewRouter(handlers.Routes{
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"content_cache": cacheStore,
			"sessions":      sessions,
		}, log),
		Themes:   handlers.NewThemesHandler(log),
		Sessions: handlers.NewSessionHandler(manager, log),
		Images:   handlers.NewImageHandler(eng, log),
		Metrics:  m.Handler(),
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Logger(log, cfg.TrustProxy)(router),
		ReadTimeout:  15 * time.Second,
		// one generation plus its illustration
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := cacheStore.Close(); err != nil {
		log.Error("Error closing content cache", "error", err)
	}
	if err := sessions.Close(); err != nil {
		log.Error("Error closing session storage", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("Server exited")
}

func newGenerator(ctx context.Context, cfg *config.Config, log *slog.Logger) (generator.Generator, func(), error) {
	switch cfg.Generator {
	case "mock":
		log.Warn("Using the offline mock generator")
		return generator.NewMockGenerator(), func() {}, nil
	default:
		g, err := generator.NewGeminiGenerator(ctx, generator.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			StoryModel: cfg.StoryModel,
			ImageModel: cfg.ImageModel,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return g, func() {
			if err := g.Close(); err != nil {
				log.Error("Error closing generator", "error", err)
			}
		}, nil
	}
}
