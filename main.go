package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"storylab-engine/internal/circuitbreaker"
	"storylab-engine/internal/cleanup"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/config"
	"storylab-engine/internal/engine"
	"storylab-engine/internal/handlers"
	"storylab-engine/internal/middleware"
	"storylab-engine/internal/objectstore"
	"storylab-engine/internal/providers"
	"storylab-engine/internal/recipe"
	"storylab-engine/internal/server"
	"storylab-engine/internal/storage"

	_ "storylab-engine/internal/storage/postgres"
	_ "storylab-engine/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	store, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cancel()
		defer redisClient.Close()
	}

	var objects objectstore.Store
	if cfg.S3Enabled {
		s3Ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		objects, err = objectstore.NewS3Store(s3Ctx, objectstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, logger)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize object store: %v", err)
		}
	}

	registry := providers.NewRegistry()
	for name, baseURL := range cfg.ProviderHTTPEndpoints {
		provider, err := providers.NewHTTPProvider(providers.Config{
			Name:    name,
			BaseURL: baseURL,
			APIKey:  cfg.ProviderHTTPAPIKey,
		})
		if err != nil {
			log.Fatalf("Failed to configure provider %q: %v", name, err)
		}
		registry.Register(provider)
	}
	if cfg.ProviderStaticEnabled {
		registry.Register(providers.NewStaticProvider("static"))
	}

	breakers, err := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize circuit breakers: %v", err)
	}

	recipes := recipe.NewStore(store, logger)
	tracker := engine.NewTracker(store, redisClient, logger)
	executor := engine.NewExecutor(registry, breakers, objects, logger)
	orchestrator := engine.NewOrchestrator(recipes, tracker, executor, engine.Options{
		DefaultNodeTimeout: cfg.DefaultNodeTimeout,
		MaxConcurrentNodes: cfg.MaxConcurrentNodes,
	}, logger)

	cleaner := cleanup.NewCleaner(store, cfg.ExecutionRetention, cfg.CleanupSchedule, logger)
	if err := cleaner.Start(); err != nil {
		log.Fatalf("Failed to schedule cleanup: %v", err)
	}
	defer cleaner.Stop()

	h := handlers.New(store, recipes, orchestrator, tracker, registry, cfg, logger)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	h.RegisterRoutes(router)

	srv := server.New(router, cfg.Port)
	errCh := make(chan error, 1)
	srv.Start(errCh)

	logger.Info("Recipe engine started",
		logging.Field{Key: "port", Value: cfg.Port},
		logging.Field{Key: "database", Value: cfg.DatabaseType},
		logging.Field{Key: "providers", Value: registry.Names()},
	)
	fmt.Printf("Recipe engine listening on port %s\n", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-quit:
		logger.Info("Shutting down", logging.Field{Key: "signal", Value: sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	// Let in-flight executions finish recording their state.
	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for running executions")
	}

	logger.Info("Recipe engine stopped")
}
