package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/orchestrator"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/workers"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/config"
	checkpointfile "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/checkpoint/file"
	checkpointmemory "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/checkpoint/memory"
	checkpointredis "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/checkpoint/redis"
	eventsmemory "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/events/memory"
	eventsredis "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/events/redis"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/executors"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/executors/llm"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/metrics/prometheus"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/api/http"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/api/websocket"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Maestro",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()

	// Initialize Redis client only when a Redis-backed adapter needs it
	var redisClient *goredis.Client
	if cfg.Checkpoint.Backend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	var eventBus ports.EventBus
	if redisClient != nil {
		eventBus, err = eventsredis.NewStreamsBus(
			redisClient,
			"maestro-workers",
			fmt.Sprintf("maestro-%d", os.Getpid()),
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create event bus", zap.Error(err))
		}
	} else {
		eventBus = eventsmemory.NewBus()
	}

	var checkpoints ports.CheckpointStore
	switch cfg.Checkpoint.Backend {
	case "redis":
		checkpoints = checkpointredis.NewStore(redisClient, cfg.Checkpoint.TTL, logger)
	case "memory":
		checkpoints = checkpointmemory.NewStore()
	default:
		checkpoints, err = checkpointfile.NewStore(cfg.Checkpoint.Dir, logger)
		if err != nil {
			logger.Fatal("failed to create checkpoint store", zap.Error(err))
		}
	}

	metricsCollector := prometheus.NewCollector()

	registry := executors.NewRegistry()
	if cfg.LLM.Enabled {
		registry.Register("anthropic", llm.NewAnthropicExecutor(
			cfg.LLM.APIKey,
			cfg.LLM.DefaultModel,
			logger,
		))
	}

	// Initialize application components
	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueDepth,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	manager := orchestrator.NewManager(
		registry,
		checkpoints,
		eventBus,
		metricsCollector,
		workerPool,
		logger,
		cfg.Timeouts.RunExecutionTimeout,
		cfg.Timeouts.NodeExecutionTimeout,
	)

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: manager,
		Logger:       logger,
	})

	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("Maestro started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then runs, then the pool that drains their jobs
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("Maestro shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
