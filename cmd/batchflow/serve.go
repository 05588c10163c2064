package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aescanero/batchflow/internal/application/orchestrator"
	"github.com/aescanero/batchflow/internal/application/workers"
	"github.com/aescanero/batchflow/internal/config"
	"github.com/aescanero/batchflow/internal/stages"
	eventsmemory "github.com/aescanero/batchflow/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/batchflow/pkg/adapters/events/redis"
	promcollector "github.com/aescanero/batchflow/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/batchflow/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/batchflow/pkg/adapters/storage/redis"
	apigrpc "github.com/aescanero/batchflow/pkg/api/grpc"
	apihttp "github.com/aescanero/batchflow/pkg/api/http"
	"github.com/aescanero/batchflow/pkg/api/websocket"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/ports"
	"github.com/aescanero/batchflow/pkg/record"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, WebSocket and gRPC servers",
		Long:  "serve reads its configuration from the environment (see internal/config) and runs until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting batchflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
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
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Redis close error", zap.Error(err))
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	var eventBus ports.EventBus = eventsmemory.NewInMemoryEventBus()
	if cfg.EventsBackend == config.BackendRedis {
		bus, err := eventsredis.NewStreamsEventBus(
			redisClient,
			cfg.Redis.ConsumerGroup,
			fmt.Sprintf("%s-%d", cfg.Redis.ConsumerName, os.Getpid()),
			cfg.Redis.StreamMaxLen,
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		eventBus = bus
	}
	defer func() { _ = eventBus.Close() }()

	var stateStorage ports.StateStorage = storagememory.NewInMemoryStateStorage()
	if cfg.StorageBackend == config.BackendRedis {
		stateStorage = storageredis.NewStateStorage(redisClient, cfg.Redis.StateTTL, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := promcollector.NewCollector(registry)

	// Shared graph
	store := graph.NewStore(nil)
	if cfg.GraphFile != "" {
		res, err := loadGraphFile(ctx, store, cfg.GraphFile)
		if err != nil {
			return err
		}
		logger.Info("graph loaded",
			zap.String("file", cfg.GraphFile),
			zap.Int("nodes_created", res.NodesCreated))
	}

	// Initialize application components
	stageRegistry := stages.NewRegistry()

	workerPool, err := workers.NewPool(cfg.Workers.PoolSize, metricsCollector, logger, cfg.Workers.HealthCheckInterval)
	if err != nil {
		return err
	}
	if err := workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	manager := orchestrator.NewManager(
		store,
		stageRegistry,
		workerPool,
		eventBus,
		stateStorage,
		metricsCollector,
		orchestrator.NewValidator(stageRegistry),
		logger,
		cfg.Timeouts.JobExecutionTimeout,
		orchestrator.Defaults{
			BatchSize:      cfg.Engine.BatchSize,
			MaxConcurrency: cfg.Engine.MaxConcurrency,
		},
	)

	// Initialize API servers
	httpServer := apihttp.NewServer(&apihttp.Config{
		Port:     cfg.HTTPPort,
		Manager:  manager,
		Stages:   stageRegistry,
		Pool:     workerPool,
		Gatherer: registry,
		Logger:   logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	grpcServer, err := apigrpc.NewServer(&apigrpc.Config{
		Port:          cfg.GRPCPort,
		Checker:       workerPool.Health(),
		CheckInterval: cfg.Workers.HealthCheckInterval,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)
	g.Go(grpcServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := workerPool.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	logger.Info("batchflow started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("events_backend", cfg.EventsBackend),
		zap.String("storage_backend", cfg.StorageBackend))

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}

	logger.Info("batchflow shut down complete")
	return nil
}

func loadGraphFile(ctx context.Context, store *graph.Store, path string) (record.LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.LoadResult{}, fmt.Errorf("open graph: %w", err)
	}
	defer func() { _ = f.Close() }()

	rs, err := record.Decode(f)
	if err != nil {
		return record.LoadResult{}, fmt.Errorf("decode graph %s: %w", path, err)
	}
	return record.Load(ctx, store, rs)
}
