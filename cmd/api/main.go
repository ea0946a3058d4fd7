// Command api runs the TaskManager HTTP surface (spec.md §4.6, §6.4).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/api"
	"github.com/ai-task-scheduler/engine/internal/auth"
	"github.com/ai-task-scheduler/engine/internal/clock"
	"github.com/ai-task-scheduler/engine/internal/config"
	"github.com/ai-task-scheduler/engine/internal/coordination"
	"github.com/ai-task-scheduler/engine/internal/coordination/etcd"
	"github.com/ai-task-scheduler/engine/internal/coordination/noop"
	"github.com/ai-task-scheduler/engine/internal/logging"
	"github.com/ai-task-scheduler/engine/internal/observability"
	"github.com/ai-task-scheduler/engine/internal/storage/postgres"
	"github.com/ai-task-scheduler/engine/internal/taskmanager"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Init(logging.DefaultConfig("ai-task-scheduler-api"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	tracingProvider, err := observability.Init(ctx, observability.DefaultConfig("ai-task-scheduler-api"))
	if err != nil {
		logger.Warn("failed to initialize tracing", zap.Error(err))
	} else {
		defer tracingProvider.Shutdown(context.Background())
	}

	connStr := "host=" + cfg.DBHost + " port=" + cfg.DBPort + " user=" + cfg.DBUser +
		" password=" + cfg.DBPassword + " dbname=" + cfg.DBName + " sslmode=disable TimeZone=UTC"
	store, err := postgres.New(connStr)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "api"
	}
	nodeID := hostname + "-" + time.Now().Format("150405")

	var coordinator coordination.Coordinator
	if len(cfg.EtcdEndpoints) > 0 && cfg.EtcdEndpoints[0] != "" {
		etcdCoord, err := etcd.New(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
		if err != nil {
			logger.Warn("failed to connect to etcd, falling back to single-writer mode", zap.Error(err))
			coordinator = noop.New()
		} else {
			coordinator = etcdCoord
		}
	} else {
		coordinator = noop.New()
	}
	defer coordinator.Close()

	if err := coordinator.RegisterNode(ctx, nodeID); err != nil {
		logger.Warn("failed to register node", zap.Error(err))
	}
	election := coordinator.NewElection("ai-task-scheduler-leader")

	manager := taskmanager.New(store, clock.New())

	var jwtService *auth.JWTService
	var apiKeyStore auth.APIKeyStore
	if cfg.AuthEnabled {
		jwtService, err = auth.NewJWTService(auth.JWTConfig{
			SecretKey:     cfg.JWTSecret,
			Issuer:        cfg.JWTIssuer,
			TokenExpiry:   time.Hour,
			RefreshExpiry: 24 * time.Hour,
		})
		if err != nil {
			logger.Fatal("failed to initialize jwt service", zap.Error(err))
		}

		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":" + cfg.RedisPort})
		defer redisClient.Close()
		apiKeyStore = auth.NewRedisAPIKeyStore(redisClient, cfg.APIKeyCacheTTL)
	}

	server := api.NewServer(api.Config{
		Port:        cfg.APIPort,
		Manager:     manager,
		ExecStore:   store,
		Coordinator: coordinator,
		Election:    election,
		JWTService:  jwtService,
		APIKeyStore: apiKeyStore,
		AuthEnabled: cfg.AuthEnabled,
		Logger:      logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("api server started", zap.String("port", cfg.APIPort))

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("api shutdown complete")
}
