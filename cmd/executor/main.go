// Command executor runs the Executor worker pool (spec.md §4.8, C8): it
// claims dispatched tasks off the work queue and runs them to completion.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/clock"
	"github.com/ai-task-scheduler/engine/internal/config"
	"github.com/ai-task-scheduler/engine/internal/coordination"
	"github.com/ai-task-scheduler/engine/internal/coordination/etcd"
	"github.com/ai-task-scheduler/engine/internal/coordination/noop"
	"github.com/ai-task-scheduler/engine/internal/dispatch"
	"github.com/ai-task-scheduler/engine/internal/executor"
	"github.com/ai-task-scheduler/engine/internal/logging"
	"github.com/ai-task-scheduler/engine/internal/observability"
	"github.com/ai-task-scheduler/engine/internal/storage"
	"github.com/ai-task-scheduler/engine/internal/storage/logstore"
	"github.com/ai-task-scheduler/engine/internal/storage/postgres"
	"github.com/ai-task-scheduler/engine/internal/storage/redisqueue"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Init(logging.DefaultConfig("ai-task-scheduler-executor"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	tracingProvider, err := observability.Init(ctx, observability.DefaultConfig("ai-task-scheduler-executor"))
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

	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	queue, err := redisqueue.New(redisAddr)
	if err != nil {
		logger.Fatal("failed to initialize redis queue", zap.Error(err))
	}
	defer queue.Close()

	var logStore storage.LogStore
	if cfg.LogStoreBucket != "" {
		s3Store, err := logstore.NewS3Store(logstore.S3Config{
			Bucket:        cfg.LogStoreBucket,
			Prefix:        cfg.LogStorePrefix,
			Region:        cfg.LogStoreRegion,
			Endpoint:      cfg.LogStoreEndpoint,
			LocalCacheDir: cfg.LocalLogCacheDir,
		})
		if err != nil {
			logger.Warn("failed to initialize s3 log store, falling back to local", zap.Error(err))
		} else {
			logStore = s3Store
		}
	}
	if logStore == nil {
		localStore, err := logstore.NewLocalStore(cfg.LocalLogCacheDir)
		if err != nil {
			logger.Warn("failed to initialize local log store, transcripts disabled", zap.Error(err))
		} else {
			logStore = localStore
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "executor"
	}
	nodeID := hostname + "-" + uuid.New().String()[:8]

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

	agent := executor.NewHTTPAgent(cfg.AgentServiceURL)
	dispatcher := dispatch.New(dispatch.NewLogSink(logger))

	var advisor *executor.Advisor
	if cfg.AdvisoryServiceURL != "" {
		advisor = executor.NewAdvisor(cfg.AdvisoryServiceURL)
	}

	c := clock.New()
	exec := executor.New(
		executor.Config{
			WorkerCount:       cfg.WorkerCount,
			AgentTimeout:      cfg.AgentTimeout,
			MaxRetriesDefault: cfg.MaxRetriesDefault,
			Backoff: executor.BackoffPolicy{
				Base:   cfg.BackoffBase,
				Factor: cfg.BackoffFactor,
				Cap:    cfg.BackoffCap,
				Jitter: cfg.BackoffJitter,
			},
			QualityLengthThreshold: cfg.QualityLengthThreshold,
		},
		store,
		store,
		queue,
		logStore,
		coordinator,
		agent,
		dispatcher,
		advisor,
		c,
		logger,
	)

	go exec.Start(ctx)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	time.Sleep(cfg.ShutdownGracePeriod)
	logger.Info("executor shutdown complete")
}
