// Command scheduler runs the Poller (spec.md §4.7, C7): it discovers due
// tasks, claims them, and hands them off to Executor workers via the work
// queue, recovering stuck tasks along the way.
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
	"github.com/ai-task-scheduler/engine/internal/logging"
	"github.com/ai-task-scheduler/engine/internal/poller"
	"github.com/ai-task-scheduler/engine/internal/storage/postgres"
	"github.com/ai-task-scheduler/engine/internal/storage/redisqueue"
)

func main() {
	cfg := config.Load()

	logger, err := logging.Init(logging.DefaultConfig("ai-task-scheduler-poller"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

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

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "scheduler"
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

	election := coordinator.NewElection("ai-task-scheduler-leader")
	if err := election.Campaign(ctx, nodeID); err != nil {
		logger.Fatal("election campaign failed", zap.Error(err))
	}
	logger.Info("leadership campaign started", zap.String("node_id", nodeID))

	c := clock.New()
	p := poller.New(nodeID, poller.Config{
		PollInterval:      cfg.PollInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		BatchLimit:        cfg.BatchLimit,
		StuckThreshold:    cfg.StuckThreshold,
	}, store, store, queue, coordinator, c, logger)

	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeatTicker.C:
				if err := coordinator.Heartbeat(ctx, nodeID); err != nil {
					logger.Warn("heartbeat failed", zap.Error(err))
				}
			}
		}
	}()

	go p.Run(ctx, election)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	resignCtx, resignCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer resignCancel()
	if err := election.Resign(resignCtx); err != nil {
		logger.Warn("failed to resign leadership", zap.Error(err))
	}

	logger.Info("poller shutdown complete")
}
