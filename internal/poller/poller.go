// Package poller implements the Poller loop (spec.md §4.7, C7): it finds
// due tasks, claims and dispatches them to the work queue, and reconciles
// stuck or orphaned executions left behind by dead nodes.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/clock"
	"github.com/ai-task-scheduler/engine/internal/coordination"
	"github.com/ai-task-scheduler/engine/internal/metrics"
	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/storage"
)

// Config holds the Poller's tunables, injected at construction.
type Config struct {
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	BatchLimit        int
	StuckThreshold    time.Duration
}

// Poller is the leader-gated tick loop that moves due tasks from storage
// onto the work queue and reclaims work abandoned by dead nodes.
type Poller struct {
	nodeID string
	cfg    Config

	repo        storage.TaskRepository
	execStore   storage.ExecutionStore
	queue       storage.Queue
	coordinator coordination.Coordinator
	clock       clock.Clock
	logger      *zap.Logger
}

// New constructs a Poller. nodeID identifies this process in leader checks.
func New(
	nodeID string,
	cfg Config,
	repo storage.TaskRepository,
	execStore storage.ExecutionStore,
	queue storage.Queue,
	coordinator coordination.Coordinator,
	c clock.Clock,
	logger *zap.Logger,
) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 30 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = 30 * time.Minute
	}

	return &Poller{
		nodeID:      nodeID,
		cfg:         cfg,
		repo:        repo,
		execStore:   execStore,
		queue:       queue,
		coordinator: coordinator,
		clock:       c,
		logger:      logger,
	}
}

// Run blocks, driving the poll and reconcile ticks until ctx is cancelled.
// Both ticks are gated on this node holding the election — a standby node
// still calls Run but every tick is a no-op until it becomes leader.
func (p *Poller) Run(ctx context.Context, election coordination.Election) {
	pollTicker := time.NewTicker(p.cfg.PollInterval)
	defer pollTicker.Stop()

	reconcileTicker := time.NewTicker(p.cfg.ReconcileInterval)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shutting down")
			return

		case <-pollTicker.C:
			if !p.isLeader(ctx, election) {
				continue
			}
			metrics.SchedulerPolls.Inc()
			for {
				count, err := p.PollAndSchedule(ctx)
				if err != nil {
					p.logger.Error("poll and schedule failed", zap.Error(err))
					break
				}
				if count == 0 || ctx.Err() != nil {
					break
				}
			}

		case <-reconcileTicker.C:
			if !p.isLeader(ctx, election) {
				continue
			}
			if err := p.Reconcile(ctx); err != nil {
				p.logger.Error("reconcile failed", zap.Error(err))
			}
		}
	}
}

func (p *Poller) isLeader(ctx context.Context, election coordination.Election) bool {
	leader, err := election.Leader(ctx)
	if err != nil {
		p.logger.Warn("failed to check leadership", zap.Error(err))
		return false
	}
	return leader == p.nodeID
}

// PollAndSchedule finds tasks due for execution, claims each one, and
// dispatches it onto the work queue. Returns the number of tasks pushed
// onto the queue so Run can drain a full backlog within one tick.
func (p *Poller) PollAndSchedule(ctx context.Context) (int, error) {
	now := p.clock.Now()

	tasks, err := p.repo.DueBefore(ctx, now, p.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	p.logger.Info("found due tasks", zap.Int("count", len(tasks)))

	dispatched := 0
	for i := range tasks {
		task := &tasks[i]

		// Claim: the atomic active->processing transition, so a task is
		// never handed to two workers and never re-found by the next tick.
		claimed, err := p.repo.ClaimForProcessing(ctx, task.ID, now)
		if err != nil {
			if err == storage.ErrAlreadyClaimed {
				continue
			}
			p.logger.Error("failed to claim task", zap.String("task_id", task.ID.String()), zap.Error(err))
			continue
		}

		execID := uuid.New()
		dueAt := now
		if claimed.NextRunAt != nil {
			dueAt = *claimed.NextRunAt
		}

		exec := &models.ExecutionRecord{
			ID:          execID,
			TaskID:      claimed.ID,
			ScheduledAt: dueAt,
			Status:      models.ExecutionPending,
			Attempt:     claimed.RetryCount + 1,
		}
		if err := p.execStore.CreateExecution(ctx, exec); err != nil {
			p.logger.Error("failed to create execution record", zap.String("task_id", claimed.ID.String()), zap.Error(err))
			continue
		}

		payload := &storage.QueuePayload{
			ExecutionID: execID,
			TaskID:      claimed.ID,
			ScheduledAt: dueAt,
			Attempt:     exec.Attempt,
		}
		if err := p.queue.Push(ctx, payload); err != nil {
			p.logger.Error("failed to push task onto queue", zap.String("task_id", claimed.ID.String()), zap.Error(err))
			continue
		}

		metrics.RecordDispatch(now.Sub(dueAt).Seconds())
		dispatched++
	}

	return dispatched, nil
}

// Reconcile resets tasks stuck in processing beyond the stuck threshold
// back to active (spec.md §4.7, SPEC_FULL.md §4 C7: a stuck reset is a
// state transition on the Task itself, not a derived retry execution row)
// and marks executions still RUNNING on nodes no longer alive as failed.
func (p *Poller) Reconcile(ctx context.Context) error {
	now := p.clock.Now()

	stuck, err := p.repo.FindStuck(ctx, p.cfg.StuckThreshold, now)
	if err != nil {
		return fmt.Errorf("find stuck tasks: %w", err)
	}

	for i := range stuck {
		task := &stuck[i]
		retryCount := task.RetryCount + 1
		patch := storage.TaskPatch{RetryCount: &retryCount}

		nextState := models.StatusActive
		if task.MaxRetries > 0 && retryCount > task.MaxRetries {
			nextState = models.StatusFailed
			patch.ClearNextRunAt = true
		}

		if _, err := p.repo.Release(ctx, task.ID, nextState, patch); err != nil {
			p.logger.Error("failed to reset stuck task", zap.String("task_id", task.ID.String()), zap.Error(err))
			continue
		}
		p.logger.Warn("reclaimed stuck task",
			zap.String("task_id", task.ID.String()),
			zap.String("next_state", string(nextState)),
		)
		metrics.StuckTasksRecovered.Inc()
	}

	nodes, err := p.coordinator.GetActiveNodes(ctx)
	if err != nil {
		return fmt.Errorf("get active nodes: %w", err)
	}
	metrics.ActiveNodes.Set(float64(len(nodes)))

	reaped, err := p.execStore.MarkOrphansAsFailed(ctx, nodes)
	if err != nil {
		return fmt.Errorf("reap orphaned executions: %w", err)
	}
	if reaped > 0 {
		p.logger.Warn("reaped orphaned executions", zap.Int64("count", reaped))
		metrics.OrphansReaped.Add(float64(reaped))
	}

	return nil
}
