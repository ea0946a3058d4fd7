// Package executor implements the Executor pipeline (spec.md §4.8, C8):
// claim, context build, prompt assemble, invoke Agent, assess quality,
// persist result, dispatch notifications, advance state.
package executor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/clock"
	"github.com/ai-task-scheduler/engine/internal/coordination"
	"github.com/ai-task-scheduler/engine/internal/dispatch"
	"github.com/ai-task-scheduler/engine/internal/metrics"
	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/observability"
	"github.com/ai-task-scheduler/engine/internal/resilience"
	"github.com/ai-task-scheduler/engine/internal/schedule"
	"github.com/ai-task-scheduler/engine/internal/storage"
)

const consumerGroup = "ai-task-scheduler-executors"

// Agent is the opaque external collaborator (spec.md §6.1): it must
// respect the deadline carried by ctx. The scheduler never inspects how
// the response was produced.
type Agent interface {
	Run(ctx context.Context, promptText string) (string, error)
}

// Config holds the Executor's tunables, all injected at construction per
// spec.md §6.5 ("the engine reads no global environment directly").
type Config struct {
	WorkerCount            int
	AgentTimeout           time.Duration
	MaxRetriesDefault      int
	Backoff                BackoffPolicy
	QualityLengthThreshold int
}

// Executor claims due tasks off the work queue and runs them to completion.
type Executor struct {
	id       string
	hostname string
	cfg      Config

	repo        storage.TaskRepository
	execStore   storage.ExecutionStore
	queue       storage.Queue
	logStore    storage.LogStore
	coordinator coordination.Coordinator
	agent       Agent
	dispatcher  *dispatch.Dispatcher
	advisor     *Advisor
	breaker     *resilience.CircuitBreaker
	clock       clock.Clock
	calculator  *schedule.Calculator
	logger      *zap.Logger
}

// New constructs an Executor. logStore may be nil: transcript storage is optional.
func New(
	cfg Config,
	repo storage.TaskRepository,
	execStore storage.ExecutionStore,
	queue storage.Queue,
	logStore storage.LogStore,
	coordinator coordination.Coordinator,
	agent Agent,
	dispatcher *dispatch.Dispatcher,
	advisor *Advisor,
	c clock.Clock,
	logger *zap.Logger,
) *Executor {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 120 * time.Second
	}
	if cfg.MaxRetriesDefault <= 0 {
		cfg.MaxRetriesDefault = 3
	}
	if cfg.QualityLengthThreshold <= 0 {
		cfg.QualityLengthThreshold = 240
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy()
	}

	breaker := resilience.NewCircuitBreaker("agent", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
	})

	e := &Executor{
		id:          id,
		hostname:    hostname,
		cfg:         cfg,
		repo:        repo,
		execStore:   execStore,
		queue:       queue,
		logStore:    logStore,
		coordinator: coordinator,
		agent:       agent,
		dispatcher:  dispatcher,
		advisor:     advisor,
		clock:       c,
		calculator:  schedule.New(),
		logger:      logger,
		breaker:     breaker,
	}

	// Feed the Agent breaker's own state machine into this node's metrics
	// and logs, rather than polling Metrics() on a timer.
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		metrics.AgentBreakerState.WithLabelValues(name).Set(float64(to))
		if to == resilience.CircuitOpen {
			metrics.AgentBreakerTrips.WithLabelValues(name).Inc()
			e.logger.Warn("agent circuit breaker tripped open",
				zap.String("breaker", name),
				zap.String("node_id", e.id),
			)
		}
	})

	return e
}

func detectTotalMemoryMB() uint64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 1024
	}
	return v.Total / 1024 / 1024
}

// Start runs the heartbeat and worker-pool consume loops until ctx is cancelled.
func (e *Executor) Start(ctx context.Context) {
	e.logger.Info("executor starting",
		zap.String("node_id", e.id),
		zap.Int("workers", e.cfg.WorkerCount),
		zap.Uint64("total_mem_mb", detectTotalMemoryMB()),
	)

	if err := e.queue.EnsureGroup(ctx, consumerGroup); err != nil {
		e.logger.Warn("failed to ensure consumer group", zap.Error(err))
	}

	heartbeatTicker := time.NewTicker(5 * time.Second)
	defer heartbeatTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeatTicker.C:
				if err := e.coordinator.Heartbeat(ctx, e.id); err != nil {
					e.logger.Warn("heartbeat failed", zap.Error(err))
				} else {
					metrics.HeartbeatsSent.Inc()
				}
			}
		}
	}()

	sem := make(chan struct{}, e.cfg.WorkerCount)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				e.consumeOne(ctx)
			}()
		}
	}
}

func (e *Executor) consumeOne(ctx context.Context) {
	msgID, payload, err := e.queue.Pop(ctx, consumerGroup, e.id)
	if err != nil {
		e.logger.Error("failed to pop from queue", zap.Error(err))
		time.Sleep(time.Second)
		return
	}
	if payload == nil {
		time.Sleep(time.Second)
		return
	}

	metrics.ExecutorTasksRunning.Inc()
	defer metrics.ExecutorTasksRunning.Dec()

	if err := e.runOne(ctx, payload); err != nil {
		e.logger.Error("execution failed", zap.String("task_id", payload.TaskID.String()), zap.Error(err))
	}

	if err := e.queue.Ack(ctx, consumerGroup, msgID); err != nil {
		e.logger.Error("failed to ack message", zap.Error(err))
	}
}

// runOne implements spec.md §4.8.1's seven-step protocol for a single task.
func (e *Executor) runOne(ctx context.Context, payload *storage.QueuePayload) error {
	now := e.clock.Now()

	// Step 1: Claim. The Poller already performed the atomic active->processing
	// transition when it dispatched this work item (spec.md §4.7); a task no
	// longer in processing here was cancelled or reclaimed out from under us
	// (SPEC_FULL.md §4 C7's stuck-task reset) and is abandoned silently.
	task, err := e.repo.Get(ctx, payload.TaskID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return fmt.Errorf("claim: %w", err)
	}
	if task.Status != models.StatusProcessing {
		return nil
	}

	observability.SetTaskAttributes(ctx, task.ID.String(), string(task.TaskType), string(task.ScheduleType))

	if err := e.execStore.UpdateRunState(ctx, payload.ExecutionID, now, e.id); err != nil {
		e.logger.Warn("failed to record execution start", zap.Error(err))
	}

	// Step 2: Context build.
	promptCtx := PromptContext{
		CreatedAt:   &task.CreatedAt,
		LastRunAt:   task.LastRunAt,
		CurrentTime: now,
	}

	// Optional advisory pre-check: fail-open, never blocks execution.
	if e.advisor != nil {
		if proceed, advice, advErr := e.advisor.AdviseExecution(ctx, task, now); advErr != nil {
			e.logger.Warn("advisory check failed, proceeding", zap.Error(advErr))
		} else if !proceed {
			e.logger.Info("advisory recommended abort, proceeding anyway (fail-open)",
				zap.String("task_id", task.ID.String()),
				zap.Float64("confidence", advice.Confidence),
			)
		}
	}

	// Step 3: Prompt assemble.
	prompt := BuildPrompt(task, promptCtx)

	// Step 4: Invoke Agent, behind a circuit breaker and per-task timeout.
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.AgentTimeout)
	defer cancel()

	var response string
	agentErr := e.breaker.Execute(runCtx, func() error {
		var innerErr error
		response, innerErr = e.agent.Run(runCtx, prompt)
		return innerErr
	})

	if agentErr != nil {
		return e.handleAgentFailure(ctx, task, payload, now, agentErr)
	}

	// Step 5: Assess.
	quality := AssessQuality(response, e.cfg.QualityLengthThreshold)
	extracted := ExtractInformation(response)

	if e.logStore != nil {
		if _, err := e.logStore.Store(ctx, payload.ExecutionID, []byte(prompt+"\n---\n"+response)); err != nil {
			e.logger.Warn("failed to store execution transcript", zap.Error(err))
		}
	}

	// Step 6: Persist result + advance state.
	nextState, patch, err := e.nextStateAfterSuccess(task, now, response)
	if err != nil {
		return fmt.Errorf("compute next state: %w", err)
	}

	if _, err := e.repo.Release(ctx, task.ID, nextState, patch); err != nil {
		return fmt.Errorf("release: %w", err)
	}

	// Step 7: Dispatch. Delivery never feeds back into retry/state logic
	// (spec.md §7, SPEC_FULL.md §8 open question 2) — it only annotates
	// the execution record.
	deliveryWarnings := ""
	if e.dispatcher != nil {
		result := e.dispatcher.Dispatch(ctx, task.NotificationChannels, task.UserID, response)
		deliveryWarnings = result.DeliveryWarnings
	}

	if err := e.execStore.UpdateResult(ctx, payload.ExecutionID, models.ExecutionSuccess, quality.Score, quality.IsHighQuality, response, "", deliveryWarnings); err != nil {
		e.logger.Warn("failed to record execution result", zap.Error(err))
	}

	metrics.RecordExecution(string(task.TaskType), string(models.ExecutionSuccess))
	metrics.TaskQualityScore.Observe(quality.Score)

	e.logger.Debug("execution completed",
		zap.String("task_id", task.ID.String()),
		zap.Float64("quality_score", quality.Score),
		zap.Bool("is_high_quality", quality.IsHighQuality),
		zap.Bool("has_summary", extracted.HasSummary),
		zap.Int("response_length", extracted.ResponseLength),
	)

	return nil
}

// handleAgentFailure applies the retry/backoff policy on Agent error
// (spec.md §4.8.1 step 6, AgentError handling).
func (e *Executor) handleAgentFailure(ctx context.Context, task *models.Task, payload *storage.QueuePayload, now time.Time, agentErr error) error {
	retryCount := task.RetryCount + 1
	maxRetries := task.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetriesDefault
	}

	var nextState models.TaskStatus
	patch := storage.TaskPatch{RetryCount: &retryCount}

	if retryCount <= maxRetries {
		nextState = models.StatusActive
		nextRun := now.Add(e.cfg.Backoff.Delay(retryCount))
		patch.NextRunAt = &nextRun
	} else {
		nextState = models.StatusFailed
		patch.ClearNextRunAt = true
	}

	if _, err := e.repo.Release(ctx, task.ID, nextState, patch); err != nil {
		return fmt.Errorf("release after agent failure: %w", err)
	}

	errMsg := agentErr.Error()
	if err := e.execStore.UpdateResult(ctx, payload.ExecutionID, models.ExecutionFailed, 0, false, "", errMsg, ""); err != nil {
		e.logger.Warn("failed to record failed execution", zap.Error(err))
	}

	metrics.RecordExecution(string(task.TaskType), string(models.ExecutionFailed))
	metrics.RetriesTotal.Inc()

	return nil
}

// nextStateAfterSuccess implements spec.md §4.8.1 step 6 for the success path:
// once tasks complete and clear next_run_at; recurring tasks recompute
// next_run_at via ScheduleCalculator and return to active.
func (e *Executor) nextStateAfterSuccess(task *models.Task, now time.Time, response string) (models.TaskStatus, storage.TaskPatch, error) {
	zero := 0
	patch := storage.TaskPatch{
		LastResult: &response,
		RetryCount: &zero,
	}

	if task.ScheduleType == models.ScheduleOnce {
		patch.ClearNextRunAt = true
		return models.StatusCompleted, patch, nil
	}

	// task.OccurrenceCount is the number of times this task has already
	// fired successfully before this run; Calculator.Next treats it as such
	// when checking cfg.MaxOccurrences, so it must be read off the task
	// record rather than assumed zero.
	next, err := e.calculator.Next(task.ScheduleType, task.ScheduleConfig, now, task.OccurrenceCount)
	occurrences := task.OccurrenceCount + 1
	patch.OccurrenceCount = &occurrences
	if err == schedule.ErrTerminal {
		patch.ClearNextRunAt = true
		return models.StatusCompleted, patch, nil
	}
	if err != nil {
		return "", storage.TaskPatch{}, err
	}

	patch.NextRunAt = &next
	return models.StatusActive, patch, nil
}
