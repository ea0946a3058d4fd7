// Package storage defines the persistence contracts owned by the
// scheduler: task storage, the work queue between Poller and Executor,
// execution history, and long-form result storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ai-task-scheduler/engine/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("record already exists")
	ErrAlreadyClaimed = errors.New("task already claimed")
)

// TaskFilter narrows ListByUser results; zero values mean "no filter".
type TaskFilter struct {
	Status   models.TaskStatus
	TaskType models.TaskType
	Limit    int
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title                *string
	Description          *string
	ScheduleType         *models.ScheduleType
	ScheduleConfig       *models.ScheduleConfig
	NextRunAt            *time.Time
	ClearNextRunAt       bool
	LastRunAt            *time.Time
	Status               *models.TaskStatus
	NotificationChannels *models.NotificationChannels
	AIContext            *string
	LastResult           *string
	RetryCount           *int
	MaxRetries           *int
	OccurrenceCount      *int
}

// TaskRepository is the durable store for Task records (spec.md §4.2, C2).
// ClaimForProcessing is the single point enforcing at-most-one concurrent
// execution per task; every other mutation goes through this interface.
type TaskRepository interface {
	Insert(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByUser returns tasks owned by userID, ordered by next_run_at ascending.
	ListByUser(ctx context.Context, userID string, filter TaskFilter) ([]models.Task, error)

	// DueBefore returns active tasks whose next_run_at <= instant, ascending, bounded by limit.
	DueBefore(ctx context.Context, instant time.Time, limit int) ([]models.Task, error)

	// ClaimForProcessing atomically transitions active -> processing, stamping last_run_at.
	ClaimForProcessing(ctx context.Context, id uuid.UUID, now time.Time) (*models.Task, error)

	// FindStuck returns tasks with status=processing whose last_run_at predates the threshold.
	FindStuck(ctx context.Context, threshold time.Duration, now time.Time) ([]models.Task, error)

	// Release performs the end-of-execution transition to nextState, applying patch.
	Release(ctx context.Context, id uuid.UUID, nextState models.TaskStatus, patch TaskPatch) (*models.Task, error)
}

// QueuePayload is the unit of work handed from the Poller to Executor workers.
type QueuePayload struct {
	ExecutionID uuid.UUID
	TaskID      uuid.UUID
	ScheduledAt time.Time
	Attempt     int
}

// Queue is the bounded work queue between Poller and Executor workers (C7/C8).
type Queue interface {
	// Push enqueues a unit of work.
	Push(ctx context.Context, payload *QueuePayload) error

	// Pop retrieves one unit of work for the named consumer group/consumer.
	Pop(ctx context.Context, group string, consumer string) (msgID string, payload *QueuePayload, err error)

	// Ack acknowledges a unit of work as processed.
	Ack(ctx context.Context, group string, msgID string) error

	// EnsureGroup ensures the consumer group exists.
	EnsureGroup(ctx context.Context, group string) error
}

// ExecutionStore is the audit trail of individual attempts at running a task
// (SPEC_FULL.md §5, "per-task execution history").
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *models.ExecutionRecord) error

	// UpdateRunState marks an execution as started, stamping the node that
	// claimed it so Reconcile can later tell live work from orphaned work.
	UpdateRunState(ctx context.Context, id uuid.UUID, startedAt time.Time, nodeID string) error

	// UpdateResult marks an execution as finished, recording its outcome.
	UpdateResult(ctx context.Context, id uuid.UUID, status models.ExecutionStatus, qualityScore float64, isHighQuality bool, result, errMsg, deliveryWarnings string) error

	// ListByTask returns the execution history for a single task, most recent first.
	ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]models.ExecutionRecord, error)

	// MarkOrphansAsFailed fails executions left RUNNING on nodes no longer active.
	MarkOrphansAsFailed(ctx context.Context, activeNodeIDs []string) (int64, error)
}

// LogStore persists long-form execution transcripts (prompt + response) that
// don't belong inline in the Task/ExecutionRecord row.
type LogStore interface {
	Store(ctx context.Context, executionID uuid.UUID, content []byte) (uri string, err error)
	Retrieve(ctx context.Context, uri string) ([]byte, error)
}
