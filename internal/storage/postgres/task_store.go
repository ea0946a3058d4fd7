// Package postgres implements the storage interfaces over GORM/PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/storage"
)

// Store implements storage.TaskRepository and storage.ExecutionStore over GORM.
type Store struct {
	db *gorm.DB
}

// New opens a GORM connection and AutoMigrates the schema.
func New(connString string) (*Store, error) {
	config := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Info),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Task{}, &models.ExecutionRecord{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert persists a new task.
func (s *Store) Insert(ctx context.Context, task *models.Task) error {
	result := s.db.WithContext(ctx).Create(task)
	if result.Error != nil {
		return fmt.Errorf("failed to insert task: %w", result.Error)
	}
	return nil
}

// Get retrieves a task by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	result := s.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// Update applies a partial update and returns the refreshed row.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch storage.TaskPatch) (*models.Task, error) {
	updates := patchToMap(patch)
	if len(updates) > 0 {
		result := s.db.WithContext(ctx).
			Model(&models.Task{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update task: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, storage.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a task; idempotent per spec.md §8.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	return nil
}

// ListByUser returns tasks owned by userID, ascending by next_run_at.
func (s *Store) ListByUser(ctx context.Context, userID string, filter storage.TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TaskType != "" {
		query = query.Where("task_type = ?", filter.TaskType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	result := query.
		Order("next_run_at asc").
		Limit(limit).
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", result.Error)
	}
	return tasks, nil
}

// DueBefore returns active tasks whose next_run_at <= instant, ascending.
func (s *Store) DueBefore(ctx context.Context, instant time.Time, limit int) ([]models.Task, error) {
	var tasks []models.Task
	result := s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Where("next_run_at <= ?", instant).
		Order("next_run_at asc").
		Limit(limit).
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", result.Error)
	}
	return tasks, nil
}

// ClaimForProcessing is the atomic active -> processing compare-and-set that
// enforces at-most-one concurrent execution per task.
func (s *Store) ClaimForProcessing(ctx context.Context, id uuid.UUID, now time.Time) (*models.Task, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND status = ?", id, models.StatusActive).
		Updates(map[string]interface{}{
			"status":      models.StatusProcessing,
			"last_run_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, storage.ErrAlreadyClaimed
	}
	return s.Get(ctx, id)
}

// FindStuck returns tasks left processing past the recovery threshold.
func (s *Store) FindStuck(ctx context.Context, threshold time.Duration, now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	cutoff := now.Add(-threshold)
	result := s.db.WithContext(ctx).
		Where("status = ?", models.StatusProcessing).
		Where("last_run_at < ?", cutoff).
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find stuck tasks: %w", result.Error)
	}
	return tasks, nil
}

// Release performs the end-of-execution transition.
func (s *Store) Release(ctx context.Context, id uuid.UUID, nextState models.TaskStatus, patch storage.TaskPatch) (*models.Task, error) {
	patch.Status = &nextState
	updates := patchToMap(patch)
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to release task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return s.Get(ctx, id)
}

func patchToMap(patch storage.TaskPatch) map[string]interface{} {
	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ScheduleType != nil {
		updates["schedule_type"] = *patch.ScheduleType
	}
	if patch.ScheduleConfig != nil {
		updates["schedule_config"] = *patch.ScheduleConfig
	}
	if patch.ClearNextRunAt {
		updates["next_run_at"] = nil
	} else if patch.NextRunAt != nil {
		updates["next_run_at"] = *patch.NextRunAt
	}
	if patch.LastRunAt != nil {
		updates["last_run_at"] = *patch.LastRunAt
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.NotificationChannels != nil {
		updates["notification_channels"] = *patch.NotificationChannels
	}
	if patch.AIContext != nil {
		updates["ai_context"] = *patch.AIContext
	}
	if patch.LastResult != nil {
		updates["last_result"] = *patch.LastResult
	}
	if patch.RetryCount != nil {
		updates["retry_count"] = *patch.RetryCount
	}
	if patch.MaxRetries != nil {
		updates["max_retries"] = *patch.MaxRetries
	}
	if patch.OccurrenceCount != nil {
		updates["occurrence_count"] = *patch.OccurrenceCount
	}
	return updates
}

// CreateExecution records a new execution attempt.
func (s *Store) CreateExecution(ctx context.Context, exec *models.ExecutionRecord) error {
	result := s.db.WithContext(ctx).Create(exec)
	if result.Error != nil {
		return fmt.Errorf("failed to create execution: %w", result.Error)
	}
	return nil
}

// UpdateRunState marks an execution as started, stamping the node that
// claimed it so MarkOrphansAsFailed can tell live work from orphaned work.
func (s *Store) UpdateRunState(ctx context.Context, id uuid.UUID, startedAt time.Time, nodeID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.ExecutionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.ExecutionRunning,
			"started_at": startedAt,
			"node_id":    nodeID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update run state: %w", result.Error)
	}
	return nil
}

// UpdateResult marks an execution as finished, recording its outcome.
func (s *Store) UpdateResult(ctx context.Context, id uuid.UUID, status models.ExecutionStatus, qualityScore float64, isHighQuality bool, result, errMsg, deliveryWarnings string) error {
	now := time.Now()
	dbResult := s.db.WithContext(ctx).
		Model(&models.ExecutionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            status,
			"quality_score":     qualityScore,
			"is_high_quality":   isHighQuality,
			"result":            result,
			"error_message":     errMsg,
			"delivery_warnings": deliveryWarnings,
			"completed_at":      now,
		})
	if dbResult.Error != nil {
		return fmt.Errorf("failed to update execution result: %w", dbResult.Error)
	}
	return nil
}

// ListByTask returns the execution history for a single task, most recent first.
func (s *Store) ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]models.ExecutionRecord, error) {
	var execs []models.ExecutionRecord
	if limit <= 0 {
		limit = 50
	}
	result := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("scheduled_at desc").
		Limit(limit).
		Find(&execs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list executions: %w", result.Error)
	}
	return execs, nil
}

// MarkOrphansAsFailed fails executions left RUNNING on nodes no longer active.
func (s *Store) MarkOrphansAsFailed(ctx context.Context, activeNodeIDs []string) (int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.ExecutionRecord{}).
		Where("status = ?", models.ExecutionRunning)

	if len(activeNodeIDs) > 0 {
		query = query.Where("node_id NOT IN ?", activeNodeIDs)
	}

	result := query.Updates(map[string]interface{}{
		"status":       models.ExecutionFailed,
		"error_message": "orphaned: node no longer active",
		"completed_at": time.Now(),
	})
	return result.RowsAffected, result.Error
}
