// Package taskmanager implements the CRUD facade over TaskRepository,
// TimeParser, ScheduleCalculator, and Validator — the management API
// surface consumed by the HTTP layer.
package taskmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ai-task-scheduler/engine/internal/clock"
	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/schedule"
	"github.com/ai-task-scheduler/engine/internal/storage"
	"github.com/ai-task-scheduler/engine/internal/timeparse"
	"github.com/ai-task-scheduler/engine/internal/validate"
)

// Manager is the CRUD facade over C2-C5.
type Manager struct {
	repo       storage.TaskRepository
	clock      clock.Clock
	parser     *timeparse.Parser
	calculator *schedule.Calculator
}

// New returns a Manager wired to the given repository and clock.
func New(repo storage.TaskRepository, c clock.Clock) *Manager {
	return &Manager{
		repo:       repo,
		clock:      c,
		parser:     timeparse.New(c),
		calculator: schedule.New(),
	}
}

// Result is the typed envelope every operation returns.
type Result struct {
	Task   *models.Task
	Issues []validate.Issue
	Err    error
}

func (r Result) OK() bool { return r.Err == nil && len(r.Issues) == 0 }

// CreateReminderRequest is the CreateReminder operation's input.
type CreateReminderRequest struct {
	UserID  string
	Text    string
	Time    string
	Channel models.NotificationChannel
}

// CreateReminder parses Time via TimeParser and creates a once-scheduled task.
func (m *Manager) CreateReminder(ctx context.Context, req CreateReminderRequest) Result {
	runAt, err := m.parser.Parse(req.Time)
	if err != nil {
		return Result{Issues: []validate.Issue{{Field: "time", Reason: err.Error()}}}
	}

	cfg := models.ScheduleConfig{RunAt: &runAt}
	task := &models.Task{
		UserID:               req.UserID,
		Title:                req.Text,
		TaskType:             models.TaskTypeReminder,
		ScheduleType:         models.ScheduleOnce,
		ScheduleConfig:       cfg,
		NextRunAt:            &runAt,
		Status:               models.StatusActive,
		NotificationChannels: models.NotificationChannels{req.Channel},
		MaxRetries:           3,
	}

	return m.create(ctx, task)
}

// CreateTaskRequest is the CreateTask operation's input.
type CreateTaskRequest struct {
	UserID               string
	Title                string
	Description          string
	TaskType             models.TaskType
	ScheduleType         models.ScheduleType
	ScheduleConfig       models.ScheduleConfig
	NotificationChannels models.NotificationChannels
	AIContext            string
	MaxRetries           int
}

// CreateTask computes the initial next_run_at via ScheduleCalculator and persists the task.
func (m *Manager) CreateTask(ctx context.Context, req CreateTaskRequest) Result {
	now := m.clock.Now()
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	nextRunAt, err := m.initialNextRun(req.ScheduleType, req.ScheduleConfig, now)
	if err != nil {
		return Result{Issues: []validate.Issue{{Field: "schedule_config", Reason: err.Error()}}}
	}

	task := &models.Task{
		UserID:               req.UserID,
		Title:                req.Title,
		Description:          req.Description,
		TaskType:             req.TaskType,
		ScheduleType:         req.ScheduleType,
		ScheduleConfig:       req.ScheduleConfig,
		NextRunAt:            nextRunAt,
		Status:               models.StatusActive,
		NotificationChannels: req.NotificationChannels,
		AIContext:            req.AIContext,
		MaxRetries:           maxRetries,
	}

	return m.create(ctx, task)
}

func (m *Manager) initialNextRun(scheduleType models.ScheduleType, cfg models.ScheduleConfig, now time.Time) (*time.Time, error) {
	if scheduleType == models.ScheduleOnce {
		if cfg.RunAt == nil {
			return nil, fmt.Errorf("once schedule requires run_at")
		}
		return cfg.RunAt, nil
	}
	next, err := m.firstRun(scheduleType, cfg, now)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// firstRun computes a new schedule's first due instant: a daily schedule
// whose hour:minute is still ahead today (and before any end_date) first
// fires today; otherwise the calculator's next occurrence after now is used.
func (m *Manager) firstRun(scheduleType models.ScheduleType, cfg models.ScheduleConfig, now time.Time) (time.Time, error) {
	if scheduleType == models.ScheduleDaily {
		today := time.Date(now.Year(), now.Month(), now.Day(), cfg.Hour, cfg.Minute, 0, 0, now.Location())
		if today.After(now) && (cfg.EndDate == nil || today.Before(*cfg.EndDate)) {
			return today, nil
		}
	}
	return m.calculator.Next(scheduleType, cfg, now, 0)
}

func (m *Manager) create(ctx context.Context, task *models.Task) Result {
	issues := validate.Validate(validate.Input{
		Title:                task.Title,
		NextRunAt:            task.NextRunAt,
		NotificationChannels: task.NotificationChannels,
		ScheduleType:         task.ScheduleType,
		ScheduleConfig:       task.ScheduleConfig,
		MaxRetries:           task.MaxRetries,
		Now:                  m.clock.Now(),
	})
	if len(issues) > 0 {
		return Result{Issues: issues}
	}

	if err := m.repo.Insert(ctx, task); err != nil {
		return Result{Err: err}
	}
	return Result{Task: task}
}

// ListFilter mirrors storage.TaskFilter for the API surface.
type ListFilter struct {
	Status   models.TaskStatus
	TaskType models.TaskType
	Limit    int
}

// List delegates to ListByUser.
func (m *Manager) List(ctx context.Context, userID string, filter ListFilter) ([]models.Task, error) {
	return m.repo.ListByUser(ctx, userID, storage.TaskFilter{
		Status:   filter.Status,
		TaskType: filter.TaskType,
		Limit:    filter.Limit,
	})
}

// Get verifies ownership before returning the task.
func (m *Manager) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Task, error) {
	task, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return task, nil
}

// UpdatePatch is the caller-supplied partial update for Update.
type UpdatePatch struct {
	Title                *string
	Description          *string
	ScheduleType         *models.ScheduleType
	ScheduleConfig       *models.ScheduleConfig
	NotificationChannels *models.NotificationChannels
	AIContext            *string
	MaxRetries           *int
}

// Update verifies ownership, recomputes next_run_at if schedule fields changed.
func (m *Manager) Update(ctx context.Context, userID string, id uuid.UUID, patch UpdatePatch) Result {
	existing, err := m.Get(ctx, userID, id)
	if err != nil {
		return Result{Err: err}
	}

	storePatch := storage.TaskPatch{
		Title:                patch.Title,
		Description:          patch.Description,
		NotificationChannels: patch.NotificationChannels,
		AIContext:            patch.AIContext,
		MaxRetries:           patch.MaxRetries,
	}

	scheduleType := existing.ScheduleType
	scheduleConfig := existing.ScheduleConfig
	scheduleChanged := false
	if patch.ScheduleType != nil {
		scheduleType = *patch.ScheduleType
		scheduleChanged = true
	}
	if patch.ScheduleConfig != nil {
		scheduleConfig = *patch.ScheduleConfig
		scheduleChanged = true
	}

	if scheduleChanged {
		storePatch.ScheduleType = &scheduleType
		storePatch.ScheduleConfig = &scheduleConfig
		nextRunAt, err := m.initialNextRun(scheduleType, scheduleConfig, m.clock.Now())
		if err != nil {
			return Result{Issues: []validate.Issue{{Field: "schedule_config", Reason: err.Error()}}}
		}
		storePatch.NextRunAt = nextRunAt
	}

	title := existing.Title
	if patch.Title != nil {
		title = *patch.Title
	}
	channels := existing.NotificationChannels
	if patch.NotificationChannels != nil {
		channels = *patch.NotificationChannels
	}
	maxRetries := existing.MaxRetries
	if patch.MaxRetries != nil {
		maxRetries = *patch.MaxRetries
	}

	issues := validate.Validate(validate.Input{
		Title:                title,
		NextRunAt:            storePatch.NextRunAt,
		NotificationChannels: channels,
		ScheduleType:         scheduleType,
		ScheduleConfig:       scheduleConfig,
		MaxRetries:           maxRetries,
		Now:                  m.clock.Now(),
		AllowPastNextRun:     storePatch.NextRunAt == nil,
	})
	if len(issues) > 0 {
		return Result{Issues: issues}
	}

	updated, err := m.repo.Update(ctx, id, storePatch)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Task: updated}
}

// Delete verifies ownership; idempotent per spec.md §8.
func (m *Manager) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return err
	}
	return m.repo.Delete(ctx, id)
}

// CalculateNextRun previews scheduling without persisting, for callers
// that want to confirm a schedule before creating a task.
func (m *Manager) CalculateNextRun(scheduleType models.ScheduleType, cfg models.ScheduleConfig) (time.Time, error) {
	return m.firstRun(scheduleType, cfg, m.clock.Now())
}

// Trigger forces an active task's next_run_at to now so the next Poller
// tick picks it up ahead of its schedule (SPEC_FULL.md §5's manual trigger
// enrichment), scoped to the owning user_id like every other operation.
func (m *Manager) Trigger(ctx context.Context, userID string, id uuid.UUID) Result {
	existing, err := m.Get(ctx, userID, id)
	if err != nil {
		return Result{Err: err}
	}
	if existing.Status != models.StatusActive {
		return Result{Issues: []validate.Issue{{Field: "status", Reason: "only active tasks can be triggered"}}}
	}

	now := m.clock.Now()
	updated, err := m.repo.Update(ctx, id, storage.TaskPatch{NextRunAt: &now})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Task: updated}
}
