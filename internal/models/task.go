// Package models holds the persistent entities owned by the scheduler.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskType distinguishes how a task's execution should be framed to the Agent.
type TaskType string

const (
	TaskTypeReminder      TaskType = "reminder"
	TaskTypePeriodicTask  TaskType = "periodic_task"
	TaskTypeAutomatedTask TaskType = "automated_task"
	TaskTypeCustom        TaskType = "custom"
)

// ScheduleType selects the ScheduleCalculator rule used to advance NextRunAt.
type ScheduleType string

const (
	ScheduleOnce    ScheduleType = "once"
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleYearly  ScheduleType = "yearly"
	ScheduleCustom  ScheduleType = "custom"
)

// TaskStatus is the lifecycle state of a Task (spec.md §3).
type TaskStatus string

const (
	StatusActive     TaskStatus = "active"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusPaused     TaskStatus = "paused"
	StatusCancelled  TaskStatus = "cancelled"
)

// NotificationChannel identifies an external delivery sink.
type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelInApp NotificationChannel = "in_app"
)

// ValidChannels enumerates every channel the scheduler recognizes.
var ValidChannels = map[NotificationChannel]bool{
	ChannelSMS:   true,
	ChannelEmail: true,
	ChannelPush:  true,
	ChannelInApp: true,
}

// ScheduleConfig is the structured configuration consumed by the
// ScheduleCalculator; its recognized keys depend on ScheduleType (spec.md §6.4).
type ScheduleConfig struct {
	// once
	RunAt *time.Time `json:"run_at,omitempty"`

	// daily / weekly / monthly / yearly
	Hour   int `json:"hour"`
	Minute int `json:"minute"`

	// weekly
	Weekdays      []int `json:"weekdays,omitempty"` // 0=Mon ... 6=Sun
	IntervalWeeks int   `json:"interval_weeks,omitempty"`

	// daily
	IntervalDays int `json:"interval_days,omitempty"`

	// monthly
	DayOfMonth     int `json:"day_of_month,omitempty"`
	IntervalMonths int `json:"interval_months,omitempty"`

	// yearly
	Month          int `json:"month,omitempty"`
	Day            int `json:"day,omitempty"`
	IntervalYears  int `json:"interval_years,omitempty"`

	// custom
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
	Cron            string `json:"cron,omitempty"` // enrichment: optional cron expression, see SPEC_FULL.md §6

	// caps, any schedule type
	EndDate        *time.Time `json:"end_date,omitempty"`
	MaxOccurrences int        `json:"max_occurrences,omitempty"`
}

// Scan implements sql.Scanner so GORM can load the JSONB column.
func (c *ScheduleConfig) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("schedule_config: type assertion to []byte failed")
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// Value implements driver.Valuer so GORM can persist the JSONB column.
func (c ScheduleConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// NotificationChannels is an ordered, JSONB-backed list of channels.
type NotificationChannels []NotificationChannel

func (c *NotificationChannels) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("notification_channels: type assertion to []byte failed")
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, c)
}

func (c NotificationChannels) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Task is the central record owned by TaskRepository (spec.md §3).
type Task struct {
	ID                   uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	UserID               string               `json:"user_id" gorm:"not null;index:idx_user_status"`
	Title                string               `json:"title" gorm:"not null"`
	Description          string               `json:"description"`
	TaskType             TaskType             `json:"task_type" gorm:"type:varchar(32);not null"`
	ScheduleType         ScheduleType         `json:"schedule_type" gorm:"type:varchar(16);not null"`
	ScheduleConfig       ScheduleConfig       `json:"schedule_config" gorm:"type:jsonb"`
	NextRunAt            *time.Time           `json:"next_run_at" gorm:"index:idx_status_next_run"`
	LastRunAt            *time.Time           `json:"last_run_at"`
	Status               TaskStatus           `json:"status" gorm:"type:varchar(16);default:'active';index:idx_status_next_run;index:idx_user_status"`
	NotificationChannels NotificationChannels `json:"notification_channels" gorm:"type:jsonb;not null"`
	AIContext            string               `json:"ai_context"`
	LastResult           string               `json:"last_result"`
	RetryCount           int                  `json:"retry_count" gorm:"default:0"`
	MaxRetries           int                  `json:"max_retries" gorm:"default:3"`
	OccurrenceCount      int                  `json:"occurrence_count" gorm:"default:0"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	DeletedAt            gorm.DeletedAt       `json:"-" gorm:"index"`
}

// BeforeCreate assigns an ID when the caller hasn't supplied one.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ExecutionStatus is the outcome of a single attempt to run a Task.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionRecord is an audit-trail row for one attempt at running a Task
// (SPEC_FULL.md §5, "per-task execution history").
type ExecutionRecord struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID        uuid.UUID       `json:"task_id" gorm:"type:uuid;not null;index"`
	NodeID        string          `json:"node_id"`
	ScheduledAt   time.Time       `json:"scheduled_at" gorm:"not null"`
	StartedAt     *time.Time      `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	Status        ExecutionStatus `json:"status" gorm:"type:varchar(16);default:'pending'"`
	Attempt       int             `json:"attempt" gorm:"default:1"`
	QualityScore  float64         `json:"quality_score"`
	IsHighQuality bool            `json:"is_high_quality"`
	Result           string `json:"result"`
	ErrorMessage     string `json:"error_message"`
	DeliveryWarnings string `json:"delivery_warnings"`
}

func (e *ExecutionRecord) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
