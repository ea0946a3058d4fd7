// Package validate enforces task-shape invariants, replacing the
// decorator/JSON-schema style validation the distilled system used with
// explicit validator functions colocated with the Task entity.
package validate

import (
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
)

const (
	MaxTitleLength  = 1024
	PastGraceWindow = 60 * time.Second
)

// Issue binds a validation failure to a field name and a human-readable reason.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Input is the shape the validator checks; AllowPastNextRun permits the
// scheduler's own re-schedule path (recovering a missed occurrence) to set
// next_run_at in the past without tripping the grace-window check.
type Input struct {
	Title                string
	NextRunAt            *time.Time
	NotificationChannels models.NotificationChannels
	ScheduleType         models.ScheduleType
	ScheduleConfig       models.ScheduleConfig
	MaxRetries           int
	Now                  time.Time
	AllowPastNextRun     bool
}

// Validate returns the structured list of issues found, or nil if the input is valid.
func Validate(in Input) []Issue {
	var issues []Issue

	if in.Title == "" {
		issues = append(issues, Issue{Field: "title", Reason: "title must not be empty"})
	} else if len(in.Title) > MaxTitleLength {
		issues = append(issues, Issue{Field: "title", Reason: "title exceeds maximum length"})
	}

	if in.NextRunAt != nil && !in.AllowPastNextRun {
		if in.NextRunAt.Before(in.Now.Add(-PastGraceWindow)) {
			issues = append(issues, Issue{Field: "next_run_at", Reason: "next_run_at is in the past"})
		}
	}

	if len(in.NotificationChannels) == 0 {
		issues = append(issues, Issue{Field: "notification_channels", Reason: "at least one notification channel is required"})
	} else {
		for _, ch := range in.NotificationChannels {
			if !models.ValidChannels[ch] {
				issues = append(issues, Issue{Field: "notification_channels", Reason: "unknown channel: " + string(ch)})
				break
			}
		}
	}

	issues = append(issues, validateSchedule(in.ScheduleType, in.ScheduleConfig)...)

	if in.MaxRetries < 0 {
		issues = append(issues, Issue{Field: "max_retries", Reason: "max_retries must not be negative"})
	}

	return issues
}

func validateSchedule(scheduleType models.ScheduleType, cfg models.ScheduleConfig) []Issue {
	var issues []Issue

	switch scheduleType {
	case models.ScheduleOnce:
		if cfg.RunAt == nil {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "once schedule requires run_at"})
		}
	case models.ScheduleDaily:
		if err := validateClock(cfg.Hour, cfg.Minute); err != nil {
			issues = append(issues, Issue{Field: "schedule_config", Reason: err.Error()})
		}
	case models.ScheduleWeekly:
		if len(cfg.Weekdays) == 0 {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "weekly schedule requires weekdays"})
		}
		for _, wd := range cfg.Weekdays {
			if wd < 0 || wd > 6 {
				issues = append(issues, Issue{Field: "schedule_config", Reason: "weekdays must be in 0..6"})
				break
			}
		}
		if err := validateClock(cfg.Hour, cfg.Minute); err != nil {
			issues = append(issues, Issue{Field: "schedule_config", Reason: err.Error()})
		}
	case models.ScheduleMonthly:
		if cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31 {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "monthly schedule requires day_of_month in 1..31"})
		}
		if err := validateClock(cfg.Hour, cfg.Minute); err != nil {
			issues = append(issues, Issue{Field: "schedule_config", Reason: err.Error()})
		}
	case models.ScheduleYearly:
		if cfg.Month < 1 || cfg.Month > 12 {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "yearly schedule requires month in 1..12"})
		}
		if cfg.Day < 1 || cfg.Day > 31 {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "yearly schedule requires day in 1..31"})
		}
		if err := validateClock(cfg.Hour, cfg.Minute); err != nil {
			issues = append(issues, Issue{Field: "schedule_config", Reason: err.Error()})
		}
	case models.ScheduleCustom:
		if cfg.Cron == "" && cfg.IntervalMinutes <= 0 {
			issues = append(issues, Issue{Field: "schedule_config", Reason: "custom schedule requires interval_minutes or cron"})
		}
	default:
		issues = append(issues, Issue{Field: "schedule_type", Reason: "unknown schedule_type"})
	}

	return issues
}

func validateClock(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return errInvalidClock
	}
	return nil
}

var errInvalidClock = issueError("hour/minute out of range")

type issueError string

func (e issueError) Error() string { return string(e) }
