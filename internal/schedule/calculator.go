// Package schedule computes the next due instant for a task's schedule,
// given its schedule_type, schedule_config, and the anchor instant the
// previous run completed at.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ai-task-scheduler/engine/internal/models"
)

// ErrTerminal signals the schedule has no further occurrences (a "once"
// task after its first fire, or a schedule that hit end_date/max_occurrences).
var ErrTerminal = fmt.Errorf("schedule: terminal")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Calculator computes next_run_at from a schedule_type + schedule_config + anchor.
type Calculator struct{}

// New returns a Calculator. Stateless: deterministic given the same inputs.
func New() *Calculator {
	return &Calculator{}
}

// Next computes the next due instant after anchor, or ErrTerminal when the
// schedule has no further occurrences (including when end_date/max_occurrences
// caps are exceeded). occurrenceCount is the number of times the task has
// already fired, used to enforce max_occurrences.
func (c *Calculator) Next(scheduleType models.ScheduleType, cfg models.ScheduleConfig, anchor time.Time, occurrenceCount int) (time.Time, error) {
	next, err := c.nextUncapped(scheduleType, cfg, anchor)
	if err != nil {
		return time.Time{}, err
	}

	if cfg.MaxOccurrences > 0 && occurrenceCount+1 >= cfg.MaxOccurrences {
		return time.Time{}, ErrTerminal
	}
	if cfg.EndDate != nil && !next.Before(*cfg.EndDate) {
		return time.Time{}, ErrTerminal
	}

	return next, nil
}

func (c *Calculator) nextUncapped(scheduleType models.ScheduleType, cfg models.ScheduleConfig, anchor time.Time) (time.Time, error) {
	switch scheduleType {
	case models.ScheduleOnce:
		return time.Time{}, ErrTerminal

	case models.ScheduleDaily:
		interval := cfg.IntervalDays
		if interval <= 0 {
			interval = 1
		}
		next := anchor.AddDate(0, 0, interval)
		return atClock(next, cfg.Hour, cfg.Minute), nil

	case models.ScheduleWeekly:
		return nextWeekly(cfg, anchor)

	case models.ScheduleMonthly:
		return nextMonthly(cfg, anchor)

	case models.ScheduleYearly:
		interval := cfg.IntervalYears
		if interval <= 0 {
			interval = 1
		}
		next := anchor.AddDate(interval, 0, 0)
		if cfg.Month > 0 {
			next = time.Date(next.Year(), time.Month(cfg.Month), dayOrLast(next.Year(), time.Month(cfg.Month), cfg.Day), 0, 0, 0, 0, next.Location())
		}
		return atClock(next, cfg.Hour, cfg.Minute), nil

	case models.ScheduleCustom:
		if cfg.Cron != "" {
			schedule, err := cronParser.Parse(cfg.Cron)
			if err != nil {
				return time.Time{}, fmt.Errorf("schedule: invalid cron expression %q: %w", cfg.Cron, err)
			}
			return schedule.Next(anchor), nil
		}
		interval := cfg.IntervalMinutes
		if interval <= 0 {
			return time.Time{}, fmt.Errorf("schedule: custom schedule requires interval_minutes or cron")
		}
		return anchor.Add(time.Duration(interval) * time.Minute), nil

	default:
		return time.Time{}, fmt.Errorf("schedule: unknown schedule_type %q", scheduleType)
	}
}

func atClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// nextWeekly finds the next occurrence among weekdays (0=Mon..6=Sun) at
// hour:minute, stepping by interval_weeks once the current cycle's
// weekdays are exhausted.
func nextWeekly(cfg models.ScheduleConfig, anchor time.Time) (time.Time, error) {
	if len(cfg.Weekdays) == 0 {
		return time.Time{}, fmt.Errorf("schedule: weekly schedule requires weekdays")
	}
	intervalWeeks := cfg.IntervalWeeks
	if intervalWeeks <= 0 {
		intervalWeeks = 1
	}

	anchorWeekday := mondayIndex(anchor.Weekday())
	weekStart := anchor.AddDate(0, 0, -anchorWeekday)
	weekStart = time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, anchor.Location())

	var best *time.Time
	for _, wd := range cfg.Weekdays {
		candidate := atClock(weekStart.AddDate(0, 0, wd), cfg.Hour, cfg.Minute)
		if candidate.After(anchor) {
			if best == nil || candidate.Before(*best) {
				best = &candidate
			}
		}
	}
	if best != nil {
		return *best, nil
	}

	// Current cycle exhausted: step forward interval_weeks and take the
	// earliest listed weekday.
	nextWeekStart := weekStart.AddDate(0, 0, 7*intervalWeeks)
	minWeekday := cfg.Weekdays[0]
	for _, wd := range cfg.Weekdays {
		if wd < minWeekday {
			minWeekday = wd
		}
	}
	return atClock(nextWeekStart.AddDate(0, 0, minWeekday), cfg.Hour, cfg.Minute), nil
}

func mondayIndex(w time.Weekday) int {
	// time.Weekday: Sunday=0 ... Saturday=6. Schedule convention: Monday=0 ... Sunday=6.
	if w == time.Sunday {
		return 6
	}
	return int(w) - 1
}

// nextMonthly advances to the same day_of_month next month (stepping by
// interval_months), clamping to the last day of the target month when
// day_of_month exceeds its length.
func nextMonthly(cfg models.ScheduleConfig, anchor time.Time) (time.Time, error) {
	if cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31 {
		return time.Time{}, fmt.Errorf("schedule: monthly schedule requires day_of_month in 1..31")
	}
	interval := cfg.IntervalMonths
	if interval <= 0 {
		interval = 1
	}

	// Advance by calendar months on anchor's year/month alone, ignoring
	// anchor.Day(): time.Date normalizes a day overflow by walking forward
	// from the 1st of the target month, which would silently roll "Jan 31
	// + 1 month" into March instead of landing on February.
	totalMonths := int(anchor.Month()) - 1 + interval
	targetYear := anchor.Year() + totalMonths/12
	targetMonth := time.Month(totalMonths%12 + 1)

	day := dayOrLast(targetYear, targetMonth, cfg.DayOfMonth)
	next := time.Date(targetYear, targetMonth, day, cfg.Hour, cfg.Minute, 0, 0, anchor.Location())
	return next, nil
}

// dayOrLast clamps day to the last valid day of the given year/month.
func dayOrLast(year int, month time.Month, day int) int {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		return lastDay
	}
	return day
}
