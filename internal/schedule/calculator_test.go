package schedule_test

import (
	"testing"
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/schedule"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return tm
}

func TestCalculator_Once_IsTerminal(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T09:00:00Z")

	_, err := c.Next(models.ScheduleOnce, models.ScheduleConfig{}, anchor, 0)
	if err != schedule.ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestCalculator_Daily(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{Hour: 7, Minute: 0}

	next, err := c.Next(models.ScheduleDaily, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-01-11T07:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Daily_CustomInterval(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{Hour: 7, Minute: 0, IntervalDays: 3}

	next, err := c.Next(models.ScheduleDaily, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-01-13T07:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Weekly_SingleWeekday_SevenDaysApart(t *testing.T) {
	c := schedule.New()
	// 2025-01-13 is a Monday (weekday 0).
	anchor := mustParse(t, time.RFC3339, "2025-01-13T09:00:00Z")
	cfg := models.ScheduleConfig{Weekdays: []int{0}, Hour: 9, Minute: 0}

	next, err := c.Next(models.ScheduleWeekly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := anchor.AddDate(0, 0, 7)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Weekly_IntervalWeeks(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-13T09:00:00Z")
	cfg := models.ScheduleConfig{Weekdays: []int{0}, Hour: 9, Minute: 0, IntervalWeeks: 2}

	next, err := c.Next(models.ScheduleWeekly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := anchor.AddDate(0, 0, 14)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Weekly_MultipleWeekdaysWithinCycle(t *testing.T) {
	c := schedule.New()
	// Monday anchor, weekdays Mon(0) and Wed(2): next occurrence is Wed same week.
	anchor := mustParse(t, time.RFC3339, "2025-01-13T09:00:00Z")
	cfg := models.ScheduleConfig{Weekdays: []int{0, 2}, Hour: 9, Minute: 0}

	next, err := c.Next(models.ScheduleWeekly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-01-15T09:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Weekly_NoWeekdays_Errors(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-13T09:00:00Z")
	cfg := models.ScheduleConfig{Hour: 9, Minute: 0}

	_, err := c.Next(models.ScheduleWeekly, cfg, anchor, 0)
	if err == nil {
		t.Fatal("expected error for weekly schedule with no weekdays")
	}
}

func TestCalculator_Monthly_ClampToLastDay(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-31T12:00:00Z")
	cfg := models.ScheduleConfig{DayOfMonth: 31, Hour: 12, Minute: 0}

	next, err := c.Next(models.ScheduleMonthly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-02-28T12:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Monthly_IntervalMonths(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-15T08:00:00Z")
	cfg := models.ScheduleConfig{DayOfMonth: 15, Hour: 8, Minute: 0, IntervalMonths: 2}

	next, err := c.Next(models.ScheduleMonthly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-03-15T08:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Yearly(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-03-01T10:00:00Z")
	cfg := models.ScheduleConfig{Month: 3, Day: 1, Hour: 10, Minute: 0}

	next, err := c.Next(models.ScheduleYearly, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2026-03-01T10:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Custom_IntervalMinutes(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{IntervalMinutes: 45}

	next, err := c.Next(models.ScheduleCustom, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := anchor.Add(45 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Custom_Cron(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{Cron: "0 8 * * *"}

	next, err := c.Next(models.ScheduleCustom, cfg, anchor, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, time.RFC3339, "2025-01-10T08:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculator_Custom_NoIntervalOrCron_Errors(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")

	_, err := c.Next(models.ScheduleCustom, models.ScheduleConfig{}, anchor, 0)
	if err == nil {
		t.Fatal("expected error for custom schedule with no interval or cron")
	}
}

func TestCalculator_MaxOccurrences_Terminal(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{Hour: 7, Minute: 0, MaxOccurrences: 2}

	// occurrenceCount=1 means this would be the 2nd fire: at the cap, terminal.
	_, err := c.Next(models.ScheduleDaily, cfg, anchor, 1)
	if err != schedule.ErrTerminal {
		t.Fatalf("expected ErrTerminal at max occurrences, got %v", err)
	}
}

func TestCalculator_EndDate_Terminal(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	endDate := mustParse(t, time.RFC3339, "2025-01-10T12:00:00Z")
	cfg := models.ScheduleConfig{Hour: 7, Minute: 0, EndDate: &endDate}

	_, err := c.Next(models.ScheduleDaily, cfg, anchor, 0)
	if err != schedule.ErrTerminal {
		t.Fatalf("expected ErrTerminal past end_date, got %v", err)
	}
}

func TestCalculator_Deterministic(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")
	cfg := models.ScheduleConfig{Hour: 7, Minute: 0}

	a, errA := c.Next(models.ScheduleDaily, cfg, anchor, 0)
	b, errB := c.Next(models.ScheduleDaily, cfg, anchor, 0)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if !a.Equal(b) {
		t.Errorf("expected deterministic output, got %v vs %v", a, b)
	}
}

func TestCalculator_UnknownScheduleType_Errors(t *testing.T) {
	c := schedule.New()
	anchor := mustParse(t, time.RFC3339, "2025-01-10T07:00:00Z")

	_, err := c.Next(models.ScheduleType("bogus"), models.ScheduleConfig{}, anchor, 0)
	if err == nil {
		t.Fatal("expected error for unknown schedule type")
	}
}
