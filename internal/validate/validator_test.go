package validate_test

import (
	"testing"
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/validate"
)

func baseInput(now time.Time) validate.Input {
	next := now.Add(time.Hour)
	return validate.Input{
		Title:                "Call Bob",
		NextRunAt:            &next,
		NotificationChannels: models.NotificationChannels{models.ChannelSMS},
		ScheduleType:         models.ScheduleDaily,
		ScheduleConfig:       models.ScheduleConfig{Hour: 9, Minute: 0},
		MaxRetries:           3,
		Now:                  now,
	}
}

func TestValidate_ValidInput_NoIssues(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	issues := validate.Validate(baseInput(now))
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidate_EmptyTitle(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.Title = ""
	issues := validate.Validate(in)
	assertHasField(t, issues, "title")
}

func TestValidate_TitleTooLong(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	long := make([]byte, validate.MaxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	in.Title = string(long)
	issues := validate.Validate(in)
	assertHasField(t, issues, "title")
}

func TestValidate_NextRunInPast_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	past := now.Add(-5 * time.Minute)
	in.NextRunAt = &past
	issues := validate.Validate(in)
	assertHasField(t, issues, "next_run_at")
}

func TestValidate_NextRunInPast_AllowedWithOverride(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	past := now.Add(-5 * time.Minute)
	in.NextRunAt = &past
	in.AllowPastNextRun = true
	issues := validate.Validate(in)
	assertNoField(t, issues, "next_run_at")
}

func TestValidate_NextRunInPast_WithinGraceWindow_Allowed(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	past := now.Add(-30 * time.Second)
	in.NextRunAt = &past
	issues := validate.Validate(in)
	assertNoField(t, issues, "next_run_at")
}

func TestValidate_EmptyChannels_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.NotificationChannels = nil
	issues := validate.Validate(in)
	assertHasField(t, issues, "notification_channels")
}

func TestValidate_UnknownChannel_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.NotificationChannels = models.NotificationChannels{models.NotificationChannel("carrier_pigeon")}
	issues := validate.Validate(in)
	assertHasField(t, issues, "notification_channels")
}

func TestValidate_WeeklyWithoutWeekdays_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.ScheduleType = models.ScheduleWeekly
	in.ScheduleConfig = models.ScheduleConfig{Hour: 9, Minute: 0}
	issues := validate.Validate(in)
	assertHasField(t, issues, "schedule_config")
}

func TestValidate_MonthlyDayOutOfRange_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.ScheduleType = models.ScheduleMonthly
	in.ScheduleConfig = models.ScheduleConfig{DayOfMonth: 32, Hour: 9, Minute: 0}
	issues := validate.Validate(in)
	assertHasField(t, issues, "schedule_config")
}

func TestValidate_NegativeMaxRetries_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.MaxRetries = -1
	issues := validate.Validate(in)
	assertHasField(t, issues, "max_retries")
}

func TestValidate_UnknownScheduleType_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.ScheduleType = models.ScheduleType("bogus")
	issues := validate.Validate(in)
	assertHasField(t, issues, "schedule_type")
}

func TestValidate_OnceWithoutRunAt_Rejected(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	in := baseInput(now)
	in.ScheduleType = models.ScheduleOnce
	in.ScheduleConfig = models.ScheduleConfig{}
	issues := validate.Validate(in)
	assertHasField(t, issues, "schedule_config")
}

func assertHasField(t *testing.T, issues []validate.Issue, field string) {
	t.Helper()
	for _, iss := range issues {
		if iss.Field == field {
			return
		}
	}
	t.Fatalf("expected an issue on field %q, got %v", field, issues)
}

func assertNoField(t *testing.T, issues []validate.Issue, field string) {
	t.Helper()
	for _, iss := range issues {
		if iss.Field == field {
			t.Fatalf("expected no issue on field %q, got %v", field, issues)
		}
	}
}
