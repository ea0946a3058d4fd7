package models_test

import (
	"testing"
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
)

func TestScheduleConfig_ValueScan_RoundTrip(t *testing.T) {
	runAt := time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)
	cfg := models.ScheduleConfig{
		RunAt:    &runAt,
		Hour:     9,
		Minute:   30,
		Weekdays: []int{0, 2, 4},
	}

	raw, err := cfg.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bytes, ok := raw.([]byte)
	if !ok {
		t.Fatalf("expected []byte from Value(), got %T", raw)
	}

	var out models.ScheduleConfig
	if err := out.Scan(bytes); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}

	if out.Hour != cfg.Hour || out.Minute != cfg.Minute {
		t.Errorf("expected hour/minute round-trip, got %+v", out)
	}
	if len(out.Weekdays) != 3 {
		t.Errorf("expected weekdays round-trip, got %v", out.Weekdays)
	}
	if out.RunAt == nil || !out.RunAt.Equal(runAt) {
		t.Errorf("expected run_at round-trip, got %v", out.RunAt)
	}
}

func TestScheduleConfig_Scan_EmptyBytes(t *testing.T) {
	var cfg models.ScheduleConfig
	if err := cfg.Scan([]byte{}); err != nil {
		t.Fatalf("unexpected error scanning empty bytes: %v", err)
	}
}

func TestScheduleConfig_Scan_WrongType(t *testing.T) {
	var cfg models.ScheduleConfig
	if err := cfg.Scan("not bytes"); err == nil {
		t.Fatal("expected error scanning non-[]byte value")
	}
}

func TestNotificationChannels_ValueScan_RoundTrip(t *testing.T) {
	channels := models.NotificationChannels{models.ChannelSMS, models.ChannelEmail, models.ChannelPush}

	raw, err := channels.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bytes := raw.([]byte)

	var out models.NotificationChannels
	if err := out.Scan(bytes); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if len(out) != 3 || out[0] != models.ChannelSMS || out[2] != models.ChannelPush {
		t.Errorf("expected ordered round-trip, got %v", out)
	}
}

func TestValidChannels_KnownChannels(t *testing.T) {
	for _, ch := range []models.NotificationChannel{models.ChannelSMS, models.ChannelEmail, models.ChannelPush, models.ChannelInApp} {
		if !models.ValidChannels[ch] {
			t.Errorf("expected %q to be a recognized channel", ch)
		}
	}
	if models.ValidChannels[models.NotificationChannel("carrier_pigeon")] {
		t.Error("expected unknown channel to be rejected")
	}
}
