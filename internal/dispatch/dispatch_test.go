package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ai-task-scheduler/engine/internal/dispatch"
	"github.com/ai-task-scheduler/engine/internal/models"
)

type fakeSink struct {
	mu      sync.Mutex
	results map[models.NotificationChannel]error
	calls   []models.NotificationChannel
}

func (f *fakeSink) Send(ctx context.Context, channel models.NotificationChannel, userID string, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, channel)
	return f.results[channel]
}

func TestDispatch_AllSucceed(t *testing.T) {
	sink := &fakeSink{results: map[models.NotificationChannel]error{}}
	d := dispatch.New(sink)

	result := d.Dispatch(context.Background(), models.NotificationChannels{models.ChannelSMS, models.ChannelEmail}, "user-1", "hello")

	if !result.AnyDelivered {
		t.Error("expected AnyDelivered true")
	}
	if result.DeliveryWarnings != "" {
		t.Errorf("expected no delivery warnings, got %q", result.DeliveryWarnings)
	}
	if len(result.Outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
}

func TestDispatch_PartialFailure_StillDelivered(t *testing.T) {
	sink := &fakeSink{results: map[models.NotificationChannel]error{
		models.ChannelSMS: errors.New("sms down"),
	}}
	d := dispatch.New(sink)

	result := d.Dispatch(context.Background(), models.NotificationChannels{models.ChannelSMS, models.ChannelEmail}, "user-1", "hello")

	if !result.AnyDelivered {
		t.Error("expected AnyDelivered true when at least one channel succeeds")
	}
	if result.DeliveryWarnings == "" {
		t.Error("expected a delivery warning for the failed channel")
	}
}

func TestDispatch_AllFail_NotDelivered(t *testing.T) {
	sink := &fakeSink{results: map[models.NotificationChannel]error{
		models.ChannelSMS:   errors.New("sms down"),
		models.ChannelEmail: errors.New("email down"),
	}}
	d := dispatch.New(sink)

	result := d.Dispatch(context.Background(), models.NotificationChannels{models.ChannelSMS, models.ChannelEmail}, "user-1", "hello")

	if result.AnyDelivered {
		t.Error("expected AnyDelivered false when every channel fails")
	}
	if result.DeliveryWarnings == "" {
		t.Error("expected delivery warnings to be non-empty")
	}
}

func TestDispatch_EveryChannelInvoked(t *testing.T) {
	sink := &fakeSink{results: map[models.NotificationChannel]error{}}
	d := dispatch.New(sink)

	channels := models.NotificationChannels{models.ChannelSMS, models.ChannelEmail, models.ChannelPush, models.ChannelInApp}
	d.Dispatch(context.Background(), channels, "user-1", "hello")

	if len(sink.calls) != 4 {
		t.Errorf("expected sink invoked once per channel (4), got %d", len(sink.calls))
	}
}
