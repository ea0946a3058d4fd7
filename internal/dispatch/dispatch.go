// Package dispatch fans a completed execution's result out to a task's
// configured notification channels (spec.md §4.9, C9).
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ai-task-scheduler/engine/internal/models"
)

// Sink is the external notification-channel collaborator (spec.md §6.2).
// The scheduler does not interpret payload formatting.
type Sink interface {
	Send(ctx context.Context, channel models.NotificationChannel, userID string, payload string) error
}

// Result aggregates the per-channel outcome of one dispatch.
type Result struct {
	Outcomes         map[models.NotificationChannel]error
	AnyDelivered     bool
	DeliveryWarnings string
}

// Dispatcher fans out a result to a task's notification channels.
type Dispatcher struct {
	sink Sink
}

// New returns a Dispatcher backed by the given Sink.
func New(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// Dispatch sends payload to every channel, collecting per-channel outcomes.
// At least one success is sufficient for the execution to be considered
// delivered; all failures produce non-empty DeliveryWarnings but never
// change task status — dispatch failure is never retried (spec.md §7,
// SPEC_FULL.md §8 open question 2).
func (d *Dispatcher) Dispatch(ctx context.Context, channels models.NotificationChannels, userID string, payload string) Result {
	outcomes := make(map[models.NotificationChannel]error, len(channels))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(channel models.NotificationChannel) {
			defer wg.Done()
			err := d.sink.Send(ctx, channel, userID, payload)
			mu.Lock()
			outcomes[channel] = err
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	result := Result{Outcomes: outcomes}
	var warnings []string
	for ch, err := range outcomes {
		if err == nil {
			result.AnyDelivered = true
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: %v", ch, err))
		}
	}
	result.DeliveryWarnings = strings.Join(warnings, "; ")

	return result
}
