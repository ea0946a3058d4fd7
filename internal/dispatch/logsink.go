package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/models"
)

// LogSink is a reference Sink (spec.md §6.2) implementation that records
// each delivery via the injected logger instead of an external transport.
// Deployments that wire real SMS/email/push providers implement Sink
// themselves; LogSink exists so cmd/executor has something concrete to
// run against out of the box.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a Sink that logs every delivery at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send logs the delivery and always succeeds.
func (s *LogSink) Send(ctx context.Context, channel models.NotificationChannel, userID string, payload string) error {
	s.logger.Info("notification dispatched",
		zap.String("channel", string(channel)),
		zap.String("user_id", userID),
		zap.Int("payload_length", len(payload)),
	)
	return nil
}
