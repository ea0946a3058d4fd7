// Package redisqueue implements storage.Queue over Redis Streams consumer groups.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ai-task-scheduler/engine/internal/storage"
)

const StreamKeyPending = "tasks:queue:pending"

type Queue struct {
	client *redis.Client
}

// New initializes a Redis client and verifies connectivity.
func New(addr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Push adds a unit of work to the pending stream.
func (q *Queue) Push(ctx context.Context, payload *storage.QueuePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKeyPending,
		Values: map[string]interface{}{
			"payload":      raw,
			"task_id":      payload.TaskID.String(),
			"execution_id": payload.ExecutionID.String(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push to queue: %w", err)
	}
	return nil
}

// EnsureGroup creates the consumer group if it doesn't already exist.
func (q *Queue) EnsureGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, StreamKeyPending, group, "$").Err()
	if err != nil {
		if err.Error() == "BUSYGROUP Consumer Group name already exists" {
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Pop retrieves one unit of work for the named consumer group/consumer.
func (q *Queue) Pop(ctx context.Context, group string, consumer string) (string, *storage.QueuePayload, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{StreamKeyPending, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return "", nil, nil
	}

	msg := streams[0].Messages[0]
	msgID := msg.ID

	payloadStr, ok := msg.Values["payload"].(string)
	if !ok {
		return msgID, nil, fmt.Errorf("invalid payload format")
	}

	var payload storage.QueuePayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return msgID, nil, fmt.Errorf("failed to unmarshal queue payload: %w", err)
	}

	return msgID, &payload, nil
}

// Ack acknowledges a unit of work as processed.
func (q *Queue) Ack(ctx context.Context, group string, msgID string) error {
	return q.client.XAck(ctx, StreamKeyPending, group, msgID).Err()
}
