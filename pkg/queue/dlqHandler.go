package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DegradedEvent records a reminder that left the normal dispatch path:
// it exceeded the staleness ceiling and was force-acknowledged, so an
// operator can inspect what was never delivered.
type DegradedEvent struct {
	TaskID     int64     `json:"task_id"`
	OwnerID    string    `json:"owner_id"`
	Reason     string    `json:"reason"`
	RemindAt   time.Time `json:"remind_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DLQHandler stores degraded-delivery events in a dead letter queue
type DLQHandler interface {
	Record(ctx context.Context, event *DegradedEvent) error
	GetEvents(ctx context.Context, limit int) ([]*DegradedEvent, error)
	DeleteEvent(ctx context.Context, taskID int64) error
	GetStats(ctx context.Context) (*DLQStats, error)
}

// DefaultDLQHandler is the redis-backed implementation of DLQHandler
type DefaultDLQHandler struct {
	client *redis.Client
	dlq    string
}

// DLQStats contains statistics about the dead letter queue
type DLQStats struct {
	QueueSize     int64     `json:"queue_size"`
	OldestFailure time.Time `json:"oldest_failure"`
	NewestFailure time.Time `json:"newest_failure"`
}

// NewDefaultDLQHandler creates a new DefaultDLQHandler
func NewDefaultDLQHandler(client *redis.Client, dlq string) *DefaultDLQHandler {
	return &DefaultDLQHandler{
		client: client,
		dlq:    dlq,
	}
}

// Record stores a degraded-delivery event in the DLQ
func (d *DefaultDLQHandler) Record(ctx context.Context, event *DegradedEvent) error {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded event: %w", err)
	}

	// Timestamp as score keeps the queue sorted for inspection
	score := float64(event.RecordedAt.UnixNano()) / 1e9
	if err := d.client.ZAdd(ctx, d.dlq, &redis.Z{
		Score:  score,
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to record degraded event: %w", err)
	}

	return nil
}

// GetEvents returns the oldest events in the DLQ, up to limit
func (d *DefaultDLQHandler) GetEvents(ctx context.Context, limit int) ([]*DegradedEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	members, err := d.client.ZRange(ctx, d.dlq, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	events := make([]*DegradedEvent, 0, len(members))
	for _, m := range members {
		var event DegradedEvent
		if err := json.Unmarshal([]byte(m), &event); err != nil {
			continue // skip unreadable entries rather than failing the whole read
		}
		events = append(events, &event)
	}
	return events, nil
}

// DeleteEvent removes all DLQ entries for the given task
func (d *DefaultDLQHandler) DeleteEvent(ctx context.Context, taskID int64) error {
	events, err := d.GetEvents(ctx, 0)
	if err != nil {
		return err
	}

	for _, event := range events {
		if event.TaskID != taskID {
			continue
		}
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := d.client.ZRem(ctx, d.dlq, data).Err(); err != nil {
			return fmt.Errorf("failed to delete DLQ entry: %w", err)
		}
	}
	return nil
}

// GetStats returns statistics about the DLQ
func (d *DefaultDLQHandler) GetStats(ctx context.Context) (*DLQStats, error) {
	size, err := d.client.ZCard(ctx, d.dlq).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ size: %w", err)
	}

	stats := &DLQStats{QueueSize: size}
	if size == 0 {
		return stats, nil
	}

	oldest, err := d.client.ZRangeWithScores(ctx, d.dlq, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		stats.OldestFailure = time.Unix(int64(oldest[0].Score), 0)
	}
	newest, err := d.client.ZRangeWithScores(ctx, d.dlq, -1, -1).Result()
	if err == nil && len(newest) > 0 {
		stats.NewestFailure = time.Unix(int64(newest[0].Score), 0)
	}

	return stats, nil
}
