// Package events announces finished runs on a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-report/internal/runs"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeRunCompleted EventType = "RUN_COMPLETED"
	EventTypeRunFailed    EventType = "RUN_FAILED"
)

const DefaultStream = "stream:scrape_runs"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher writes one stream entry per finished run.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// RunFinished implements runs.Notifier.
func (p *Publisher) RunFinished(ctx context.Context, run *runs.Run) error {
	eventType := EventTypeRunCompleted
	if run.Status == runs.StatusFailed {
		eventType = EventTypeRunFailed
	}

	now := time.Now().UTC()
	streamData := map[string]interface{}{
		"id":        run.ID.String(),
		"type":      eventType,
		"timestamp": now.Format(time.RFC3339),
		"payload":   run,
		"metadata": map[string]interface{}{
			"source": "listing-report",
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"type":       string(eventType),
			"timestamp":  fmt.Sprintf("%d", now.UnixNano()),
			"run_id":     run.ID.String(),
			"registry":   run.Registry,
			"event_type": string(eventType),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("run event published",
		"run_id", run.ID,
		"event_type", eventType,
		"stream", p.stream,
		"entry_id", id)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
