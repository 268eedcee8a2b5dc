package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/fixprice-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

const EventProductCaptured = "PRODUCT_CAPTURED"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisSink publishes each record as an entry on a Redis stream.
type RedisSink struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewRedisSink(client RedisClient, stream string, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{
		client: client,
		stream: stream,
		logger: logger.With("component", "redis_sink"),
	}
}

func (s *RedisSink) Emit(ctx context.Context, record *models.ProductRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	eventID := uuid.New().String()
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_id":   eventID,
			"event_type": EventProductCaptured,
			"rpc":        record.RPC,
			"url":        record.URL,
			"timestamp":  time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339),
			"data":       string(data),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	s.logger.Debug("record published", "stream", s.stream, "stream_id", id, "event_id", eventID, "rpc", record.RPC)
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
