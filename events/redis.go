package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// RedisStreamConfig describes the Redis stream events are appended to.
type RedisStreamConfig struct {
	Address  string
	Password string
	DB       int
	Stream   string
	MaxLen   int64 // approximate trim length, 0 keeps everything
}

// RedisSink appends events to a Redis stream, one entry per event.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisStreamConfig) (*RedisSink, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address must not be empty")
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "proof-events"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSink{client: client, stream: stream, maxLen: cfg.MaxLen}, nil
}

func (s *RedisSink) Publish(ctx context.Context, record interfaces.EventRecord) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(record),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", s.stream, err)
	}
	return nil
}

func (s *RedisSink) Name() string { return "redis-" + s.stream }

func (s *RedisSink) Close() error { return s.client.Close() }

// streamValues flattens a record into stream entry fields.
func streamValues(record interfaces.EventRecord) map[string]interface{} {
	return map[string]interface{}{
		"name":         record.Name,
		"who":          record.Who.String(),
		"proof":        record.Proof.String(),
		"block_number": strconv.FormatUint(uint64(record.BlockNumber), 10),
		"index":        strconv.FormatUint(record.Index, 10),
	}
}
