package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// RedisConfig describes the Redis connection for the proof store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisBackend stores each record under prefix + storage key, with SETNX providing
// insert-if-absent across processes.
type RedisBackend struct {
	client      *redis.Client
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig, log *slog.Logger) (*RedisBackend, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address must not be empty")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "proofs:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: cannot reach Redis: %v", interfaces.ErrBackendUnavailable, err)
	}

	return &RedisBackend{
		client:      client,
		prefix:      prefix,
		log:         log,
		locationURI: fmt.Sprintf("redis://%s/%d?prefix=%s", cfg.Address, cfg.DB, prefix),
	}, nil
}

func (b *RedisBackend) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	data, err := b.client.Get(ctx, b.key(proof)).Bytes()
	if errors.Is(err, redis.Nil) {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}
	if err != nil {
		b.log.Error("Failed to read from Redis", slog.String("proof", proof.String()), "err", err)
		return interfaces.ProofRecord{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return decodeRecord(proof, data)
}

func (b *RedisBackend) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	data, err := encodeRecord(proof, record)
	if err != nil {
		return err
	}

	ok, err := b.client.SetNX(ctx, b.key(proof), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if !ok {
		return interfaces.ErrRecordExists
	}

	b.log.Debug("Stored record in Redis", slog.String("proof", proof.String()))
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, proof interfaces.Proof) error {
	removed, err := b.client.Del(ctx, b.key(proof)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if removed == 0 {
		return interfaces.ErrRecordNotFound
	}
	return nil
}

func (b *RedisBackend) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := b.client.Ping(pingCtx).Err(); err != nil {
		b.log.Warn("Redis backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *RedisBackend) Name() string {
	return fmt.Sprintf("redis-%s", b.client.Options().Addr)
}

func (b *RedisBackend) LocationURI() string {
	return b.locationURI
}

func (b *RedisBackend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *RedisBackend) key(proof interfaces.Proof) string {
	return b.prefix + string(proof.StorageKey())
}
