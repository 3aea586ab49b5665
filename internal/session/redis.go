package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/types"
)

const redisBackend = "redis"

// RedisStore keeps result sets in Redis as JSON with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: "address_lookup:session:",
		ttl:    ttl,
		logger: logger.Named("redis_store"),
	}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*types.ResultSet, error) {
	val, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Backend: redisBackend, Op: "get", Cause: err}
	}

	var rs types.ResultSet
	if err := json.Unmarshal(val, &rs); err != nil {
		return nil, &StoreError{Backend: redisBackend, Op: "decode", Cause: err}
	}
	return &rs, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, sessionID string, rs *types.ResultSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return &StoreError{Backend: redisBackend, Op: "encode", Cause: err}
	}

	if err := s.client.Set(ctx, s.prefix+sessionID, data, s.ttl).Err(); err != nil {
		return &StoreError{Backend: redisBackend, Op: "put", Cause: err}
	}
	s.logger.Debug("stored result set", zap.String("session", sessionID), zap.Int("records", rs.Len()))
	return nil
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return &StoreError{Backend: redisBackend, Op: "remove", Cause: err}
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
