package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pq:"

// RedisStore keeps the cache in Redis under pq:<namespace>:<key>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL, which may be a redis:// URL or a bare
// host:port. A zero ttl stores entries without expiry.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	client, err := NewRedisClient(redisURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &RedisStore{client: client, ttl: ttl, logger: logger}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("Redis cache store connected", "ttl", ttl)
	return s, nil
}

// NewRedisClient builds a client from a redis:// URL or a host:port.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func redisKey(ns Namespace, key string) string {
	return redisKeyPrefix + string(ns) + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	if err := checkArgs(ns, key); err != nil {
		return "", false, err
	}
	val, err := s.client.Get(ctx, redisKey(ns, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s entry: %w", ns, err)
	}
	return val, true, nil
}

func (s *RedisStore) Put(ctx context.Context, ns Namespace, key, value string) error {
	if err := checkArgs(ns, key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(ns, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("put %s entry: %w", ns, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		s.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}
