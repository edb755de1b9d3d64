package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects using a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for redis store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: prefix}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (s *Redis) key(k string) string { return s.prefix + strings.TrimSpace(k) }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Set stores without expiry; records live until cleared externally.
func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

// maxUpdateAttempts bounds optimistic retries when another writer touches the key.
const maxUpdateAttempts = 8

// Update runs fn inside WATCH/MULTI so a concurrent write aborts and retries it.
func (s *Redis) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: gave up after %d conflicting writes", key, maxUpdateAttempts)
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
