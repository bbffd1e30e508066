// Package redis provides a shared plan cache tier on Redis, for deployments
// where several wanderplan instances should reuse each other's plans.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/models"
)

// Store keeps plan text under prefix+fingerprint with a Redis-side TTL.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return &Store{client: client, prefix: cfg.Prefix, ttl: ttl}, nil
}

func (s *Store) key(fingerprint string) string {
	return s.prefix + fingerprint
}

// Get returns the cached plan text. redis.Nil is reported as a miss.
func (s *Store) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	text, err := s.client.Get(ctx, s.key(fingerprint)).Result()
	if errors.Is(err, goredis.Nil) {
		s.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	s.hits.Add(1)
	return text, true, nil
}

// Put stores plan text with the store TTL.
func (s *Store) Put(ctx context.Context, fingerprint, text string) error {
	if err := s.client.Set(ctx, s.key(fingerprint), text, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stats counts keys under the prefix.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("redis stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Clear deletes every key under the prefix. Redis expires keys on its own,
// so clearing only expired entries is a no-op.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	if expiredOnly {
		return nil
	}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

// Close closes the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
