// Package session persists chat sessions in Redis or in process memory.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixml/damkit/domain/chat"
)

// New returns a Redis-backed store when redisURL is set, otherwise an
// in-process store.
func New(ctx context.Context, redisURL string, ttl time.Duration) (chat.SessionStore, func() error, error) {
	if redisURL == "" {
		return NewMemoryStore(ttl), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStore(client, ttl), client.Close, nil
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return chat.SessionTTL
	}
	return ttl
}
