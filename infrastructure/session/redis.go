package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixml/damkit/domain/chat"
)

const keyPrefix = "damkit:chat:session:"

// redisClient is the subset of redis.Cmdable the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions as JSON values that expire ttl after the last save.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: normalizeTTL(ttl), now: time.Now}
}

// Load returns the session or chat.ErrSessionNotFound.
func (s *RedisStore) Load(ctx context.Context, id string) (chat.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess chat.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return chat.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Expired(s.now(), s.ttl) {
		_ = s.client.Del(ctx, keyPrefix+id).Err()
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return sess, nil
}

// Save writes the session and resets its expiry.
func (s *RedisStore) Save(ctx context.Context, sess chat.Session) error {
	sess.LastActivity = s.now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ chat.SessionStore = (*RedisStore)(nil)
