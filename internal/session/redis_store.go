package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a redis hash with an idle TTL. The TTL is
// a server-side backstop; the cookie itself is scoped to the browser session.
type RedisStore struct {
	client  *redis.Client
	idleTTL time.Duration
}

func NewRedisStore(client *redis.Client, idleTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, idleTTL: idleTTL}
}

func (s *RedisStore) key(sid string) string {
	return "session:" + sid
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(sid), key, value)
	pipe.Expire(ctx, s.key(sid), s.idleTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.key(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	// Refresh the idle TTL on access.
	s.client.Expire(ctx, s.key(sid), s.idleTTL)
	return value, nil
}

func (s *RedisStore) Remove(ctx context.Context, sid, key string) error {
	return s.client.HDel(ctx, s.key(sid), key).Err()
}

func (s *RedisStore) Clear(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.key(sid)).Err()
}
