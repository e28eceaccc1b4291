package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStorage keeps each session's persisted keys in one hash:
// HSET exam:session:{sessionID} {key} {json}. The hash expires ttl after the
// last write so abandoned sessions do not linger.
type SessionStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStorage(client *redis.Client, ttl time.Duration) *SessionStorage {
	return &SessionStorage{client: client, ttl: ttl}
}

func (s *SessionStorage) Set(ctx context.Context, sessionID, key string, value []byte) error {
	hash := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, hash, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, hash, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStorage) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	value, err := s.client.HGet(ctx, s.key(sessionID), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *SessionStorage) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.key(sessionID), keys...).Err()
}

func (s *SessionStorage) key(sessionID string) string {
	return "exam:session:" + sessionID
}
