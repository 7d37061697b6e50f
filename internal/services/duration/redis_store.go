package duration

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// RedisStore shares durations between relay instances. Keys are written with
// SETNX and no expiry, matching the in-process cache.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ytlinks:duration:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, id domain.VideoID) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 0, false, nil
	}
	return seconds, true, nil
}

func (s *RedisStore) Put(ctx context.Context, id domain.VideoID, seconds int64) error {
	return s.client.SetNX(ctx, s.prefix+string(id), strconv.FormatInt(seconds, 10), 0).Err()
}
