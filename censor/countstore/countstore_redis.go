package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCountPrefix    = "censor/count/"
	redisDistinctPrefix = "censor/distinct/"
)

// Buckets written on every increment, with how long each outlives its
// period. Zero means the key never expires.
var redisPeriods = []struct {
	period string
	ttl    time.Duration
}{
	{PeriodHour, 2 * time.Hour},
	{PeriodDay, 48 * time.Hour},
	{PeriodTotal, 0},
}

// RedisCountStore shares counters across daemon replicas.
type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

// NewRedisCountStore wraps an already connected client, usually the same one
// backing the verdict cache.
func NewRedisCountStore(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{Client: rdb}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	c, err := s.Client.Get(ctx, redisCountPrefix+periodBucket(name, val, period)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return c, err
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range redisPeriods {
			key := redisCountPrefix + periodBucket(name, val, p.period)
			pipe.Incr(ctx, key)
			if p.ttl > 0 {
				pipe.Expire(ctx, key, p.ttl)
			}
		}
		return nil
	})
	return err
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	c, err := s.Client.PFCount(ctx, redisDistinctPrefix+periodBucket(name, bucket, period)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return int(c), err
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range redisPeriods {
			key := redisDistinctPrefix + periodBucket(name, bucket, p.period)
			pipe.PFAdd(ctx, key, val)
			if p.ttl > 0 {
				pipe.Expire(ctx, key, p.ttl)
			}
		}
		return nil
	})
	return err
}
