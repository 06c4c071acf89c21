package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/aiocensor/aiocensor/censor"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisVerdictCache struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ VerdictCache = (*RedisVerdictCache)(nil)

func NewRedisVerdictCache(redisURL string, ttl time.Duration) (*RedisVerdictCache, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisVerdictCacheFromClient(rdb, ttl), nil
}

func NewRedisVerdictCacheFromClient(rdb *redis.Client, ttl time.Duration) *RedisVerdictCache {
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisVerdictCache{
		Data: data,
		TTL:  ttl,
	}
}

func redisCacheKey(key string) string {
	return "verdict/" + key
}

func (s *RedisVerdictCache) Get(ctx context.Context, key string) (censor.Verdict, bool, error) {
	var raw string
	err := s.Data.Get(ctx, redisCacheKey(key), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return censor.Verdict{}, false, nil
	}
	if err != nil {
		return censor.Verdict{}, false, err
	}
	v, err := decodeVerdict(raw)
	if err != nil {
		return censor.Verdict{}, false, err
	}
	return v, true, nil
}

func (s *RedisVerdictCache) Set(ctx context.Context, key string, v censor.Verdict) error {
	raw, err := encodeVerdict(v)
	if err != nil {
		return err
	}
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(key),
		Value: raw,
		TTL:   s.TTL,
	})
}

func (s *RedisVerdictCache) Purge(ctx context.Context, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
