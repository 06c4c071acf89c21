package cachestore

import (
	"context"
	"time"

	"github.com/aiocensor/aiocensor/censor"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemVerdictCache stores encoded verdicts, so callers never share a ReasonSet.
type MemVerdictCache struct {
	Data *expirable.LRU[string, string]
}

var _ VerdictCache = (*MemVerdictCache)(nil)

func NewMemVerdictCache(capacity int, ttl time.Duration) *MemVerdictCache {
	return &MemVerdictCache{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemVerdictCache) Get(ctx context.Context, key string) (censor.Verdict, bool, error) {
	raw, ok := s.Data.Get(key)
	if !ok {
		return censor.Verdict{}, false, nil
	}
	v, err := decodeVerdict(raw)
	if err != nil {
		return censor.Verdict{}, false, err
	}
	return v, true, nil
}

func (s *MemVerdictCache) Set(ctx context.Context, key string, v censor.Verdict) error {
	raw, err := encodeVerdict(v)
	if err != nil {
		return err
	}
	s.Data.Add(key, raw)
	return nil
}

func (s *MemVerdictCache) Purge(ctx context.Context, key string) error {
	s.Data.Remove(key)
	return nil
}
