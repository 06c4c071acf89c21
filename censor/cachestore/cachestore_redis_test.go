package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/aiocensor/aiocensor/censor"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisVerdictCache(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := NewRedisVerdictCache("redis://"+mr.Addr(), time.Minute)
	require.NoError(err)

	_, ok, err := c.Get(ctx, "missing")
	assert.NoError(err)
	assert.False(ok)

	key := Key("aliyun", "buy spam")
	require.NoError(c.Set(ctx, key, censor.NewVerdict(censor.Block, "spam", "ads")))
	assert.True(mr.Exists(redisCacheKey(key)))
	assert.Equal(time.Minute, mr.TTL(redisCacheKey(key)))

	// a second replica with an empty local cache reads through redis
	other, err := NewRedisVerdictCache("redis://"+mr.Addr(), time.Minute)
	require.NoError(err)
	v, ok, err := other.Get(ctx, key)
	require.NoError(err)
	assert.True(ok)
	assert.Equal(censor.Block, v.Risk)
	assert.Equal([]string{"ads", "spam"}, v.Reasons.List())

	require.NoError(c.Purge(ctx, key))
	assert.False(mr.Exists(redisCacheKey(key)))
	_, ok, err = c.Get(ctx, key)
	assert.NoError(err)
	assert.False(ok)

	// purging an absent key is not an error
	assert.NoError(c.Purge(ctx, key))
}

func TestRedisVerdictCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisVerdictCache("redis://"+addr, time.Minute)
	assert.Error(t, err)
}
