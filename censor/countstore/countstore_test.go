package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodBucket(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal("fail/text:transport", periodBucketAt("fail", "text:transport", PeriodTotal, now))
	assert.Equal("fail/text:transport/2025-03-04", periodBucketAt("fail", "text:transport", PeriodDay, now))
	assert.Equal("fail/text:transport/2025-03-04T15", periodBucketAt("fail", "text:transport", PeriodHour, now))
}

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "fail", "text:auth", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "fail", "text:auth"))
	assert.NoError(cs.Increment(ctx, "fail", "text:auth"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "fail", "text:auth", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	assert.NoError(cs.IncrementDistinct(ctx, "failsrc", "text:auth", "group-1"))
	assert.NoError(cs.IncrementDistinct(ctx, "failsrc", "text:auth", "group-1"))
	assert.NoError(cs.IncrementDistinct(ctx, "failsrc", "text:auth", "group-2"))
	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, "failsrc", "text:auth", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// run with -race
	var wg sync.WaitGroup
	inc := func(val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, "fail", val))
			assert.NoError(cs.IncrementDistinct(ctx, "failsrc", val, val))
			_, err := cs.GetCount(ctx, "fail", val, PeriodHour)
			assert.NoError(err)
		}
	}
	wg.Add(4)
	go inc("a", 10)
	go inc("a", 10)
	go inc("b", 6)
	go inc("b", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "fail", "a", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "fail", "b", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)
	c, err = cs.GetCountDistinct(ctx, "failsrc", "a", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}
