package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/countstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarm(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	notifier := &fakeNotifier{}
	a := NewAlarm(countstore.NewMemCountStore(), notifier, 3)

	authErr := censor.Errorf(censor.ErrAuth, "tencent", "AuthFailure.SecretIdNotFound")
	a.Record(ctx, ChannelText, "group-1", authErr)
	a.Record(ctx, ChannelText, "group-2", authErr)
	assert.Empty(notifier.sent())

	// a different kind is counted separately
	a.Record(ctx, ChannelText, "group-1", censor.Errorf(censor.ErrTransport, "tencent", "timeout"))
	assert.Empty(notifier.sent())

	a.Record(ctx, ChannelText, "group-1", authErr)
	msgs := notifier.sent()
	require.Len(msgs, 1)
	assert.Contains(msgs[0], "`text`")
	assert.Contains(msgs[0], "`auth`")
	assert.Contains(msgs[0], "3 times")
	assert.Contains(msgs[0], "2 distinct sources")
	assert.Contains(msgs[0], "AuthFailure.SecretIdNotFound")

	// no repeat once the threshold has been passed
	a.Record(ctx, ChannelText, "group-3", authErr)
	assert.Len(notifier.sent(), 1)
}

func TestAlarmWithoutNotifier(t *testing.T) {
	a := NewAlarm(countstore.NewMemCountStore(), nil, 1)
	a.Record(context.Background(), ChannelImage, "", censor.Errorf(censor.ErrService, "aliyun", "no data"))
}

func TestAlarmConcurrentFailuresAlertOnce(t *testing.T) {
	notifier := &fakeNotifier{}
	a := NewAlarm(countstore.NewMemCountStore(), notifier, 5)
	cause := censor.Errorf(censor.ErrTransport, "aliyun", "connection reset")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record(context.Background(), ChannelText, "group-1", cause)
		}()
	}
	wg.Wait()
	assert.Len(t, notifier.sent(), 1)
}

func TestAlarmPastThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// the count skipped over the threshold before this replica saw it
	counters := countstore.NewMemCountStore()
	for i := 0; i < 4; i++ {
		assert.NoError(counters.Increment(ctx, failureCounter, "image:service"))
	}
	notifier := &fakeNotifier{}
	a := NewAlarm(counters, notifier, 3)

	cause := censor.Errorf(censor.ErrService, "tencent", "missing Response")
	a.Record(ctx, ChannelImage, "", cause)
	a.Record(ctx, ChannelImage, "", cause)
	assert.Len(notifier.sent(), 1)
}

func TestAlarmClaimPerHour(t *testing.T) {
	assert := assert.New(t)
	a := NewAlarm(countstore.NewMemCountStore(), nil, 1)

	now := time.Date(2025, 3, 4, 15, 10, 0, 0, time.UTC)
	assert.True(a.claim("text:auth", now))
	assert.False(a.claim("text:auth", now.Add(40*time.Minute)))
	assert.True(a.claim("text:transport", now))
	assert.True(a.claim("text:auth", now.Add(time.Hour)))
}
