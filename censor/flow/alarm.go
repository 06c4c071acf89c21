package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/countstore"
	"github.com/aiocensor/aiocensor/censor/notify"
)

const (
	failureCounter       = "censor-failure"
	failureSourceCounter = "censor-failure-source"
)

const DefaultAlarmThreshold = 20

// Alarm counts fail-open conversions per channel and error kind, and raises
// one alert per hour when a key reaches Threshold.
type Alarm struct {
	Counters  countstore.CountStore
	Notifier  notify.Notifier
	Threshold int
	Logger    *slog.Logger

	mu sync.Mutex
	// key to the hour bucket it last alerted in
	alerted map[string]string
}

func NewAlarm(counters countstore.CountStore, notifier notify.Notifier, threshold int) *Alarm {
	if threshold <= 0 {
		threshold = DefaultAlarmThreshold
	}
	return &Alarm{
		Counters:  counters,
		Notifier:  notifier,
		Threshold: threshold,
		Logger:    slog.Default().With("system", "failure-alarm"),
	}
}

// Record counts one failure. Counter and notification errors are logged.
func (a *Alarm) Record(ctx context.Context, channel, source string, cause error) {
	kind := censor.KindName(cause)
	key := channel + ":" + kind
	if err := a.Counters.Increment(ctx, failureCounter, key); err != nil {
		a.Logger.Warn("failed to increment failure counter", "key", key, "err", err)
		return
	}
	if source != "" {
		if err := a.Counters.IncrementDistinct(ctx, failureSourceCounter, key, source); err != nil {
			a.Logger.Warn("failed to increment failure source counter", "key", key, "err", err)
		}
	}

	count, err := a.Counters.GetCount(ctx, failureCounter, key, countstore.PeriodHour)
	if err != nil {
		a.Logger.Warn("failed to read failure counter", "key", key, "err", err)
		return
	}
	if count < a.Threshold || !a.claim(key, time.Now()) {
		return
	}
	sources, err := a.Counters.GetCountDistinct(ctx, failureSourceCounter, key, countstore.PeriodHour)
	if err != nil {
		a.Logger.Warn("failed to read failure source counter", "key", key, "err", err)
	}

	alarmCount.WithLabelValues(channel, kind).Inc()
	a.Logger.Error("repeated detector failures", "channel", channel, "kind", kind, "count", count, "sources", sources, "err", cause)
	if a.Notifier == nil {
		return
	}
	msg := notify.FailureAlert(channel, kind, count, sources, cause.Error())
	if err := a.Notifier.Notify(ctx, msg); err != nil {
		a.Logger.Error("failed to send failure alarm", "err", err)
	}
}

// claim reports whether key has not yet alerted in the hour containing now,
// and marks it as alerted.
func (a *Alarm) claim(key string, now time.Time) bool {
	hour := now.UTC().Format("2006-01-02T15")
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.alerted == nil {
		a.alerted = make(map[string]string)
	}
	if a.alerted[key] == hour {
		return false
	}
	a.alerted[key] = hour
	return true
}
