package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/setstore"
	"github.com/aiocensor/aiocensor/pkg/metrics"
)

const DefaultRefreshInterval = 5 * time.Minute

// PatternSource provides full snapshots of the persisted pattern sets.
type PatternSource interface {
	AllBlacklist(ctx context.Context) ([]string, error)
	AllSensitiveWords(ctx context.Context) ([]string, error)
}

// Refresher periodically pushes the blacklist into the identifier detector,
// and the sensitive words into the text detector when it is
// censor.Rebuildable. Snapshots are the union of Source and Sets; either may
// be nil.
type Refresher struct {
	Flow     *Flow
	Source   PatternSource
	Sets     setstore.SetStore
	Interval time.Duration
	Logger   *slog.Logger

	mu   sync.Mutex
	last map[string][]string
}

func NewRefresher(f *Flow, source PatternSource, sets setstore.SetStore, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		Flow:     f,
		Source:   source,
		Sets:     sets,
		Interval: interval,
		Logger:   slog.Default().With("system", "pattern-refresh"),
		last:     make(map[string][]string),
	}
}

func (r *Refresher) snapshot(ctx context.Context, name string, fromSource func(context.Context) ([]string, error)) ([]string, error) {
	var out []string
	if r.Source != nil {
		vals, err := fromSource(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		out = append(out, vals...)
	}
	if r.Sets != nil {
		vals, err := r.Sets.Members(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("loading %s seed set: %w", name, err)
		}
		out = append(out, vals...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (r *Refresher) push(ctx context.Context, name string, d censor.Detector, fromSource func(context.Context) ([]string, error)) error {
	rb, ok := unwrapDetector(d).(censor.Rebuildable)
	if d == nil || !ok {
		return nil
	}
	patterns, err := r.snapshot(ctx, name, fromSource)
	if err != nil {
		refreshCount.WithLabelValues(name, metrics.StatusError).Inc()
		return err
	}

	r.mu.Lock()
	prev, seen := r.last[name]
	r.mu.Unlock()
	if seen && slices.Equal(prev, patterns) {
		refreshCount.WithLabelValues(name, "unchanged").Inc()
		return nil
	}

	if err := rb.Rebuild(ctx, patterns); err != nil {
		refreshCount.WithLabelValues(name, metrics.StatusError).Inc()
		return fmt.Errorf("rebuilding %s: %w", name, err)
	}
	r.mu.Lock()
	r.last[name] = patterns
	r.mu.Unlock()
	refreshCount.WithLabelValues(name, metrics.StatusOK).Inc()
	r.Logger.Info("pattern set refreshed", "set", name, "patterns", len(patterns))
	return nil
}

// Refresh pushes current snapshots once. A failure on one set does not stop
// the other.
func (r *Refresher) Refresh(ctx context.Context) error {
	var blacklist, words func(context.Context) ([]string, error)
	if r.Source != nil {
		blacklist = r.Source.AllBlacklist
		words = r.Source.AllSensitiveWords
	}
	return errors.Join(
		r.push(ctx, setstore.SetBlacklist, r.Flow.UserIDDetector(), blacklist),
		r.push(ctx, setstore.SetSensitiveWords, r.Flow.TextDetector(), words),
	)
}

// Run refreshes immediately and then every Interval until ctx is done.
// Failures are logged.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.Logger.Error("failed to refresh pattern sets", "err", err)
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.Logger.Error("failed to refresh pattern sets", "err", err)
			}
		}
	}
}
