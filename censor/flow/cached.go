package flow

import (
	"context"
	"log/slog"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/cachestore"
)

// CachedDetector remembers successful text verdicts of an inner detector.
// Failures are never cached; images always go to the inner detector.
type CachedDetector struct {
	inner    censor.Detector
	provider string
	cache    cachestore.VerdictCache
	logger   *slog.Logger
}

var _ censor.Detector = (*CachedDetector)(nil)

func NewCachedDetector(inner censor.Detector, provider string, cache cachestore.VerdictCache, logger *slog.Logger) *CachedDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDetector{
		inner:    inner,
		provider: provider,
		cache:    cache,
		logger:   logger.With("system", "verdict-cache", "provider", provider),
	}
}

func (c *CachedDetector) DetectText(ctx context.Context, text string) (censor.Verdict, error) {
	key := cachestore.Key(c.provider, text)
	v, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		cacheLookupCount.WithLabelValues(c.provider, "error").Inc()
		c.logger.Warn("verdict cache read failed", "err", err)
	} else if ok {
		cacheLookupCount.WithLabelValues(c.provider, "hit").Inc()
		return v, nil
	} else {
		cacheLookupCount.WithLabelValues(c.provider, "miss").Inc()
	}

	v, err = c.inner.DetectText(ctx, text)
	if err != nil {
		return v, err
	}
	if err := c.cache.Set(ctx, key, v); err != nil {
		c.logger.Warn("verdict cache write failed", "err", err)
	}
	return v, nil
}

func (c *CachedDetector) DetectImage(ctx context.Context, image string) (censor.Verdict, error) {
	return c.inner.DetectImage(ctx, image)
}

func (c *CachedDetector) Close() error {
	return c.inner.Close()
}

// Unwrap returns the wrapped detector.
func (c *CachedDetector) Unwrap() censor.Detector {
	return c.inner
}

// unwrapDetector peels caching layers off d.
func unwrapDetector(d censor.Detector) censor.Detector {
	for {
		u, ok := d.(interface{ Unwrap() censor.Detector })
		if !ok {
			return d
		}
		d = u.Unwrap()
	}
}
