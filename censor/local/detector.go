package local

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aiocensor/aiocensor/censor"
)

const Provider = "local"

// State of a Detector's automaton.
type State int

const (
	Unbuilt State = iota
	Building
	Built
	Closed
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Building:
		return "building"
	case Built:
		return "built"
	case Closed:
		return "closed"
	}
	return "unknown"
}

const imageNotImplemented = "local image moderation is not implemented"

type Config struct {
	// label for logs and metrics; defaults to "local"
	Name     string
	Patterns []string
	Matcher  MatcherOptions
	Logger   *slog.Logger
}

// Detector matches text against an in-process pattern set.
//
// The automaton is built lazily on first use (or by Open/Build) on a single
// background worker goroutine. Close stops the worker; any later Build or
// DetectText transparently starts a fresh worker and rebuilds from the last
// successfully built pattern snapshot. Rebuild replaces the pattern set.
//
// Matches hold the read side of the state lock, so they run concurrently
// with each other but never with Build, Rebuild or Close.
type Detector struct {
	name   string
	opts   MatcherOptions
	logger *slog.Logger

	mu       sync.RWMutex
	state    State
	shutdown bool
	patterns []string
	matcher  *Matcher
	worker   *worker
	// completed compilations, for observing idempotence
	builds int
	// runs between the lazy build and the match; tests use it to close
	// the detector at that point
	beforeMatch func()
}

var (
	_ censor.Detector    = (*Detector)(nil)
	_ censor.Opener      = (*Detector)(nil)
	_ censor.Rebuildable = (*Detector)(nil)
)

func New(cfg Config) *Detector {
	if cfg.Name == "" {
		cfg.Name = Provider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		name:     cfg.Name,
		opts:     cfg.Matcher,
		logger:   logger.With("system", "local-censor", "name", cfg.Name),
		patterns: slices.Clone(cfg.Patterns),
		worker:   newWorker(),
	}
}

// Open builds the configured pattern set.
func (d *Detector) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildLocked(ctx, d.patterns, false)
}

// Build compiles patterns unless the detector is already built, in which case
// it is a no-op. On failure the detector stays unbuilt and Build may be
// retried.
func (d *Detector) Build(ctx context.Context, patterns []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildLocked(ctx, patterns, false)
}

// Rebuild compiles patterns and swaps them in whether or not the detector was
// already built. On failure the previous automaton stays in service.
func (d *Detector) Rebuild(ctx context.Context, patterns []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildLocked(ctx, patterns, true)
}

func (d *Detector) reinitialize() {
	d.logger.Debug("reinitializing after close")
	d.shutdown = false
	d.state = Unbuilt
	d.matcher = nil
	d.worker = newWorker()
}

func (d *Detector) buildLocked(ctx context.Context, patterns []string, force bool) error {
	if d.shutdown {
		d.reinitialize()
	}
	if d.state == Built && !force {
		return nil
	}

	prev := d.state
	d.state = Building
	start := time.Now()

	var m *Matcher
	var cerr error
	err := d.worker.do(ctx, func() {
		m, cerr = Compile(patterns, d.opts)
	})
	if err == nil {
		err = cerr
	}
	if err != nil {
		d.state = prev
		buildCount.WithLabelValues(d.name, "error").Inc()
		d.logger.Warn("pattern build failed", "err", err, "patterns", len(patterns))
		if censor.KindOf(err) != nil {
			return err
		}
		return censor.Wrap(censor.ErrBuild, Provider, "building matcher", err)
	}

	d.matcher = m
	d.patterns = slices.Clone(patterns)
	d.state = Built
	d.builds++
	buildCount.WithLabelValues(d.name, "ok").Inc()
	buildDuration.WithLabelValues(d.name).Observe(time.Since(start).Seconds())
	patternCount.WithLabelValues(d.name).Set(float64(m.Len()))
	d.logger.Info("pattern set built", "patterns", m.Len(), "duration", time.Since(start))
	return nil
}

func (d *Detector) ensureBuilt(ctx context.Context) error {
	d.mu.RLock()
	ready := d.state == Built && !d.shutdown
	d.mu.RUnlock()
	if ready {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildLocked(ctx, d.patterns, false)
}

// DetectText returns Block with every matched pattern, or Pass with no
// reasons. A Close that lands between the lazy build and the match triggers
// one more rebuild.
func (d *Detector) DetectText(ctx context.Context, text string) (censor.Verdict, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := d.ensureBuilt(ctx); err != nil {
			return censor.Verdict{}, err
		}
		if d.beforeMatch != nil {
			d.beforeMatch()
		}
		v, ok, err := d.match(ctx, text)
		if ok || err != nil {
			return v, err
		}
	}
	return censor.Verdict{}, censor.Errorf(censor.ErrClosed, Provider, "detector closed during match")
}

// match reports ok=false when the detector is no longer built.
func (d *Detector) match(ctx context.Context, text string) (censor.Verdict, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != Built {
		return censor.Verdict{}, false, nil
	}

	m := d.matcher
	var hits []string
	if err := d.worker.do(ctx, func() {
		hits = m.Find(text)
	}); err != nil {
		return censor.Verdict{}, true, censor.Wrap(censor.ErrCensor, Provider, "matching text", err)
	}
	if len(hits) == 0 {
		return censor.PassVerdict(), true, nil
	}
	return censor.NewVerdict(censor.Block, hits...), true, nil
}

// DetectImage always needs review: there is no local image model.
func (d *Detector) DetectImage(ctx context.Context, image string) (censor.Verdict, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shutdown {
		return censor.Verdict{}, censor.Errorf(censor.ErrClosed, Provider, "detector is closed")
	}
	return censor.NewVerdict(censor.Review, imageNotImplemented), nil
}

// Close stops the background worker. It is safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return nil
	}
	d.worker.stop()
	d.shutdown = true
	d.state = Closed
	d.matcher = nil
	return nil
}

func (d *Detector) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Patterns returns the last successfully built (or configured) snapshot.
func (d *Detector) Patterns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.patterns)
}
