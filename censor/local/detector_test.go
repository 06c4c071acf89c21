package local

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aiocensor/aiocensor/censor"

	"github.com/stretchr/testify/assert"
)

func TestDetectTextScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{Patterns: []string{"foo", "bar"}})
	defer d.Close()
	assert.Equal(Unbuilt, d.State())

	v, err := d.DetectText(ctx, "a foobar b")
	assert.NoError(err)
	assert.Equal(censor.Block, v.Risk)
	assert.Equal([]string{"bar", "foo"}, v.Reasons.List())
	assert.Equal(Built, d.State())

	v, err = d.DetectText(ctx, "clean text")
	assert.NoError(err)
	assert.Equal(censor.Pass, v.Risk)
	assert.Empty(v.Reasons)
}

func TestBuildIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{})
	defer d.Close()

	assert.NoError(d.Build(ctx, []string{"foo"}))
	assert.NoError(d.Build(ctx, []string{"bar"}))
	assert.Equal(1, d.builds)

	// second build was a no-op, so "bar" is not matched
	v, err := d.DetectText(ctx, "bar")
	assert.NoError(err)
	assert.Equal(censor.Pass, v.Risk)
	assert.Equal(1, d.builds)
}

func TestRebuildSwapsPatterns(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{Patterns: []string{"foo"}, Matcher: MatcherOptions{Logic: true}})
	defer d.Close()

	assert.NoError(d.Rebuild(ctx, []string{"bar"}))
	v, err := d.DetectText(ctx, "foo bar")
	assert.NoError(err)
	assert.Equal([]string{"bar"}, v.Reasons.List())
	assert.Equal([]string{"bar"}, d.Patterns())

	// a failed rebuild keeps the previous automaton in service
	err = d.Rebuild(ctx, []string{"x&&y"})
	assert.ErrorIs(err, censor.ErrInvalidPattern)
	assert.ErrorIs(err, censor.ErrBuild)
	assert.Equal([]string{"bar"}, d.Patterns())
	assert.Equal(Built, d.State())
	v, err = d.DetectText(ctx, "foo bar")
	assert.NoError(err)
	assert.Equal([]string{"bar"}, v.Reasons.List())
}

func TestBuildFailureLeavesUnbuilt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{Matcher: MatcherOptions{Logic: true}})
	defer d.Close()

	err := d.Build(ctx, []string{"good", "a&&b"})
	assert.ErrorIs(err, censor.ErrBuild)
	assert.ErrorIs(err, censor.ErrInvalidPattern)
	assert.Equal(Unbuilt, d.State())
	assert.Equal(0, d.builds)

	// retry-safe
	assert.NoError(d.Build(ctx, []string{"good"}))
	assert.Equal(Built, d.State())
}

func TestCloseThenTransparentRebuild(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{Patterns: []string{"foo"}})
	assert.NoError(d.Open(ctx))
	assert.NoError(d.Rebuild(ctx, []string{"foo", "baz"}))

	assert.NoError(d.Close())
	assert.NoError(d.Close())
	assert.Equal(Closed, d.State())

	_, err := d.DetectImage(ctx, "https://example.com/a.png")
	assert.ErrorIs(err, censor.ErrClosed)

	// detect after close reinitializes from the latest snapshot
	v, err := d.DetectText(ctx, "baz")
	assert.NoError(err)
	assert.Equal(censor.Block, v.Risk)
	assert.Equal([]string{"baz"}, v.Reasons.List())
	assert.Equal(Built, d.State())
	assert.NoError(d.Close())
}

func TestCloseDuringMatchRebuilds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := New(Config{Patterns: []string{"foo"}})
	defer d.Close()

	var once sync.Once
	d.beforeMatch = func() {
		once.Do(func() { assert.NoError(d.Close()) })
	}

	v, err := d.DetectText(ctx, "a foo b")
	assert.NoError(err)
	assert.Equal(censor.Block, v.Risk)
	assert.Equal([]string{"foo"}, v.Reasons.List())
	assert.Equal(Built, d.State())
	assert.Equal(2, d.builds)
}

func TestDetectImageNotImplemented(t *testing.T) {
	d := New(Config{})
	defer d.Close()

	v, err := d.DetectImage(context.Background(), "https://example.com/a.png")
	assert.NoError(t, err)
	assert.Equal(t, censor.Review, v.Risk)
	assert.True(t, v.Reasons.Has(imageNotImplemented))
}

func TestUseScope(t *testing.T) {
	d := New(Config{Patterns: []string{"foo"}})
	err := censor.Use(context.Background(), d, func(ctx context.Context, det censor.Detector) error {
		assert.Equal(t, Built, d.State())
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, Closed, d.State())
}

func TestConcurrentMatchesAndRebuilds(t *testing.T) {
	ctx := context.Background()
	d := New(Config{Patterns: []string{"w0"}})
	defer d.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i == 0 && j%10 == 0 {
					assert.NoError(t, d.Rebuild(ctx, []string{fmt.Sprintf("w%d", j)}))
					continue
				}
				v, err := d.DetectText(ctx, "w0 text")
				assert.NoError(t, err)
				assert.NotEqual(t, censor.Review, v.Risk)
			}
		}(i)
	}
	wg.Wait()
}

func TestCancelledContext(t *testing.T) {
	d := New(Config{Patterns: []string{"foo"}})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Build(ctx, nil)
	assert.ErrorIs(t, err, censor.ErrBuild)
	assert.ErrorIs(t, err, context.Canceled)
}
