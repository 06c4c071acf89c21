package censor

import (
	"context"
	"errors"
	"strings"
)

// Prefix marking an inline image payload (base64 of the raw image bytes).
const InlineImagePrefix = "base64://"

// Detector is the capability contract every moderation backend satisfies.
//
// DetectImage accepts an http(s) URL or an InlineImagePrefix payload. Backends
// that cannot service one of those forms return ErrNotSupported or
// ErrInvalidInput. Close releases any connection pool or background worker;
// detect calls after Close fail with ErrClosed unless the backend documents
// transparent re-initialization.
type Detector interface {
	DetectText(ctx context.Context, text string) (Verdict, error)
	DetectImage(ctx context.Context, image string) (Verdict, error)
	Close() error
}

// Opener is implemented by detectors with work to do before first use.
type Opener interface {
	Open(ctx context.Context) error
}

// Rebuildable is implemented by detectors whose pattern set can be replaced at
// runtime with a fresh snapshot.
type Rebuildable interface {
	Rebuild(ctx context.Context, patterns []string) error
}

// Use opens d (if it is an Opener), runs fn, and closes d on every exit path.
// A close failure is reported only when fn itself succeeded.
func Use(ctx context.Context, d Detector, fn func(ctx context.Context, d Detector) error) (err error) {
	defer func() {
		cerr := d.Close()
		if err == nil {
			err = cerr
		}
	}()
	if o, ok := d.(Opener); ok {
		if err := o.Open(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, d)
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsInlineImage reports whether s carries an InlineImagePrefix payload.
func IsInlineImage(s string) bool {
	return strings.HasPrefix(s, InlineImagePrefix)
}

// IsClosed reports whether err means the detector was already torn down.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
