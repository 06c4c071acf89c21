package censor

import (
	"errors"
	"fmt"
)

// ErrCensor matches every error produced through the taxonomy below.
var ErrCensor = errors.New("censor error")

var (
	// network or connection level failure; retryable
	ErrTransport = errors.New("transport error")
	// provider responded, but with an error envelope or a malformed payload
	ErrService = errors.New("service error")
	// credentials rejected or request could not be signed
	ErrAuth = errors.New("auth error")
	// capability genuinely absent for this backend
	ErrNotSupported = errors.New("not supported")
	// malformed caller input
	ErrInvalidInput = errors.New("invalid input")
	// local matcher construction failed
	ErrBuild = errors.New("build error")
	// a pattern could not be compiled; always reported together with ErrBuild
	ErrInvalidPattern = errors.New("invalid pattern")
	// operation attempted after teardown
	ErrClosed = errors.New("detector closed")
	// transport faults persisted through every retry attempt
	ErrRetryExhausted = errors.New("retries exhausted")
)

// Error is the concrete error type for every detector-level failure.
type Error struct {
	Kind     error
	Provider string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if target == ErrCensor || target == e.Kind {
		return true
	}
	// invalid patterns are a refinement of build failures
	return e.Kind == ErrInvalidPattern && target == ErrBuild
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind error, provider, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: provider, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind error, provider, msg string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Msg: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or nil if err is not an *Error.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}

// KindName is a short, stable label for an error, suitable for metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrTransport:
		return "transport"
	case ErrService:
		return "service"
	case ErrAuth:
		return "auth"
	case ErrNotSupported:
		return "not_supported"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrBuild, ErrInvalidPattern:
		return "build"
	case ErrClosed:
		return "closed"
	case ErrRetryExhausted:
		return "retry_exhausted"
	case ErrCensor:
		return "censor"
	}
	return "other"
}
