package censor

import (
	"context"
	"sync"
)

// StubDetector is an in-process Detector driven by callbacks, for tests.
type StubDetector struct {
	TextFunc  func(ctx context.Context, text string) (Verdict, error)
	ImageFunc func(ctx context.Context, image string) (Verdict, error)

	mu         sync.Mutex
	textCalls  []string
	imageCalls []string
	closeCount int
}

var _ Detector = (*StubDetector)(nil)

func (s *StubDetector) DetectText(ctx context.Context, text string) (Verdict, error) {
	s.mu.Lock()
	s.textCalls = append(s.textCalls, text)
	s.mu.Unlock()
	if s.TextFunc == nil {
		return PassVerdict(), nil
	}
	return s.TextFunc(ctx, text)
}

func (s *StubDetector) DetectImage(ctx context.Context, image string) (Verdict, error) {
	s.mu.Lock()
	s.imageCalls = append(s.imageCalls, image)
	s.mu.Unlock()
	if s.ImageFunc == nil {
		return PassVerdict(), nil
	}
	return s.ImageFunc(ctx, image)
}

func (s *StubDetector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *StubDetector) TextCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.textCalls...)
}

func (s *StubDetector) ImageCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.imageCalls...)
}

func (s *StubDetector) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}
