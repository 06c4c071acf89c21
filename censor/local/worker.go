package local

import (
	"context"
	"fmt"
)

// worker runs jobs one at a time on a dedicated goroutine, so automaton
// construction and matching never run on the caller's goroutine.
type worker struct {
	jobs chan func()
	done chan struct{}
}

func newWorker() *worker {
	w := &worker{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	for job := range w.jobs {
		job()
	}
}

// do hands fn to the worker and waits for it. If ctx ends first the job may
// still run to completion; its effects must be safe to discard.
func (w *worker) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	finished := make(chan struct{})
	var perr error
	job := func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				perr = fmt.Errorf("panic in local worker: %v", r)
			}
		}()
		fn()
	}

	select {
	case w.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return perr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop drains queued jobs and waits for the goroutine to exit. Callers must
// guarantee no concurrent or later do.
func (w *worker) stop() {
	close(w.jobs)
	<-w.done
}
