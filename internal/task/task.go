// Package task wraps a running script's output stream: a model or
// script may emit its result incrementally, and Task exposes both
// "is the whole result in yet" and "give me what has arrived so far"
// without the caller ever needing to know whether the value is a plain
// JSON document or still-streaming text.
//
// Grounded on command_center.hpp's _task/_taskLoaded pair and the
// task_lock discipline CommandCenter uses around them: readers (e.g.
// is_task_initializing) take a shared lock, while the background pump
// that advances parsing takes an exclusive one. The original drives that
// pump from a dedicated thread parked on a condition variable; here the
// CharStream's subscriber callback plays the same role without a
// dedicated goroutine sitting idle between pushes.
package task

import (
	"context"
	"sync"

	"github.com/edgecore/core-runtime/internal/obs"
	"github.com/edgecore/core-runtime/internal/stream"
)

// Task tracks the incremental parse of one script invocation's output
// stream through to a final value (or failure).
type Task struct {
	mu   sync.RWMutex
	cs   *stream.CharStream
	out  stream.ValueStream
	err  error

	ready bool
	done  chan struct{}
}

// New attaches a Task to cs. cs must not already have a subscriber
// registered; Task installs its own pump as the single subscriber.
func New(cs *stream.CharStream) *Task {
	t := &Task{cs: cs, done: make(chan struct{})}
	cs.SetSubscriber(t.pump)
	return t
}

// pump advances parsing using whatever bytes are newly available. It is
// invoked on the CharStream's producer goroutine every time bytes are
// pushed or the stream is closed, so it must not block.
func (t *Task) pump() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return
	}

	if t.out == nil {
		vs, err := stream.GetValueStream(t.cs)
		if err != nil {
			if err == stream.ErrMalformed {
				t.failLocked(err)
			}
			return
		}
		t.out = vs
	}

	if err := t.out.Pump(); err != nil {
		t.failLocked(err)
		return
	}
	if t.out.Finished() {
		t.readyLocked()
	}
}

func (t *Task) failLocked(err error) {
	t.err = err
	if err == stream.ErrMalformed {
		obs.StreamParseErrors.Inc()
	}
	t.readyLocked()
}

func (t *Task) readyLocked() {
	if t.ready {
		return
	}
	t.ready = true
	close(t.done)
}

// IsReady reports whether the task's output has fully parsed (or
// failed), without blocking.
func (t *Task) IsReady() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Peek returns the best-effort realized value so far (partial for a
// streaming string/array/object, nil if nothing has parsed yet) along
// with whether parsing has fully finished.
func (t *Task) Peek() (value any, finished bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.out == nil {
		return nil, false
	}
	return t.out.Value(), t.out.Finished()
}

// Wait blocks until the task is ready or ctx is done, then returns the
// final value (or the error that caused the task to fail).
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		t.mu.RLock()
		defer t.mu.RUnlock()
		if t.err != nil {
			return nil, t.err
		}
		return t.out.Value(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
