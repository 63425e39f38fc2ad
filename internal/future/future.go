// Package future provides the typed completion handles that asynchronous
// jobs hand back to their caller, grounded on the original's Future<T>
// wrapper around std::shared_future. A Go channel closed exactly once
// plays the same role as the shared_future's internal ready flag, and
// ProduceValue accepts a context so a caller can give up waiting.
package future

import (
	"context"
	"sync"
)

// Future is a read-only handle to a value that will become available at
// most once. Multiple goroutines may call IsReady or ProduceValue on the
// same Future concurrently.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// IsReady reports whether the value has been produced, without blocking.
func (f *Future[T]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// ProduceValue blocks until the value is ready or ctx is done, whichever
// comes first.
func (f *Future[T]) ProduceValue(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Promise is the write side of a Future: exactly one of Resolve or Reject
// may take effect, first writer wins.
type Promise[T any] struct {
	future *Future[T]
	once   sync.Once
}

// New creates a Promise and its associated Future.
func New[T any]() (*Promise[T], *Future[T]) {
	f := newFuture[T]()
	return &Promise[T]{future: f}, f
}

// Future returns the Future associated with this Promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Resolve makes the associated Future ready with value v. Calls after the
// first are no-ops.
func (p *Promise[T]) Resolve(v T) {
	p.once.Do(func() {
		p.future.val = v
		close(p.future.done)
	})
}

// Reject makes the associated Future ready with error err. Calls after
// the first are no-ops.
func (p *Promise[T]) Reject(err error) {
	p.once.Do(func() {
		p.future.err = err
		close(p.future.done)
	})
}
