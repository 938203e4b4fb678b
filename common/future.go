package common

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Future.Poll before the future settles.
var ErrPending = errors.New("future: pending")

// Future is a value produced asynchronously, typically by a GPU readback. It is
// polled from a tick loop or awaited with Wait.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with value.
func Resolved[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with value. Only the first Resolve or Reject has an effect.
func (f *Future[T]) Resolve(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

// Reject settles the future with err. Only the first Resolve or Reject has an effect.
func (f *Future[T]) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Poll returns the settled result without blocking.
//
// Returns:
//   - T: the value once resolved
//   - error: ErrPending before the future settles, or the rejection error
func (f *Future[T]) Poll() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Wait blocks until the future settles or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
