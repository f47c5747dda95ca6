// Package once provides an at-most-once initializer with a memoized outcome.
//
// A Guard wraps a producer function. The first call to Do or Start runs the
// producer; every caller, including ones that arrive while the producer is
// still running, observes the same value and error. Failures are memoized
// too: a Guard never runs its producer a second time.
package once

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrProducerPanic wraps a panic raised by a producer.
var ErrProducerPanic = errors.New("producer panicked")

// Producer computes the guarded value. The context passed to it is detached
// from the caller that triggered the run, so cancelling one waiter does not
// abort work other waiters depend on.
type Producer[T any] func(ctx context.Context) (T, error)

// Guard runs a Producer at most once and memoizes its outcome.
type Guard[T any] struct {
	produce Producer[T]
	once    sync.Once
	done    chan struct{}

	value T
	err   error
}

// New creates a Guard for the given producer.
func New[T any](produce Producer[T]) *Guard[T] {
	return &Guard[T]{
		produce: produce,
		done:    make(chan struct{}),
	}
}

// Func adapts a producer that needs no context and cannot fail.
func Func[T any](fn func() T) *Guard[T] {
	return New(func(context.Context) (T, error) {
		return fn(), nil
	})
}

// Start triggers the producer without waiting for it.
// Calling Start more than once, or after Do, has no effect.
func (g *Guard[T]) Start(ctx context.Context) {
	g.once.Do(func() {
		go g.run(context.WithoutCancel(ctx))
	})
}

// Do triggers the producer if needed and waits for its outcome.
// If ctx ends first, Do returns ctx.Err(); the producer keeps running and
// later callers still observe its outcome.
func (g *Guard[T]) Do(ctx context.Context) (T, error) {
	g.Start(ctx)
	return g.Wait(ctx)
}

// Wait blocks until the producer has finished or ctx is done.
// Wait does not trigger the producer.
func (g *Guard[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-g.done:
		return g.value, g.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether the producer has finished.
func (g *Guard[T]) Done() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// run executes the producer; a panic is memoized as an error like any other failure.
func (g *Guard[T]) run(ctx context.Context) {
	defer close(g.done)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			g.value, g.err = zero, fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	g.value, g.err = g.produce(ctx)
}
