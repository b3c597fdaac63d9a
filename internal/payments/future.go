package payments

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when a future is resolved or rejected twice.
var ErrAlreadySettled = errors.New("payments: future already settled")

// Future is a value that is settled exactly once, either resolved or rejected.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve settles the future with value. Only the first settle call has any effect.
func (f *Future[T]) Resolve(value T) error {
	return f.settle(value, nil)
}

// Reject settles the future with err.
func (f *Future[T]) Reject(err error) error {
	if err == nil {
		err = errors.New("payments: rejected without reason")
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) error {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		settled = true
		close(f.done)
	})
	if !settled {
		return ErrAlreadySettled
	}
	return nil
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settle adapts a callback-style API. start receives resolve and reject callbacks;
// whichever fires first wins and later calls are ignored. A non-nil error returned by
// start rejects the future immediately.
func Settle[T any](start func(resolve func(T), reject func(error)) error) *Future[T] {
	f := NewFuture[T]()
	resolve := func(v T) { _ = f.Resolve(v) }
	reject := func(err error) { _ = f.Reject(err) }
	if err := start(resolve, reject); err != nil {
		reject(err)
	}
	return f
}
