package runtime

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * future is settled at most once. A future whose wait was cancelled is
 * never settled, waiters must watch the session's abandon channel.
 */
type future[T any] struct {
	once sync.Once
	done chan struct{}

	value T
	err   error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) settle(value T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) isSettled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// result must only be called once Done is closed.
func (f *future[T]) result() (T, error) {
	return f.value, f.err
}

func await[T any](ctx context.Context, abandoned <-chan struct{}, f *future[T]) (T, error) {
	var zero T
	select {
	case <-f.Done():
		v, err := f.result()
		return v, errors.Trace(err)
	case <-abandoned:
		return zero, errors.Trace(types.ErrAbandoned)
	case <-ctx.Done():
		return zero, errors.Trace(ctx.Err())
	}
}
