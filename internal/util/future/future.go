package future

import (
	"context"
	"sync"
)

type outcome[T any] struct {
	value T
	err   error
}

// Future is a single-shot asynchronous result. It completes exactly once;
// every Await after completion returns the same value and error.
type Future[T any] struct {
	done chan struct{}
	out  outcome[T]
	once sync.Once
}

// New runs fn in its own goroutine and completes the Future when fn returns.
func New[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		v, err := fn()
		f.complete(v, err)
	}()
	return f
}

// FromValue returns an already-completed Future holding v.
func FromValue[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.complete(v, nil)
	return f
}

// FromError returns an already-completed Future holding err.
func FromError[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	var zero T
	f.complete(zero, err)
	return f
}

// Await blocks until the Future completes.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.out.value, f.out.err
}

// AwaitContext blocks until completion or until ctx is done, whichever comes
// first. The producing goroutine keeps running either way; only the wait is
// abandoned.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.out.value, f.out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed when the Future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// All awaits every future in order and collects the values. The first error
// encountered in declaration order wins.
func All[T any](futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	for i, f := range futures {
		v, err := f.Await()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.out = outcome[T]{value: v, err: err}
		close(f.done)
	})
}
