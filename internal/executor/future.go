package executor

import "github.com/cloudcutter/uringrt/internal/wake"

// Future is a single step of cooperative work. Poll is called with a Waker
// that, when woken, reschedules whatever owns this future. A Future that
// is not ready must arrange for w.Wake to be called exactly once it makes
// progress is possible again; it must not block.
type Future[T any] interface {
	Poll(w wake.Waker) (value T, ready bool)
}

// funcFuture adapts a plain poll function to the Future interface, the way
// http.HandlerFunc adapts a plain function to http.Handler.
type funcFuture[T any] func(w wake.Waker) (T, bool)

func (f funcFuture[T]) Poll(w wake.Waker) (T, bool) {
	return f(w)
}

// FromFunc builds a Future from a plain poll function.
func FromFunc[T any](f func(w wake.Waker) (T, bool)) Future[T] {
	return funcFuture[T](f)
}

// Ready returns a Future that is already complete with value.
func Ready[T any](value T) Future[T] {
	return funcFuture[T](func(wake.Waker) (T, bool) {
		return value, true
	})
}
