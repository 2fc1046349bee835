// Package uringrt is a single-threaded, cooperative asynchronous I/O
// runtime built on Linux io_uring: a generic operation lifecycle manager
// (Op), a uring Driver, and a task-local cooperative Executor, composed
// into a Runtime that drives both to completion of a root future.
package uringrt

import (
	"context"

	"github.com/cloudcutter/uringrt/internal/executor"
	"github.com/cloudcutter/uringrt/internal/logging"
	"github.com/cloudcutter/uringrt/internal/uring"
	"github.com/cloudcutter/uringrt/internal/wake"
)

type contextKey int

const ctxKeyRuntime contextKey = iota

// Runtime owns one Driver and one Executor, bound to a single OS thread
// for its entire lifetime. There is no scoped-thread-local in Go, so
// Runtime installs itself into a context.Context for the duration of
// Start/BlockOn instead; Submit and Spawn read it back out of the context
// they're given. This is the idiomatic Go substitute for the scoped
// thread-local the runtime this package is modeled on uses, and it gives
// the same nesting and test-isolation guarantees: a context carries at
// most one Runtime, and a child context can't see past a cancellation of
// its parent.
type Runtime struct {
	driver   *uring.Driver
	executor *executor.Executor
	reactor  *uring.Reactor
	metrics  *Metrics
	observer Observer
}

// Options configures a new Runtime.
type Options struct {
	RingEntries  int      // defaults to DefaultRingEntries
	SlabCapacity int      // defaults to DefaultSlabCapacity
	Observer     Observer // defaults to NoOpObserver{}
}

func (o Options) withDefaults() Options {
	if o.RingEntries == 0 {
		o.RingEntries = DefaultRingEntries
	}
	if o.SlabCapacity == 0 {
		o.SlabCapacity = DefaultSlabCapacity
	}
	if o.Observer == nil {
		o.Observer = NoOpObserver{}
	}
	return o
}

// New creates a Runtime backed by a real kernel io_uring instance. It is
// not started until BlockOn or Start is called.
func New(opts Options) (*Runtime, error) {
	opts = opts.withDefaults()

	ring, err := uring.NewRing(uring.Config{Entries: uint32(opts.RingEntries)})
	if err != nil {
		return nil, WrapError("New", err)
	}
	return newRuntime(ring, opts)
}

func newRuntime(ring uring.Ring, opts Options) (*Runtime, error) {
	metrics := NewMetrics()
	hooks := &runtimeHooks{observer: opts.Observer, metrics: metrics}

	driver := uring.New(ring, opts.SlabCapacity, hooks)

	var reactor *uring.Reactor
	if fd := driver.Fd(); fd >= 0 {
		r, err := uring.NewReactor(fd)
		if err != nil {
			logging.Default().Warn("reactor unavailable, falling back to blocking waits", "error", err)
		} else {
			reactor = r
		}
	}

	rt := &Runtime{
		driver:   driver,
		executor: executor.New(hooks),
		reactor:  reactor,
		metrics:  metrics,
		observer: opts.Observer,
	}
	if reactor != nil {
		rt.executor.SetExternalWake(reactor.WakeUp)
	}
	return rt, nil
}

// runtimeHooks adapts Metrics/Observer to the small hook interfaces the
// executor and uring packages define, so neither of those packages needs
// to import the root package.
type runtimeHooks struct {
	observer Observer
	metrics  *Metrics
}

func (h *runtimeHooks) ObserveSubmit() {
	h.metrics.RecordSubmit()
	h.observer.ObserveSubmit()
}

func (h *runtimeHooks) ObserveCompletion(latencyNs uint64, success bool) {
	h.metrics.RecordCompletion(latencyNs, success)
	h.observer.ObserveCompletion(latencyNs, success)
}

func (h *runtimeHooks) ObserveInFlight(depth uint32) {
	h.metrics.RecordInFlight(depth)
	h.observer.ObserveInFlight(depth)
}

func (h *runtimeHooks) TaskScheduled(global bool) {
	h.metrics.RecordTaskScheduled(global)
	h.observer.ObserveTaskScheduled(global)
}

func (h *runtimeHooks) TaskPolled() {
	h.metrics.RecordTaskPolled()
	h.observer.ObserveTaskPolled()
}

func (h *runtimeHooks) GlobalQueueCheck() {
	h.metrics.RecordGlobalQueueCheck()
}

// Metrics returns the runtime's metrics instance.
func (rt *Runtime) Metrics() *Metrics {
	return rt.metrics
}

// install returns a context carrying rt, for Submit/Spawn to recover it.
func (rt *Runtime) install(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRuntime, rt)
}

// fromContext recovers the Runtime installed by Start/BlockOn.
func fromContext(ctx context.Context) (*Runtime, error) {
	rt, ok := ctx.Value(ctxKeyRuntime).(*Runtime)
	if !ok || rt == nil {
		return nil, NewError("fromContext", ErrCodeNotOnDriver, "no runtime installed on this context")
	}
	return rt, nil
}

// Spawn starts fut on the executor of the Runtime installed on ctx and
// returns a handle to its eventual result. It fails with
// ErrCodeNotOnExecutor if ctx carries no Runtime.
func Spawn[T any](ctx context.Context, fut executor.Future[T]) (*executor.JoinHandle[T], error) {
	rt, ok := ctx.Value(ctxKeyRuntime).(*Runtime)
	if !ok || rt == nil {
		return nil, NewError("Spawn", ErrCodeNotOnExecutor, "no runtime installed on this context")
	}
	return executor.Spawn(rt.executor, fut), nil
}

// Start creates a Runtime with default options and runs root to
// completion, blocking the calling goroutine. It is the top-level entry
// point: create a Runtime, install it, and drive the executor and driver
// together until root resolves.
func Start[T any](root func(ctx context.Context) executor.Future[T]) (T, error) {
	rt, err := New(Options{})
	if err != nil {
		var zero T
		return zero, err
	}
	defer rt.Close()
	return BlockOn(rt, context.Background(), root)
}

// BlockOn installs rt onto ctx, binds the executor to the calling
// goroutine's OS thread, spawns root, and alternates between running ready
// tasks and draining/waiting on driver completions until root's task
// completes.
//
// BlockOn is a free function, not a method, because Go forbids a method
// from introducing its own type parameter.
func BlockOn[T any](rt *Runtime, ctx context.Context, root func(ctx context.Context) executor.Future[T]) (T, error) {
	release := rt.executor.Bind()
	defer release()

	installed := rt.install(ctx)
	handle := executor.Spawn(rt.executor, root(installed))

	for {
		rt.executor.RunReady(MaxRunsBeforeYield)

		if handle.Done() {
			value, _ := handle.Poll(rootWaker{})
			return value, nil
		}

		if err := rt.pump(); err != nil {
			var zero T
			return zero, err
		}
	}
}

// pump drains available completions, blocking only when the executor has
// no runnable work: on the driver if at least one operation is in flight,
// otherwise on the reactor's external wake (or, with no reactor, it
// reports a deadlock instead of blocking).
func (rt *Runtime) pump() error {
	if rt.executor.HasWork() {
		// Prepare already attempts a non-blocking submit after every
		// insert, but that attempt can fail transiently (EAGAIN); flush
		// again here so a backlog never waits on HasWork going false,
		// which would starve it for as long as the executor stays busy.
		_, _ = rt.driver.Submit()
		if _, err := rt.driver.Tick(); err != nil {
			return WrapError("Tick", err)
		}
		return nil
	}

	if rt.driver.InFlight() == 0 {
		// nothing queued and nothing in flight: only an external wake
		// (a Spawn from another goroutine) can make progress possible.
		if rt.reactor != nil {
			if _, err := rt.reactor.Wait(-1); err != nil {
				return WrapError("Wait", err)
			}
			return nil
		}
		return NewError("pump", ErrCodeInvariantViolation, "deadlock: no runnable tasks and no in-flight operations")
	}

	if _, err := rt.driver.Wait(); err != nil {
		return WrapError("Wait", err)
	}
	return nil
}

// rootWaker is used for the final, already-ready poll of the root task's
// JoinHandle; BlockOn never lets it actually register as a waiter since it
// only polls after handle.Done() is true.
type rootWaker struct{}

func (rootWaker) Wake()                    {}
func (rootWaker) Equal(wake.Waker) bool { return false }

// Close releases the runtime's ring and reactor resources.
func (rt *Runtime) Close() error {
	rt.metrics.Stop()
	if rt.reactor != nil {
		rt.reactor.Close()
	}
	return rt.driver.Close()
}
