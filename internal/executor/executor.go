// Package executor implements a single-threaded, cooperative task
// scheduler: a thread-bound local FIFO queue plus a mutex-guarded global
// injector queue that other goroutines can push onto, drained into the
// local queue on a fixed schedule to bound starvation.
package executor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/cloudcutter/uringrt/internal/constants"
)

// Hooks lets a caller observe scheduling events without the executor
// importing anything above it (metrics live in the root package).
type Hooks interface {
	TaskScheduled(global bool)
	TaskPolled()
	GlobalQueueCheck()
}

type noopHooks struct{}

func (noopHooks) TaskScheduled(bool) {}
func (noopHooks) TaskPolled()        {}
func (noopHooks) GlobalQueueCheck()  {}

// Executor runs spawned tasks to completion on a single OS thread. The
// zero value is not usable; construct with New.
type Executor struct {
	hooks Hooks

	threadID atomic.Int32 // 0 until Bind is called; guarded by atomic ops

	local []runnable // owned exclusively by the binding thread once bound

	mu           sync.Mutex
	global       []runnable
	wakeExternal func()

	ticks uint64
}

// New creates an Executor. hooks may be nil.
func New(hooks Hooks) *Executor {
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &Executor{hooks: hooks}
}

// Bind locks the calling goroutine to its current OS thread and records
// that thread's id as the executor's owner. It must be called once, from
// the goroutine that will run the executor's loop, before any task is
// spawned. The returned func releases the OS thread lock; call it when the
// executor is done running.
func (e *Executor) Bind() func() {
	runtime.LockOSThread()
	e.threadID.Store(int32(unix.Gettid()))
	return func() {
		e.threadID.Store(0)
		runtime.UnlockOSThread()
	}
}

// onOwnerThread reports whether the calling goroutine is running on the
// executor's bound OS thread.
func (e *Executor) onOwnerThread() bool {
	id := e.threadID.Load()
	return id != 0 && int32(unix.Gettid()) == id
}

// push schedules r for another run, choosing the local queue if called
// from the owner thread and the global injector queue otherwise.
func (e *Executor) push(r runnable) {
	if e.onOwnerThread() {
		e.local = append(e.local, r)
		e.hooks.TaskScheduled(false)
		return
	}
	e.mu.Lock()
	e.global = append(e.global, r)
	wakeExternal := e.wakeExternal
	e.mu.Unlock()
	e.hooks.TaskScheduled(true)
	if wakeExternal != nil {
		wakeExternal()
	}
}

// SetExternalWake installs a function called whenever a task is scheduled
// onto the global injector queue from outside the owner thread. A Runtime
// uses this to break its reactor out of a blocking wait when another
// goroutine spawns work while the owner thread is parked waiting on the
// driver.
func (e *Executor) SetExternalWake(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wakeExternal = f
}

// next pops the next runnable to run, applying the starvation-avoidance
// policy: check the global queue whenever the local queue is empty, or
// every constants.GlobalQueueCheckInterval dequeues, draining it wholesale
// into the local queue when non-empty. Returns nil if there is no work.
func (e *Executor) next() runnable {
	checkGlobal := len(e.local) == 0 || e.ticks%constants.GlobalQueueCheckInterval == 0
	if checkGlobal {
		e.hooks.GlobalQueueCheck()
		e.mu.Lock()
		if len(e.global) > 0 {
			e.local = append(e.local, e.global...)
			e.global = e.global[:0]
		}
		e.mu.Unlock()
	}

	if len(e.local) == 0 {
		return nil
	}
	e.ticks++
	r := e.local[0]
	e.local = e.local[1:]
	return r
}

// HasWork reports whether the executor has a runnable queued locally or
// waiting in the global injector queue.
func (e *Executor) HasWork() bool {
	if len(e.local) > 0 {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.global) > 0
}

// RunReady polls up to max queued runnables, or until the queue is empty,
// whichever comes first. It returns the number actually run. Must be
// called from the owner thread.
func (e *Executor) RunReady(max int) int {
	n := 0
	for n < max {
		r := e.next()
		if r == nil {
			break
		}
		r.run()
		n++
	}
	return n
}

// Spawn starts fut running on e and returns a handle to its eventual
// result. Spawn may be called from any goroutine: if it isn't the
// executor's owner thread, the task's first run is queued on the global
// injector queue and picked up the next time the owner thread drains it.
//
// Spawn is a free function, not a method, because Go does not allow a
// method to introduce its own type parameter on a non-generic receiver.
func Spawn[T any](e *Executor, fut Future[T]) *JoinHandle[T] {
	t := &Task[T]{exec: e, fut: fut}
	t.schedule()
	return &JoinHandle[T]{task: t}
}
