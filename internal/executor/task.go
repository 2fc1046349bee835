package executor

import (
	"sync"

	"github.com/cloudcutter/uringrt/internal/wake"
)

// runnable is the type-erased unit the executor's queues hold. Task[T]
// implements it for every T, the same way async runtimes elsewhere erase a
// generic future behind a scheduling vtable.
type runnable interface {
	run()
}

// Task runs a Future[T] to completion on an Executor and lets any number of
// JoinHandle[T] observers await its result.
type Task[T any] struct {
	exec *Executor
	fut  Future[T]

	mu       sync.Mutex
	done     bool
	value    T
	waiting  []wake.Waker // wakers of pollers currently awaiting completion
	inQueue  bool         // true while a run of this task is already queued
}

// taskWaker implements wake.Waker by rescheduling its Task.
type taskWaker[T any] struct {
	task *Task[T]
}

func (w taskWaker[T]) Wake() {
	w.task.schedule()
}

func (w taskWaker[T]) Equal(other wake.Waker) bool {
	o, ok := other.(taskWaker[T])
	return ok && o.task == w.task
}

func (t *Task[T]) schedule() {
	t.mu.Lock()
	if t.done || t.inQueue {
		t.mu.Unlock()
		return
	}
	t.inQueue = true
	t.mu.Unlock()
	t.exec.push(t)
}

// run polls the underlying future once. Called only by the executor's run
// loop, always from the executor's owning thread.
func (t *Task[T]) run() {
	t.mu.Lock()
	t.inQueue = false
	if t.done {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.exec.hooks.TaskPolled()
	value, ready := t.fut.Poll(taskWaker[T]{task: t})
	if !ready {
		return
	}

	t.mu.Lock()
	t.done = true
	t.value = value
	waiters := t.waiting
	t.waiting = nil
	t.mu.Unlock()

	for _, w := range waiters {
		w.Wake()
	}
}

// poll implements the waiting side for a JoinHandle[T]: returns the result
// if the task has completed, otherwise registers w to be woken on
// completion, coalescing repeated registrations from the same waker.
func (t *Task[T]) poll(w wake.Waker) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return t.value, true
	}

	for _, existing := range t.waiting {
		if existing.Equal(w) {
			var zero T
			return zero, false
		}
	}
	t.waiting = append(t.waiting, w)
	var zero T
	return zero, false
}

// JoinHandle observes the eventual result of a spawned Task[T]. It
// implements Future[T] so it can itself be awaited from another task.
type JoinHandle[T any] struct {
	task *Task[T]
}

// Poll implements Future[T].
func (h *JoinHandle[T]) Poll(w wake.Waker) (T, bool) {
	return h.task.poll(w)
}

// Done reports whether the task has completed, without blocking or
// registering a waker.
func (h *JoinHandle[T]) Done() bool {
	h.task.mu.Lock()
	defer h.task.mu.Unlock()
	return h.task.done
}
