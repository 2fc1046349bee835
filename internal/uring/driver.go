package uring

import (
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/cloudcutter/uringrt/internal/slab"
	"github.com/cloudcutter/uringrt/internal/wake"
)

// Hooks lets a caller observe driver events without the package depending
// on the root package's Metrics type.
type Hooks interface {
	ObserveSubmit()
	ObserveCompletion(latencyNs uint64, success bool)
	ObserveInFlight(depth uint32)
}

type noopHooks struct{}

func (noopHooks) ObserveSubmit()                        {}
func (noopHooks) ObserveCompletion(uint64, bool)        {}
func (noopHooks) ObserveInFlight(uint32)                {}

const maxBatchCQE = 64

// Driver owns a ring and the slab of in-flight operations. It is not safe
// for concurrent use: every method must be called from the single thread
// that owns the Driver, matching the runtime's unsynchronized single
// owner-thread invariant.
type Driver struct {
	ring  Ring
	slots *slab.Slab[slot]
	hooks Hooks
}

// New wires a Driver to ring. hooks may be nil.
func New(ring Ring, capacity int, hooks Hooks) *Driver {
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &Driver{
		ring:  ring,
		slots: slab.New[slot](capacity),
		hooks: hooks,
	}
}

// Prepare reserves a slab slot, obtains a submission queue entry, lets
// build fill it in, and stamps the entry's user_data with the slot index.
// If the submission queue is momentarily full, Prepare flushes once via
// the ring's Submit and retries a single time before giving up with
// ErrRingFull — this resolves, rather than panics on, the case the
// runtime this package is modeled on left unhandled.
//
// After every successful insert, Prepare also attempts a non-blocking
// submit to the kernel. A failure here (e.g. EAGAIN) is non-fatal and is
// deliberately ignored: the slot is still returned, and a later Tick/Wait
// will flush it, matching submit_with in the runtime this package is
// modeled on, which calls `let _ = inner.submit()` unconditionally after
// every push.
func (d *Driver) Prepare(build func(sqe *giouring.SubmissionQueueEntry)) (int, error) {
	sqe := d.ring.GetSQE()
	if sqe == nil {
		if _, err := d.ring.Submit(); err != nil {
			return 0, err
		}
		sqe = d.ring.GetSQE()
		if sqe == nil {
			return 0, ErrRingFull
		}
	}

	index := d.slots.Insert(slot{
		state:       lifecycleSubmitted,
		submittedAt: time.Now().UnixNano(),
	})

	build(sqe)
	sqe.UserData = uint64(index)

	d.hooks.ObserveSubmit()
	d.hooks.ObserveInFlight(uint32(d.slots.Len()))

	_, _ = d.ring.Submit()

	return index, nil
}

// Submit flushes prepared SQEs to the kernel, returning how many were
// submitted.
func (d *Driver) Submit() (uint32, error) {
	return d.ring.Submit()
}

// Poll checks whether index has completed. If so it removes the slot and
// returns the raw (result, flags) pair. Otherwise it registers w to be
// woken on completion, coalescing repeated registrations from the same
// waker the way Op[T].Poll does at the public layer.
func (d *Driver) Poll(index int, w wake.Waker) (result int32, flags uint32, ready bool) {
	s := d.slots.GetPtr(index)
	if s == nil {
		panic("uring: Poll called with an unknown or already-removed index")
	}

	switch s.state {
	case lifecycleCompleted:
		result, flags = s.result, s.flags
		d.slots.Remove(index)
		return result, flags, true
	case lifecycleSubmitted:
		s.state = lifecycleWaiting
		s.waker = w
		return 0, 0, false
	case lifecycleWaiting:
		if !s.waker.Equal(w) {
			s.waker = w
		}
		return 0, 0, false
	default:
		panic("uring: Poll called on an abandoned op")
	}
}

// Abandon marks index as no longer having a consumer. keepAlive, if
// non-nil, is pinned in the slot until the eventual completion arrives —
// this is how a canceled read/write keeps its kernel-owned buffer alive
// instead of letting the kernel write into freed memory.
func (d *Driver) Abandon(index int, keepAlive any) {
	s := d.slots.GetPtr(index)
	if s == nil {
		panic("uring: Abandon called with an unknown or already-removed index")
	}

	switch s.state {
	case lifecycleSubmitted, lifecycleWaiting:
		s.state = lifecycleIgnored
		s.waker = nil
		s.payload = keepAlive
	case lifecycleCompleted:
		d.slots.Remove(index)
	case lifecycleIgnored:
		panic("uring: Abandon called twice for the same op")
	}
}

// Tick drains available completions from the ring, advancing each
// matching slot's lifecycle and waking any parked task. It does not block;
// call Wait to block until at least one completion is ready.
func (d *Driver) Tick() (completed int, err error) {
	var cqes [maxBatchCQE]*giouring.CompletionQueueEvent
	for {
		n := d.ring.PeekBatchCQE(cqes[:])
		if n == 0 {
			return completed, nil
		}

		for i := uint32(0); i < n; i++ {
			cqe := cqes[i]
			index := int(cqe.UserData)
			s := d.slots.GetPtr(index)
			if s == nil {
				continue
			}

			submittedAt := s.submittedAt
			remove := s.complete(cqe.Res, cqe.Flags)
			d.hooks.ObserveCompletion(uint64(time.Now().UnixNano()-submittedAt), cqe.Res >= 0)
			if remove {
				d.slots.Remove(index)
			}
			completed++
		}

		d.ring.CQAdvance(n)
		d.hooks.ObserveInFlight(uint32(d.slots.Len()))
	}
}

// Wait blocks until at least one completion is available (or the kernel
// wakes the ring for any other reason) and then drains them via Tick.
func (d *Driver) Wait() (completed int, err error) {
	if _, err := d.ring.SubmitAndWait(1); err != nil {
		return 0, err
	}
	return d.Tick()
}

// Fd returns the ring's file descriptor, for use by a Reactor.
func (d *Driver) Fd() int {
	return d.ring.Fd()
}

// InFlight returns the number of operations the driver is currently
// tracking (submitted, waiting, or ignored-but-not-yet-completed).
func (d *Driver) InFlight() int {
	return d.slots.Len()
}

// Close releases the underlying ring.
func (d *Driver) Close() error {
	return d.ring.QueueExit()
}
