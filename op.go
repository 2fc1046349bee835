package uringrt

import (
	"context"
	"runtime"

	"github.com/pawelgaczynski/giouring"

	"github.com/cloudcutter/uringrt/internal/executor"
	"github.com/cloudcutter/uringrt/internal/logging"
	"github.com/cloudcutter/uringrt/internal/uring"
	"github.com/cloudcutter/uringrt/internal/wake"
)

// Completion carries a finished operation's payload back alongside the raw
// kernel result and completion flags. Result is the CQE's res field
// (negative is -errno); Flags is the CQE's flags field, passed through
// uninterpreted.
type Completion[T any] struct {
	Data   T
	Result int32
	Flags  uint32
}

// Err translates Result into an error if it represents a kernel failure,
// nil otherwise.
func (c Completion[T]) Err() error {
	if c.Result >= 0 {
		return nil
	}
	return NewErrorWithErrno("Completion", -1, errnoFromResult(c.Result))
}

// Op is a handle to a single in-flight io_uring operation. It implements
// executor.Future[Completion[T]] so it can be awaited directly from a
// spawned task. T is whatever payload the caller needs kept alive and
// handed back on completion — typically a buffer the kernel is reading
// into or writing from.
//
// Go has no destructors, so there is no equivalent of the Drop-based
// cancellation the runtime this type is modeled on relies on: a caller
// that stops awaiting an Op before it completes MUST call Cancel. Without
// it the slab slot is never freed (the completion is stored but nothing
// collects it), and the driver does not pin the payload, which lives only
// as long as the Op itself. A best-effort finalizer logs a
// warning if an Op is garbage collected without either completing or being
// canceled, as a diagnostic aid; it deliberately does not touch the driver
// itself, since a finalizer can run on an arbitrary goroutine and this
// runtime's driver may only be touched from its owner thread.
type Op[T any] struct {
	driver   *uring.Driver
	index    int
	data     T
	finished bool
}

// Submit reserves a driver slot, lets build fill in the submission queue
// entry, and returns a handle to the eventual completion. data is kept
// alive on the Op (and, if the caller abandons the Op, pinned by the
// driver) so that a buffer build writes into the SQE stays valid until the
// kernel is done with it.
func Submit[T any](ctx context.Context, data T, build func(sqe *giouring.SubmissionQueueEntry, data *T)) (*Op[T], error) {
	rt, err := fromContext(ctx)
	if err != nil {
		return nil, err
	}

	op := &Op[T]{driver: rt.driver, data: data}
	index, err := op.driver.Prepare(func(sqe *giouring.SubmissionQueueEntry) {
		build(sqe, &op.data)
	})
	if err != nil {
		return nil, WrapError("Submit", err)
	}
	op.index = index

	runtime.SetFinalizer(op, finalizeOp[T])
	return op, nil
}

func finalizeOp[T any](op *Op[T]) {
	if !op.finished {
		logging.Default().Warn("op garbage collected without completing or being canceled",
			"index", op.index)
	}
}

// Poll implements executor.Future[Completion[T]].
func (o *Op[T]) Poll(w wake.Waker) (Completion[T], bool) {
	result, flags, ready := o.driver.Poll(o.index, w)
	if !ready {
		return Completion[T]{}, false
	}
	o.finished = true
	runtime.SetFinalizer(o, nil)
	return Completion[T]{Data: o.data, Result: result, Flags: flags}, true
}

// Cancel abandons the operation before it has completed. The driver keeps
// the slab slot (pinning data) until the kernel's eventual completion
// arrives, then discards it silently. Calling Cancel on an Op that has
// already completed or already been canceled panics.
func (o *Op[T]) Cancel() {
	if o.finished {
		panic("uringrt: Cancel called on an Op that already finished")
	}
	o.finished = true
	runtime.SetFinalizer(o, nil)
	o.driver.Abandon(o.index, o.data)
}

var _ executor.Future[Completion[int]] = (*Op[int])(nil)
