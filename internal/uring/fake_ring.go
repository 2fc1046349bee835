package uring

import (
	"sync"

	"github.com/pawelgaczynski/giouring"
)

// FakeRing is an in-memory Ring double for tests that exercise the Driver
// without a real kernel. Completions are injected by calling Complete.
//
// Unlike a real ring, PeekBatchCQE removes entries immediately rather than
// waiting for CQAdvance; CQAdvance is a no-op. This is a simplification
// the Driver never observes, since it always advances by exactly the
// number it peeked.
type FakeRing struct {
	mu          sync.Mutex
	capacity    int
	pending     int // SQEs handed out by GetSQE since the last Submit
	cqes        []fakeCompletion
	closed      bool
	submitCalls int // number of Submit/SubmitAndWait calls observed
}

type fakeCompletion struct {
	userData uint64
	res      int32
	flags    uint32
}

// NewFakeRing creates a FakeRing that reports full after capacity
// outstanding (unsubmitted) SQEs.
func NewFakeRing(capacity int) *FakeRing {
	return &FakeRing{capacity: capacity}
}

func (f *FakeRing) GetSQE() *giouring.SubmissionQueueEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending >= f.capacity {
		return nil
	}
	f.pending++
	return &giouring.SubmissionQueueEntry{}
}

func (f *FakeRing) Submit() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	n := uint32(f.pending)
	f.pending = 0
	return n, nil
}

func (f *FakeRing) SubmitAndWait(waitNr uint32) (uint32, error) {
	return f.Submit()
}

func (f *FakeRing) PeekBatchCQE(cqes []*giouring.CompletionQueueEvent) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for n < len(cqes) && n < len(f.cqes) {
		c := f.cqes[n]
		cqes[n] = &giouring.CompletionQueueEvent{UserData: c.userData, Res: c.res, Flags: c.flags}
		n++
	}
	f.cqes = f.cqes[n:]
	return uint32(n)
}

func (f *FakeRing) CQAdvance(n uint32) {}

func (f *FakeRing) Fd() int { return -1 }

func (f *FakeRing) QueueExit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Complete queues a completion for the given user data, to be returned by
// the next PeekBatchCQE call.
func (f *FakeRing) Complete(userData uint64, res int32, flags uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cqes = append(f.cqes, fakeCompletion{userData: userData, res: res, flags: flags})
}

// Closed reports whether QueueExit has been called.
func (f *FakeRing) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SubmitCalls reports how many times Submit (directly or via
// SubmitAndWait) has been called, for asserting that a flush path was
// actually exercised.
func (f *FakeRing) SubmitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}
