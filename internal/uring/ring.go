// Package uring wraps an io_uring submission/completion ring behind a small
// interface and implements the operation lifecycle state machine (the
// Driver) on top of it.
package uring

import (
	"errors"

	"github.com/pawelgaczynski/giouring"
)

// ErrRingFull is returned when the submission queue has no free entry even
// after a flush-and-retry.
var ErrRingFull = errors.New("submission queue full")

// Ring is the minimal surface the Driver needs from an io_uring instance.
// The real implementation (ring_linux.go) wraps *giouring.Ring directly;
// tests use FakeRing instead of a kernel ring.
type Ring interface {
	// GetSQE returns the next free submission queue entry, or nil if the
	// queue is full.
	GetSQE() *giouring.SubmissionQueueEntry

	// Submit flushes prepared SQEs to the kernel without waiting for any
	// completions, returning the number submitted.
	Submit() (uint32, error)

	// SubmitAndWait flushes prepared SQEs and blocks until at least
	// waitNr completions are available.
	SubmitAndWait(waitNr uint32) (uint32, error)

	// PeekBatchCQE fills cqes with available completions and returns how
	// many were written.
	PeekBatchCQE(cqes []*giouring.CompletionQueueEvent) uint32

	// CQAdvance releases n completion queue entries back to the kernel.
	CQAdvance(n uint32)

	// Fd returns the io_uring instance's file descriptor, used to
	// multiplex readiness with external wakeups via the Reactor.
	Fd() int

	// QueueExit releases the ring's kernel and mapped-memory resources.
	QueueExit() error
}

// Config configures ring creation.
type Config struct {
	// Entries is the number of submission queue entries to request.
	Entries uint32
}
