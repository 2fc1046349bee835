//go:build linux

package uring

import (
	"github.com/pawelgaczynski/giouring"

	"github.com/cloudcutter/uringrt/internal/logging"
)

// realRing adapts *giouring.Ring to the Ring interface.
type realRing struct {
	ring *giouring.Ring
}

// NewRing creates a real kernel-backed ring.
func NewRing(cfg Config) (Ring, error) {
	logger := logging.Default()
	logger.Debug("creating io_uring", "entries", cfg.Entries)

	ring, err := giouring.CreateRing(cfg.Entries)
	if err != nil {
		logger.Error("failed to create io_uring", "error", err)
		return nil, err
	}

	logger.Info("created io_uring", "entries", cfg.Entries)
	return &realRing{ring: ring}, nil
}

func (r *realRing) GetSQE() *giouring.SubmissionQueueEntry {
	return r.ring.GetSQE()
}

func (r *realRing) Submit() (uint32, error) {
	return r.ring.Submit()
}

func (r *realRing) SubmitAndWait(waitNr uint32) (uint32, error) {
	return r.ring.SubmitAndWait(waitNr)
}

func (r *realRing) PeekBatchCQE(cqes []*giouring.CompletionQueueEvent) uint32 {
	return r.ring.PeekBatchCQE(cqes)
}

func (r *realRing) CQAdvance(n uint32) {
	r.ring.CQAdvance(n)
}

func (r *realRing) Fd() int {
	return r.ring.Fd()
}

func (r *realRing) QueueExit() error {
	r.ring.QueueExit()
	return nil
}
