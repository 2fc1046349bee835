package uringrt

import (
	"context"

	"github.com/cloudcutter/uringrt/internal/executor"
	"github.com/cloudcutter/uringrt/internal/uring"
)

// NewTestRuntime creates a Runtime backed by an in-memory fake ring
// instead of a real kernel io_uring instance, for exercising Submit and
// Spawn without a Linux kernel. Completions are injected through the
// returned FakeRing's Complete method.
func NewTestRuntime(ringCapacity int) (*Runtime, *uring.FakeRing, error) {
	ring := uring.NewFakeRing(ringCapacity)
	rt, err := newRuntime(ring, Options{SlabCapacity: ringCapacity})
	if err != nil {
		return nil, nil, err
	}
	return rt, ring, nil
}

// RunTest drives root to completion against a fake ring, the way BlockOn
// drives real I/O: it alternates running ready tasks with ticking the
// fake ring, so a test can interleave Complete calls with execution by
// spawning a goroutine that calls Complete while this blocks, or by
// arranging completions to already be queued before Submit is even
// polled.
func RunTest[T any](rt *Runtime, ring *uring.FakeRing, root func(ctx context.Context) executor.Future[T]) (T, error) {
	return BlockOn(rt, context.Background(), root)
}
