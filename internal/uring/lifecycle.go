package uring

import "github.com/cloudcutter/uringrt/internal/wake"

// lifecycle is the state of one slab slot, mirroring the state machine of
// an individual in-flight operation:
//
//   submitted  -> no one has polled this op yet
//   waiting    -> a task is parked on this op's completion
//   ignored    -> the caller abandoned the op before it completed; the
//                 slot is kept (and an optional payload pinned) only to
//                 absorb the eventual completion and must be freed then
//   completed  -> a result has arrived and is waiting to be collected
type lifecycleState int

const (
	lifecycleSubmitted lifecycleState = iota
	lifecycleWaiting
	lifecycleIgnored
	lifecycleCompleted
)

type slot struct {
	state lifecycleState

	waker   wake.Waker // valid when state == lifecycleWaiting
	payload any        // valid when state == lifecycleIgnored; pins kernel-owned memory alive

	result int32 // valid when state == lifecycleCompleted
	flags  uint32

	submittedAt int64 // UnixNano, for latency metrics
}

// complete transitions the slot on a completion arriving, and reports
// whether the slot must now be removed from the slab (true only when the
// op had already been abandoned: an ignored completion carries no
// consumer, so nothing will ever call Poll/Remove for it).
func (s *slot) complete(result int32, flags uint32) (remove bool) {
	switch s.state {
	case lifecycleSubmitted:
		s.state = lifecycleCompleted
		s.result = result
		s.flags = flags
		return false
	case lifecycleWaiting:
		w := s.waker
		s.state = lifecycleCompleted
		s.result = result
		s.flags = flags
		s.waker = nil
		if w != nil {
			w.Wake()
		}
		return false
	case lifecycleIgnored:
		return true
	case lifecycleCompleted:
		panic("uring: completion delivered twice for the same op")
	default:
		panic("uring: unreachable lifecycle state")
	}
}
