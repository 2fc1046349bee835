//go:build linux

package uring

import (
	"golang.org/x/sys/unix"
)

// Reactor multiplexes readiness of a driver's ring file descriptor with an
// eventfd-based external wakeup channel, so the runtime's block-on loop can
// sleep until either the ring has completions or another goroutine pushed
// work onto the executor's global queue, instead of busy-polling.
type Reactor struct {
	epfd   int
	ringFd int
	wakeFd int
}

// NewReactor creates a Reactor watching ringFd for readability.
func NewReactor(ringFd int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	r := &Reactor{epfd: epfd, ringFd: ringFd, wakeFd: wakeFd}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		r.Close()
		return nil, err
	}

	if ringFd >= 0 {
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, ringFd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(ringFd),
		}); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

// Wait blocks until the ring fd or the wake fd becomes readable, or
// timeoutMs elapses (-1 blocks indefinitely). It drains the wake fd if
// that's what woke it. Returns whether the ring fd was the one that
// became ready.
func (r *Reactor) Wait(timeoutMs int) (ringReady bool, err error) {
	var events [2]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}

	for i := 0; i < n; i++ {
		switch int(events[i].Fd) {
		case r.wakeFd:
			var buf [8]byte
			unix.Read(r.wakeFd, buf[:])
		case r.ringFd:
			ringReady = true
		}
	}
	return ringReady, nil
}

// WakeUp causes a blocked Wait to return. Safe to call from any goroutine.
func (r *Reactor) WakeUp() {
	var buf [8]byte
	buf[0] = 1
	unix.Write(r.wakeFd, buf[:])
}

// Close releases the epoll and eventfd descriptors.
func (r *Reactor) Close() error {
	unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}
