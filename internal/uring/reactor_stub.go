//go:build !linux

package uring

import "errors"

// Reactor is unavailable outside Linux; epoll and eventfd are Linux-only.
type Reactor struct{}

func NewReactor(ringFd int) (*Reactor, error) {
	return nil, errors.New("uring: Reactor requires linux")
}

func (r *Reactor) Wait(timeoutMs int) (ringReady bool, err error) {
	return false, errors.New("uring: Reactor requires linux")
}

func (r *Reactor) WakeUp() {}

func (r *Reactor) Close() error { return nil }
