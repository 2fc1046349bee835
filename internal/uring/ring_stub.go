//go:build !linux

package uring

import "errors"

// NewRing fails outside Linux: io_uring is a Linux-only kernel interface.
func NewRing(cfg Config) (Ring, error) {
	return nil, errors.New("uring: io_uring is only available on linux")
}
