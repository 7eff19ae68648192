// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package iomanager

import (
	"time"

	"golang.org/x/sys/unix"
)

// PollIOManager is an IOManager built on poll(2).
type PollIOManager struct {
	*core
}

// NewPollIOManager creates a poll-based IOManager.
func NewPollIOManager(cfg Config) (*PollIOManager, error) {
	c, err := newCore(pollWaiter{}, cfg)
	if err != nil {
		return nil, err
	}
	return &PollIOManager{c}, nil
}

// New creates the default IOManager implementation.
func New(cfg Config) (IOManager, error) {
	return NewPollIOManager(cfg)
}

type pollWaiter struct{}

func (pollWaiter) wait(watches []*ioWatch, timeout time.Duration) ([]readyWatch, error) {
	fds := make([]unix.PollFd, len(watches))
	for i, w := range watches {
		fds[i].Fd = int32(w.fd)
		if w.types&Read != 0 {
			fds[i].Events |= unix.POLLIN
		}
		if w.types&Write != 0 {
			fds[i].Events |= unix.POLLOUT
		}
		if w.types&Except != 0 {
			fds[i].Events |= unix.POLLPRI
		}
	}
	n, err := unix.Poll(fds, timeoutMillis(timeout))
	if err == unix.EINTR {
		return nil, nil
	}
	if err != nil || n <= 0 {
		return nil, err
	}
	var ready []readyWatch
	for i, w := range watches {
		revents := fds[i].Revents
		var types IOType
		// Hangups and errors are reported as readable, as select
		// does, so the reader sees EOF or the error.
		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			types |= Read
		}
		if revents&(unix.POLLOUT|unix.POLLERR) != 0 {
			types |= Write
		}
		if revents&unix.POLLPRI != 0 {
			types |= Except
		}
		types &= w.types
		if types != 0 {
			ready = append(ready, readyWatch{watch: w, types: types})
		}
	}
	return ready, nil
}
