// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package iomanager

import (
	"time"

	"golang.org/x/sys/unix"
)

// StdIOManager is an IOManager built on select(2).  It cannot watch
// descriptors at or above FD_SETSIZE; use PollIOManager for those.
type StdIOManager struct {
	*core
}

// NewStdIOManager creates a select-based IOManager.
func NewStdIOManager(cfg Config) (*StdIOManager, error) {
	c, err := newCore(selectWaiter{}, cfg)
	if err != nil {
		return nil, err
	}
	return &StdIOManager{c}, nil
}

type selectWaiter struct{}

func (selectWaiter) wait(watches []*ioWatch, timeout time.Duration) ([]readyWatch, error) {
	var rfds, wfds, efds unix.FdSet
	maxfd := -1
	for _, w := range watches {
		if w.types&Read != 0 {
			rfds.Set(w.fd)
		}
		if w.types&Write != 0 {
			wfds.Set(w.fd)
		}
		if w.types&Except != 0 {
			efds.Set(w.fd)
		}
		if w.fd > maxfd {
			maxfd = w.fd
		}
	}
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxfd+1, &rfds, &wfds, &efds, &tv)
	if err == unix.EINTR {
		return nil, nil
	}
	if err != nil || n <= 0 {
		return nil, err
	}
	var ready []readyWatch
	for _, w := range watches {
		var types IOType
		if w.types&Read != 0 && rfds.IsSet(w.fd) {
			types |= Read
		}
		if w.types&Write != 0 && wfds.IsSet(w.fd) {
			types |= Write
		}
		if w.types&Except != 0 && efds.IsSet(w.fd) {
			types |= Except
		}
		if types != 0 {
			ready = append(ready, readyWatch{watch: w, types: types})
		}
	}
	return ready, nil
}
