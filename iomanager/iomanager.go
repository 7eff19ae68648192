// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package iomanager provides the single-threaded event loop that
// drives an MCOP process.  An IOManager multiplexes file descriptor
// readiness and periodic timers, calling back registered watchers.
//
// Callbacks may themselves call ProcessOneEvent, for instance to wait
// for the reply to a remote call made while handling a request.  The
// manager tracks this nesting as a level, starting at 1 for the
// outermost call.  Above level 1 only watches registered with the
// Reentrant flag are serviced, and timers and deferred notifications
// are held until control returns to level 1.
//
// The manager is not safe for concurrent use except as documented:
// Terminate and NotificationManager.Send may be called from any
// goroutine, and a goroutine holding the configured Locker may change
// watches while the loop is waiting.
package iomanager

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// IOType is a set of conditions a watch waits for.
type IOType int

// Watch conditions.  Reentrant is not a condition but marks a watch
// as eligible at nesting levels above 1.
const (
	Read IOType = 1 << iota
	Write
	Except
	Reentrant

	// All includes every condition and the reentrant flag.
	All = Read | Write | Except | Reentrant
)

// conditions masks off the Reentrant flag.
const conditions = Read | Write | Except

func (t IOType) String() string {
	s := ""
	for _, part := range []struct {
		bit  IOType
		name string
	}{{Read, "r"}, {Write, "w"}, {Except, "x"}, {Reentrant, "+"}} {
		if t&part.bit != 0 {
			s += part.name
		}
	}
	if s == "" {
		return "-"
	}
	return s
}

// IONotify is called when a watched file descriptor is ready.  types
// holds the ready conditions.  Implementations are compared with ==
// when removing watches, so they should be pointers.
type IONotify interface {
	NotifyIO(fd int, types IOType)
}

// TimeNotify is called when a timer fires.  Like IONotify,
// implementations should be pointers.
type TimeNotify interface {
	NotifyTime()
}

type ioFunc struct {
	f func(fd int, types IOType)
}

func (n *ioFunc) NotifyIO(fd int, types IOType) {
	n.f(fd, types)
}

// IOFunc wraps a function as an IONotify.  Each call returns a
// distinct notifier.
func IOFunc(f func(fd int, types IOType)) IONotify {
	return &ioFunc{f}
}

type timeFunc struct {
	f func()
}

func (n *timeFunc) NotifyTime() {
	n.f()
}

// TimeFunc wraps a function as a TimeNotify.  Each call returns a
// distinct notifier.
func TimeFunc(f func()) TimeNotify {
	return &timeFunc{f}
}

// IOManager is the event loop interface.
type IOManager interface {
	// WatchFD registers interest in conditions on fd.
	WatchFD(fd int, types IOType, notify IONotify)

	// Remove drops the given conditions from every watch
	// registered with notify.  A watch left with no conditions is
	// removed entirely.
	Remove(notify IONotify, types IOType)

	// AddTimer calls notify every interval.
	AddTimer(interval time.Duration, notify TimeNotify)

	// RemoveTimer cancels every timer registered with notify.
	RemoveTimer(notify TimeNotify)

	// ProcessOneEvent waits for and dispatches one round of
	// events.  If blocking is false it does not wait.
	ProcessOneEvent(blocking bool)

	// Run processes events until Terminate is called.
	Run()

	// Terminate makes Run return.  It may be called from any
	// goroutine.
	Terminate()

	// Level returns the current nesting depth of
	// ProcessOneEvent, zero outside any call.
	Level() int

	// SetLocker installs a lock that the caller of
	// ProcessOneEvent holds, and that is released while waiting.
	SetLocker(locker sync.Locker)

	// Notifications returns the deferred notification queue.
	Notifications() *NotificationManager

	// Clock returns the clock timers run against.
	Clock() clock.Clock

	// Close releases the manager's own descriptors.
	Close() error
}

// Config holds optional settings for creating an IOManager.
type Config struct {
	// Clock is the time source for timers.  Defaults to the
	// system clock.
	Clock clock.Clock

	// Logger receives diagnostic messages.  Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// IdleTimeout is the longest a blocking ProcessOneEvent waits
	// when no timer is due sooner.  Defaults to 5 seconds.
	IdleTimeout time.Duration
}

func (cfg *Config) setDefaults() {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
}
