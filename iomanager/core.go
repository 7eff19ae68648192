// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package iomanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type ioWatch struct {
	fd     int
	types  IOType
	notify IONotify
	active bool
}

type ioTimer struct {
	interval time.Duration
	next     time.Time
	notify   TimeNotify
	active   bool
}

// readyWatch pairs a watch with the conditions found ready on it.
type readyWatch struct {
	watch *ioWatch
	types IOType
}

// waiter is the part of the event loop that differs between the
// select and poll implementations.  It blocks for at most timeout
// and reports which of the watches are ready.
type waiter interface {
	wait(watches []*ioWatch, timeout time.Duration) ([]readyWatch, error)
}

// core implements IOManager on top of a waiter.
type core struct {
	waiter        waiter
	clock         clock.Clock
	log           logrus.FieldLogger
	idleTimeout   time.Duration
	locker        sync.Locker
	notifications *NotificationManager

	watches []*ioWatch
	timers  []*ioTimer
	level   int

	terminated int32
	waiting    bool
	wakeRead   int
	wakeWrite  int
	wakeWatch  *ioWatch
}

func newCore(w waiter, cfg Config) (*core, error) {
	cfg.setDefaults()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	m := &core{
		waiter:      w,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		idleTimeout: cfg.IdleTimeout,
		wakeRead:    fds[0],
		wakeWrite:   fds[1],
	}
	m.wakeWatch = &ioWatch{fd: fds[0], types: Read | Reentrant, active: true}
	m.notifications = &NotificationManager{wakeup: m.wakeup}
	return m, nil
}

// wakeup interrupts a wait in progress.
func (m *core) wakeup() {
	// A full pipe already guarantees a wakeup.
	_, _ = unix.Write(m.wakeWrite, []byte{0})
}

func (m *core) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(m.wakeRead, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// changed is called after every watch list change, so that a loop
// waiting on the old list starts over.
func (m *core) changed() {
	if m.waiting {
		m.wakeup()
	}
}

func (m *core) WatchFD(fd int, types IOType, notify IONotify) {
	m.watches = append(m.watches, &ioWatch{
		fd:     fd,
		types:  types,
		notify: notify,
		active: true,
	})
	m.changed()
}

func (m *core) Remove(notify IONotify, types IOType) {
	kept := m.watches[:0]
	for _, w := range m.watches {
		if w.notify == notify {
			w.types &^= types & conditions
			if w.types&conditions == 0 {
				w.active = false
				continue
			}
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(m.watches); i++ {
		m.watches[i] = nil
	}
	m.watches = kept
	m.changed()
}

func (m *core) AddTimer(interval time.Duration, notify TimeNotify) {
	m.timers = append(m.timers, &ioTimer{
		interval: interval,
		next:     m.clock.Now().Add(interval),
		notify:   notify,
		active:   true,
	})
	m.changed()
}

func (m *core) RemoveTimer(notify TimeNotify) {
	kept := m.timers[:0]
	for _, t := range m.timers {
		if t.notify == notify {
			t.active = false
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(m.timers); i++ {
		m.timers[i] = nil
	}
	m.timers = kept
}

func (m *core) Level() int {
	return m.level
}

func (m *core) SetLocker(locker sync.Locker) {
	m.locker = locker
}

func (m *core) Notifications() *NotificationManager {
	return m.notifications
}

func (m *core) Clock() clock.Clock {
	return m.clock
}

func (m *core) Terminate() {
	atomic.StoreInt32(&m.terminated, 1)
	m.wakeup()
}

func (m *core) Run() {
	for atomic.LoadInt32(&m.terminated) == 0 {
		m.ProcessOneEvent(true)
	}
}

func (m *core) Close() error {
	err := unix.Close(m.wakeRead)
	if err2 := unix.Close(m.wakeWrite); err == nil {
		err = err2
	}
	return err
}

// timeout computes how long a wait at the current level may block.
func (m *core) timeout(blocking bool) time.Duration {
	if !blocking || atomic.LoadInt32(&m.terminated) != 0 {
		return 0
	}
	timeout := m.idleTimeout
	if m.level == 1 {
		if m.notifications.Pending() {
			return 0
		}
		now := m.clock.Now()
		for _, t := range m.timers {
			if d := t.next.Sub(now); d < timeout {
				timeout = d
			}
		}
		if timeout < 0 {
			timeout = 0
		}
	}
	return timeout
}

func (m *core) ProcessOneEvent(blocking bool) {
	m.level++
	defer func() { m.level-- }()

	if m.level == 1 {
		m.notifications.Run()
	}

	// Only reentrant watches take part in nested waits.
	watches := make([]*ioWatch, 0, len(m.watches)+1)
	watches = append(watches, m.wakeWatch)
	for _, w := range m.watches {
		if w.active && (m.level == 1 || w.types&Reentrant != 0) {
			watches = append(watches, w)
		}
	}
	timeout := m.timeout(blocking)

	m.waiting = true
	if m.locker != nil {
		m.locker.Unlock()
	}
	ready, err := m.waiter.wait(watches, timeout)
	if m.locker != nil {
		m.locker.Lock()
	}
	m.waiting = false
	if err != nil {
		m.log.WithError(err).Error("waiting for events failed")
	}

	// ready is a snapshot; callbacks may change the watch list,
	// so each watch is rechecked before it is notified.
	for _, r := range ready {
		if r.watch == m.wakeWatch {
			m.drainWakeup()
			continue
		}
		if !r.watch.active {
			continue
		}
		types := r.types & r.watch.types
		if types != 0 {
			r.watch.notify.NotifyIO(r.watch.fd, types)
		}
	}

	if m.level == 1 {
		m.runTimers()
		m.notifications.Run()
	}
}

func (m *core) runTimers() {
	now := m.clock.Now()
	due := make([]*ioTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if !now.Before(t.next) {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if !t.active {
			continue
		}
		t.next = t.next.Add(t.interval)
		if !t.next.After(now) {
			t.next = now.Add(t.interval)
		}
		t.notify.NotifyTime()
	}
}

// timeoutMillis converts a wait timeout to whole milliseconds,
// rounding up so that a short positive timeout still waits.
func timeoutMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}
