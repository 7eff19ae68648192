// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package iomanager

import "sync"

// Notification is a deferred message to a receiver.
type Notification struct {
	Receiver NotificationReceiver
	ID       int
	Data     interface{}
}

// NotificationReceiver handles deferred notifications.
// Implementations are compared with ==, so they should be pointers.
type NotificationReceiver interface {
	Notify(n Notification)
}

// NotificationManager queues notifications for delivery at the top
// level of the event loop, outside any nested wait.  Send may be
// called from any goroutine.
type NotificationManager struct {
	lock    sync.Mutex
	queue   []queuedNotification
	nextSeq uint64
	wakeup  func()
}

type queuedNotification struct {
	Notification
	seq uint64
}

// Send queues a notification.
func (nm *NotificationManager) Send(n Notification) {
	nm.lock.Lock()
	nm.queue = append(nm.queue, queuedNotification{Notification: n, seq: nm.nextSeq})
	nm.nextSeq++
	nm.lock.Unlock()
	if nm.wakeup != nil {
		nm.wakeup()
	}
}

// Pending reports whether any notifications are queued.
func (nm *NotificationManager) Pending() bool {
	nm.lock.Lock()
	defer nm.lock.Unlock()
	return len(nm.queue) > 0
}

// RemoveNotifications drops every queued notification for receiver.
func (nm *NotificationManager) RemoveNotifications(receiver NotificationReceiver) {
	nm.lock.Lock()
	defer nm.lock.Unlock()
	kept := nm.queue[:0]
	for _, n := range nm.queue {
		if n.Receiver != receiver {
			kept = append(kept, n)
		}
	}
	nm.queue = kept
}

// Run delivers the notifications queued when it is called, in order.
// Notifications sent while it runs wait for the next call; ones
// removed while it runs are not delivered.
func (nm *NotificationManager) Run() {
	nm.lock.Lock()
	limit := nm.nextSeq
	nm.lock.Unlock()
	for {
		nm.lock.Lock()
		if len(nm.queue) == 0 || nm.queue[0].seq >= limit {
			nm.lock.Unlock()
			return
		}
		n := nm.queue[0].Notification
		nm.queue[0] = queuedNotification{}
		nm.queue = nm.queue[1:]
		nm.lock.Unlock()
		n.Receiver.Notify(n)
	}
}
