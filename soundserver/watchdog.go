// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Watchdog samples how much of the wall time mixing takes and calls
// Abort if it stays above Threshold for Limit.  It is an
// iomanager.TimeNotify, normally run once a second.
type Watchdog struct {
	// Threshold is the fraction of wall time mixing may use.
	Threshold float64

	// Limit is how long usage may stay above Threshold.
	Limit time.Duration

	// Abort is called once when the limit is exceeded.
	Abort func()

	clock   clock.Clock
	busy    func() time.Duration
	last    time.Time
	over    time.Duration
	usage   float64
	aborted bool
}

// NewWatchdog creates a watchdog that measures busy, which returns
// the time spent working since it was last called.
func NewWatchdog(clk clock.Clock, busy func() time.Duration, abort func()) *Watchdog {
	return &Watchdog{
		Threshold: 0.95,
		Limit:     15 * time.Second,
		Abort:     abort,
		clock:     clk,
		busy:      busy,
		last:      clk.Now(),
	}
}

// Usage returns the fraction of wall time used at the last sample.
func (w *Watchdog) Usage() float64 {
	return w.usage
}

// NotifyTime takes a sample.
func (w *Watchdog) NotifyTime() {
	now := w.clock.Now()
	elapsed := now.Sub(w.last)
	w.last = now
	busy := w.busy()
	if elapsed <= 0 {
		return
	}
	w.usage = float64(busy) / float64(elapsed)
	cpuUsageGauge.Set(w.usage)
	if w.usage <= w.Threshold {
		w.over = 0
		return
	}
	w.over += elapsed
	if w.over >= w.Limit && !w.aborted {
		w.aborted = true
		if w.Abort != nil {
			w.Abort()
		}
	}
}
