// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-arts/iomanager"
)

// clocked emulates a device that plays and records in real time
// against the event loop's clock.  It has no descriptor to select on;
// instead a timer notifies the subsystem once per fragment.
type clocked struct {
	*Base
	env   Env
	clock clock.Clock
	timer iomanager.TimeNotify
	open  bool
	start time.Time

	// written and read count bytes since start.  A device that has
	// run dry has written pushed forward to the play position.
	written int64
	read    int64
}

func newClocked(name, fullName string, env Env) *clocked {
	return &clocked{
		Base:  NewBase(name, fullName),
		env:   env,
		clock: env.IOManager.Clock(),
	}
}

// elapsedBytes returns how many bytes the device has played since
// it was opened.
func (c *clocked) elapsedBytes() int64 {
	elapsed := c.clock.Now().Sub(c.start)
	if elapsed < 0 {
		return 0
	}
	bps := int64(c.BytesPerSecond())
	secs := int64(elapsed / time.Second)
	frac := int64(elapsed % time.Second)
	return secs*bps + frac*bps/int64(time.Second)
}

func (c *clocked) frameBytes() int {
	return c.params[ParamChannels] * (c.params[ParamFormat] / 8)
}

// fragmentTime returns how long the device takes to play one
// fragment.
func (c *clocked) fragmentTime() time.Duration {
	return time.Duration(int64(c.params[ParamFragmentSize]) * int64(time.Second) / int64(c.BytesPerSecond()))
}

func (c *clocked) openClock() error {
	if err := c.check(); err != nil {
		return err
	}
	c.params[ParamSelectReadFD] = -1
	c.params[ParamSelectWriteFD] = -1
	c.start = c.clock.Now()
	c.written = 0
	c.read = 0
	c.timer = iomanager.TimeFunc(c.tick)
	c.env.IOManager.AddTimer(c.fragmentTime(), c.timer)
	c.open = true
	return nil
}

func (c *clocked) closeClock() {
	if !c.open {
		return
	}
	c.open = false
	c.env.IOManager.RemoveTimer(c.timer)
	c.timer = nil
}

func (c *clocked) tick() {
	if c.env.Notify == nil {
		return
	}
	var types iomanager.IOType
	if c.params[ParamDirection]&DirectionWrite != 0 {
		types |= iomanager.Write
	}
	if c.params[ParamDirection]&DirectionRead != 0 {
		types |= iomanager.Read
	}
	c.env.Notify(types)
}

// canWrite returns the free space in the device buffer, in whole
// frames.
func (c *clocked) canWrite() int {
	if !c.open || c.params[ParamDirection]&DirectionWrite == 0 {
		return 0
	}
	played := c.elapsedBytes()
	if c.written < played {
		c.written = played
	}
	free := c.BufferSize() - int(c.written-played)
	if free < 0 {
		return 0
	}
	return free - free%c.frameBytes()
}

// canRead returns the recorded data waiting in the device buffer, in
// whole frames.  Anything beyond one buffer has been lost.
func (c *clocked) canRead() int {
	if !c.open || c.params[ParamDirection]&DirectionRead == 0 {
		return 0
	}
	recorded := c.elapsedBytes()
	if limit := int64(c.BufferSize()); recorded-c.read > limit {
		c.read = recorded - limit
	}
	avail := int(recorded - c.read)
	return avail - avail%c.frameBytes()
}

// GetParam computes ParamCanRead and ParamCanWrite from the clock.
func (c *clocked) GetParam(p Param) int {
	switch p {
	case ParamCanWrite:
		return c.canWrite()
	case ParamCanRead:
		return c.canRead()
	}
	return c.Base.GetParam(p)
}

// Read records silence.
func (c *clocked) Read(p []byte) (int, error) {
	if !c.open {
		return 0, ErrNotOpen
	}
	n := c.canRead()
	if n > len(p) {
		n = len(p)
	}
	silence := byte(0)
	if c.params[ParamFormat] == FormatU8 {
		silence = 0x80
	}
	for i := range p[:n] {
		p[i] = silence
	}
	c.read += int64(n)
	return n, nil
}

// accept accounts for n bytes written to the device.
func (c *clocked) accept(n int) {
	c.canWrite()
	c.written += int64(n)
}
