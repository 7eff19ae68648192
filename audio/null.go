// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

// NullFactory describes the null driver, which discards output and
// records silence at the configured rate.  It is the fallback when
// no real device can be opened.
var NullFactory = Factory{
	Name:       "null",
	FullName:   "No audio input/output",
	AutoDetect: 1,
	New: func(env Env) AudioIO {
		return &nullIO{newClocked("null", "No audio input/output", env)}
	},
}

type nullIO struct {
	*clocked
}

func (n *nullIO) Open() error {
	return n.openClock()
}

func (n *nullIO) Close() {
	n.closeClock()
}

func (n *nullIO) Write(p []byte) (int, error) {
	if !n.open {
		return 0, ErrNotOpen
	}
	n.accept(len(p))
	return len(p), nil
}
