// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"encoding/binary"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-arts/audio"
)

// Mixer sums the active jobs into the audio subsystem's output.  It
// is the subsystem's producer: each NeedMore mixes one fragment.
type Mixer struct {
	sub   *audio.SubSystem
	clock clock.Clock
	jobs  []Job
	acc   []int32
	out   []byte
	busy  time.Duration

	// OnDone, if set, is called for each job that finishes
	// playing, after it is removed.
	OnDone func(Job)
}

// NewMixer creates a mixer for sub.  It does not attach itself.
func NewMixer(sub *audio.SubSystem, clk clock.Clock) *Mixer {
	if clk == nil {
		clk = clock.New()
	}
	return &Mixer{sub: sub, clock: clk}
}

// Add starts mixing j.
func (m *Mixer) Add(j Job) {
	m.jobs = append(m.jobs, j)
	jobsGauge.Set(float64(len(m.jobs)))
}

// Remove stops mixing the job with the given ID and returns it, or
// nil if there is none.
func (m *Mixer) Remove(id int32) Job {
	for i, j := range m.jobs {
		if j.ID() == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			jobsGauge.Set(float64(len(m.jobs)))
			return j
		}
	}
	return nil
}

// Job returns the job with the given ID, or nil.
func (m *Mixer) Job(id int32) Job {
	for _, j := range m.jobs {
		if j.ID() == id {
			return j
		}
	}
	return nil
}

// Jobs returns the active jobs in the order they were added.
func (m *Mixer) Jobs() []Job {
	return append([]Job(nil), m.jobs...)
}

// Busy returns the time spent mixing since the last call.
func (m *Mixer) Busy() time.Duration {
	busy := m.busy
	m.busy = 0
	return busy
}

// NeedMore implements audio.Producer.
func (m *Mixer) NeedMore() {
	start := m.clock.Now()
	defer func() { m.busy += m.clock.Now().Sub(start) }()

	channels := m.sub.Channels()
	bits := m.sub.Bits()
	frameBytes := channels * bits / 8
	if frameBytes == 0 {
		return
	}
	frames := m.sub.FragmentSize() / frameBytes
	if cap(m.acc) < frames*channels {
		m.acc = make([]int32, frames*channels)
	}
	if cap(m.out) < frames*frameBytes {
		m.out = make([]byte, frames*frameBytes)
	}
	acc := m.acc[:frames*channels]
	for i := range acc {
		acc[i] = 0
	}

	rate := m.sub.SamplingRate()
	active := m.jobs[:0]
	var done []Job
	for _, j := range m.jobs {
		if j.Mix(acc, channels, rate) {
			done = append(done, j)
		} else {
			active = append(active, j)
		}
	}
	for i := len(active); i < len(m.jobs); i++ {
		m.jobs[i] = nil
	}
	m.jobs = active
	jobsGauge.Set(float64(len(m.jobs)))

	out := m.out[:frames*frameBytes]
	encode(out, acc, bits)
	m.sub.Write(out)

	if m.OnDone != nil {
		for _, j := range done {
			m.OnDone(j)
		}
	}
}

// encode clips the mixed samples and writes them in the output
// format.
func encode(out []byte, acc []int32, bits int) {
	for i, v := range acc {
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		if bits == 8 {
			out[i] = byte((v >> 8) + 128)
		} else {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
		}
	}
}
