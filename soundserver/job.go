// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/pipebuffer"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/xid"
)

// ErrNotWAV is returned when a file to play is not a readable WAV
// file.
var ErrNotWAV = errors.New("not a WAV file")

// Kind says where a job's samples come from.
type Kind int

const (
	// KindPlay jobs play a decoded file.
	KindPlay Kind = iota + 1

	// KindStream jobs play PCM data written by a client.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindStream:
		return "stream"
	}
	return "unknown"
}

// Job is one source of sound being mixed into the output.
type Job interface {
	// ID is the job's number within its server, as returned to
	// clients.  It is never zero.
	ID() int32

	// UID identifies the job across server restarts, for
	// status reporting.
	UID() xid.ID

	// Kind says what sort of job this is.
	Kind() Kind

	// Name is the file name or stream name.
	Name() string

	// Owner is the connection that created the job, or nil for a
	// job created locally.
	Owner() *mcop.Connection

	// Started is when the job was created.
	Started() time.Time

	// Mix adds the job's next frames to acc, which holds
	// interleaved samples with the given channel count at the
	// given sampling rate.  It returns true once the job has
	// nothing more to play.
	Mix(acc []int32, channels, rate int) bool
}

type jobBase struct {
	id      int32
	uid     xid.ID
	kind    Kind
	name    string
	owner   *mcop.Connection
	started time.Time
}

func newJobBase(id int32, kind Kind, name string, owner *mcop.Connection, started time.Time) jobBase {
	return jobBase{
		id:      id,
		uid:     xid.New(),
		kind:    kind,
		name:    name,
		owner:   owner,
		started: started,
	}
}

func (j *jobBase) ID() int32               { return j.id }
func (j *jobBase) UID() xid.ID             { return j.uid }
func (j *jobBase) Kind() Kind              { return j.kind }
func (j *jobBase) Name() string            { return j.name }
func (j *jobBase) Owner() *mcop.Connection { return j.owner }
func (j *jobBase) Started() time.Time      { return j.started }

// Sound is decoded 16-bit PCM.
type Sound struct {
	// Samples holds interleaved samples.
	Samples      []int16
	Channels     int
	SamplingRate int
}

// Frames returns the number of sample frames in the sound.
func (s *Sound) Frames() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// DecodeWAV reads a whole WAV file, converting its samples to 16
// bits.
func DecodeWAV(r io.ReadSeeker) (*Sound, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrNotWAV
	}
	format := decoder.Format()
	bits := int(decoder.BitDepth)
	if format == nil || format.NumChannels < 1 || format.SampleRate < 1 {
		return nil, ErrNotWAV
	}
	sound := &Sound{Channels: format.NumChannels, SamplingRate: format.SampleRate}
	buf := &goaudio.IntBuffer{
		Format:         format,
		Data:           make([]int, 4096*format.NumChannels),
		SourceBitDepth: bits,
	}
	for {
		n, err := decoder.PCMBuffer(buf)
		for _, v := range buf.Data[:n] {
			sound.Samples = append(sound.Samples, to16(v, bits))
		}
		if err == io.EOF || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	// Drop a trailing partial frame.
	sound.Samples = sound.Samples[:sound.Frames()*sound.Channels]
	return sound, nil
}

// to16 scales a decoded sample of the given bit depth to 16 bits.
// 8-bit WAV data is unsigned.
func to16(v, bits int) int16 {
	switch {
	case bits == 8:
		return int16((v - 128) << 8)
	case bits > 16:
		return int16(v >> uint(bits-16))
	}
	return int16(v)
}

// PlayJob plays a decoded sound once, converting its sampling rate by
// taking the nearest earlier source frame.
type PlayJob struct {
	jobBase
	sound *Sound
	pos   int64
}

// Position returns the number of output frames produced so far.
func (j *PlayJob) Position() int64 {
	return j.pos
}

// Mix implements Job.
func (j *PlayJob) Mix(acc []int32, channels, rate int) bool {
	frames := len(acc) / channels
	total := int64(j.sound.Frames())
	srcRate := int64(j.sound.SamplingRate)
	srcChannels := j.sound.Channels
	for i := 0; i < frames; i++ {
		src := j.pos * srcRate / int64(rate)
		if src >= total {
			return true
		}
		frame := j.sound.Samples[int(src)*srcChannels:]
		for c := 0; c < channels; c++ {
			acc[i*channels+c] += int32(frame[c%srcChannels])
		}
		j.pos++
	}
	return j.pos*srcRate/int64(rate) >= total
}

// StreamJob plays PCM data as a client writes it.  Samples are
// little-endian signed 16-bit or unsigned 8-bit.  The sampling rate
// is converted with a phase accumulator that repeats or skips source
// frames.  When the client falls behind, the job plays silence until
// more data arrives; once the client detaches, the job ends as soon
// as its buffer is drained.
type StreamJob struct {
	jobBase
	rate     int
	channels int
	bits     int
	limit    int

	buf      *pipebuffer.PipeBuffer
	raw      []byte
	frame    []int16
	phase    int
	detached bool
	starved  int
}

func newStreamJob(base jobBase, rate, channels, bits, limit int) *StreamJob {
	frameBytes := channels * bits / 8
	if limit < frameBytes {
		limit = frameBytes
	}
	return &StreamJob{
		jobBase:  base,
		rate:     rate,
		channels: channels,
		bits:     bits,
		limit:    limit,
		buf:      pipebuffer.New(),
		raw:      make([]byte, frameBytes),
		frame:    make([]int16, channels),
		phase:    -1,
	}
}

// Write queues data for playback.  It accepts as much as fits under
// the job's buffer limit and returns the number of bytes taken.
func (j *StreamJob) Write(data []byte) int {
	if j.detached {
		return 0
	}
	room := j.limit - j.buf.Size()
	if room <= 0 {
		return 0
	}
	if len(data) > room {
		data = data[:room]
	}
	j.buf.Write(data)
	return len(data)
}

// Detach marks the end of the stream.
func (j *StreamJob) Detach() {
	j.detached = true
}

// Buffered returns the number of bytes waiting to be played.
func (j *StreamJob) Buffered() int {
	return j.buf.Size()
}

// Starved returns the number of mixing rounds that ran out of data
// before the stream was detached.
func (j *StreamJob) Starved() int {
	return j.starved
}

// nextFrame decodes one source frame into j.frame.
func (j *StreamJob) nextFrame() bool {
	if j.buf.Size() < len(j.raw) {
		return false
	}
	j.buf.Read(j.raw)
	for c := range j.frame {
		if j.bits == 8 {
			j.frame[c] = int16(int(j.raw[c])-128) << 8
		} else {
			j.frame[c] = int16(binary.LittleEndian.Uint16(j.raw[2*c:]))
		}
	}
	return true
}

// Mix implements Job.
func (j *StreamJob) Mix(acc []int32, channels, rate int) bool {
	if j.phase < 0 {
		j.phase = rate - j.rate
	}
	frames := len(acc) / channels
	for i := 0; i < frames; i++ {
		j.phase += j.rate
		for j.phase >= rate {
			if !j.nextFrame() {
				j.phase -= j.rate
				if j.detached {
					return true
				}
				j.starved++
				streamStarved.Inc()
				return false
			}
			j.phase -= rate
		}
		for c := 0; c < channels; c++ {
			acc[i*channels+c] += int32(j.frame[c%j.channels])
		}
	}
	return j.detached && j.buf.Size() < len(j.raw)
}
