// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package audio moves sound between the event loop and an audio
// device.  A device driver implements AudioIO; the SubSystem owns one
// driver at a time and buffers data between it and an attached
// producer (for playback) and consumer (for recording).
//
// Drivers are expected to be non-blocking and precise about their
// own capacity: the subsystem only ever writes as many bytes as the
// driver reports it can take without blocking.
package audio

import (
	"errors"
	"fmt"
)

// Param names a driver parameter.  Some are integers, read with
// GetParam; the rest are strings, read with GetParamStr.
type Param int

// Integer parameters.
const (
	// ParamSamplingRate is the number of frames per second.
	ParamSamplingRate Param = iota

	// ParamChannels is the number of interleaved channels.
	ParamChannels

	// ParamFormat is the sample format, FormatU8 or FormatS16LE.
	ParamFormat

	// ParamFragmentSize is the size of one device fragment in
	// bytes.
	ParamFragmentSize

	// ParamFragmentCount is the number of fragments the device
	// buffers.
	ParamFragmentCount

	// ParamDirection is DirectionRead, DirectionWrite, or both.
	ParamDirection

	// ParamCanRead is the number of bytes that can be read without
	// blocking.
	ParamCanRead

	// ParamCanWrite is the number of bytes that can be written
	// without blocking.
	ParamCanWrite

	// ParamSelectReadFD is a descriptor that becomes readable when
	// input is available, or -1 if the driver notifies on its own.
	ParamSelectReadFD

	// ParamSelectWriteFD is a descriptor that becomes writable
	// when output can be written, or -1 if the driver notifies on
	// its own.
	ParamSelectWriteFD

	// ParamAutoDetect is the driver's preference score.
	ParamAutoDetect
)

// String parameters.
const (
	// ParamDeviceName is the device or file the driver opens.
	ParamDeviceName Param = 100 + iota

	// ParamLastError describes why Open failed.
	ParamLastError

	// ParamName is the driver's short name, as used on the
	// command line.
	ParamName

	// ParamFullName is a human-readable description of the driver.
	ParamFullName
)

var paramNames = map[Param]string{
	ParamSamplingRate:  "samplingRate",
	ParamChannels:      "channels",
	ParamFormat:        "format",
	ParamFragmentSize:  "fragmentSize",
	ParamFragmentCount: "fragmentCount",
	ParamDirection:     "direction",
	ParamCanRead:       "canRead",
	ParamCanWrite:      "canWrite",
	ParamSelectReadFD:  "selectReadFD",
	ParamSelectWriteFD: "selectWriteFD",
	ParamAutoDetect:    "autoDetect",
	ParamDeviceName:    "deviceName",
	ParamLastError:     "lastError",
	ParamName:          "name",
	ParamFullName:      "fullName",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Param(%d)", int(p))
}

// Sample formats, as the number of bits per sample.
const (
	FormatU8    = 8
	FormatS16LE = 16
)

// Directions for ParamDirection.
const (
	DirectionRead      = 1
	DirectionWrite     = 2
	DirectionReadWrite = DirectionRead | DirectionWrite
)

// AudioIO is an audio device driver.
type AudioIO interface {
	// Open opens the device using the current parameters.  The
	// driver may adjust the parameters to what the device
	// supports; the caller reads them back afterwards.
	Open() error

	// Close closes the device.
	Close()

	// Read reads recorded data.  It must not block.
	Read(p []byte) (int, error)

	// Write queues data for playback.  It must not block, and must
	// accept everything up to the ParamCanWrite value.
	Write(p []byte) (int, error)

	// GetParam returns an integer parameter.
	GetParam(p Param) int

	// SetParam requests a new value for an integer parameter and
	// returns the value actually in effect.
	SetParam(p Param, value int) int

	// GetParamStr returns a string parameter.
	GetParamStr(p Param) string

	// SetParamStr sets a string parameter.
	SetParamStr(p Param, value string)
}

// ErrNotOpen is returned by driver reads and writes on a closed
// device.
var ErrNotOpen = errors.New("Audio device is not open")

// ErrUnknownMethod is returned when no driver is registered under a
// name.
type ErrUnknownMethod struct {
	Name string
}

func (err ErrUnknownMethod) Error() string {
	return fmt.Sprintf("Unknown audio I/O method %q", err.Name)
}

// Base holds driver parameters.  Drivers embed it and override
// GetParam for the values they compute, such as ParamCanWrite.
type Base struct {
	params map[Param]int
	strs   map[Param]string
}

// NewBase creates parameter storage with the default settings: 44.1
// kHz 16-bit stereo output in 7 fragments of 1 KiB.
func NewBase(name, fullName string) *Base {
	return &Base{
		params: map[Param]int{
			ParamSamplingRate:  44100,
			ParamChannels:      2,
			ParamFormat:        FormatS16LE,
			ParamFragmentSize:  1024,
			ParamFragmentCount: 7,
			ParamDirection:     DirectionWrite,
			ParamSelectReadFD:  -1,
			ParamSelectWriteFD: -1,
		},
		strs: map[Param]string{
			ParamName:     name,
			ParamFullName: fullName,
		},
	}
}

// GetParam returns a stored integer parameter, or 0.
func (b *Base) GetParam(p Param) int {
	return b.params[p]
}

// SetParam stores an integer parameter.
func (b *Base) SetParam(p Param, value int) int {
	b.params[p] = value
	return value
}

// GetParamStr returns a stored string parameter, or "".
func (b *Base) GetParamStr(p Param) string {
	return b.strs[p]
}

// SetParamStr stores a string parameter.
func (b *Base) SetParamStr(p Param, value string) {
	b.strs[p] = value
}

// BytesPerSecond returns the data rate implied by the current
// sampling rate, channel count, and format.
func (b *Base) BytesPerSecond() int {
	return b.params[ParamSamplingRate] * b.params[ParamChannels] * (b.params[ParamFormat] / 8)
}

// BufferSize returns the device buffer size in bytes.
func (b *Base) BufferSize() int {
	return b.params[ParamFragmentSize] * b.params[ParamFragmentCount]
}

// check validates the parameters common to every driver and records
// a failure as the last error.
func (b *Base) check() error {
	var err error
	switch {
	case b.params[ParamFormat] != FormatU8 && b.params[ParamFormat] != FormatS16LE:
		err = fmt.Errorf("unsupported sample format %d", b.params[ParamFormat])
	case b.params[ParamChannels] < 1:
		err = fmt.Errorf("invalid channel count %d", b.params[ParamChannels])
	case b.params[ParamSamplingRate] < 1:
		err = fmt.Errorf("invalid sampling rate %d", b.params[ParamSamplingRate])
	case b.params[ParamFragmentSize] < 1 || b.params[ParamFragmentCount] < 1:
		err = fmt.Errorf("invalid fragment layout %dx%d",
			b.params[ParamFragmentCount], b.params[ParamFragmentSize])
	}
	if err != nil {
		b.strs[ParamLastError] = err.Error()
	}
	return err
}
