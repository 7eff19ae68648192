// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/diffeo/go-arts/iomanager"
	"github.com/diffeo/go-arts/pipebuffer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// readWait bounds each wait for input in Read.
const readWait = 50 * time.Millisecond

// Producer supplies playback data.  NeedMore is called when the
// subsystem wants at least one more fragment; the producer answers by
// calling SubSystem.Write.
type Producer interface {
	NeedMore()
}

// Consumer takes recorded data.  HaveMore is called when at least one
// fragment is buffered; the consumer answers by calling
// SubSystem.Read.
type Consumer interface {
	HaveMore()
}

// ErrAlreadyAttached is returned when a second producer or consumer
// is attached.
var ErrAlreadyAttached = errors.New("Audio subsystem already has one attached")

// ErrRunning is returned by Open when the subsystem is already open.
var ErrRunning = errors.New("Audio subsystem is already running")

// Config holds the settings for creating a SubSystem.  The device
// settings are requests; the driver may adjust them on open.
type Config struct {
	// IOManager is the event loop driving the device.  Required.
	IOManager iomanager.IOManager

	// Logger receives diagnostic messages.  Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// Registry holds the available drivers.  Defaults to
	// DefaultRegistry().
	Registry *Registry

	// Method selects the driver.  An empty name auto-detects.
	Method Method

	// SamplingRate defaults to 44100.
	SamplingRate int

	// Channels defaults to 2.
	Channels int

	// Bits is the sample format, 8 or 16.  Defaults to 16.
	Bits int

	// FragmentSize defaults to 1024 bytes.
	FragmentSize int

	// FragmentCount defaults to 7.
	FragmentCount int

	// FullDuplex records as well as plays.
	FullDuplex bool
}

func (cfg *Config) setDefaults() {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.Bits == 0 {
		cfg.Bits = FormatS16LE
	}
	if cfg.FragmentSize == 0 {
		cfg.FragmentSize = 1024
	}
	if cfg.FragmentCount == 0 {
		cfg.FragmentCount = 7
	}
}

// SubSystem buffers audio between one driver and the flow graph.  It
// runs on the event loop and is not safe for concurrent use.
type SubSystem struct {
	iom      iomanager.IOManager
	log      logrus.FieldLogger
	registry *Registry

	method        Method
	samplingRate  int
	channels      int
	bits          int
	fragmentSize  int
	fragmentCount int
	fullDuplex    bool

	driver   AudioIO
	running  bool
	lastErr  string
	readFD   int
	writeFD  int
	watching bool
	fragment []byte

	rBuffer  *pipebuffer.PipeBuffer
	wBuffer  *pipebuffer.PipeBuffer
	producer Producer
	consumer Consumer

	underruns int
	overruns  int
}

// NewSubSystem creates a closed subsystem.
func NewSubSystem(cfg Config) *SubSystem {
	cfg.setDefaults()
	return &SubSystem{
		iom:           cfg.IOManager,
		log:           cfg.Logger,
		registry:      cfg.Registry,
		method:        cfg.Method,
		samplingRate:  cfg.SamplingRate,
		channels:      cfg.Channels,
		bits:          cfg.Bits,
		fragmentSize:  cfg.FragmentSize,
		fragmentCount: cfg.FragmentCount,
		fullDuplex:    cfg.FullDuplex,
		readFD:        -1,
		writeFD:       -1,
		rBuffer:       pipebuffer.New(),
		wBuffer:       pipebuffer.New(),
	}
}

// AttachProducer makes p the source of playback data.  It fails if a
// producer is already attached.
func (s *SubSystem) AttachProducer(p Producer) error {
	if s.producer != nil {
		return ErrAlreadyAttached
	}
	s.producer = p
	return nil
}

// DetachProducer removes p if it is the attached producer.
func (s *SubSystem) DetachProducer(p Producer) {
	if s.producer == p {
		s.producer = nil
	}
}

// AttachConsumer makes c the destination of recorded data.  It fails
// if a consumer is already attached.
func (s *SubSystem) AttachConsumer(c Consumer) error {
	if s.consumer != nil {
		return ErrAlreadyAttached
	}
	s.consumer = c
	return nil
}

// DetachConsumer removes c if it is the attached consumer.
func (s *SubSystem) DetachConsumer(c Consumer) {
	if s.consumer == c {
		s.consumer = nil
	}
}

// Open selects and opens the driver.  It returns the descriptor the
// driver is driven by, which is -1 for drivers that notify on their
// own timer.  On failure Error describes what went wrong.
func (s *SubSystem) Open() (int, error) {
	if s.running {
		return -1, ErrRunning
	}
	s.lastErr = ""
	name := s.method.Name
	if name == "" {
		name = s.registry.AutoDetect()
		if name == "" {
			return -1, s.fail(errors.New("no audio I/O method could be detected"))
		}
	}
	driver, err := s.registry.Create(name, Env{
		IOManager: s.iom,
		Logger:    s.log.WithField("method", name),
		Notify:    s.HandleIO,
	})
	if err != nil {
		return -1, s.fail(err)
	}
	direction := DirectionWrite
	if s.fullDuplex {
		direction = DirectionReadWrite
	}
	driver.SetParamStr(ParamDeviceName, s.method.Device)
	driver.SetParam(ParamSamplingRate, s.samplingRate)
	driver.SetParam(ParamChannels, s.channels)
	driver.SetParam(ParamFormat, s.bits)
	driver.SetParam(ParamFragmentSize, s.fragmentSize)
	driver.SetParam(ParamFragmentCount, s.fragmentCount)
	driver.SetParam(ParamDirection, direction)
	if err := driver.Open(); err != nil {
		if msg := driver.GetParamStr(ParamLastError); msg != "" {
			err = errors.New(msg)
		}
		return -1, s.fail(fmt.Errorf("%v: %v", name, err))
	}

	s.driver = driver
	s.samplingRate = driver.GetParam(ParamSamplingRate)
	s.channels = driver.GetParam(ParamChannels)
	s.bits = driver.GetParam(ParamFormat)
	s.fragmentSize = driver.GetParam(ParamFragmentSize)
	s.fragmentCount = driver.GetParam(ParamFragmentCount)
	s.fragment = make([]byte, s.fragmentSize*s.fragmentCount)
	s.readFD = driver.GetParam(ParamSelectReadFD)
	s.writeFD = driver.GetParam(ParamSelectWriteFD)
	if s.writeFD >= 0 {
		s.iom.WatchFD(s.writeFD, iomanager.Write, s)
		s.watching = true
	}
	if s.fullDuplex && s.readFD >= 0 {
		s.iom.WatchFD(s.readFD, iomanager.Read, s)
		s.watching = true
	}
	s.running = true
	runningGauge.Set(1)
	s.log.WithFields(logrus.Fields{
		"method":        name,
		"samplingRate":  s.samplingRate,
		"channels":      s.channels,
		"bits":          s.bits,
		"fragmentSize":  s.fragmentSize,
		"fragmentCount": s.fragmentCount,
		"fullDuplex":    s.fullDuplex,
	}).Info("audio device opened")
	if s.writeFD >= 0 {
		return s.writeFD, nil
	}
	return s.readFD, nil
}

func (s *SubSystem) fail(err error) error {
	s.lastErr = err.Error()
	s.log.WithError(err).Warn("cannot open audio device")
	return err
}

// Close closes the driver and discards all buffered data.
func (s *SubSystem) Close() {
	if !s.running {
		return
	}
	if s.watching {
		s.iom.Remove(s, iomanager.All)
		s.watching = false
	}
	s.driver.Close()
	s.driver = nil
	s.running = false
	s.readFD = -1
	s.writeFD = -1
	s.rBuffer.Clear()
	s.wBuffer.Clear()
	runningGauge.Set(0)
}

// Running reports whether the device is open.
func (s *SubSystem) Running() bool {
	return s.running
}

// Error describes why the last Open failed.
func (s *SubSystem) Error() string {
	return s.lastErr
}

// NotifyIO forwards descriptor readiness to HandleIO.
func (s *SubSystem) NotifyIO(fd int, types iomanager.IOType) {
	s.HandleIO(types)
}

// HandleIO moves data between the buffers and the driver.
func (s *SubSystem) HandleIO(types iomanager.IOType) {
	if !s.running {
		return
	}
	if types&iomanager.Read != 0 {
		s.handleRead()
	}
	if types&iomanager.Write != 0 {
		s.handleWrite()
	}
}

func (s *SubSystem) handleRead() {
	canRead := s.driver.GetParam(ParamCanRead)
	if canRead > len(s.fragment) {
		canRead = len(s.fragment)
	}
	if canRead > 0 {
		n, err := s.driver.Read(s.fragment[:canRead])
		if err != nil {
			s.log.WithError(err).Warn("audio read failed")
		}
		if n > 0 {
			s.rBuffer.Write(s.fragment[:n])
		}
	}

	// Nobody is reading fast enough; drop the oldest input rather
	// than buffer without bound.
	limit := s.fragmentSize * s.fragmentCount
	if excess := s.rBuffer.Size() - limit; excess > 0 {
		s.rBuffer.Skip(excess)
		s.overruns++
		overrunCounter.Inc()
		s.log.WithField("dropped", excess).Debug("audio input overrun")
	}

	for s.consumer != nil && s.rBuffer.Size() >= s.fragmentSize {
		before := s.rBuffer.Size()
		s.consumer.HaveMore()
		if s.rBuffer.Size() == before {
			break
		}
	}
}

func (s *SubSystem) handleWrite() {
	// Make sure at least one fragment is buffered.  A producer
	// that cannot supply more is an underrun; wait for the next
	// notification rather than spin.
	for s.wBuffer.Size() < s.fragmentSize {
		before := s.wBuffer.Size()
		if s.producer != nil {
			s.producer.NeedMore()
		}
		if s.wBuffer.Size() == before {
			s.underruns++
			underrunCounter.Inc()
			s.log.WithField("buffered", before).Debug("audio output underrun")
			return
		}
	}

	canWrite := s.driver.GetParam(ParamCanWrite)
	if canWrite > s.wBuffer.Size() {
		canWrite = s.wBuffer.Size()
	}
	if canWrite > len(s.fragment) {
		canWrite = len(s.fragment)
	}
	if canWrite <= 0 {
		return
	}
	data := s.fragment[:s.wBuffer.Peek(s.fragment[:canWrite])]
	written, err := s.driver.Write(data)
	if err != nil {
		s.log.WithError(err).Error("audio write failed")
		return
	}
	if written != len(data) {
		panic(fmt.Sprintf("audio driver wrote %d bytes of %d it claimed to accept", written, len(data)))
	}
	s.wBuffer.Skip(written)
}

// Read takes recorded data.  In full duplex mode it waits until size
// bytes are available, polling the driver; otherwise it returns only
// what is buffered.
func (s *SubSystem) Read(p []byte) int {
	for s.running && s.fullDuplex && s.rBuffer.Size() < len(p) {
		before := s.rBuffer.Size()
		s.handleRead()
		if s.rBuffer.Size() > before {
			continue
		}
		s.waitForInput()
	}
	n, _ := s.rBuffer.Read(p)
	return n
}

// waitForInput blocks briefly until the driver may have input.
func (s *SubSystem) waitForInput() {
	var fds []unix.PollFd
	if s.readFD >= 0 {
		fds = []unix.PollFd{{Fd: int32(s.readFD), Events: unix.POLLIN}}
	}
	_, err := unix.Poll(fds, int(readWait/time.Millisecond))
	if err != nil && err != unix.EINTR {
		s.log.WithError(err).Warn("waiting for audio input failed")
	}
}

// Write queues playback data.  It always takes all of p.
func (s *SubSystem) Write(p []byte) int {
	n, _ := s.wBuffer.Write(p)
	return n
}

// Buffered returns the number of playback bytes waiting for the
// driver.
func (s *SubSystem) Buffered() int {
	return s.wBuffer.Size()
}

// Underruns returns how often the producer failed to keep up.
func (s *SubSystem) Underruns() int {
	return s.underruns
}

// Overruns returns how often recorded input was dropped.
func (s *SubSystem) Overruns() int {
	return s.overruns
}

// Method returns the requested driver.
func (s *SubSystem) Method() Method {
	return s.method
}

// SetMethod selects the driver for the next Open.
func (s *SubSystem) SetMethod(m Method) {
	s.method = m
}

// DeviceName returns the device the driver is asked to open.
func (s *SubSystem) DeviceName() string {
	return s.method.Device
}

// SetDeviceName sets the device for the next Open.
func (s *SubSystem) SetDeviceName(device string) {
	s.method.Device = device
}

// SamplingRate returns the sampling rate, as negotiated if open.
func (s *SubSystem) SamplingRate() int {
	return s.samplingRate
}

// SetSamplingRate requests a sampling rate for the next Open.
func (s *SubSystem) SetSamplingRate(rate int) {
	s.samplingRate = rate
}

// Channels returns the channel count, as negotiated if open.
func (s *SubSystem) Channels() int {
	return s.channels
}

// SetChannels requests a channel count for the next Open.
func (s *SubSystem) SetChannels(channels int) {
	s.channels = channels
}

// Bits returns the sample format, as negotiated if open.
func (s *SubSystem) Bits() int {
	return s.bits
}

// SetBits requests a sample format for the next Open.
func (s *SubSystem) SetBits(bits int) {
	s.bits = bits
}

// FragmentSize returns the fragment size, as negotiated if open.
func (s *SubSystem) FragmentSize() int {
	return s.fragmentSize
}

// SetFragmentSize requests a fragment size for the next Open.
func (s *SubSystem) SetFragmentSize(size int) {
	s.fragmentSize = size
}

// FragmentCount returns the fragment count, as negotiated if open.
func (s *SubSystem) FragmentCount() int {
	return s.fragmentCount
}

// SetFragmentCount requests a fragment count for the next Open.
func (s *SubSystem) SetFragmentCount(count int) {
	s.fragmentCount = count
}

// FullDuplex reports whether the device records as well as plays.
func (s *SubSystem) FullDuplex() bool {
	return s.fullDuplex
}

// SetFullDuplex requests recording for the next Open.
func (s *SubSystem) SetFullDuplex(fullDuplex bool) {
	s.fullDuplex = fullDuplex
}

// BytesPerSecond returns the data rate of the current format.
func (s *SubSystem) BytesPerSecond() int {
	return s.samplingRate * s.channels * (s.bits / 8)
}
