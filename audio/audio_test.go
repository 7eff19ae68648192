// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-arts/iomanager"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIO is a driver whose capacity the test controls.
type fakeIO struct {
	*Base
	openErr  error
	opened   bool
	canRead  int
	canWrite int
	short    int
	written  []byte
	nextByte byte
}

func (f *fakeIO) Open() error {
	if f.openErr != nil {
		f.strs[ParamLastError] = f.openErr.Error()
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeIO) Close() {
	f.opened = false
}

func (f *fakeIO) GetParam(p Param) int {
	switch p {
	case ParamCanRead:
		return f.canRead
	case ParamCanWrite:
		return f.canWrite
	}
	return f.Base.GetParam(p)
}

func (f *fakeIO) Read(p []byte) (int, error) {
	n := len(p)
	if n > f.canRead {
		n = f.canRead
	}
	for i := range p[:n] {
		p[i] = f.nextByte
		f.nextByte++
	}
	f.canRead -= n
	return n, nil
}

func (f *fakeIO) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	f.canWrite -= len(p)
	return len(p) - f.short, nil
}

// producer writes a fixed amount each time it is asked.
type producer struct {
	s     *SubSystem
	size  int
	calls int
}

func (p *producer) NeedMore() {
	p.calls++
	if p.size > 0 {
		p.s.Write(make([]byte, p.size))
	}
}

type consumer struct {
	s    *SubSystem
	got  []byte
	size int
}

func (c *consumer) HaveMore() {
	buf := make([]byte, c.size)
	n := c.s.Read(buf)
	c.got = append(c.got, buf[:n]...)
}

type fixture struct {
	Clock *clock.Mock
	IOM   iomanager.IOManager
	Fake  *fakeIO
	Sub   *SubSystem
}

func newFixture(t *testing.T, cfg Config) *fixture {
	f := &fixture{Clock: clock.NewMock()}
	logger, _ := logtest.NewNullLogger()
	var err error
	f.IOM, err = iomanager.New(iomanager.Config{Clock: f.Clock, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { f.IOM.Close() })

	f.Fake = &fakeIO{Base: NewBase("fake", "Test driver")}
	registry := DefaultRegistry()
	registry.Add(Factory{
		Name:       "fake",
		FullName:   "Test driver",
		AutoDetect: 10,
		New:        func(Env) AudioIO { return f.Fake },
	})
	cfg.IOManager = f.IOM
	cfg.Logger = logger
	cfg.Registry = registry
	cfg.FragmentSize = 1024
	cfg.FragmentCount = 4
	f.Sub = NewSubSystem(cfg)
	return f
}

func TestMethodFlag(t *testing.T) {
	var m Method
	assert.NoError(t, m.Set("null"))
	assert.Equal(t, Method{Name: "null"}, m)
	assert.Equal(t, "null", m.String())

	assert.NoError(t, m.Set("wav:/tmp/out:1.wav"))
	assert.Equal(t, Method{Name: "wav", Device: "/tmp/out:1.wav"}, m)
	assert.Equal(t, "wav:/tmp/out:1.wav", m.String())

	assert.Error(t, m.Set(""))
	assert.Error(t, m.Set(":device"))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "null", r.AutoDetect())
	var names []string
	for _, f := range r.Factories() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"null", "wav"}, names)

	r.Add(Factory{Name: "better", AutoDetect: 5, New: NullFactory.New})
	r.Add(Factory{Name: "alsoBetter", AutoDetect: 5, New: NullFactory.New})
	assert.Equal(t, "better", r.AutoDetect())

	_, err := r.Create("missing", Env{})
	assert.Equal(t, ErrUnknownMethod{Name: "missing"}, err)
	assert.Equal(t, "", NewRegistry().AutoDetect())
}

func TestAttach(t *testing.T) {
	f := newFixture(t, Config{})
	p1, p2 := &producer{}, &producer{}
	assert.NoError(t, f.Sub.AttachProducer(p1))
	assert.Equal(t, ErrAlreadyAttached, f.Sub.AttachProducer(p2))
	f.Sub.DetachProducer(p2)
	assert.Equal(t, ErrAlreadyAttached, f.Sub.AttachProducer(p2))
	f.Sub.DetachProducer(p1)
	assert.NoError(t, f.Sub.AttachProducer(p2))

	c1, c2 := &consumer{}, &consumer{}
	assert.NoError(t, f.Sub.AttachConsumer(c1))
	assert.Equal(t, ErrAlreadyAttached, f.Sub.AttachConsumer(c2))
	f.Sub.DetachConsumer(c1)
	assert.NoError(t, f.Sub.AttachConsumer(c2))
}

func TestOpenAutoDetect(t *testing.T) {
	f := newFixture(t, Config{})
	fd, err := f.Sub.Open()
	require.NoError(t, err)
	assert.Equal(t, -1, fd)
	assert.True(t, f.Sub.Running())
	assert.True(t, f.Fake.opened)
	assert.Equal(t, DirectionWrite, f.Fake.GetParam(ParamDirection))

	_, err = f.Sub.Open()
	assert.Equal(t, ErrRunning, err)

	f.Sub.Close()
	assert.False(t, f.Sub.Running())
	assert.False(t, f.Fake.opened)
}

func TestOpenFailure(t *testing.T) {
	f := newFixture(t, Config{Method: Method{Name: "missing"}})
	fd, err := f.Sub.Open()
	assert.Error(t, err)
	assert.Equal(t, -1, fd)
	assert.False(t, f.Sub.Running())
	assert.Contains(t, f.Sub.Error(), "missing")

	f.Sub.SetMethod(Method{Name: "fake"})
	f.Fake.openErr = errors.New("device busy")
	_, err = f.Sub.Open()
	assert.Error(t, err)
	assert.Equal(t, "fake: device busy", f.Sub.Error())
	assert.False(t, f.Sub.Running())

	// Falling back to the null driver still works.
	f.Sub.SetMethod(Method{Name: "null"})
	_, err = f.Sub.Open()
	assert.NoError(t, err)
	assert.Equal(t, "", f.Sub.Error())
	f.Sub.Close()
}

func TestUnderrun(t *testing.T) {
	f := newFixture(t, Config{})
	p := &producer{s: f.Sub}
	require.NoError(t, f.Sub.AttachProducer(p))
	_, err := f.Sub.Open()
	require.NoError(t, err)
	f.Fake.canWrite = 4096

	f.Sub.HandleIO(iomanager.Write)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, f.Fake.written)
	assert.Equal(t, 1, f.Sub.Underruns())

	// A producer that fills only part of a fragment is asked again
	// until a whole fragment is buffered.
	p.size = 600
	f.Sub.HandleIO(iomanager.Write)
	assert.Equal(t, 3, p.calls)
	assert.Len(t, f.Fake.written, 1200)
	assert.Equal(t, 0, f.Sub.Buffered())
}

func TestWriteBackpressure(t *testing.T) {
	f := newFixture(t, Config{})
	p := &producer{s: f.Sub, size: 1024}
	require.NoError(t, f.Sub.AttachProducer(p))
	_, err := f.Sub.Open()
	require.NoError(t, err)

	f.Fake.canWrite = 3000
	f.Sub.HandleIO(iomanager.Write)
	assert.Equal(t, 1, p.calls)
	assert.Len(t, f.Fake.written, 1024)
	assert.Equal(t, 0, f.Sub.Buffered())

	f.Fake.canWrite = 512
	f.Sub.HandleIO(iomanager.Write)
	assert.Equal(t, 2, p.calls)
	assert.Len(t, f.Fake.written, 1536)
	assert.Equal(t, 512, f.Sub.Buffered())

	// Nothing writable: the buffered fragment stays.
	f.Fake.canWrite = 0
	f.Sub.HandleIO(iomanager.Write)
	assert.Equal(t, 3, p.calls)
	assert.Len(t, f.Fake.written, 1536)
	assert.Equal(t, 1536, f.Sub.Buffered())
}

func TestShortDriverWritePanics(t *testing.T) {
	f := newFixture(t, Config{})
	p := &producer{s: f.Sub, size: 1024}
	require.NoError(t, f.Sub.AttachProducer(p))
	_, err := f.Sub.Open()
	require.NoError(t, err)
	f.Fake.canWrite = 1024
	f.Fake.short = 1
	assert.Panics(t, func() {
		f.Sub.HandleIO(iomanager.Write)
	})
}

func TestCloseClearsBuffers(t *testing.T) {
	f := newFixture(t, Config{FullDuplex: true})
	_, err := f.Sub.Open()
	require.NoError(t, err)
	assert.Equal(t, DirectionReadWrite, f.Fake.GetParam(ParamDirection))
	f.Sub.Write(make([]byte, 100))
	f.Fake.canRead = 100
	f.Sub.HandleIO(iomanager.Read)
	assert.Equal(t, 100, f.Sub.Buffered())

	f.Sub.Close()
	assert.Equal(t, 0, f.Sub.Buffered())
	assert.Equal(t, 0, f.Sub.Read(make([]byte, 10)))
}

func TestReadPath(t *testing.T) {
	f := newFixture(t, Config{FullDuplex: true})
	c := &consumer{s: f.Sub, size: 1024}
	require.NoError(t, f.Sub.AttachConsumer(c))
	_, err := f.Sub.Open()
	require.NoError(t, err)

	f.Fake.canRead = 1000
	f.Sub.HandleIO(iomanager.Read)
	assert.Empty(t, c.got)

	f.Fake.canRead = 100
	f.Sub.HandleIO(iomanager.Read)
	require.Len(t, c.got, 1024)
	for i, b := range c.got {
		if !assert.Equal(t, byte(i), b) {
			break
		}
	}

	// Reading more than is buffered polls the driver.
	f.Sub.DetachConsumer(c)
	f.Fake.canRead = 50
	buf := make([]byte, 126)
	assert.Equal(t, 126, f.Sub.Read(buf))
	assert.Equal(t, byte(1024%256), buf[0])
}

func TestReadOverrun(t *testing.T) {
	f := newFixture(t, Config{FullDuplex: true})
	_, err := f.Sub.Open()
	require.NoError(t, err)

	f.Fake.canRead = 4096
	f.Sub.HandleIO(iomanager.Read)
	assert.Equal(t, 0, f.Sub.Overruns())
	f.Fake.canRead = 1000
	f.Sub.HandleIO(iomanager.Read)
	assert.Equal(t, 1, f.Sub.Overruns())

	buf := make([]byte, 4096)
	assert.Equal(t, 4096, f.Sub.Read(buf))
	// The oldest 1000 bytes were dropped.
	assert.Equal(t, byte(1000%256), buf[0])
}

func TestNullDriver(t *testing.T) {
	mock := clock.NewMock()
	iom, err := iomanager.New(iomanager.Config{Clock: mock})
	require.NoError(t, err)
	defer iom.Close()

	var notified []iomanager.IOType
	driver := NullFactory.New(Env{
		IOManager: iom,
		Notify: func(types iomanager.IOType) {
			notified = append(notified, types)
		},
	})
	driver.SetParam(ParamDirection, DirectionReadWrite)
	assert.Equal(t, 0, driver.GetParam(ParamCanWrite))
	_, err = driver.Write(make([]byte, 4))
	assert.Equal(t, ErrNotOpen, err)

	require.NoError(t, driver.Open())
	defer driver.Close()
	assert.Equal(t, -1, driver.GetParam(ParamSelectWriteFD))
	assert.Equal(t, 7*1024, driver.GetParam(ParamCanWrite))
	assert.Equal(t, 0, driver.GetParam(ParamCanRead))

	n, err := driver.Write(make([]byte, 7*1024))
	assert.NoError(t, err)
	assert.Equal(t, 7*1024, n)
	assert.Equal(t, 0, driver.GetParam(ParamCanWrite))

	// 10 ms at 44.1 kHz 16-bit stereo is 1764 bytes.
	mock.Add(10 * time.Millisecond)
	assert.Equal(t, 1764, driver.GetParam(ParamCanWrite))
	assert.Equal(t, 1764, driver.GetParam(ParamCanRead))
	buf := []byte{1, 2, 3, 4}
	n, err = driver.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
	assert.Equal(t, 1760, driver.GetParam(ParamCanRead))

	// One fragment takes about 5.8 ms; the timer notifies once.
	iom.ProcessOneEvent(false)
	assert.Equal(t, []iomanager.IOType{iomanager.Read | iomanager.Write}, notified)

	// A device left alone runs dry and has its whole buffer free.
	mock.Add(time.Second)
	assert.Equal(t, 7*1024, driver.GetParam(ParamCanWrite))
	assert.Equal(t, 7*1024, driver.GetParam(ParamCanRead))
}

func TestNullDriverRejectsBadFormat(t *testing.T) {
	iom, err := iomanager.New(iomanager.Config{Clock: clock.NewMock()})
	require.NoError(t, err)
	defer iom.Close()
	driver := NullFactory.New(Env{IOManager: iom})
	driver.SetParam(ParamFormat, 24)
	assert.Error(t, driver.Open())
	assert.Equal(t, "unsupported sample format 24", driver.GetParamStr(ParamLastError))
}

func TestSubSystemWithNullDriver(t *testing.T) {
	f := newFixture(t, Config{Method: Method{Name: "null"}})
	p := &producer{s: f.Sub, size: 1024}
	require.NoError(t, f.Sub.AttachProducer(p))
	_, err := f.Sub.Open()
	require.NoError(t, err)
	defer f.Sub.Close()

	f.Clock.Add(6 * time.Millisecond)
	f.IOM.ProcessOneEvent(false)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 0, f.Sub.Buffered())
	assert.Equal(t, 0, f.Sub.Underruns())
}

func TestWavDriver(t *testing.T) {
	iom, err := iomanager.New(iomanager.Config{Clock: clock.NewMock()})
	require.NoError(t, err)
	defer iom.Close()

	driver := WavFactory.New(Env{IOManager: iom})
	assert.Error(t, driver.Open())
	assert.Contains(t, driver.GetParamStr(ParamLastError), "file name")

	path := filepath.Join(t.TempDir(), "out.wav")
	driver.SetParamStr(ParamDeviceName, path)
	require.NoError(t, driver.Open())

	// Two stereo frames, split mid-sample across writes.
	data := []byte{1, 0, 0xff, 0xff, 2, 0, 0xfe, 0xff}
	n, err := driver.Write(data[:3])
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = driver.Write(data[3:])
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	driver.Close()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	decoder := wav.NewDecoder(file)
	require.True(t, decoder.IsValidFile())
	assert.Equal(t, uint32(44100), decoder.SampleRate)
	assert.Equal(t, uint16(2), decoder.NumChans)
	assert.Equal(t, uint16(16), decoder.BitDepth)
	buf := &goaudio.IntBuffer{Format: decoder.Format(), Data: make([]int, 16)}
	n, err = decoder.PCMBuffer(buf)
	if err != nil {
		require.Equal(t, io.EOF, err)
	}
	assert.Equal(t, []int{1, -1, 2, -2}, buf.Data[:n])
}

func TestWavDriverCannotRecord(t *testing.T) {
	iom, err := iomanager.New(iomanager.Config{Clock: clock.NewMock()})
	require.NoError(t, err)
	defer iom.Close()
	driver := WavFactory.New(Env{IOManager: iom})
	driver.SetParamStr(ParamDeviceName, filepath.Join(t.TempDir(), "out.wav"))
	driver.SetParam(ParamDirection, DirectionReadWrite)
	assert.Error(t, driver.Open())
}
