// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-arts/audio"
	"github.com/diffeo/go-arts/iomanager"
	"github.com/diffeo/go-arts/mcop"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// captureIO is a driver that accepts everything and keeps it.
type captureIO struct {
	*audio.Base
	written []byte
}

func (c *captureIO) Open() error                { return nil }
func (c *captureIO) Close()                     {}
func (c *captureIO) Read(p []byte) (int, error) { return 0, nil }

func (c *captureIO) Write(p []byte) (int, error) {
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *captureIO) GetParam(p audio.Param) int {
	if p == audio.ParamCanWrite {
		return 1 << 20
	}
	return c.Base.GetParam(p)
}

// samples decodes the captured 16-bit output.
func (c *captureIO) samples() []int16 {
	out := make([]int16, len(c.written)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.written[2*i:]))
	}
	return out
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

type fixture struct {
	IOM     iomanager.IOManager
	D       *mcop.Dispatcher
	Sub     *audio.SubSystem
	Capture *captureIO
	Server  *Server
	Aborted int
}

// newFixture builds a sound server writing 44.1 kHz 16-bit stereo
// to a capture driver, 1024-byte fragments, 4 of them.
func newFixture(t *testing.T, iomCfg iomanager.Config, dcfg mcop.Config) *fixture {
	f := &fixture{}
	logger := quietLogger()
	iomCfg.Logger = logger
	var err error
	f.IOM, err = iomanager.New(iomCfg)
	require.NoError(t, err)

	if dcfg.Dir == "" {
		dcfg.Dir = t.TempDir()
	}
	dcfg.IOManager = f.IOM
	dcfg.Logger = logger
	f.D, err = mcop.New(dcfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		f.D.Shutdown()
		f.IOM.Close()
	})

	f.Capture = &captureIO{Base: audio.NewBase("capture", "Capture")}
	registry := audio.NewRegistry()
	registry.Add(audio.Factory{
		Name:     "capture",
		FullName: "Capture",
		New:      func(audio.Env) audio.AudioIO { return f.Capture },
	})
	f.Sub = audio.NewSubSystem(audio.Config{
		IOManager:     f.IOM,
		Logger:        logger,
		Registry:      registry,
		Method:        audio.Method{Name: "capture"},
		SamplingRate:  44100,
		Channels:      2,
		Bits:          16,
		FragmentSize:  1024,
		FragmentCount: 4,
	})
	_, err = f.Sub.Open()
	require.NoError(t, err)

	f.Server, err = New(Config{
		Dispatcher: f.D,
		SubSystem:  f.Sub,
		Logger:     logger,
		Abort:      func() { f.Aborted++ },
	})
	require.NoError(t, err)
	return f
}

// newMockFixture uses a mock clock, so nothing runs unless the test
// drives it.
func newMockFixture(t *testing.T) (*fixture, *clock.Mock) {
	clk := clock.NewMock()
	return newFixture(t, iomanager.Config{Clock: clk, IdleTimeout: 20 * time.Millisecond}, mcop.Config{}), clk
}

// writeWAV writes 16-bit samples to a new WAV file.
func writeWAV(t *testing.T, path string, rate, channels int, samples []int) {
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	encoder := wav.NewEncoder(file, rate, 16, channels, 1)
	require.NoError(t, encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, encoder.Close())
}

// pcm16 encodes samples as little-endian 16-bit PCM.
func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}
