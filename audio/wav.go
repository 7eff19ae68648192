// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import (
	"encoding/binary"
	"errors"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// WavFactory describes the wav driver, which plays into a WAV file at
// the configured rate.  The device name is the output path.  It is
// never auto-detected.
var WavFactory = Factory{
	Name:     "wav",
	FullName: "WAV file output",
	New: func(env Env) AudioIO {
		return &wavIO{clocked: newClocked("wav", "WAV file output", env)}
	},
}

type wavIO struct {
	*clocked
	file    *os.File
	encoder *wav.Encoder
	partial []byte
}

func (w *wavIO) fail(err error) error {
	w.strs[ParamLastError] = err.Error()
	return err
}

func (w *wavIO) Open() error {
	if w.params[ParamDirection]&DirectionRead != 0 {
		return w.fail(errors.New("the wav driver cannot record"))
	}
	path := w.strs[ParamDeviceName]
	if path == "" {
		return w.fail(errors.New("the wav driver needs an output file name"))
	}
	if err := w.check(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return w.fail(err)
	}
	w.file = f
	w.encoder = wav.NewEncoder(f, w.params[ParamSamplingRate], w.params[ParamFormat],
		w.params[ParamChannels], wavFormatPCM)
	w.partial = nil
	return w.openClock()
}

func (w *wavIO) Close() {
	if !w.open {
		return
	}
	w.closeClock()
	err := w.encoder.Close()
	if err2 := w.file.Close(); err == nil {
		err = err2
	}
	if err != nil && w.env.Logger != nil {
		w.env.Logger.WithError(err).WithField("file", w.strs[ParamDeviceName]).
			Error("finishing WAV output failed")
	}
	w.encoder = nil
	w.file = nil
}

func (w *wavIO) Write(p []byte) (int, error) {
	if !w.open {
		return 0, ErrNotOpen
	}
	data := append(w.partial, p...)
	frame := w.frameBytes()
	whole := len(data) - len(data)%frame
	w.partial = append([]byte(nil), data[whole:]...)
	data = data[:whole]

	var samples []int
	if w.params[ParamFormat] == FormatU8 {
		samples = make([]int, len(data))
		for i, b := range data {
			samples[i] = int(b)
		}
	} else {
		samples = make([]int, len(data)/2)
		for i := range samples {
			samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
		}
	}
	if len(samples) > 0 {
		buf := &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: w.params[ParamChannels],
				SampleRate:  w.params[ParamSamplingRate],
			},
			Data:           samples,
			SourceBitDepth: w.params[ParamFormat],
		}
		if err := w.encoder.Write(buf); err != nil {
			if w.env.Logger != nil {
				w.env.Logger.WithFields(logrus.Fields{
					"file":  w.strs[ParamDeviceName],
					"error": err,
				}).Error("writing WAV output failed")
			}
			return 0, err
		}
	}
	w.accept(len(p))
	return len(p), nil
}
