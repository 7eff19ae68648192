// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"errors"
	"os"
	"time"

	"github.com/diffeo/go-arts/audio"
	"github.com/diffeo/go-arts/mcop"
	"github.com/sirupsen/logrus"
)

// Config holds the settings for creating a Server.
type Config struct {
	// Dispatcher exports the server object.  Required.
	Dispatcher *mcop.Dispatcher

	// SubSystem is the audio output.  Required.  It should be
	// open before the server's timing attributes are read.
	SubSystem *audio.SubSystem

	// Logger receives diagnostic messages.  Defaults to the
	// dispatcher's logger.
	Logger logrus.FieldLogger

	// Abort is called if mixing uses too much CPU.  Defaults to
	// logging a fatal error, which exits the process.
	Abort func()

	// WatchdogInterval is how often CPU usage is sampled.
	// Defaults to one second.
	WatchdogInterval time.Duration
}

func (cfg *Config) setDefaults() error {
	if cfg.Dispatcher == nil {
		return errors.New("soundserver: no dispatcher")
	}
	if cfg.SubSystem == nil {
		return errors.New("soundserver: no audio subsystem")
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Dispatcher.Logger()
	}
	if cfg.Abort == nil {
		log := cfg.Logger
		cfg.Abort = func() {
			log.Fatal("mixing is using too much CPU, aborting")
		}
	}
	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = time.Second
	}
	return nil
}

// JobInfo describes a job for status reporting.
type JobInfo struct {
	ID         int32
	UID        string
	Kind       string
	Name       string
	Connection uint64
	Started    time.Time
	Buffered   int
}

// Server is the SimpleSoundServer implementation.  Like every MCOP
// object it must only be used by the goroutine running the event loop
// or while holding the dispatcher lock.
type Server struct {
	d        *mcop.Dispatcher
	sub      *audio.SubSystem
	log      logrus.FieldLogger
	mixer    *Mixer
	watchdog *Watchdog
	skel     *mcop.Skeleton
	nextID   int32
	closed   bool
}

// New creates the server object, attaches its mixer to the audio
// subsystem, and starts the CPU watchdog.
func New(cfg Config) (*Server, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	d := cfg.Dispatcher
	if err := d.Repository().Load([]byte(Schema)); err != nil {
		return nil, err
	}
	clk := d.IOManager().Clock()
	s := &Server{
		d:   d,
		sub: cfg.SubSystem,
		log: cfg.Logger,
	}
	s.mixer = NewMixer(s.sub, clk)
	s.mixer.OnDone = s.jobDone
	skel, err := d.NewSkeleton(InterfaceName, s, s.methods())
	if err != nil {
		return nil, err
	}
	if err := s.sub.AttachProducer(s.mixer); err != nil {
		skel.Release()
		return nil, err
	}
	s.skel = skel
	d.OnConnectionClosed(s.connectionClosed)
	s.watchdog = NewWatchdog(clk, s.mixer.Busy, cfg.Abort)
	d.IOManager().AddTimer(cfg.WatchdogInterval, s.watchdog)
	return s, nil
}

func (s *Server) methods() map[string]mcop.MethodFunc {
	return map[string]mcop.MethodFunc{
		"play": func(req, res *mcop.Buffer) {
			res.WriteLong(s.Play(req.ReadString()))
		},
		"stop": func(req, res *mcop.Buffer) {
			res.WriteBool(s.Stop(req.ReadLong()))
		},
		"attach": func(req, res *mcop.Buffer) {
			rate := req.ReadLong()
			channels := req.ReadLong()
			bits := req.ReadLong()
			name := req.ReadString()
			res.WriteLong(s.Attach(rate, channels, bits, name))
		},
		"write": func(req, res *mcop.Buffer) {
			id := req.ReadLong()
			data := req.ReadOctetSeq()
			res.WriteLong(s.Write(id, data))
		},
		"detach": func(req, res *mcop.Buffer) {
			s.Detach(req.ReadLong())
		},
		"jobs": func(req, res *mcop.Buffer) {
			res.WriteLongSeq(s.JobIDs())
		},
		"_get_serverBufferTime": func(req, res *mcop.Buffer) {
			res.WriteFloat(s.ServerBufferTime())
		},
		"_get_minStreamBufferTime": func(req, res *mcop.Buffer) {
			res.WriteFloat(s.MinStreamBufferTime())
		},
		"_get_samplingRate": func(req, res *mcop.Buffer) {
			res.WriteLong(int32(s.sub.SamplingRate()))
		},
	}
}

// Object returns the server's MCOP object.
func (s *Server) Object() mcop.Object {
	return s.skel
}

// Mixer returns the server's mixer.
func (s *Server) Mixer() *Mixer {
	return s.mixer
}

// Watchdog returns the server's CPU watchdog.
func (s *Server) Watchdog() *Watchdog {
	return s.watchdog
}

// Close stops every job, detaches the mixer, and releases the server
// object.
func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.d.IOManager().RemoveTimer(s.watchdog)
	s.sub.DetachProducer(s.mixer)
	for _, j := range s.mixer.Jobs() {
		s.mixer.Remove(j.ID())
	}
	s.skel.Release()
}

func (s *Server) newID() int32 {
	s.nextID++
	if s.nextID <= 0 {
		s.nextID = 1
	}
	return s.nextID
}

func (s *Server) newJobBase(kind Kind, name string) jobBase {
	base := newJobBase(s.newID(), kind, name, s.d.ActiveConnection(), s.d.IOManager().Clock().Now())
	jobsStarted.WithLabelValues(kind.String()).Inc()
	return base
}

func (s *Server) jobLog(j Job) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"job":  j.ID(),
		"uid":  j.UID().String(),
		"kind": j.Kind().String(),
		"name": j.Name(),
	})
}

// Play starts playing a WAV file and returns the new job's ID, or 0
// if the file cannot be played.
func (s *Server) Play(filename string) int32 {
	f, err := os.Open(filename)
	if err != nil {
		s.log.WithError(err).WithField("file", filename).Warn("cannot play file")
		return 0
	}
	defer f.Close()
	sound, err := DecodeWAV(f)
	if err != nil {
		s.log.WithError(err).WithField("file", filename).Warn("cannot play file")
		return 0
	}
	j := &PlayJob{jobBase: s.newJobBase(KindPlay, filename), sound: sound}
	s.mixer.Add(j)
	s.jobLog(j).WithFields(logrus.Fields{
		"samplingRate": sound.SamplingRate,
		"channels":     sound.Channels,
		"frames":       sound.Frames(),
	}).Debug("playing file")
	return j.ID()
}

// Stop ends a job immediately.  It returns false if there is no such
// job.
func (s *Server) Stop(id int32) bool {
	j := s.mixer.Remove(id)
	if j == nil {
		return false
	}
	s.jobLog(j).Debug("job stopped")
	return true
}

// Attach starts a stream job fed through Write and returns its ID,
// or 0 if the format is not supported.  bits must be 8 or 16.
func (s *Server) Attach(samplingRate, channels, bits int32, name string) int32 {
	if samplingRate <= 0 || channels < 1 || channels > 8 || (bits != 8 && bits != 16) {
		s.log.WithFields(logrus.Fields{
			"samplingRate": samplingRate,
			"channels":     channels,
			"bits":         bits,
			"name":         name,
		}).Warn("unsupported stream format")
		return 0
	}
	frameBytes := int(channels * bits / 8)
	bytesPerSec := int(samplingRate) * frameBytes
	limit := int(float32(bytesPerSec) * s.MinStreamBufferTime() / 1000)
	limit -= limit % frameBytes
	if limit < s.sub.FragmentSize() {
		limit = s.sub.FragmentSize()
	}
	j := newStreamJob(s.newJobBase(KindStream, name), int(samplingRate), int(channels), int(bits), limit)
	s.mixer.Add(j)
	s.jobLog(j).WithFields(logrus.Fields{
		"samplingRate": samplingRate,
		"channels":     channels,
		"bits":         bits,
	}).Debug("stream attached")
	return j.ID()
}

func (s *Server) stream(id int32) *StreamJob {
	j, _ := s.mixer.Job(id).(*StreamJob)
	return j
}

// Write queues data on a stream job.  It returns the number of bytes
// accepted, which is less than len(data) when the stream's buffer is
// full, or -1 if there is no such stream.
func (s *Server) Write(id int32, data []byte) int32 {
	j := s.stream(id)
	if j == nil {
		return -1
	}
	return int32(j.Write(data))
}

// Detach ends a stream job once its buffered data has played.
func (s *Server) Detach(id int32) {
	if j := s.stream(id); j != nil {
		j.Detach()
		s.jobLog(j).Debug("stream detached")
	}
}

// JobIDs returns the IDs of the active jobs.
func (s *Server) JobIDs() []int32 {
	jobs := s.mixer.Jobs()
	ids := make([]int32, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID()
	}
	return ids
}

// Jobs describes the active jobs.
func (s *Server) Jobs() []JobInfo {
	jobs := s.mixer.Jobs()
	infos := make([]JobInfo, len(jobs))
	for i, j := range jobs {
		infos[i] = JobInfo{
			ID:      j.ID(),
			UID:     j.UID().String(),
			Kind:    j.Kind().String(),
			Name:    j.Name(),
			Started: j.Started(),
		}
		if conn := j.Owner(); conn != nil {
			infos[i].Connection = conn.ID()
		}
		if stream, ok := j.(*StreamJob); ok {
			infos[i].Buffered = stream.Buffered()
		}
	}
	return infos
}

// ServerBufferTime returns the length of the audio output buffer in
// milliseconds.
func (s *Server) ServerBufferTime() float32 {
	bps := s.sub.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float32(s.sub.FragmentSize()*s.sub.FragmentCount()) / float32(bps) * 1000
}

// MinStreamBufferTime returns how many milliseconds of data a
// streaming client should keep queued to avoid dropouts.
func (s *Server) MinStreamBufferTime() float32 {
	return 2 * s.ServerBufferTime()
}

func (s *Server) jobDone(j Job) {
	s.jobLog(j).Debug("job finished")
}

func (s *Server) connectionClosed(conn *mcop.Connection) {
	if s.closed {
		return
	}
	for _, j := range s.mixer.Jobs() {
		if j.Owner() == conn {
			s.mixer.Remove(j.ID())
			s.jobLog(j).Debug("owner disconnected, job removed")
		}
	}
}
