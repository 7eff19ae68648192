// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package iomanager

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sys/unix"
	"gopkg.in/check.v1"
)

type Suite struct {
	New   func(Config) (IOManager, error)
	Clock *clock.Mock
	IOM   IOManager
	pipes []int
}

func init() {
	check.Suite(&Suite{New: func(cfg Config) (IOManager, error) {
		return NewStdIOManager(cfg)
	}})
	check.Suite(&Suite{New: func(cfg Config) (IOManager, error) {
		return NewPollIOManager(cfg)
	}})
}

func Test(t *testing.T) {
	check.TestingT(t)
}

func (s *Suite) SetUpTest(c *check.C) {
	s.Clock = clock.NewMock()
	var err error
	s.IOM, err = s.New(Config{Clock: s.Clock})
	c.Assert(err, check.IsNil)
	s.pipes = nil
}

func (s *Suite) TearDownTest(c *check.C) {
	for _, fd := range s.pipes {
		unix.Close(fd)
	}
	c.Check(s.IOM.Close(), check.IsNil)
}

// ReadablePipe returns the read end of a pipe with one byte waiting.
func (s *Suite) ReadablePipe(c *check.C) int {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_NONBLOCK)
	c.Assert(err, check.IsNil)
	s.pipes = append(s.pipes, fds[0], fds[1])
	_, err = unix.Write(fds[1], []byte{1})
	c.Assert(err, check.IsNil)
	return fds[0]
}

func drain(fd int) {
	var buf [16]byte
	unix.Read(fd, buf[:])
}

func (s *Suite) TestReadable(c *check.C) {
	fd := s.ReadablePipe(c)
	var got []IOType
	s.IOM.WatchFD(fd, Read, IOFunc(func(gotFD int, types IOType) {
		c.Check(gotFD, check.Equals, fd)
		got = append(got, types)
		drain(fd)
	}))
	s.IOM.ProcessOneEvent(false)
	c.Check(got, check.DeepEquals, []IOType{Read})

	s.IOM.ProcessOneEvent(false)
	c.Check(got, check.HasLen, 1)
}

func (s *Suite) TestRemove(c *check.C) {
	fd := s.ReadablePipe(c)
	calls := 0
	notify := IOFunc(func(int, IOType) { calls++ })
	s.IOM.WatchFD(fd, Read, notify)
	s.IOM.Remove(notify, All)
	s.IOM.ProcessOneEvent(false)
	c.Check(calls, check.Equals, 0)
}

func (s *Suite) TestRemoveDuringDispatch(c *check.C) {
	fd1 := s.ReadablePipe(c)
	fd2 := s.ReadablePipe(c)
	calls := 0
	var first, second IONotify
	first = IOFunc(func(int, IOType) {
		calls++
		s.IOM.Remove(first, All)
		s.IOM.Remove(second, All)
	})
	second = IOFunc(func(int, IOType) {
		calls++
		s.IOM.Remove(first, All)
		s.IOM.Remove(second, All)
	})
	s.IOM.WatchFD(fd1, Read, first)
	s.IOM.WatchFD(fd2, Read, second)
	s.IOM.ProcessOneEvent(false)
	c.Check(calls, check.Equals, 1)
}

func (s *Suite) TestLevels(c *check.C) {
	outer := s.ReadablePipe(c)
	plain := s.ReadablePipe(c)
	reentrant := s.ReadablePipe(c)

	var plainLevels, reentrantLevels []int
	plainNotify := IOFunc(func(fd int, types IOType) {
		plainLevels = append(plainLevels, s.IOM.Level())
		drain(fd)
	})
	reentrantNotify := IOFunc(func(fd int, types IOType) {
		reentrantLevels = append(reentrantLevels, s.IOM.Level())
		drain(fd)
	})

	s.IOM.WatchFD(outer, Read, IOFunc(func(fd int, types IOType) {
		drain(fd)
		c.Check(s.IOM.Level(), check.Equals, 1)
		s.IOM.WatchFD(plain, Read, plainNotify)
		s.IOM.WatchFD(reentrant, Read|Reentrant, reentrantNotify)
		s.IOM.ProcessOneEvent(false)
	}))

	s.IOM.ProcessOneEvent(false)
	c.Check(reentrantLevels, check.DeepEquals, []int{2})
	c.Check(plainLevels, check.HasLen, 0)

	s.IOM.ProcessOneEvent(false)
	c.Check(plainLevels, check.DeepEquals, []int{1})
	c.Check(s.IOM.Level(), check.Equals, 0)
}

func (s *Suite) TestTimer(c *check.C) {
	fired := 0
	s.IOM.AddTimer(100*time.Millisecond, TimeFunc(func() { fired++ }))

	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 0)

	s.Clock.Add(100 * time.Millisecond)
	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 1)

	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 1)

	s.Clock.Add(100 * time.Millisecond)
	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 2)
}

func (s *Suite) TestTimerCatchesUp(c *check.C) {
	fired := 0
	s.IOM.AddTimer(100*time.Millisecond, TimeFunc(func() { fired++ }))
	s.Clock.Add(time.Second)
	s.IOM.ProcessOneEvent(false)
	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 1)
}

func (s *Suite) TestRemoveTimer(c *check.C) {
	fired := 0
	notify := TimeFunc(func() { fired++ })
	s.IOM.AddTimer(100*time.Millisecond, notify)
	s.IOM.RemoveTimer(notify)
	s.Clock.Add(time.Second)
	s.IOM.ProcessOneEvent(false)
	c.Check(fired, check.Equals, 0)
}

func (s *Suite) TestTimerWaitsForLevelOne(c *check.C) {
	fd := s.ReadablePipe(c)
	var firedAt []int
	s.IOM.AddTimer(100*time.Millisecond, TimeFunc(func() {
		firedAt = append(firedAt, s.IOM.Level())
	}))
	s.IOM.WatchFD(fd, Read, IOFunc(func(fd int, types IOType) {
		drain(fd)
		s.Clock.Add(100 * time.Millisecond)
		s.IOM.ProcessOneEvent(false)
		c.Check(firedAt, check.HasLen, 0)
	}))
	s.IOM.ProcessOneEvent(false)
	c.Check(firedAt, check.DeepEquals, []int{1})
}

type recorder struct {
	got []int
}

func (r *recorder) Notify(n Notification) {
	r.got = append(r.got, n.ID)
}

func (s *Suite) TestNotifications(c *check.C) {
	r := &recorder{}
	fd := s.ReadablePipe(c)
	s.IOM.WatchFD(fd, Read, IOFunc(func(fd int, types IOType) {
		drain(fd)
		s.IOM.Notifications().Send(Notification{Receiver: r, ID: 2})
		s.IOM.ProcessOneEvent(false)
		c.Check(r.got, check.DeepEquals, []int{1})
	}))
	s.IOM.Notifications().Send(Notification{Receiver: r, ID: 1})
	s.IOM.ProcessOneEvent(false)
	c.Check(r.got, check.DeepEquals, []int{1, 2})
}

func (s *Suite) TestRemoveNotifications(c *check.C) {
	r := &recorder{}
	s.IOM.Notifications().Send(Notification{Receiver: r, ID: 1})
	s.IOM.Notifications().RemoveNotifications(r)
	c.Check(s.IOM.Notifications().Pending(), check.Equals, false)
	s.IOM.ProcessOneEvent(false)
	c.Check(r.got, check.HasLen, 0)
}

func (s *Suite) TestTerminate(c *check.C) {
	done := make(chan struct{})
	go func() {
		s.IOM.Run()
		close(done)
	}()
	s.IOM.Terminate()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		c.Fatal("Run did not return after Terminate")
	}
}
