// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"net"
	"strings"
	"syscall"

	"github.com/diffeo/go-arts/iomanager"
	"golang.org/x/sys/unix"
)

// readChunk is the most read from a socket per readiness callback.
const readChunk = 8192

// fdOf returns the descriptor underlying a network connection or
// listener.  The descriptor stays valid until the object is closed.
func fdOf(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	err = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	return fd, err
}

// socketTransport moves a Connection's bytes over a stream socket.
// The socket is driven by the event loop: reads happen when the loop
// reports it readable, and writes that would block are queued and
// finished when it reports it writable.  Both watches are reentrant,
// so a nested wait for a reply can still send and receive on this
// connection.
type socketTransport struct {
	netConn  net.Conn
	fd       int
	iom      iomanager.IOManager
	conn     *Connection
	onClose  func(*Connection)
	pending  []byte
	writing  bool
	closed   bool
	describe string
}

func newSocketTransport(netConn net.Conn, iom iomanager.IOManager) (*socketTransport, error) {
	sc, ok := netConn.(syscall.Conn)
	if !ok {
		return nil, unix.ENOTSOCK
	}
	fd, err := fdOf(sc)
	if err != nil {
		return nil, err
	}
	return &socketTransport{
		netConn:  netConn,
		fd:       fd,
		iom:      iom,
		describe: netConn.RemoteAddr().Network() + ":" + netConn.RemoteAddr().String(),
	}, nil
}

// start attaches the transport to its connection and begins reading.
func (t *socketTransport) start(conn *Connection, onClose func(*Connection)) {
	t.conn = conn
	t.onClose = onClose
	t.iom.WatchFD(t.fd, iomanager.Read|iomanager.Except|iomanager.Reentrant, t)
}

func (t *socketTransport) String() string {
	return t.describe
}

func (t *socketTransport) NotifyIO(fd int, types iomanager.IOType) {
	if types&iomanager.Write != 0 {
		t.flush()
	}
	if types&(iomanager.Read|iomanager.Except) != 0 && !t.closed {
		var buf [readChunk]byte
		n, err := unix.Read(t.fd, buf[:])
		switch {
		case n > 0:
			t.conn.Receive(buf[:n])
		case err == unix.EAGAIN || err == unix.EINTR:
		default:
			// EOF or a hard error.
			t.lost()
		}
	}
}

// lost reports a connection the peer closed or that failed.
func (t *socketTransport) lost() {
	if t.closed {
		return
	}
	if t.onClose != nil {
		t.onClose(t.conn)
	} else {
		t.Close()
	}
}

func (t *socketTransport) Send(data []byte) error {
	if t.closed {
		return ErrConnectionBroken
	}
	if len(t.pending) > 0 {
		t.pending = append(t.pending, data...)
		return nil
	}
	n, err := unix.Write(t.fd, data)
	if err != nil && err != unix.EAGAIN && err != unix.EINTR {
		t.lost()
		return ErrConnectionBroken
	}
	if n < 0 {
		n = 0
	}
	if n < len(data) {
		t.pending = append(t.pending, data[n:]...)
		t.watchWrite()
	}
	return nil
}

func (t *socketTransport) watchWrite() {
	if !t.writing {
		t.writing = true
		t.iom.WatchFD(t.fd, iomanager.Write|iomanager.Reentrant, t)
	}
}

func (t *socketTransport) flush() {
	for len(t.pending) > 0 && !t.closed {
		n, err := unix.Write(t.fd, t.pending)
		if err == unix.EAGAIN || err == unix.EINTR {
			return
		}
		if err != nil {
			t.lost()
			return
		}
		t.pending = t.pending[n:]
	}
	t.pending = nil
	if t.writing {
		t.writing = false
		t.iom.Remove(t, iomanager.Write)
	}
}

func (t *socketTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.pending = nil
	t.iom.Remove(t, iomanager.All)
	return t.netConn.Close()
}

// dialURL connects to one of the addresses in an object reference.
func dialURL(url string) (net.Conn, error) {
	switch {
	case strings.HasPrefix(url, "tcp:"):
		return net.Dial("tcp", strings.TrimPrefix(url, "tcp:"))
	case strings.HasPrefix(url, "unix:"):
		return net.Dial("unix", strings.TrimPrefix(url, "unix:"))
	}
	return nil, ErrBadReference
}
