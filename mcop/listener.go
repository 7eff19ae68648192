// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/diffeo/go-arts/iomanager"
	"github.com/sirupsen/logrus"
)

// listener accepts connections for a dispatcher.  Its watch is not
// reentrant: new peers are only accepted at the top level of the
// event loop.
type listener struct {
	d    *Dispatcher
	ln   net.Listener
	fd   int
	url  string
	path string
}

func (d *Dispatcher) addListener(ln net.Listener, url, path string) error {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		ln.Close()
		return syscall.ENOTSOCK
	}
	fd, err := fdOf(sc)
	if err != nil {
		ln.Close()
		return err
	}
	l := &listener{d: d, ln: ln, fd: fd, url: url, path: path}
	d.listeners = append(d.listeners, l)
	d.urls = append(d.urls, url)
	d.iom.WatchFD(fd, iomanager.Read, l)
	d.log.WithField("url", url).Info("listening")
	return nil
}

// Listen opens the listening sockets named in the configuration: a
// Unix socket in the MCOP directory and, if enabled, a TCP port.
func (d *Dispatcher) Listen() error {
	if d.cfg.ListenUnix {
		path := d.socketPath()
		os.Remove(path)
		ln, err := net.Listen("unix", path)
		if err != nil {
			return err
		}
		if err := d.addListener(ln, "unix:"+path, path); err != nil {
			return err
		}
	}
	if d.cfg.ListenTCP {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(d.cfg.TCPPort))
		if err != nil {
			return err
		}
		port := ln.Addr().(*net.TCPAddr).Port
		url := "tcp:" + net.JoinHostPort(d.cfg.Hostname, strconv.Itoa(port))
		if err := d.addListener(ln, url, ""); err != nil {
			return err
		}
	}
	return nil
}

func (l *listener) NotifyIO(fd int, types iomanager.IOType) {
	netConn, err := l.ln.Accept()
	if err != nil {
		l.d.log.WithError(err).WithField("url", l.url).Warn("accept failed")
		return
	}
	conn, err := l.d.newSocketConnection(netConn)
	if err != nil {
		l.d.log.WithError(err).Warn("cannot watch accepted connection")
		return
	}
	l.d.log.WithFields(logrus.Fields{
		"connection": conn,
		"url":        l.url,
	}).Debug("accepted connection")
	l.d.sendHello(conn)
}

func (l *listener) close() {
	l.d.iom.Remove(l, iomanager.All)
	l.ln.Close()
	if l.path != "" {
		os.Remove(l.path)
	}
}
