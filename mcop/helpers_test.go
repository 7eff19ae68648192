// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"testing"
	"time"

	"github.com/diffeo/go-arts/iomanager"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// loopback is a Transport that hands every message straight to the
// peer connection.  Closing one end runs onClose, which connectPair
// uses to tear down the other end the way a socket EOF would.
type loopback struct {
	peer    *Connection
	closed  bool
	onClose func()
}

func (t *loopback) Send(data []byte) error {
	if t.closed {
		return ErrConnectionBroken
	}
	if t.peer != nil {
		t.peer.Receive(append([]byte(nil), data...))
	}
	return nil
}

func (t *loopback) Close() error {
	t.closed = true
	if f := t.onClose; f != nil {
		t.onClose = nil
		f()
	}
	return nil
}

func (t *loopback) String() string {
	return "loopback"
}

// connectPair joins two dispatchers with a loopback connection and
// runs the handshake, which completes synchronously.
func connectPair(server, client *Dispatcher) (sconn, cconn *Connection) {
	st, ct := &loopback{}, &loopback{}
	sconn = NewConnection(server, st)
	cconn = NewConnection(client, ct)
	st.peer, ct.peer = cconn, sconn
	st.onClose = func() { client.HandleConnectionClose(cconn) }
	ct.onClose = func() { server.HandleConnectionClose(sconn) }
	server.AddConnection(sconn)
	client.AddConnection(cconn)
	cconn.SetState(StateExpectServerHello)
	server.sendHello(sconn)
	return sconn, cconn
}

// newTestDispatcher creates a dispatcher with a quiet logger and a
// short idle timeout, sharing the secret cookie in dir.
func newTestDispatcher(t *testing.T, dir string) *Dispatcher {
	return newTestDispatcherConfig(t, Config{Dir: dir})
}

func newTestDispatcherConfig(t *testing.T, cfg Config) *Dispatcher {
	logger, _ := logtest.NewNullLogger()
	iom, err := iomanager.New(iomanager.Config{
		Logger:      logger,
		IdleTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	cfg.IOManager = iom
	cfg.Logger = logger
	d, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		d.Shutdown()
		iom.Close()
	})
	return d
}

var (
	echoMethod = MethodDef{
		Name:      "echo",
		Type:      "string",
		Flags:     MethodTwoway,
		Signature: []ParamDef{{Type: "string", Name: "message"}},
	}
	addMethod = MethodDef{
		Name:      "add",
		Type:      "long",
		Flags:     MethodTwoway,
		Signature: []ParamDef{{Type: "long", Name: "a"}, {Type: "long", Name: "b"}},
	}
	pokeMethod = MethodDef{
		Name:      "poke",
		Type:      "void",
		Flags:     MethodOneway,
		Signature: []ParamDef{{Type: "long", Name: "value"}},
	}
	laterMethod = MethodDef{Name: "later", Type: "long", Flags: MethodTwoway}
	titleMethod = MethodDef{Name: "_get_title", Type: "string", Flags: MethodTwoway}
)

// echoServant is the application object behind the test Echo
// interface.
type echoServant struct {
	title     string
	pokes     []int32
	later     *DelayedReturn
	destroyed bool
}

func (e *echoServant) Destroy() {
	e.destroyed = true
}

func newEcho(t *testing.T, d *Dispatcher) (*Skeleton, *echoServant) {
	require.NoError(t, d.Repository().Load([]byte(testSchema)))
	e := &echoServant{title: "echo"}
	var s *Skeleton
	s, err := d.NewSkeleton("Echo", e, map[string]MethodFunc{
		"echo": func(req, res *Buffer) {
			res.WriteString(req.ReadString())
		},
		"add": func(req, res *Buffer) {
			a := req.ReadLong()
			b := req.ReadLong()
			res.WriteLong(a + b)
		},
		"poke": func(req, res *Buffer) {
			e.pokes = append(e.pokes, req.ReadLong())
		},
		"later": func(req, res *Buffer) {
			e.later = d.DelayReturn()
		},
		"_get_title": func(req, res *Buffer) {
			res.WriteString(e.title)
		},
		"_set_title": func(req, res *Buffer) {
			e.title = req.ReadString()
		},
		"_get_id": func(req, res *Buffer) {
			res.WriteLong(s.ID())
		},
	})
	require.NoError(t, err)
	return s, e
}

// echoString calls echo on obj.
func echoString(obj Object, message string) (string, error) {
	result, err := obj.Invoke(echoMethod, func(b *Buffer) {
		b.WriteString(message)
	})
	if err != nil {
		return "", err
	}
	reply := result.ReadString()
	if result.ReadError() {
		return "", ErrBadReply
	}
	return reply, nil
}
