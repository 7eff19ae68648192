// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package mcop implements the MCOP object request broker: message
// marshalling, connection framing, and a dispatcher that exports local
// objects and makes calls on remote ones.
//
// Everything runs on one event loop, an iomanager.IOManager.  A
// remote call sends its request and then runs the loop until the reply
// arrives, so requests from other peers (and callbacks to this one)
// are still served while a call is outstanding.  The Dispatcher and
// its objects are not safe for concurrent use; a goroutine other than
// the one running the loop must hold the dispatcher's lock, which the
// loop releases only while it waits for events.
package mcop

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-arts/iomanager"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Config holds the settings for creating a Dispatcher.  Every field
// is optional.
type Config struct {
	// IOManager is the event loop.  If nil, the dispatcher
	// creates a default one and closes it on shutdown.
	IOManager iomanager.IOManager

	// Logger receives diagnostic messages.  Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// ServerID identifies this process within the federation.
	// Defaults to a random UUID.
	ServerID string

	// Repository holds the interface definitions of local
	// objects.  Defaults to a repository holding only Object.
	Repository *InterfaceRepo

	// Dir holds the secret cookie and Unix listening sockets.
	// Defaults to DefaultDir().
	Dir string

	// NoAuth accepts clients without checking the secret cookie.
	NoAuth bool

	// ListenUnix listens on a Unix socket in Dir.
	ListenUnix bool

	// ListenTCP listens on TCP, making objects reachable from
	// other machines.
	ListenTCP bool

	// TCPPort is the TCP port to listen on; zero picks any free
	// port.
	TCPPort int

	// Hostname is advertised in TCP object references.  Defaults
	// to the system hostname.
	Hostname string

	// Hints are passed to clients when they are accepted.
	Hints []string

	// ReferenceCleanInterval is how often unclaimed remote
	// references are swept.  Defaults to 5 seconds.
	ReferenceCleanInterval time.Duration

	// RequestTimeout bounds how long a remote call waits for its
	// reply.  Zero waits until the connection breaks.  The bound
	// is checked each time the event loop wakes, so a call can
	// overrun it by up to the loop's idle timeout.
	RequestTimeout time.Duration

	// MethodCacheSize is the number of stub method IDs
	// remembered.  Defaults to 500.
	MethodCacheSize int
}

func (cfg *Config) setDefaults() error {
	if cfg.IOManager == nil {
		iom, err := iomanager.New(iomanager.Config{Logger: cfg.Logger})
		if err != nil {
			return err
		}
		cfg.IOManager = iom
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.ServerID == "" {
		cfg.ServerID = uuid.NewV4().String()
	}
	if cfg.Repository == nil {
		cfg.Repository = NewInterfaceRepo()
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir()
	}
	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
		if cfg.Hostname == "" {
			cfg.Hostname = "localhost"
		}
	}
	if cfg.ReferenceCleanInterval == 0 {
		cfg.ReferenceCleanInterval = 5 * time.Second
	}
	if cfg.MethodCacheSize == 0 {
		cfg.MethodCacheSize = 500
	}
	return nil
}

// pendingRequest is the slot a two-way call's reply is delivered to.
type pendingRequest struct {
	conn  *Connection
	reply chan *Buffer
}

// invocation tracks a request being handled, so a method can delay
// its return.
type invocation struct {
	conn    *Connection
	result  *Buffer
	reply   bool
	delayed *DelayedReturn
}

// Dispatcher is the MCOP request broker for one process.
type Dispatcher struct {
	lock       sync.Mutex
	iom        iomanager.IOManager
	ownIOM     bool
	clock      clock.Clock
	log        logrus.FieldLogger
	serverID   string
	repo       *InterfaceRepo
	dir        string
	noAuth     bool
	cookie     string
	hints      []string
	cfg        Config
	flowSystem Object

	objects     objectPool
	connections []*Connection
	nextConnID  uint64
	pending     map[int32]*pendingRequest
	nextRequest int32
	methodCache *methodCache

	current   *invocation
	listeners []*listener
	urls      []string
	refClean  iomanager.TimeNotify
	onClose   []func(*Connection)
	shutdown  bool
}

// New creates a dispatcher and takes its lock on behalf of the
// calling goroutine, which is expected to run the event loop.  No
// sockets are opened until Listen is called.
func New(cfg Config) (*Dispatcher, error) {
	ownIOM := cfg.IOManager == nil
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := ensureDir(cfg.Dir); err != nil {
		return nil, err
	}
	cookie, err := loadCookie(cfg.Dir)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		iom:         cfg.IOManager,
		ownIOM:      ownIOM,
		clock:       cfg.IOManager.Clock(),
		log:         cfg.Logger,
		serverID:    cfg.ServerID,
		repo:        cfg.Repository,
		dir:         cfg.Dir,
		noAuth:      cfg.NoAuth,
		cookie:      cookie,
		hints:       cfg.Hints,
		cfg:         cfg,
		pending:     make(map[int32]*pendingRequest),
		methodCache: newMethodCache(cfg.MethodCacheSize),
	}
	d.lock.Lock()
	d.iom.SetLocker(&d.lock)
	d.refClean = iomanager.TimeFunc(d.ReferenceClean)
	d.iom.AddTimer(cfg.ReferenceCleanInterval, d.refClean)
	return d, nil
}

// Lock takes the dispatcher lock.  Goroutines other than the one
// running the event loop must hold it while touching the dispatcher
// or any object.
func (d *Dispatcher) Lock() {
	d.lock.Lock()
}

// Unlock releases the dispatcher lock.
func (d *Dispatcher) Unlock() {
	d.lock.Unlock()
}

// IOManager returns the event loop.
func (d *Dispatcher) IOManager() iomanager.IOManager {
	return d.iom
}

// ServerID returns this process's server ID.
func (d *Dispatcher) ServerID() string {
	return d.serverID
}

// Repository returns the interface repository.
func (d *Dispatcher) Repository() *InterfaceRepo {
	return d.repo
}

// Dir returns the MCOP directory.
func (d *Dispatcher) Dir() string {
	return d.dir
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() logrus.FieldLogger {
	return d.log
}

// SetFlowSystem sets the object returned by _get__flowSystem.
func (d *Dispatcher) SetFlowSystem(obj Object) {
	d.flowSystem = obj
}

// URLs returns the addresses this dispatcher listens on.
func (d *Dispatcher) URLs() []string {
	return d.urls
}

// OnConnectionClosed registers a function to call whenever a
// connection is torn down, after objects have dropped the references
// it held.
func (d *Dispatcher) OnConnectionClosed(f func(*Connection)) {
	d.onClose = append(d.onClose, f)
}

// Shutdown closes every connection and listener and stops the
// reference clean timer.  Objects are left alone.
func (d *Dispatcher) Shutdown() {
	if d.shutdown {
		return
	}
	d.shutdown = true
	d.iom.RemoveTimer(d.refClean)
	for _, l := range d.listeners {
		l.close()
	}
	d.listeners = nil
	d.urls = nil
	for _, conn := range append([]*Connection(nil), d.connections...) {
		d.HandleConnectionClose(conn)
	}
	if d.ownIOM {
		d.iom.Close()
	}
}

// AddObject places a skeleton in the object pool and assigns its ID.
func (d *Dispatcher) AddObject(s *Skeleton) int32 {
	s.id = d.objects.add(s)
	objectsGauge.Inc()
	return s.id
}

// RemoveObject frees an object's slot.  The ID may be reused by the
// next AddObject.
func (d *Dispatcher) RemoveObject(id int32) {
	if d.objects.get(id) != nil {
		d.objects.remove(id)
		objectsGauge.Dec()
	}
}

// Object returns the live local object with the given ID, or nil.
func (d *Dispatcher) Object(id int32) *Skeleton {
	return d.objects.get(id)
}

// Objects returns a snapshot of the live local objects.
func (d *Dispatcher) Objects() []*Skeleton {
	return d.objects.live()
}

// Connections returns a snapshot of the live connections.
func (d *Dispatcher) Connections() []*Connection {
	return append([]*Connection(nil), d.connections...)
}

// ReferenceClean sweeps every local object for unclaimed remote-send
// credits.  It runs periodically on the event loop.
func (d *Dispatcher) ReferenceClean() {
	for _, s := range d.objects.live() {
		s.referenceClean()
	}
}

// CreateRequest allocates a request ID for a two-way call on conn and
// returns a buffer holding the invocation header.  The caller appends
// the arguments, patches the length, and sends it.
func (d *Dispatcher) CreateRequest(conn *Connection, objectID, methodID int32) (int32, *Buffer) {
	d.nextRequest++
	requestID := d.nextRequest
	d.pending[requestID] = &pendingRequest{
		conn:  conn,
		reply: make(chan *Buffer, 1),
	}
	b := NewMessage(Invocation)
	b.WriteLong(objectID)
	b.WriteLong(methodID)
	b.WriteLong(requestID)
	return requestID, b
}

// CreateOnewayRequest returns a buffer holding the header of a call
// that gets no reply.
func (d *Dispatcher) CreateOnewayRequest(objectID, methodID int32) *Buffer {
	b := NewMessage(OnewayInvocation)
	b.WriteLong(objectID)
	b.WriteLong(methodID)
	return b
}

func (d *Dispatcher) cancelRequest(requestID int32) {
	delete(d.pending, requestID)
}

// WaitForResult runs the event loop until the reply to requestID
// arrives.  It fails if the connection breaks first, or if the
// configured request timeout passes.
func (d *Dispatcher) WaitForResult(requestID int32, conn *Connection) (*Buffer, error) {
	req := d.pending[requestID]
	if req == nil {
		return nil, ErrBadReply
	}
	defer delete(d.pending, requestID)
	var deadline time.Time
	if d.cfg.RequestTimeout > 0 {
		deadline = d.clock.Now().Add(d.cfg.RequestTimeout)
	}
	for {
		select {
		case result := <-req.reply:
			return result, nil
		default:
		}
		if conn.Broken() {
			return nil, ErrConnectionBroken
		}
		if !deadline.IsZero() && !d.clock.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		d.iom.ProcessOneEvent(true)
	}
}

// ActiveConnection returns the connection whose request is being
// handled, or nil outside a remote request.
func (d *Dispatcher) ActiveConnection() *Connection {
	if d.current == nil {
		return nil
	}
	return d.current.conn
}

// runInvocation runs f with inv as the current invocation.
func (d *Dispatcher) runInvocation(inv *invocation, f func()) {
	saved := d.current
	d.current = inv
	defer func() { d.current = saved }()
	f()
}

// DelayReturn tells the dispatcher that the method being handled
// will send its return value later, through the returned
// DelayedReturn.  It returns nil outside a method call.  A oneway
// method may also delay; completing it sends nothing.
func (d *Dispatcher) DelayReturn() *DelayedReturn {
	if d.current == nil {
		return nil
	}
	if d.current.delayed == nil {
		d.current.delayed = &DelayedReturn{
			d:      d,
			conn:   d.current.conn,
			result: d.current.result,
			reply:  d.current.reply,
		}
	}
	return d.current.delayed
}

// waitForDelayed runs the event loop until a local call's delayed
// return is completed.
func (d *Dispatcher) waitForDelayed(dr *DelayedReturn) (*Buffer, error) {
	for !dr.done {
		d.iom.ProcessOneEvent(true)
	}
	return dr.result, nil
}

// DelayedReturn completes a method call after the method itself has
// returned.
type DelayedReturn struct {
	d      *Dispatcher
	conn   *Connection
	result *Buffer
	reply  bool
	done   bool
}

// Return writes the return value with write, which may be nil for a
// void method, and sends the reply if the caller is waiting for one.
func (dr *DelayedReturn) Return(write func(*Buffer)) {
	if dr.done {
		return
	}
	dr.done = true
	if write != nil {
		write(dr.result)
	}
	if dr.conn != nil && dr.reply {
		dr.result.PatchLength()
		dr.conn.Send(dr.result)
	}
}

// HandleMessage demultiplexes a message from a connection.  It
// implements MessageHandler.
func (d *Dispatcher) HandleMessage(conn *Connection, body *Buffer, t MessageType) {
	messagesReceived.WithLabelValues(t.String()).Inc()
	switch t {
	case ServerHello:
		d.handleServerHello(conn, body)
	case ClientHello:
		d.handleClientHello(conn, body)
	case AuthAccept:
		d.handleAuthAccept(conn, body)
	case Invocation, OnewayInvocation, Return:
		if conn.State() != StateEstablished {
			d.log.WithFields(logrus.Fields{
				"connection":  conn,
				"messageType": t,
			}).Warn("message before handshake completed")
			d.HandleConnectionClose(conn)
			return
		}
		switch t {
		case Invocation:
			d.handleInvocation(conn, body, true)
		case OnewayInvocation:
			d.handleInvocation(conn, body, false)
		case Return:
			d.handleReturn(conn, body)
		}
	default:
		d.log.WithFields(logrus.Fields{
			"connection":  conn,
			"messageType": t,
		}).Warn("unknown message type")
	}
}

// HandleCorrupt drops a connection that sent a malformed header.  It
// implements MessageHandler.
func (d *Dispatcher) HandleCorrupt(conn *Connection) {
	corruptMessages.Inc()
	d.log.WithField("connection", conn).Warn("dropping connection after corrupt message")
	d.HandleConnectionClose(conn)
}

func (d *Dispatcher) handleInvocation(conn *Connection, body *Buffer, twoway bool) {
	objectID := body.ReadLong()
	methodID := body.ReadLong()
	var requestID int32
	if twoway {
		requestID = body.ReadLong()
	}
	if body.ReadError() {
		d.HandleCorrupt(conn)
		return
	}
	inv := &invocation{conn: conn, reply: twoway}
	if twoway {
		inv.result = NewMessage(Return)
		inv.result.WriteLong(requestID)
	} else {
		inv.result = NewBuffer()
	}
	if s := d.objects.get(objectID); s != nil {
		d.runInvocation(inv, func() {
			s.dispatch(methodID, body, inv.result)
		})
	} else {
		d.log.WithFields(logrus.Fields{
			"connection": conn,
			"objectID":   objectID,
			"methodID":   methodID,
		}).Warn("invocation on unknown object")
	}
	if twoway && inv.delayed == nil {
		inv.result.PatchLength()
		conn.Send(inv.result)
	}
}

func (d *Dispatcher) handleReturn(conn *Connection, body *Buffer) {
	requestID := body.ReadLong()
	req := d.pending[requestID]
	if body.ReadError() || req == nil || req.conn != conn {
		d.log.WithFields(logrus.Fields{
			"connection": conn,
			"requestID":  requestID,
		}).Debug("return for unknown request")
		return
	}
	select {
	case req.reply <- body:
	default:
	}
}

// sendHello starts the handshake on an accepted connection.
func (d *Dispatcher) sendHello(conn *Connection) {
	seed := uuid.NewV4().String()
	conn.authSeed = seed
	protocols := []string{AuthMD5}
	if d.noAuth {
		protocols = append(protocols, AuthNoAuth)
	}
	b := NewMessage(ServerHello)
	ServerHelloMessage{
		MCOPVersion:   ProtocolVersion,
		ServerID:      d.serverID,
		AuthProtocols: protocols,
		AuthSeed:      seed,
	}.WriteType(b)
	b.PatchLength()
	conn.SetState(StateExpectClientHello)
	conn.Send(b)
}

func (d *Dispatcher) handleServerHello(conn *Connection, body *Buffer) {
	var hello ServerHelloMessage
	hello.ReadType(body)
	if conn.State() != StateExpectServerHello || body.ReadError() {
		d.HandleCorrupt(conn)
		return
	}
	conn.serverID = hello.ServerID
	reply := ClientHelloMessage{ServerID: d.serverID}
	for _, p := range hello.AuthProtocols {
		if p == AuthMD5 {
			reply.AuthProtocol = AuthMD5
			reply.AuthData = md5Auth(d.cookie, hello.AuthSeed)
			break
		}
		if p == AuthNoAuth {
			reply.AuthProtocol = AuthNoAuth
		}
	}
	if reply.AuthProtocol == "" {
		d.log.WithField("connection", conn).Warn("server offers no usable authentication")
		d.HandleConnectionClose(conn)
		return
	}
	b := NewMessage(ClientHello)
	reply.WriteType(b)
	b.PatchLength()
	conn.SetState(StateExpectAuthAccept)
	conn.Send(b)
}

func (d *Dispatcher) handleClientHello(conn *Connection, body *Buffer) {
	var hello ClientHelloMessage
	hello.ReadType(body)
	if conn.State() != StateExpectClientHello || body.ReadError() {
		d.HandleCorrupt(conn)
		return
	}
	ok := false
	switch hello.AuthProtocol {
	case AuthMD5:
		ok = checkMD5Auth(d.cookie, conn.authSeed, hello.AuthData)
	case AuthNoAuth:
		ok = d.noAuth
	}
	if !ok {
		authFailures.Inc()
		d.log.WithFields(logrus.Fields{
			"connection": conn,
			"protocol":   hello.AuthProtocol,
		}).Warn("client failed authentication")
		d.HandleConnectionClose(conn)
		return
	}
	conn.serverID = hello.ServerID
	b := NewMessage(AuthAccept)
	AuthAcceptMessage{Hints: d.hints}.WriteType(b)
	b.PatchLength()
	conn.SetState(StateEstablished)
	conn.Send(b)
}

func (d *Dispatcher) handleAuthAccept(conn *Connection, body *Buffer) {
	var accept AuthAcceptMessage
	accept.ReadType(body)
	if conn.State() != StateExpectAuthAccept || body.ReadError() {
		d.HandleCorrupt(conn)
		return
	}
	conn.hints = accept.Hints
	conn.SetState(StateEstablished)
}

// AddConnection registers a connection with the dispatcher and
// assigns its ID.
func (d *Dispatcher) AddConnection(conn *Connection) {
	d.nextConnID++
	conn.id = d.nextConnID
	d.connections = append(d.connections, conn)
	connectionsGauge.Inc()
}

// HandleConnectionClose tears down a connection: every reference the
// peer held on local objects is released, pending calls on the
// connection fail, and the transport is closed.
func (d *Dispatcher) HandleConnectionClose(conn *Connection) {
	found := false
	for i, c := range d.connections {
		if c == conn {
			d.connections = append(d.connections[:i], d.connections[i+1:]...)
			found = true
			break
		}
	}
	conn.Drop()
	if !found {
		return
	}
	connectionsGauge.Dec()
	d.log.WithField("connection", conn).Debug("connection closed")
	for _, s := range d.objects.live() {
		s.disconnectRemote(conn)
	}
	for _, f := range d.onClose {
		f(conn)
	}
	conn.Release()
}

// newSocketConnection wraps an accepted or dialed socket.
func (d *Dispatcher) newSocketConnection(netConn net.Conn) (*Connection, error) {
	t, err := newSocketTransport(netConn, d.iom)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	conn := NewConnection(d, t)
	d.AddConnection(conn)
	t.start(conn, d.HandleConnectionClose)
	return conn, nil
}

// ConnectObjectRemote returns an established connection to the server
// owning ref, reusing an existing one if possible.
func (d *Dispatcher) ConnectObjectRemote(ref ObjectReference) (*Connection, error) {
	for _, conn := range d.connections {
		if conn.ServerID() == ref.ServerID && conn.State() == StateEstablished && !conn.Broken() {
			return conn, nil
		}
	}
	for _, url := range ref.URLs {
		netConn, err := dialURL(url)
		if err != nil {
			d.log.WithError(err).WithField("url", url).Debug("cannot connect")
			continue
		}
		conn, err := d.newSocketConnection(netConn)
		if err != nil {
			continue
		}
		conn.SetState(StateExpectServerHello)
		var deadline time.Time
		if d.cfg.RequestTimeout > 0 {
			deadline = d.clock.Now().Add(d.cfg.RequestTimeout)
		}
		for conn.State() != StateEstablished && !conn.Broken() {
			if !deadline.IsZero() && !d.clock.Now().Before(deadline) {
				break
			}
			d.iom.ProcessOneEvent(true)
		}
		if conn.State() == StateEstablished && conn.ServerID() == ref.ServerID {
			return conn, nil
		}
		d.log.WithField("url", url).Debug("handshake failed")
		d.HandleConnectionClose(conn)
	}
	return nil, ErrNoConnection
}

// ObjectFromReference returns a handle on the object ref names: the
// local object itself if this dispatcher owns it, otherwise a stub.
// The caller owns one reference on the result.
func (d *Dispatcher) ObjectFromReference(ref ObjectReference) (Object, error) {
	return d.objectFromReference(ref, false)
}

func (d *Dispatcher) objectFromReference(ref ObjectReference, sent bool) (Object, error) {
	if ref.IsNull() {
		return nil, ErrNullReference
	}
	if ref.ServerID == d.serverID {
		s := d.objects.get(ref.ObjectID)
		if s == nil {
			return nil, ErrNoSuchObject{ID: ref.ObjectID}
		}
		s.Ref()
		if sent {
			s.CancelCopyRemote()
		}
		return s, nil
	}
	conn, err := d.ConnectObjectRemote(ref)
	if err != nil {
		return nil, err
	}
	stub := newStub(d, conn, ref)
	stub.UseRemote()
	if stub.Error() {
		stub.Release()
		return nil, ErrConnectionBroken
	}
	return stub, nil
}

// StringToObject decodes an "MCOP-Object:" string and returns a
// handle on the object.
func (d *Dispatcher) StringToObject(s string) (Object, error) {
	ref, err := ParseObjectReference(s)
	if err != nil {
		return nil, err
	}
	return d.ObjectFromReference(ref)
}

// ObjectToString returns the string form of an object's reference,
// or of the null reference for nil.
func (d *Dispatcher) ObjectToString(obj Object) string {
	if obj == nil {
		return NullReference().String()
	}
	return obj.ToString()
}

// WriteObject marshals a reference to obj, taking a remote-send
// credit to keep it alive in transit.  nil writes the null reference.
func (d *Dispatcher) WriteObject(b *Buffer, obj Object) {
	if obj == nil {
		NullReference().WriteType(b)
		return
	}
	obj.CopyRemote()
	obj.Reference().WriteType(b)
}

// ReadObject unmarshals a reference written by WriteObject and
// returns a handle on the object, or nil for the null reference.  The
// caller owns one reference on the result.
func (d *Dispatcher) ReadObject(b *Buffer) (Object, error) {
	var ref ObjectReference
	ref.ReadType(b)
	if b.ReadError() {
		return nil, ErrBadReply
	}
	if ref.IsNull() {
		return nil, nil
	}
	return d.objectFromReference(ref, true)
}

// socketPath returns the path of this dispatcher's Unix socket.
func (d *Dispatcher) socketPath() string {
	host, _ := os.Hostname()
	tag := d.serverID
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return filepath.Join(d.dir, host+"-"+strconv.Itoa(os.Getpid())+"-"+tag)
}
