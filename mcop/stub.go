// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

// Stub is a proxy for an object on another server.  Calls on a stub
// become invocations on its connection.  Method IDs other than the
// fixed base methods are learned with _lookupMethod and cached.
//
// A stub holds one remote reference on its object, claimed with
// _useRemote when the stub is made and given back with
// _releaseRemote when its last local reference is released.
type Stub struct {
	d      *Dispatcher
	conn   *Connection
	ref    ObjectReference
	refCnt int
	failed bool
	iface  string
	cached []methodKey
}

func newStub(d *Dispatcher, conn *Connection, ref ObjectReference) *Stub {
	conn.Ref()
	return &Stub{
		d:      d,
		conn:   conn,
		ref:    ref,
		refCnt: 1,
	}
}

// Connection returns the connection to the object's server.
func (s *Stub) Connection() *Connection {
	return s.conn
}

// Reference returns the remote object's reference.
func (s *Stub) Reference() ObjectReference {
	return s.ref
}

// ToString returns the string form of the remote object's reference.
func (s *Stub) ToString() string {
	return s.ref.String()
}

// Error reports whether a call on this stub has failed or its
// connection is gone.
func (s *Stub) Error() bool {
	return s.failed || s.conn.Broken()
}

// call makes a two-way call by method ID.
func (s *Stub) call(methodID int32, args func(*Buffer)) (*Buffer, error) {
	if s.refCnt <= 0 {
		return nil, ErrNullReference
	}
	if s.conn.Broken() {
		s.failed = true
		return nil, ErrConnectionBroken
	}
	requestID, request := s.d.CreateRequest(s.conn, s.ref.ObjectID, methodID)
	if args != nil {
		args(request)
	}
	request.PatchLength()
	if err := s.conn.Send(request); err != nil {
		s.d.cancelRequest(requestID)
		s.failed = true
		return nil, err
	}
	result, err := s.d.WaitForResult(requestID, s.conn)
	if err != nil {
		s.failed = true
		return nil, err
	}
	return result, nil
}

// send makes a oneway call by method ID.
func (s *Stub) send(methodID int32, args func(*Buffer)) error {
	if s.conn.Broken() {
		s.failed = true
		return ErrConnectionBroken
	}
	request := s.d.CreateOnewayRequest(s.ref.ObjectID, methodID)
	if args != nil {
		args(request)
	}
	request.PatchLength()
	if err := s.conn.Send(request); err != nil {
		s.failed = true
		return err
	}
	return nil
}

// checkResult marks the stub failed if the reply could not be
// decoded.
func (s *Stub) checkResult(result *Buffer) bool {
	if result == nil || result.ReadError() {
		s.failed = true
		return false
	}
	return true
}

// lookupMethod finds a method's ID on the server, consulting the
// dispatcher's method cache first.
func (s *Stub) lookupMethod(method MethodDef) (int32, error) {
	key := methodKey{stub: s, method: method.Key()}
	return s.d.methodCache.Get(key, func() (int32, error) {
		result, err := s.call(MethodLookupMethod, method.WriteType)
		if err != nil {
			return -1, err
		}
		id := result.ReadLong()
		if !s.checkResult(result) {
			return -1, ErrBadReply
		}
		if id < 0 {
			return -1, ErrNoSuchMethod
		}
		s.cached = append(s.cached, key)
		return id, nil
	})
}

// Invoke calls a method on the remote object.
func (s *Stub) Invoke(method MethodDef, args func(*Buffer)) (*Buffer, error) {
	methodID, err := s.lookupMethod(method)
	if err != nil {
		s.failed = true
		return nil, err
	}
	if method.IsOneway() {
		return nil, s.send(methodID, args)
	}
	return s.call(methodID, args)
}

// InterfaceName asks the server for the object's interface.  The
// answer is cached.
func (s *Stub) InterfaceName() string {
	if s.iface != "" {
		return s.iface
	}
	result, err := s.call(MethodInterfaceName, nil)
	if err != nil {
		return ""
	}
	name := result.ReadString()
	if !s.checkResult(result) {
		return ""
	}
	s.iface = name
	return name
}

// QueryInterface asks the server for an interface definition.
func (s *Stub) QueryInterface(name string) (InterfaceDef, bool) {
	var def InterfaceDef
	result, err := s.call(MethodQueryInterface, func(b *Buffer) {
		b.WriteString(name)
	})
	if err != nil {
		return def, false
	}
	def.ReadType(result)
	if !s.checkResult(result) || def.Name == "" {
		return InterfaceDef{}, false
	}
	return def, true
}

// IsCompatibleWith asks the server whether the object implements
// name.
func (s *Stub) IsCompatibleWith(name string) bool {
	result, err := s.call(MethodIsCompatibleWith, func(b *Buffer) {
		b.WriteString(name)
	})
	if err != nil {
		return false
	}
	ok := result.ReadBool()
	return s.checkResult(result) && ok
}

// FlowSystem asks the server for its flow system.
func (s *Stub) FlowSystem() Object {
	result, err := s.call(MethodGetFlowSystem, nil)
	if err != nil {
		return nil
	}
	obj, err := s.d.ReadObject(result)
	if err != nil {
		s.failed = true
		return nil
	}
	return obj
}

// CopyRemote takes a remote-send credit on the server, before this
// stub's reference is passed on to another peer.
func (s *Stub) CopyRemote() {
	s.call(MethodCopyRemote, nil)
}

// UseRemote claims a remote-send credit on the server.
func (s *Stub) UseRemote() {
	s.call(MethodUseRemote, nil)
}

// ReleaseRemote gives back this stub's reference on the server.
func (s *Stub) ReleaseRemote() {
	s.send(MethodReleaseRemote, nil)
}

// Ref adds a local reference.
func (s *Stub) Ref() Object {
	s.refCnt++
	return s
}

// Release drops a local reference.  The last release gives back the
// remote reference and lets go of the connection.
func (s *Stub) Release() {
	if s.refCnt <= 0 {
		return
	}
	s.refCnt--
	if s.refCnt > 0 {
		return
	}
	if !s.conn.Broken() {
		s.ReleaseRemote()
	}
	for _, key := range s.cached {
		s.d.methodCache.Remove(key)
	}
	s.cached = nil
	s.conn.Release()
}
