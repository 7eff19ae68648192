// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"github.com/sirupsen/logrus"
)

// MethodFunc implements one method of a local object.  It reads its
// arguments from request and writes its return value to result.
type MethodFunc func(request, result *Buffer)

// Destroyer may be implemented by a skeleton's servant to learn when
// the object is destroyed.
type Destroyer interface {
	Destroy()
}

type skelMethod struct {
	def MethodDef
	fn  MethodFunc
}

// Skeleton is a locally implemented object.  It owns a slot in its
// dispatcher's object pool and a method table built from its
// interface definition.
//
// A skeleton counts two kinds of references.  refCnt counts holders
// in this process plus peers that have claimed the object with
// _useRemote.  remoteSendCount counts references sent to peers that
// have not been claimed yet.  The object is destroyed when both reach
// zero.  A credit that is never claimed is taken back by the periodic
// reference clean after at least one full interval.
type Skeleton struct {
	d       *Dispatcher
	id      int32
	iface   string
	servant interface{}
	methods []skelMethod
	node    ScheduleNode

	refCnt            int
	remoteSendCount   int
	remoteSendUpdated bool
	remoteUsers       []*Connection
	destroyed         bool
}

// NewSkeleton creates a local object implementing iface.  impl maps
// each method name of the interface (and its attribute accessors and
// inherited methods) to its implementation; the base Object methods
// are provided.  servant is the application object behind the
// skeleton, retrievable with Servant.  The new object holds one local
// reference, owned by the caller.
func (d *Dispatcher) NewSkeleton(iface string, servant interface{}, impl map[string]MethodFunc) (*Skeleton, error) {
	table, err := d.repo.MethodTable(iface)
	if err != nil {
		return nil, err
	}
	s := &Skeleton{
		d:       d,
		iface:   iface,
		servant: servant,
		refCnt:  1,
	}
	base := s.baseMethods()
	s.methods = make([]skelMethod, len(table))
	for i, def := range table {
		fn, ok := base[def.Name]
		if !ok {
			fn, ok = impl[def.Name]
		}
		if !ok {
			return nil, ErrMissingMethod{Interface: iface, Method: def.Name}
		}
		s.methods[i] = skelMethod{def: def, fn: fn}
	}
	d.AddObject(s)
	return s, nil
}

func (s *Skeleton) baseMethods() map[string]MethodFunc {
	return map[string]MethodFunc{
		"_lookupMethod": func(req, res *Buffer) {
			var def MethodDef
			def.ReadType(req)
			res.WriteLong(s.LookupMethod(def))
		},
		"_interfaceName": func(req, res *Buffer) {
			res.WriteString(s.iface)
		},
		"_queryInterface": func(req, res *Buffer) {
			def, _ := s.QueryInterface(req.ReadString())
			def.WriteType(res)
		},
		"_toString": func(req, res *Buffer) {
			res.WriteString(s.ToString())
		},
		"_isCompatibleWith": func(req, res *Buffer) {
			res.WriteBool(s.IsCompatibleWith(req.ReadString()))
		},
		"_copyRemote": func(req, res *Buffer) {
			s.CopyRemote()
		},
		"_useRemote": func(req, res *Buffer) {
			s.UseRemote()
		},
		"_releaseRemote": func(req, res *Buffer) {
			s.ReleaseRemote()
		},
		"_get__flowSystem": func(req, res *Buffer) {
			s.d.WriteObject(res, s.d.flowSystem)
		},
	}
}

// ID returns the object's slot in its dispatcher.
func (s *Skeleton) ID() int32 {
	return s.id
}

// Servant returns the application object behind the skeleton.
func (s *Skeleton) Servant() interface{} {
	return s.servant
}

// RefCount returns the local reference count.
func (s *Skeleton) RefCount() int {
	return s.refCnt
}

// RemoteSendCount returns the number of unclaimed remote-send
// credits.
func (s *Skeleton) RemoteSendCount() int {
	return s.remoteSendCount
}

// RemoteUsers returns the number of remote references held by peers.
func (s *Skeleton) RemoteUsers() int {
	return len(s.remoteUsers)
}

// Destroyed reports whether the object has been destroyed.
func (s *Skeleton) Destroyed() bool {
	return s.destroyed
}

// SetScheduleNode attaches a flow graph node to the object.
func (s *Skeleton) SetScheduleNode(node ScheduleNode) {
	s.node = node
}

// Reference returns the object's reference, including this
// dispatcher's listening addresses.
func (s *Skeleton) Reference() ObjectReference {
	return ObjectReference{
		ServerID: s.d.serverID,
		ObjectID: s.id,
		URLs:     s.d.URLs(),
	}
}

// ToString returns the string form of the object's reference.
func (s *Skeleton) ToString() string {
	return s.Reference().String()
}

// InterfaceName returns the interface the skeleton was created with.
func (s *Skeleton) InterfaceName() string {
	return s.iface
}

// QueryInterface looks up an interface in the dispatcher's repository.
func (s *Skeleton) QueryInterface(name string) (InterfaceDef, bool) {
	return s.d.repo.Lookup(name)
}

// IsCompatibleWith reports whether the object's interface is or
// inherits from name.
func (s *Skeleton) IsCompatibleWith(name string) bool {
	return s.d.repo.IsCompatible(s.iface, name)
}

// FlowSystem returns the dispatcher's flow system.
func (s *Skeleton) FlowSystem() Object {
	if s.d.flowSystem == nil {
		return nil
	}
	return s.d.flowSystem.Ref()
}

// LookupMethod returns the method ID matching def, or -1.
func (s *Skeleton) LookupMethod(def MethodDef) int32 {
	for i, m := range s.methods {
		if m.def.Matches(def) {
			return int32(i)
		}
	}
	return -1
}

// dispatch runs a method by ID.  Unknown IDs write nothing, which the
// caller will see as an undecodable reply.
func (s *Skeleton) dispatch(methodID int32, request, result *Buffer) bool {
	if methodID < 0 || int(methodID) >= len(s.methods) {
		s.d.log.WithFields(logrus.Fields{
			"objectID": s.id,
			"methodID": methodID,
		}).Warn("invocation of unknown method")
		return false
	}
	s.methods[methodID].fn(request, result)
	return true
}

// Invoke calls a method on the local object directly.  If the method
// delays its return, this runs the event loop until the return is
// completed.
func (s *Skeleton) Invoke(method MethodDef, args func(*Buffer)) (*Buffer, error) {
	if s.destroyed {
		return nil, ErrNoSuchObject{ID: s.id}
	}
	methodID := s.LookupMethod(method)
	if methodID < 0 {
		return nil, ErrNoSuchMethod
	}
	request := NewBuffer()
	if args != nil {
		args(request)
	}
	inv := &invocation{result: NewBuffer()}
	s.d.runInvocation(inv, func() {
		s.dispatch(methodID, request, inv.result)
	})
	if method.IsOneway() {
		return nil, nil
	}
	if inv.delayed != nil {
		return s.d.waitForDelayed(inv.delayed)
	}
	return inv.result, nil
}

// CopyRemote takes a remote-send credit.
func (s *Skeleton) CopyRemote() {
	s.remoteSendCount++
	s.remoteSendUpdated = true
}

// CancelCopyRemote gives back a remote-send credit without claiming
// it.  This happens when a reference to the object comes back to its
// own server.
func (s *Skeleton) CancelCopyRemote() {
	if s.remoteSendCount > 0 {
		s.remoteSendCount--
	}
	s.checkDestroy()
}

// UseRemote converts a remote-send credit into a reference held by
// the connection the current request arrived on.
func (s *Skeleton) UseRemote() {
	if s.remoteSendCount == 0 {
		s.d.log.WithField("objectID", s.id).Debug("_useRemote without prior _copyRemote")
	} else {
		s.remoteSendCount--
	}
	s.refCnt++
	if conn := s.d.ActiveConnection(); conn != nil {
		s.remoteUsers = append(s.remoteUsers, conn)
	}
}

// ReleaseRemote drops one reference held by the connection the
// current request arrived on.
func (s *Skeleton) ReleaseRemote() {
	conn := s.d.ActiveConnection()
	for i, user := range s.remoteUsers {
		if user == conn {
			s.remoteUsers = append(s.remoteUsers[:i], s.remoteUsers[i+1:]...)
			s.Release()
			return
		}
	}
	s.d.log.WithFields(logrus.Fields{
		"objectID":   s.id,
		"connection": conn,
	}).Warn("_releaseRemote from a connection holding no reference")
}

// disconnectRemote drops every reference held by a connection that
// has gone away.
func (s *Skeleton) disconnectRemote(conn *Connection) {
	count := 0
	kept := s.remoteUsers[:0]
	for _, user := range s.remoteUsers {
		if user == conn {
			count++
		} else {
			kept = append(kept, user)
		}
	}
	s.remoteUsers = kept
	for ; count > 0 && !s.destroyed; count-- {
		s.Release()
	}
}

// referenceClean takes back remote-send credits that have gone
// unclaimed for a whole interval.
func (s *Skeleton) referenceClean() {
	if s.remoteSendCount == 0 {
		return
	}
	if s.remoteSendUpdated {
		s.remoteSendUpdated = false
		return
	}
	s.d.log.WithFields(logrus.Fields{
		"objectID": s.id,
		"credits":  s.remoteSendCount,
	}).Debug("reclaiming unused remote references")
	s.remoteSendCount = 0
	s.checkDestroy()
}

// Ref adds a local reference.
func (s *Skeleton) Ref() Object {
	s.refCnt++
	return s
}

// Release drops a local reference.
func (s *Skeleton) Release() {
	if s.refCnt > 0 {
		s.refCnt--
	}
	s.checkDestroy()
}

// Error is always false for a local object.
func (s *Skeleton) Error() bool {
	return false
}

func (s *Skeleton) checkDestroy() {
	if s.refCnt == 0 && s.remoteSendCount == 0 && !s.destroyed {
		s.destroy()
	}
}

// destroy is the only path by which an object goes away: its flow
// node is detached and its slot freed.
func (s *Skeleton) destroy() {
	s.destroyed = true
	if s.node != nil {
		s.node.Detach()
		s.node = nil
	}
	if d, ok := s.servant.(Destroyer); ok {
		d.Destroy()
	}
	s.d.RemoveObject(s.id)
}
