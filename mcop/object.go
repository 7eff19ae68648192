// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

// Object is a handle on an MCOP object.  A *Skeleton is a local
// object implemented in this process; a *Stub is a proxy for an object
// on another server.  Code holding an Object need not know which it
// has: every call goes through Invoke, which either dispatches
// directly or sends a request and waits for the reply.
//
// Remote failures do not panic.  Methods returning values return zero
// values instead, and Error then reports true for the rest of the
// handle's life.
type Object interface {
	// Reference returns the object's network-wide identity.
	Reference() ObjectReference

	// ToString returns the "MCOP-Object:" string form of the
	// reference.
	ToString() string

	// InterfaceName returns the name of the most derived interface
	// the object implements.
	InterfaceName() string

	// QueryInterface looks up an interface definition in the
	// object's interface repository.
	QueryInterface(name string) (InterfaceDef, bool)

	// IsCompatibleWith reports whether the object implements the
	// named interface, directly or by inheritance.
	IsCompatibleWith(name string) bool

	// FlowSystem returns the flow system of the object's server,
	// or nil if it has none.
	FlowSystem() Object

	// Invoke calls a method.  args, if not nil, writes the
	// arguments.  For a two-way method the result holds the return
	// value; for a oneway method it is nil.
	Invoke(method MethodDef, args func(*Buffer)) (*Buffer, error)

	// CopyRemote takes a remote-send credit, keeping the object
	// alive while a reference to it is in transit.
	CopyRemote()

	// UseRemote converts a remote-send credit into a reference
	// held by the calling connection.
	UseRemote()

	// ReleaseRemote drops the reference held by the calling
	// connection.
	ReleaseRemote()

	// Ref adds a local reference and returns the object.
	Ref() Object

	// Release drops a local reference.
	Release()

	// Error reports whether a remote call on this handle has
	// failed.
	Error() bool
}

// ScheduleNode is the part of a flow graph node an object owns.  It is
// detached before the object is destroyed.
type ScheduleNode interface {
	Detach()
}
