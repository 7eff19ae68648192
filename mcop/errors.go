// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"errors"
	"fmt"
)

// ErrConnectionBroken is returned from remote calls when the
// connection to the object's server has been closed or was never
// established.
var ErrConnectionBroken = errors.New("Connection to object's server is broken")

// ErrNoSuchMethod is returned from remote calls when the server does
// not know the requested method.
var ErrNoSuchMethod = errors.New("Object does not implement method")

// ErrBadReply is returned from remote calls whose reply could not be
// decoded.
var ErrBadReply = errors.New("Malformed reply")

// ErrTimeout is returned from remote calls that did not receive a
// reply within the configured request timeout.
var ErrTimeout = errors.New("Request timed out")

// ErrNullReference is returned when a null object reference is used
// where a live object is required.
var ErrNullReference = errors.New("Null object reference")

// ErrBadReference is returned when an object reference string cannot
// be decoded.
var ErrBadReference = errors.New("Malformed object reference")

// ErrNoConnection is returned when none of an object reference's URLs
// could be connected to.
var ErrNoConnection = errors.New("Cannot connect to object's server")

// ErrAuthFailed is returned when a peer rejects the handshake.
var ErrAuthFailed = errors.New("Authentication failed")

// ErrNoSuchObject is returned when an object ID does not name a live
// object.
type ErrNoSuchObject struct {
	ID int32
}

func (err ErrNoSuchObject) Error() string {
	return fmt.Sprintf("No such object %v", err.ID)
}

// ErrUnknownInterface is returned when an interface name is not in
// the interface repository.
type ErrUnknownInterface struct {
	Name string
}

func (err ErrUnknownInterface) Error() string {
	return fmt.Sprintf("Unknown interface %v", err.Name)
}

// ErrMissingMethod is returned when a skeleton is created without an
// implementation for one of its interface's methods.
type ErrMissingMethod struct {
	Interface string
	Method    string
}

func (err ErrMissingMethod) Error() string {
	return fmt.Sprintf("Interface %v method %v has no implementation", err.Interface, err.Method)
}

// ErrNoFactory is returned by ObjectManager.Create when no factory is
// registered for an interface.
type ErrNoFactory struct {
	Interface string
}

func (err ErrNoFactory) Error() string {
	return fmt.Sprintf("No factory for interface %v", err.Interface)
}
