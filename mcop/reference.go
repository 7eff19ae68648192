// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

// NullServerID is the server ID of the null reference.
const NullServerID = "null"

// referencePrefix names the hex encoding of an object reference.
const referencePrefix = "MCOP-Object"

// ObjectReference identifies an object within a federation of MCOP
// servers.  URLs lists the addresses at which the owning server
// accepts connections, such as "tcp:host:port" or "unix:/path".
type ObjectReference struct {
	ServerID string
	ObjectID int32
	URLs     []string
}

// NullReference returns the null object reference.
func NullReference() ObjectReference {
	return ObjectReference{ServerID: NullServerID}
}

// IsNull reports whether this is the null reference.
func (r ObjectReference) IsNull() bool {
	return r.ServerID == NullServerID
}

// WriteType marshals the reference.
func (r ObjectReference) WriteType(b *Buffer) {
	b.WriteString(r.ServerID)
	b.WriteLong(r.ObjectID)
	b.WriteStringSeq(r.URLs)
}

// ReadType unmarshals the reference.
func (r *ObjectReference) ReadType(b *Buffer) {
	r.ServerID = b.ReadString()
	r.ObjectID = b.ReadLong()
	r.URLs = b.ReadStringSeq()
}

// String returns the "MCOP-Object:<hex>" form of the reference.
func (r ObjectReference) String() string {
	b := NewBuffer()
	r.WriteType(b)
	return b.ToString(referencePrefix)
}

// ParseObjectReference decodes the string form of a reference.
func ParseObjectReference(s string) (ObjectReference, error) {
	var r ObjectReference
	b := NewBuffer()
	if !b.FromString(s, referencePrefix) {
		return r, ErrBadReference
	}
	r.ReadType(b)
	if b.ReadError() {
		return r, ErrBadReference
	}
	return r, nil
}
