// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import "fmt"

// Magic is the first word of every MCOP message, "MCOP" in ASCII.
const Magic = 0x4d434f50

// HeaderSize is the size of the fixed message header: magic, total
// length, and message type.
const HeaderSize = 12

// MaxUnauthenticatedBody bounds the body size accepted from a peer
// that has not completed the handshake.
const MaxUnauthenticatedBody = 4096

// ProtocolVersion is sent in the server hello.
const ProtocolVersion = "aRts/MCOP-1.0.0"

// MessageType identifies the kind of an MCOP message.
type MessageType int32

// The MCOP message types.
const (
	ServerHello      MessageType = 1
	ClientHello      MessageType = 2
	AuthAccept       MessageType = 3
	Invocation       MessageType = 4
	Return           MessageType = 5
	OnewayInvocation MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case ServerHello:
		return "serverHello"
	case ClientHello:
		return "clientHello"
	case AuthAccept:
		return "authAccept"
	case Invocation:
		return "invocation"
	case Return:
		return "return"
	case OnewayInvocation:
		return "onewayInvocation"
	}
	return fmt.Sprintf("messageType(%d)", int32(t))
}

// Header is the fixed 12-byte prefix of every message.
type Header struct {
	Magic         int32
	MessageLength int32
	MessageType   MessageType
}

// NewMessage creates a buffer holding a header for a message of type
// t.  The length field is zero until PatchLength is called.
func NewMessage(t MessageType) *Buffer {
	b := NewBuffer()
	Header{Magic: Magic, MessageType: t}.WriteType(b)
	return b
}

// WriteType marshals the header.
func (h Header) WriteType(b *Buffer) {
	b.WriteLong(h.Magic)
	b.WriteLong(h.MessageLength)
	b.WriteLong(int32(h.MessageType))
}

// ReadType unmarshals the header.
func (h *Header) ReadType(b *Buffer) {
	h.Magic = b.ReadLong()
	h.MessageLength = b.ReadLong()
	h.MessageType = MessageType(b.ReadLong())
}

// ServerHelloMessage is sent by the accepting side as soon as a
// connection opens.
type ServerHelloMessage struct {
	MCOPVersion   string
	ServerID      string
	AuthProtocols []string
	AuthSeed      string
}

// WriteType marshals the message body.
func (m ServerHelloMessage) WriteType(b *Buffer) {
	b.WriteString(m.MCOPVersion)
	b.WriteString(m.ServerID)
	b.WriteStringSeq(m.AuthProtocols)
	b.WriteString(m.AuthSeed)
}

// ReadType unmarshals the message body.
func (m *ServerHelloMessage) ReadType(b *Buffer) {
	m.MCOPVersion = b.ReadString()
	m.ServerID = b.ReadString()
	m.AuthProtocols = b.ReadStringSeq()
	m.AuthSeed = b.ReadString()
}

// ClientHelloMessage answers a server hello with the client's
// identity and authentication data.
type ClientHelloMessage struct {
	ServerID     string
	AuthProtocol string
	AuthData     string
}

// WriteType marshals the message body.
func (m ClientHelloMessage) WriteType(b *Buffer) {
	b.WriteString(m.ServerID)
	b.WriteString(m.AuthProtocol)
	b.WriteString(m.AuthData)
}

// ReadType unmarshals the message body.
func (m *ClientHelloMessage) ReadType(b *Buffer) {
	m.ServerID = b.ReadString()
	m.AuthProtocol = b.ReadString()
	m.AuthData = b.ReadString()
}

// AuthAcceptMessage completes the handshake.  Hints are "key=value"
// strings the server passes to its clients.
type AuthAcceptMessage struct {
	Hints []string
}

// WriteType marshals the message body.
func (m AuthAcceptMessage) WriteType(b *Buffer) {
	b.WriteStringSeq(m.Hints)
}

// ReadType unmarshals the message body.
func (m *AuthAcceptMessage) ReadType(b *Buffer) {
	m.Hints = b.ReadStringSeq()
}
