// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"encoding/binary"
	"fmt"
)

// ConnectionState tracks a connection's progress through the
// handshake.
type ConnectionState int

// Handshake states.  The accepting side starts in
// StateExpectClientHello after sending its hello; the connecting side
// starts in StateExpectServerHello.
const (
	StateUnknown ConnectionState = iota
	StateExpectServerHello
	StateExpectClientHello
	StateExpectAuthAccept
	StateEstablished
)

func (s ConnectionState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateExpectServerHello:
		return "expectServerHello"
	case StateExpectClientHello:
		return "expectClientHello"
	case StateExpectAuthAccept:
		return "expectAuthAccept"
	case StateEstablished:
		return "established"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// MessageHandler receives what a Connection decodes from its byte
// stream.
type MessageHandler interface {
	// HandleMessage is called once per complete message.  body
	// holds the message without its header.
	HandleMessage(conn *Connection, body *Buffer, t MessageType)

	// HandleCorrupt is called once per header with a bad magic
	// number.
	HandleCorrupt(conn *Connection)
}

// Transport carries a connection's outbound bytes.
type Transport interface {
	// Send queues data for delivery to the peer.
	Send(data []byte) error

	// Close shuts down the transport.
	Close() error

	// String describes the peer for log messages.
	String() string
}

// Connection frames the byte stream exchanged with one peer into
// MCOP messages.  Input arrives through Receive in arbitrarily sized
// chunks.  Unconsumed input is kept on the Connection itself, so if a
// message handler re-enters the event loop and more data arrives for
// this connection, messages are still handled in arrival order.
type Connection struct {
	id        uint64
	handler   MessageHandler
	transport Transport
	state     ConnectionState
	serverID  string
	authSeed  string
	hints     []string
	refCnt    int
	broken    bool

	input       []byte
	haveHeader  bool
	messageType MessageType
	remaining   int
}

// NewConnection creates a connection in StateUnknown delivering its
// messages to handler.  transport may be nil for a connection that
// never sends.
func NewConnection(handler MessageHandler, transport Transport) *Connection {
	return &Connection{
		handler:   handler,
		transport: transport,
		refCnt:    1,
	}
}

// ID returns the dispatcher-assigned connection number.
func (c *Connection) ID() uint64 {
	return c.id
}

// State returns the handshake state.
func (c *Connection) State() ConnectionState {
	return c.state
}

// SetState changes the handshake state.
func (c *Connection) SetState(state ConnectionState) {
	c.state = state
}

// ServerID returns the peer's server ID once the handshake has told
// us.
func (c *Connection) ServerID() string {
	return c.serverID
}

// Hints returns the hints the peer sent on accepting us.
func (c *Connection) Hints() []string {
	return c.hints
}

// Broken reports whether the connection has been dropped.
func (c *Connection) Broken() bool {
	return c.broken
}

// RefCount returns the number of holders of the connection.
func (c *Connection) RefCount() int {
	return c.refCnt
}

// Ref adds a holder.
func (c *Connection) Ref() {
	c.refCnt++
}

// Release drops a holder.  The transport is closed when the last
// holder lets go.
func (c *Connection) Release() {
	c.refCnt--
	if c.refCnt == 0 {
		c.Drop()
	}
}

// Drop marks the connection broken and closes its transport.  Further
// sends and receives are ignored.
func (c *Connection) Drop() {
	if c.broken {
		return
	}
	c.broken = true
	c.input = nil
	if c.transport != nil {
		c.transport.Close()
	}
}

func (c *Connection) String() string {
	if c.transport != nil {
		return fmt.Sprintf("connection %d (%v)", c.id, c.transport)
	}
	return fmt.Sprintf("connection %d", c.id)
}

// Send transmits a complete message.  The message's length field
// must already be patched.
func (c *Connection) Send(b *Buffer) error {
	if c.broken || c.transport == nil {
		return ErrConnectionBroken
	}
	return c.transport.Send(b.Bytes())
}

func (c *Connection) resetReceive() {
	c.haveHeader = false
	c.messageType = 0
	c.remaining = 0
}

// Receive consumes a chunk of input, calling the handler for each
// message it completes.
func (c *Connection) Receive(data []byte) {
	if c.broken {
		return
	}
	c.input = append(c.input, data...)
	for !c.broken {
		if !c.haveHeader {
			if len(c.input) < HeaderSize {
				break
			}
			magic := binary.BigEndian.Uint32(c.input[0:4])
			length := int32(binary.BigEndian.Uint32(c.input[4:8]))
			messageType := MessageType(binary.BigEndian.Uint32(c.input[8:12]))
			c.input = c.input[HeaderSize:]
			if magic != Magic {
				c.resetReceive()
				c.handler.HandleCorrupt(c)
				continue
			}
			remaining := int(length) - HeaderSize
			if c.state != StateEstablished {
				// Unauthenticated peers cannot make us
				// buffer large messages.
				if remaining >= MaxUnauthenticatedBody || remaining < 0 {
					remaining = 0
				}
			} else if remaining < 0 {
				c.resetReceive()
				c.handler.HandleCorrupt(c)
				continue
			}
			c.haveHeader = true
			c.messageType = messageType
			c.remaining = remaining
		}
		if len(c.input) < c.remaining {
			break
		}
		body := NewBufferFrom(c.input[:c.remaining])
		c.input = c.input[c.remaining:]
		messageType := c.messageType
		// Reset before handling, since the handler may cause
		// more input to be received.
		c.resetReceive()
		c.handler.HandleMessage(c, body, messageType)
	}
	if len(c.input) == 0 {
		c.input = nil
	}
}
