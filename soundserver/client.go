// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import (
	"errors"

	"github.com/diffeo/go-arts/mcop"
)

// ErrNotSoundServer is returned when an object does not implement
// SimpleSoundServer.
var ErrNotSoundServer = errors.New("object is not a sound server")

// Client makes typed calls on a SimpleSoundServer object, local or
// remote.
type Client struct {
	obj mcop.Object
}

// NewClient wraps obj, which must implement SimpleSoundServer.  The
// client takes over the caller's reference.
func NewClient(obj mcop.Object) (*Client, error) {
	if !obj.IsCompatibleWith(InterfaceName) {
		return nil, ErrNotSoundServer
	}
	return &Client{obj: obj}, nil
}

// Connect finds the sound server through its global reference.
func Connect(om *mcop.ObjectManager) (*Client, error) {
	obj, err := om.Reference("global:" + GlobalName)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(obj)
	if err != nil {
		obj.Release()
		return nil, err
	}
	return c, nil
}

// Object returns the underlying object.
func (c *Client) Object() mcop.Object {
	return c.obj
}

// Release drops the client's reference on the server.
func (c *Client) Release() {
	c.obj.Release()
}

func (c *Client) call(method mcop.MethodDef, args func(*mcop.Buffer), read func(*mcop.Buffer)) error {
	result, err := c.obj.Invoke(method, args)
	if err != nil {
		return err
	}
	if read != nil {
		read(result)
		if result.ReadError() {
			return mcop.ErrBadReply
		}
	}
	return nil
}

func (c *Client) callLong(method mcop.MethodDef, args func(*mcop.Buffer)) (int32, error) {
	var v int32
	err := c.call(method, args, func(b *mcop.Buffer) { v = b.ReadLong() })
	return v, err
}

func (c *Client) callFloat(method mcop.MethodDef) (float32, error) {
	var v float32
	err := c.call(method, nil, func(b *mcop.Buffer) { v = b.ReadFloat() })
	return v, err
}

// Play asks the server to play a WAV file, named by a path on the
// server's machine.  It returns the job ID, or 0 if the server
// cannot play the file.
func (c *Client) Play(filename string) (int32, error) {
	return c.callLong(playMethod, func(b *mcop.Buffer) {
		b.WriteString(filename)
	})
}

// Stop ends a job.
func (c *Client) Stop(id int32) (bool, error) {
	var ok bool
	err := c.call(stopMethod, func(b *mcop.Buffer) {
		b.WriteLong(id)
	}, func(b *mcop.Buffer) {
		ok = b.ReadBool()
	})
	return ok, err
}

// Attach starts a stream and returns its job ID, or 0 if the format
// is not supported.
func (c *Client) Attach(samplingRate, channels, bits int32, name string) (int32, error) {
	return c.callLong(attachMethod, func(b *mcop.Buffer) {
		b.WriteLong(samplingRate)
		b.WriteLong(channels)
		b.WriteLong(bits)
		b.WriteString(name)
	})
}

// Write sends stream data.  It returns the number of bytes the
// server accepted, or -1 if the stream does not exist.
func (c *Client) Write(id int32, data []byte) (int32, error) {
	return c.callLong(writeMethod, func(b *mcop.Buffer) {
		b.WriteLong(id)
		b.WriteOctetSeq(data)
	})
}

// Detach ends a stream once its data has played.
func (c *Client) Detach(id int32) error {
	return c.call(detachMethod, func(b *mcop.Buffer) {
		b.WriteLong(id)
	}, nil)
}

// Jobs returns the IDs of the server's active jobs.
func (c *Client) Jobs() ([]int32, error) {
	var ids []int32
	err := c.call(jobsMethod, nil, func(b *mcop.Buffer) { ids = b.ReadLongSeq() })
	return ids, err
}

// ServerBufferTime returns the server's output buffer length in
// milliseconds.
func (c *Client) ServerBufferTime() (float32, error) {
	return c.callFloat(serverBufferTimeMethod)
}

// MinStreamBufferTime returns how many milliseconds of data a stream
// should keep queued.
func (c *Client) MinStreamBufferTime() (float32, error) {
	return c.callFloat(minStreamBufferTimeMethod)
}

// SamplingRate returns the server's output sampling rate.
func (c *Client) SamplingRate() (int32, error) {
	return c.callLong(samplingRateMethod, nil)
}
