// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package pipebuffer provides a segmented byte FIFO.
//
// A PipeBuffer holds a list of segments, each an owned copy of one
// Write call's data.  Reads consume from the front segment and drop
// segments as soon as they are used up, so a long-running stream
// never accumulates consumed data.  A PipeBuffer is not safe for
// concurrent use.
package pipebuffer

import (
	"container/list"
	"io"
)

type segment struct {
	data []byte
	pos  int
}

func (s *segment) remaining() int {
	return len(s.data) - s.pos
}

// PipeBuffer is a FIFO of bytes.  The zero value is an empty buffer.
type PipeBuffer struct {
	segments list.List
	size     int
}

// New creates an empty buffer.
func New() *PipeBuffer {
	return &PipeBuffer{}
}

// Size returns the number of bytes waiting to be read.
func (p *PipeBuffer) Size() int {
	return p.size
}

// Write appends a copy of data.  It always consumes all of data.
func (p *PipeBuffer) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	seg := &segment{data: make([]byte, len(data))}
	copy(seg.data, data)
	p.segments.PushBack(seg)
	p.size += len(data)
	return len(data), nil
}

// Peek copies up to len(dst) bytes from the front of the buffer
// without consuming them, and returns the number copied.
func (p *PipeBuffer) Peek(dst []byte) int {
	n := 0
	for e := p.segments.Front(); e != nil && n < len(dst); e = e.Next() {
		seg := e.Value.(*segment)
		n += copy(dst[n:], seg.data[seg.pos:])
	}
	return n
}

// Skip discards up to n bytes from the front of the buffer and
// returns the number discarded.
func (p *PipeBuffer) Skip(n int) int {
	return p.consume(nil, n)
}

// Read consumes up to len(dst) bytes into dst.  It returns io.EOF only
// when the buffer is empty and dst is not.
func (p *PipeBuffer) Read(dst []byte) (int, error) {
	if len(dst) > 0 && p.size == 0 {
		return 0, io.EOF
	}
	return p.consume(dst, len(dst)), nil
}

// consume removes up to n bytes, copying them into dst if it is not
// nil.
func (p *PipeBuffer) consume(dst []byte, n int) int {
	done := 0
	for done < n {
		front := p.segments.Front()
		if front == nil {
			break
		}
		seg := front.Value.(*segment)
		count := seg.remaining()
		if count > n-done {
			count = n - done
		}
		if dst != nil {
			copy(dst[done:], seg.data[seg.pos:seg.pos+count])
		}
		seg.pos += count
		done += count
		if seg.remaining() == 0 {
			p.segments.Remove(front)
		}
	}
	p.size -= done
	return done
}

// Clear discards everything in the buffer.
func (p *PipeBuffer) Clear() {
	p.segments.Init()
	p.size = 0
}
