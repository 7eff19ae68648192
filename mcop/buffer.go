// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
)

// Buffer is the MCOP marshalling container: an append-only byte
// vector with a read cursor.  All integers are big-endian.  Reads
// past the end of the buffer do not fail loudly; instead they set a
// sticky error flag, return zero values, and every later read is a
// no-op until Rewind.  Callers decode a whole message and then check
// ReadError once.
type Buffer struct {
	contents  []byte
	rpos      int
	readError bool
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFrom creates a buffer for reading that holds a copy of
// data.
func NewBufferFrom(data []byte) *Buffer {
	b := &Buffer{contents: make([]byte, len(data))}
	copy(b.contents, data)
	return b
}

// Size returns the total number of bytes written to the buffer.
func (b *Buffer) Size() int {
	return len(b.contents)
}

// Remaining returns the number of bytes not yet read.
func (b *Buffer) Remaining() int {
	return len(b.contents) - b.rpos
}

// ReadError reports whether any read has run past the end of the
// buffer or decoded an invalid length.
func (b *Buffer) ReadError() bool {
	return b.readError
}

// Rewind resets the read cursor to the start and clears the read
// error.
func (b *Buffer) Rewind() {
	b.rpos = 0
	b.readError = false
}

// Bytes returns the buffer contents.  The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.contents
}

// Write appends raw bytes.
func (b *Buffer) Write(data []byte) {
	b.contents = append(b.contents, data...)
}

// Read consumes n raw bytes.  It returns nil and sets the read error
// if fewer than n bytes remain.
func (b *Buffer) Read(n int) []byte {
	if b.readError {
		return nil
	}
	if n < 0 || n > b.Remaining() {
		b.readError = true
		return nil
	}
	data := b.contents[b.rpos : b.rpos+n]
	b.rpos += n
	return data
}

// Skip advances the read cursor by n bytes.
func (b *Buffer) Skip(n int) {
	b.Read(n)
}

// WriteBool appends a boolean as a single 0 or 1 byte.
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.contents = append(b.contents, 1)
	} else {
		b.contents = append(b.contents, 0)
	}
}

// WriteOctet appends a single MCOP "byte".
func (b *Buffer) WriteOctet(v byte) {
	b.contents = append(b.contents, v)
}

// WriteLong appends a 4-byte big-endian integer.
func (b *Buffer) WriteLong(v int32) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], uint32(v))
	b.contents = append(b.contents, data[:]...)
}

// WriteFloat appends the IEEE-754 bit pattern of v, big-endian.
func (b *Buffer) WriteFloat(v float32) {
	b.WriteLong(int32(math.Float32bits(v)))
}

// WriteString appends a string as a length (counting a trailing NUL)
// followed by the string bytes and the NUL.
func (b *Buffer) WriteString(s string) {
	b.WriteLong(int32(len(s) + 1))
	b.contents = append(b.contents, s...)
	b.contents = append(b.contents, 0)
}

// WriteBoolSeq appends a sequence of booleans.
func (b *Buffer) WriteBoolSeq(seq []bool) {
	b.WriteLong(int32(len(seq)))
	for _, v := range seq {
		b.WriteBool(v)
	}
}

// WriteOctetSeq appends a sequence of bytes.
func (b *Buffer) WriteOctetSeq(seq []byte) {
	b.WriteLong(int32(len(seq)))
	b.contents = append(b.contents, seq...)
}

// WriteLongSeq appends a sequence of integers.
func (b *Buffer) WriteLongSeq(seq []int32) {
	b.WriteLong(int32(len(seq)))
	for _, v := range seq {
		b.WriteLong(v)
	}
}

// WriteFloatSeq appends a sequence of floats.
func (b *Buffer) WriteFloatSeq(seq []float32) {
	b.WriteLong(int32(len(seq)))
	for _, v := range seq {
		b.WriteFloat(v)
	}
}

// WriteStringSeq appends a sequence of strings.
func (b *Buffer) WriteStringSeq(seq []string) {
	b.WriteLong(int32(len(seq)))
	for _, v := range seq {
		b.WriteString(v)
	}
}

// ReadBool consumes a boolean.  Any nonzero byte is true.
func (b *Buffer) ReadBool() bool {
	data := b.Read(1)
	return data != nil && data[0] != 0
}

// ReadOctet consumes a single byte.
func (b *Buffer) ReadOctet() byte {
	data := b.Read(1)
	if data == nil {
		return 0
	}
	return data[0]
}

// ReadLong consumes a 4-byte big-endian integer.
func (b *Buffer) ReadLong() int32 {
	data := b.Read(4)
	if data == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(data))
}

// ReadFloat consumes a float written by WriteFloat.
func (b *Buffer) ReadFloat() float32 {
	return math.Float32frombits(uint32(b.ReadLong()))
}

// ReadString consumes a string written by WriteString.  A zero
// length decodes as the empty string.
func (b *Buffer) ReadString() string {
	n := b.ReadLong()
	if n < 0 {
		b.readError = true
		return ""
	}
	data := b.Read(int(n))
	if len(data) == 0 {
		return ""
	}
	return string(data[:len(data)-1])
}

// readCount consumes a sequence length, failing if it is negative or
// if even one byte per element would overrun the buffer.  The result
// is safe to use as an allocation size.
func (b *Buffer) readCount() int {
	n := b.ReadLong()
	if b.readError {
		return 0
	}
	if n < 0 || int(n) > b.Remaining() {
		b.readError = true
		return 0
	}
	return int(n)
}

// ReadBoolSeq consumes a sequence of booleans.
func (b *Buffer) ReadBoolSeq() []bool {
	n := b.readCount()
	seq := make([]bool, 0, n)
	for i := 0; i < n && !b.readError; i++ {
		seq = append(seq, b.ReadBool())
	}
	return seq
}

// ReadOctetSeq consumes a sequence of bytes.  The result is a copy.
func (b *Buffer) ReadOctetSeq() []byte {
	n := b.readCount()
	data := b.Read(n)
	seq := make([]byte, len(data))
	copy(seq, data)
	return seq
}

// ReadLongSeq consumes a sequence of integers.
func (b *Buffer) ReadLongSeq() []int32 {
	n := b.readCount()
	seq := make([]int32, 0, n/4)
	for i := 0; i < n && !b.readError; i++ {
		v := b.ReadLong()
		if !b.readError {
			seq = append(seq, v)
		}
	}
	return seq
}

// ReadFloatSeq consumes a sequence of floats.
func (b *Buffer) ReadFloatSeq() []float32 {
	n := b.readCount()
	seq := make([]float32, 0, n/4)
	for i := 0; i < n && !b.readError; i++ {
		v := b.ReadFloat()
		if !b.readError {
			seq = append(seq, v)
		}
	}
	return seq
}

// ReadStringSeq consumes a sequence of strings.
func (b *Buffer) ReadStringSeq() []string {
	n := b.readCount()
	seq := make([]string, 0, n/4)
	for i := 0; i < n && !b.readError; i++ {
		v := b.ReadString()
		if !b.readError {
			seq = append(seq, v)
		}
	}
	return seq
}

// PatchLength overwrites bytes 4 through 8 with the total buffer
// size.  This is called once a message has been completely written,
// filling in the length field of its header.
func (b *Buffer) PatchLength() {
	b.PatchLong(4, int32(len(b.contents)))
}

// PatchLong overwrites the 4-byte integer at pos.  It does nothing
// if pos does not name a previously written field, so patching the
// length of a buffer without a message header is a no-op.
func (b *Buffer) PatchLong(pos int, v int32) {
	if pos < 0 || pos+4 > len(b.contents) {
		return
	}
	binary.BigEndian.PutUint32(b.contents[pos:pos+4], uint32(v))
}

// ToString encodes the buffer contents as "name:hex".
func (b *Buffer) ToString(name string) string {
	return name + ":" + hex.EncodeToString(b.contents)
}

// FromString replaces the buffer contents with the decoding of a
// string produced by ToString with the same name.  It returns false,
// leaving the buffer unchanged, if the prefix does not match or the
// hex part is malformed.
func (b *Buffer) FromString(data, name string) bool {
	prefix := name + ":"
	if !strings.HasPrefix(data, prefix) {
		return false
	}
	contents, err := hex.DecodeString(data[len(prefix):])
	if err != nil {
		return false
	}
	b.contents = contents
	b.rpos = 0
	b.readError = false
	return true
}
