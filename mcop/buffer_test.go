// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferScalars(t *testing.T) {
	b := NewBuffer()
	b.WriteBool(true)
	b.WriteBool(false)
	b.WriteOctet(0)
	b.WriteOctet(255)
	b.WriteLong(0)
	b.WriteLong(-1)
	b.WriteLong(math.MinInt32)
	b.WriteLong(math.MaxInt32)
	b.WriteFloat(3.25)
	b.WriteFloat(float32(math.Inf(-1)))
	b.WriteString("")
	b.WriteString("hello")

	assert.True(t, b.ReadBool())
	assert.False(t, b.ReadBool())
	assert.Equal(t, byte(0), b.ReadOctet())
	assert.Equal(t, byte(255), b.ReadOctet())
	assert.Equal(t, int32(0), b.ReadLong())
	assert.Equal(t, int32(-1), b.ReadLong())
	assert.Equal(t, int32(math.MinInt32), b.ReadLong())
	assert.Equal(t, int32(math.MaxInt32), b.ReadLong())
	assert.Equal(t, float32(3.25), b.ReadFloat())
	assert.True(t, math.IsInf(float64(b.ReadFloat()), -1))
	assert.Equal(t, "", b.ReadString())
	assert.Equal(t, "hello", b.ReadString())
	assert.Equal(t, 0, b.Remaining())
	assert.False(t, b.ReadError())
}

func TestBufferWireFormat(t *testing.T) {
	b := NewBuffer()
	b.WriteLong(0x01020304)
	b.WriteString("ab")
	b.WriteFloat(1.0)
	assert.Equal(t, []byte{
		1, 2, 3, 4,
		0, 0, 0, 3, 'a', 'b', 0,
		0x3f, 0x80, 0, 0,
	}, b.Bytes())
}

func TestBufferSequences(t *testing.T) {
	b := NewBuffer()
	b.WriteBoolSeq([]bool{true, false, true})
	b.WriteOctetSeq([]byte{1, 2, 3})
	b.WriteLongSeq([]int32{math.MinInt32, 0, math.MaxInt32})
	b.WriteFloatSeq([]float32{-0.5, 2})
	b.WriteStringSeq([]string{"", "x", "yz"})
	b.WriteStringSeq(nil)
	b.WriteOctetSeq(nil)

	assert.Equal(t, []bool{true, false, true}, b.ReadBoolSeq())
	assert.Equal(t, []byte{1, 2, 3}, b.ReadOctetSeq())
	assert.Equal(t, []int32{math.MinInt32, 0, math.MaxInt32}, b.ReadLongSeq())
	assert.Equal(t, []float32{-0.5, 2}, b.ReadFloatSeq())
	assert.Equal(t, []string{"", "x", "yz"}, b.ReadStringSeq())
	assert.Empty(t, b.ReadStringSeq())
	assert.Empty(t, b.ReadOctetSeq())
	assert.False(t, b.ReadError())
}

func TestBufferUnderrun(t *testing.T) {
	b := NewBuffer()
	b.WriteOctet(7)
	b.WriteOctet(8)
	assert.Equal(t, int32(0), b.ReadLong())
	assert.True(t, b.ReadError())

	// The error is sticky even though a byte would fit.
	assert.Equal(t, byte(0), b.ReadOctet())
	assert.True(t, b.ReadError())

	b.Rewind()
	assert.False(t, b.ReadError())
	assert.Equal(t, byte(7), b.ReadOctet())
}

func TestBufferBadLengths(t *testing.T) {
	b := NewBuffer()
	b.WriteLong(-5)
	assert.Equal(t, "", b.ReadString())
	assert.True(t, b.ReadError())

	b = NewBuffer()
	b.WriteLong(1000000)
	b.WriteLong(1)
	assert.Empty(t, b.ReadLongSeq())
	assert.True(t, b.ReadError())

	b = NewBuffer()
	b.WriteLong(10)
	b.Write([]byte("abc"))
	assert.Equal(t, "", b.ReadString())
	assert.True(t, b.ReadError())
}

func TestBufferPatch(t *testing.T) {
	b := NewMessage(Return)
	b.WriteLong(0)
	b.WriteString("result")
	b.PatchLength()
	b.PatchLong(12, 42)

	var h Header
	h.ReadType(b)
	assert.Equal(t, int32(Magic), h.Magic)
	assert.Equal(t, int32(b.Size()), h.MessageLength)
	assert.Equal(t, Return, h.MessageType)
	assert.Equal(t, int32(42), b.ReadLong())
	assert.Equal(t, "result", b.ReadString())
}

func TestBufferPatchOutOfRange(t *testing.T) {
	b := NewBuffer()
	assert.NotPanics(t, b.PatchLength)
	assert.Equal(t, 0, b.Size())

	b.WriteLong(7)
	b.WriteOctet(1)
	before := b.ToString("Patch")
	assert.NotPanics(t, func() {
		b.PatchLength()
		b.PatchLong(2, 9)
		b.PatchLong(-1, 9)
	})
	assert.Equal(t, before, b.ToString("Patch"))
	assert.Equal(t, 5, b.Size())
	assert.Equal(t, int32(7), b.ReadLong())
}

func TestBufferHexString(t *testing.T) {
	b := NewBuffer()
	b.WriteLong(0x0a0b0c0d)
	s := b.ToString("Test")
	assert.Equal(t, "Test:0a0b0c0d", s)

	c := NewBuffer()
	assert.False(t, c.FromString(s, "Other"))
	assert.False(t, c.FromString("Test:xyz", "Test"))
	if assert.True(t, c.FromString(s, "Test")) {
		assert.Equal(t, int32(0x0a0b0c0d), c.ReadLong())
	}
}

func TestObjectReferenceString(t *testing.T) {
	ref := ObjectReference{
		ServerID: "server",
		ObjectID: 17,
		URLs:     []string{"unix:/tmp/mcop-x/sock", "tcp:host:1234"},
	}
	s := ref.String()
	assert.Contains(t, s, "MCOP-Object:")
	parsed, err := ParseObjectReference(s)
	if assert.NoError(t, err) {
		assert.Equal(t, ref, parsed)
	}

	_, err = ParseObjectReference("MCOP-Object:00")
	assert.Equal(t, ErrBadReference, err)
	_, err = ParseObjectReference("global:Arts_SimpleSoundServer")
	assert.Equal(t, ErrBadReference, err)

	assert.True(t, NullReference().IsNull())
	assert.False(t, ref.IsNull())
}

func TestMethodDefWire(t *testing.T) {
	def := MethodDef{
		Name:  "play",
		Type:  "long",
		Flags: MethodTwoway,
		Signature: []ParamDef{
			{Type: "string", Name: "filename"},
		},
	}
	b := NewBuffer()
	def.WriteType(b)
	var got MethodDef
	got.ReadType(b)
	assert.False(t, b.ReadError())
	assert.Equal(t, def, got)
	assert.True(t, def.Matches(MethodDef{
		Name:      "play",
		Type:      "long",
		Signature: []ParamDef{{Type: "string", Name: "other"}},
	}))
	assert.False(t, def.Matches(MethodDef{Name: "play", Type: "long"}))
	assert.Equal(t, "play(string)->long", def.Key())
}
