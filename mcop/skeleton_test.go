// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"testing"
	"time"

	"github.com/diffeo/go-arts/iomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNode struct {
	detached int
}

func (n *countingNode) Detach() {
	n.detached++
}

func TestSkeletonLocalCalls(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, e := newEcho(t, d)

	assert.Equal(t, "Echo", s.InterfaceName())
	assert.True(t, s.IsCompatibleWith("Named"))
	assert.False(t, s.IsCompatibleWith("Other"))
	assert.Nil(t, s.FlowSystem())
	assert.False(t, s.Error())
	assert.Equal(t, d.ServerID(), s.Reference().ServerID)
	assert.Equal(t, s, d.Object(s.ID()))

	reply, err := echoString(s, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	result, err := s.Invoke(addMethod, func(b *Buffer) {
		b.WriteLong(2)
		b.WriteLong(40)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.ReadLong())

	result, err = s.Invoke(pokeMethod, func(b *Buffer) {
		b.WriteLong(7)
	})
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []int32{7}, e.pokes)

	_, err = s.Invoke(MethodDef{Name: "missing", Type: "void"}, nil)
	assert.Equal(t, ErrNoSuchMethod, err)
}

func TestSkeletonMissingImplementation(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	require.NoError(t, d.Repository().Load([]byte(testSchema)))
	_, err := d.NewSkeleton("Named", nil, map[string]MethodFunc{
		"_get_title": func(req, res *Buffer) {},
	})
	assert.Equal(t, ErrMissingMethod{Interface: "Named", Method: "_set_title"}, err)
	assert.Empty(t, d.Objects())

	_, err = d.NewSkeleton("Nothing", nil, nil)
	assert.Equal(t, ErrUnknownInterface{Name: "Nothing"}, err)
}

func TestSkeletonBaseMethodIDs(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, _ := newEcho(t, d)
	res := NewBuffer()
	assert.True(t, s.dispatch(MethodInterfaceName, NewBuffer(), res))
	assert.Equal(t, "Echo", res.ReadString())

	req := NewBuffer()
	echoMethod.WriteType(req)
	res = NewBuffer()
	assert.True(t, s.dispatch(MethodLookupMethod, req, res))
	assert.Equal(t, MethodGetFlowSystem+1, res.ReadLong())

	req = NewBuffer()
	req.WriteString("Named")
	res = NewBuffer()
	assert.True(t, s.dispatch(MethodIsCompatibleWith, req, res))
	assert.True(t, res.ReadBool())

	assert.False(t, s.dispatch(100, NewBuffer(), NewBuffer()))
	assert.False(t, s.dispatch(-1, NewBuffer(), NewBuffer()))
}

func TestSkeletonSlotReuse(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	a, _ := newEcho(t, d)
	b, _ := newEcho(t, d)
	assert.Equal(t, int32(0), a.ID())
	assert.Equal(t, int32(1), b.ID())

	a.Release()
	assert.True(t, a.Destroyed())
	assert.Nil(t, d.Object(0))

	c, _ := newEcho(t, d)
	assert.Equal(t, int32(0), c.ID())
	assert.Equal(t, c, d.Object(0))
	assert.Len(t, d.Objects(), 2)
}

func TestSkeletonDestroy(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, e := newEcho(t, d)
	node := &countingNode{}
	s.SetScheduleNode(node)

	s.Ref()
	s.Release()
	assert.False(t, s.Destroyed())
	s.Release()
	assert.True(t, s.Destroyed())
	assert.True(t, e.destroyed)
	assert.Equal(t, 1, node.detached)

	// Further releases do nothing.
	s.Release()
	assert.Equal(t, 1, node.detached)
	_, err := s.Invoke(echoMethod, nil)
	assert.Equal(t, ErrNoSuchObject{ID: s.ID()}, err)
}

func TestSkeletonReferenceClean(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, e := newEcho(t, d)

	// A reference written but never read keeps the object alive
	// through one sweep, not two.
	d.WriteObject(NewBuffer(), s)
	assert.Equal(t, 1, s.RemoteSendCount())
	s.Release()
	assert.False(t, s.Destroyed())

	d.ReferenceClean()
	assert.False(t, s.Destroyed())
	assert.Equal(t, 1, s.RemoteSendCount())

	d.ReferenceClean()
	assert.True(t, s.Destroyed())
	assert.True(t, e.destroyed)
	assert.Equal(t, 0, s.RemoteSendCount())
}

func TestSkeletonReferenceCleanRenewed(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, _ := newEcho(t, d)
	defer s.Release()

	d.WriteObject(NewBuffer(), s)
	d.ReferenceClean()
	d.WriteObject(NewBuffer(), s)
	d.ReferenceClean()
	assert.Equal(t, 2, s.RemoteSendCount())
	d.ReferenceClean()
	assert.Equal(t, 0, s.RemoteSendCount())
	assert.False(t, s.Destroyed())
}

func TestSkeletonLocalReferenceRoundTrip(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, _ := newEcho(t, d)

	b := NewBuffer()
	d.WriteObject(b, s)
	obj, err := d.ReadObject(b)
	require.NoError(t, err)
	assert.Equal(t, s, obj)
	assert.Equal(t, 2, s.RefCount())
	assert.Equal(t, 0, s.RemoteSendCount())

	obj.Release()
	assert.Equal(t, 1, s.RefCount())

	str := d.ObjectToString(s)
	obj, err = d.StringToObject(str)
	require.NoError(t, err)
	assert.Equal(t, s, obj)
	obj.Release()

	b = NewBuffer()
	d.WriteObject(b, nil)
	obj, err = d.ReadObject(b)
	assert.NoError(t, err)
	assert.Nil(t, obj)
	assert.Equal(t, NullReference().String(), d.ObjectToString(nil))

	_, err = d.ObjectFromReference(NullReference())
	assert.Equal(t, ErrNullReference, err)
	_, err = d.ObjectFromReference(ObjectReference{ServerID: d.ServerID(), ObjectID: 99})
	assert.Equal(t, ErrNoSuchObject{ID: 99}, err)
}

func TestSkeletonDelayedReturnLocal(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	s, e := newEcho(t, d)
	defer s.Release()

	finish := iomanager.TimeFunc(func() {
		if e.later != nil {
			e.later.Return(func(b *Buffer) {
				b.WriteLong(42)
			})
		}
	})
	d.IOManager().AddTimer(5*time.Millisecond, finish)
	defer d.IOManager().RemoveTimer(finish)

	result, err := s.Invoke(laterMethod, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(42), result.ReadLong())
	assert.Nil(t, d.DelayReturn())
}
