// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTmpGlobalComm(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mcop")
	gc, err := NewTmpGlobalComm(dir)
	require.NoError(t, err)

	assert.Equal(t, "", gc.Get("Arts_SoundServer"))
	assert.True(t, gc.Put("Arts_SoundServer", "MCOP-Object:00"))
	assert.False(t, gc.Put("Arts_SoundServer", "MCOP-Object:01"))
	assert.Equal(t, "MCOP-Object:00", gc.Get("Arts_SoundServer"))

	gc.Erase("Arts_SoundServer")
	assert.Equal(t, "", gc.Get("Arts_SoundServer"))
	assert.True(t, gc.Put("Arts_SoundServer", "MCOP-Object:01"))

	assert.False(t, gc.Put("../escape", "x"))
	assert.False(t, gc.Put("", "x"))
	assert.False(t, gc.Put(cookieFile, "x"))
}

func TestObjectManagerGlobals(t *testing.T) {
	dir := t.TempDir()
	d := newTestDispatcher(t, dir)
	gc, err := NewTmpGlobalComm(dir)
	require.NoError(t, err)
	om := NewObjectManager(d, gc)
	s, _ := newEcho(t, d)

	assert.True(t, om.AddGlobalReference(s, "Echo_Global"))
	assert.False(t, om.AddGlobalReference(s, "Echo_Global"))
	assert.Equal(t, 2, s.RefCount())
	assert.Equal(t, []string{"Echo_Global"}, om.GlobalNames())
	assert.Equal(t, s.ToString(), gc.Get("Echo_Global"))

	obj, err := om.Reference("global:Echo_Global")
	require.NoError(t, err)
	assert.Equal(t, s, obj)
	obj.Release()

	obj, err = om.Reference(s.ToString())
	require.NoError(t, err)
	assert.Equal(t, s, obj)
	obj.Release()

	_, err = om.Reference("global:Missing")
	assert.Equal(t, ErrNullReference, err)
	_, err = om.Reference("garbage")
	assert.Equal(t, ErrBadReference, err)

	om.RemoveGlobalReferences()
	assert.Empty(t, om.GlobalNames())
	assert.Equal(t, "", gc.Get("Echo_Global"))
	assert.Equal(t, 1, s.RefCount())
	s.Release()
	assert.True(t, s.Destroyed())
}

func TestObjectManagerFactories(t *testing.T) {
	d := newTestDispatcher(t, t.TempDir())
	om := NewObjectManager(d, nil)
	_, err := om.Create("Echo")
	assert.Equal(t, ErrNoFactory{Interface: "Echo"}, err)

	om.RegisterFactory("Echo", func() (Object, error) {
		s, _ := newEcho(t, d)
		return s, nil
	})
	obj, err := om.Create("Echo")
	require.NoError(t, err)
	assert.Equal(t, "Echo", obj.InterfaceName())
	obj.Release()
}
