// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
- name: Named
  attributes:
    - {name: title, type: string}
    - {name: id, type: long, readonly: true}
- name: Echo
  inherits: [Named]
  methods:
    - name: echo
      type: string
      signature: [string message]
    - name: add
      type: long
      signature:
        - {type: long, name: a}
        - {type: long, name: b}
    - name: poke
      signature: [long value]
      oneway: true
    - name: later
      type: long
`

func TestParseInterfaces(t *testing.T) {
	defs, err := ParseInterfaces([]byte(testSchema))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	echo := defs[1]
	assert.Equal(t, "Echo", echo.Name)
	assert.Equal(t, []string{"Named"}, echo.InheritedInterfaces)
	require.Len(t, echo.Methods, 4)
	assert.Equal(t, "echo(string)->string", echo.Methods[0].Key())
	assert.Equal(t, []ParamDef{{Type: "long", Name: "a"}, {Type: "long", Name: "b"}}, echo.Methods[1].Signature)
	assert.Equal(t, "void", echo.Methods[2].Type)
	assert.True(t, echo.Methods[2].IsOneway())
	assert.False(t, echo.Methods[3].IsOneway())

	named := defs[0]
	var names []string
	for _, m := range named.AllMethods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"_get_title", "_set_title", "_get_id"}, names)
}

func TestParseInterfacesErrors(t *testing.T) {
	_, err := ParseInterfaces([]byte("- methods: []"))
	assert.Error(t, err)
	_, err = ParseInterfaces([]byte("- name: X\n  methods:\n    - name: m\n      signature: [justone]\n"))
	assert.Error(t, err)
	_, err = ParseInterfaces([]byte("{not a list"))
	assert.Error(t, err)
}

func TestInterfaceRepo(t *testing.T) {
	repo := NewInterfaceRepo()
	require.NoError(t, repo.Load([]byte(testSchema)))

	assert.True(t, repo.IsCompatible("Echo", "Echo"))
	assert.True(t, repo.IsCompatible("Echo", "Named"))
	assert.True(t, repo.IsCompatible("Echo", ObjectInterface))
	assert.False(t, repo.IsCompatible("Named", "Echo"))

	table, err := repo.MethodTable("Echo")
	require.NoError(t, err)
	assert.Equal(t, "_lookupMethod", table[MethodLookupMethod].Name)
	assert.Equal(t, "_interfaceName", table[MethodInterfaceName].Name)
	assert.Equal(t, "_releaseRemote", table[MethodReleaseRemote].Name)
	assert.True(t, table[MethodReleaseRemote].IsOneway())
	assert.Equal(t, "_get__flowSystem", table[MethodGetFlowSystem].Name)
	assert.Equal(t, "echo", table[MethodGetFlowSystem+1].Name)
	assert.Len(t, table, 9+4+3)

	_, err = repo.MethodTable("Missing")
	assert.Equal(t, ErrUnknownInterface{Name: "Missing"}, err)
}
