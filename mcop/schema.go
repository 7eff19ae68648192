// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// ObjectInterface is the name of the interface every object
// implements.
const ObjectInterface = "Object"

// objectSchema defines the base Object interface.  The order of its
// methods fixes their method IDs on every skeleton.
const objectSchema = `
- name: Object
  methods:
    - name: _lookupMethod
      type: long
      signature: [MethodDef methodDef]
    - name: _interfaceName
      type: string
    - name: _queryInterface
      type: InterfaceDef
      signature: [string name]
    - name: _toString
      type: string
    - name: _isCompatibleWith
      type: boolean
      signature: [string interfacename]
    - name: _copyRemote
      type: void
    - name: _useRemote
      type: void
    - name: _releaseRemote
      type: void
      oneway: true
    - name: _get__flowSystem
      type: object
`

// Method IDs of the base Object methods.
const (
	MethodLookupMethod     int32 = 0
	MethodInterfaceName    int32 = 1
	MethodQueryInterface   int32 = 2
	MethodToString         int32 = 3
	MethodIsCompatibleWith int32 = 4
	MethodCopyRemote       int32 = 5
	MethodUseRemote        int32 = 6
	MethodReleaseRemote    int32 = 7
	MethodGetFlowSystem    int32 = 8
)

// ParseInterfaces decodes a YAML list of interface definitions.  Each
// entry has a name, an optional list of inherited interfaces, and
// lists of methods and attributes.  A parameter may be written either
// as a {type, name} map or as a "type name" string.
func ParseInterfaces(text []byte) ([]InterfaceDef, error) {
	var raw []interface{}
	if err := yaml.Unmarshal(text, &raw); err != nil {
		return nil, err
	}
	var defs []InterfaceDef
	config := mapstructure.DecoderConfig{
		DecodeHook: DecodeParamShorthand,
		Result:     &defs,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(stringKeyed(raw)); err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].Name == "" {
			return nil, fmt.Errorf("interface %d has no name", i)
		}
		for j := range defs[i].Methods {
			m := &defs[i].Methods[j]
			if m.Type == "" {
				m.Type = "void"
			}
			if m.Oneway {
				m.Flags = MethodOneway
			} else {
				m.Flags = MethodTwoway
			}
		}
		for j := range defs[i].Attributes {
			a := &defs[i].Attributes[j]
			if a.ReadOnly {
				a.Flags = AttributeReadOnly
			}
		}
	}
	return defs, nil
}

// DecodeParamShorthand is a mapstructure decode hook that accepts a
// "type name" string where a ParamDef is expected.
func DecodeParamShorthand(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(ParamDef{}) || from.Kind() != reflect.String {
		return data, nil
	}
	fields := strings.Fields(data.(string))
	if len(fields) != 2 {
		return nil, fmt.Errorf("parameter %q is not \"type name\"", data)
	}
	return map[string]interface{}{"type": fields[0], "name": fields[1]}, nil
}

// stringKeyed converts the map[interface{}]interface{} values yaml
// produces into string-keyed maps, recursively.
func stringKeyed(obj interface{}) interface{} {
	switch v := obj.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[fmt.Sprint(key)] = stringKeyed(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = stringKeyed(value)
		}
		return result
	}
	return obj
}

// InterfaceRepo holds the known interface definitions.  It can be
// safely accessed from multiple goroutines.
type InterfaceRepo struct {
	lock       sync.RWMutex
	interfaces map[string]InterfaceDef
}

// NewInterfaceRepo creates a repository holding the base Object
// interface.
func NewInterfaceRepo() *InterfaceRepo {
	repo := &InterfaceRepo{interfaces: make(map[string]InterfaceDef)}
	if err := repo.Load([]byte(objectSchema)); err != nil {
		panic(err)
	}
	return repo
}

// Load parses YAML interface definitions and adds them to the
// repository, replacing any existing definitions with the same names.
func (r *InterfaceRepo) Load(text []byte) error {
	defs, err := ParseInterfaces(text)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, def := range defs {
		r.interfaces[def.Name] = def
	}
	return nil
}

// Lookup finds an interface definition by name.
func (r *InterfaceRepo) Lookup(name string) (InterfaceDef, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	def, ok := r.interfaces[name]
	return def, ok
}

// IsCompatible reports whether an object implementing iface can be
// used as name: either they are the same interface, or iface
// inherits name directly or indirectly.  Every interface is
// compatible with Object.
func (r *InterfaceRepo) IsCompatible(iface, name string) bool {
	if name == ObjectInterface {
		return true
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	seen := make(map[string]bool)
	pending := []string{iface}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		if current == name {
			return true
		}
		if seen[current] {
			continue
		}
		seen[current] = true
		if def, ok := r.interfaces[current]; ok {
			pending = append(pending, def.InheritedInterfaces...)
		}
	}
	return false
}

// MethodTable returns the full ordered method list for an interface:
// the base Object methods, then the interface's own methods and
// attribute accessors, then those of each inherited interface.
func (r *InterfaceRepo) MethodTable(iface string) ([]MethodDef, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	base := r.interfaces[ObjectInterface]
	table := append([]MethodDef(nil), base.Methods...)
	seen := map[string]bool{ObjectInterface: true}
	var walk func(name string) error
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		def, ok := r.interfaces[name]
		if !ok {
			return ErrUnknownInterface{Name: name}
		}
		table = append(table, def.AllMethods()...)
		for _, parent := range def.InheritedInterfaces {
			if err := walk(parent); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(iface); err != nil {
		return nil, err
	}
	return table, nil
}
