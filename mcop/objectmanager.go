// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import (
	"sort"
	"strings"
)

// globalPrefix marks a reference spec naming a global reference.
const globalPrefix = "global:"

// Factory creates a new object.  The caller owns one reference on
// the result.
type Factory func() (Object, error)

// ObjectManager creates objects by interface name and publishes
// objects under global names.
type ObjectManager struct {
	d          *Dispatcher
	globalComm GlobalComm
	factories  map[string]Factory
	globals    map[string]Object
}

// NewObjectManager creates an object manager publishing names through
// globalComm.
func NewObjectManager(d *Dispatcher, globalComm GlobalComm) *ObjectManager {
	return &ObjectManager{
		d:          d,
		globalComm: globalComm,
		factories:  make(map[string]Factory),
		globals:    make(map[string]Object),
	}
}

// GlobalComm returns the naming service.
func (om *ObjectManager) GlobalComm() GlobalComm {
	return om.globalComm
}

// RegisterFactory makes Create able to build objects of iface.
func (om *ObjectManager) RegisterFactory(iface string, f Factory) {
	om.factories[iface] = f
}

// Create builds a new object of the given interface.
func (om *ObjectManager) Create(iface string) (Object, error) {
	f, ok := om.factories[iface]
	if !ok {
		return nil, ErrNoFactory{Interface: iface}
	}
	return f()
}

// AddGlobalReference publishes obj under name and keeps a reference
// on it until RemoveGlobalReferences.  It returns false if the name
// is already taken.
func (om *ObjectManager) AddGlobalReference(obj Object, name string) bool {
	if !om.globalComm.Put(name, obj.ToString()) {
		return false
	}
	om.globals[name] = obj.Ref()
	return true
}

// GlobalNames returns the names this manager has published.
func (om *ObjectManager) GlobalNames() []string {
	names := make([]string, 0, len(om.globals))
	for name := range om.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveGlobalReferences withdraws every name this manager published
// and drops the references it held.
func (om *ObjectManager) RemoveGlobalReferences() {
	for name, obj := range om.globals {
		om.globalComm.Erase(name)
		obj.Release()
	}
	om.globals = make(map[string]Object)
}

// Reference resolves a reference spec: either "global:<name>", looked
// up through the naming service, or an "MCOP-Object:" string.  The
// caller owns one reference on the result.
func (om *ObjectManager) Reference(spec string) (Object, error) {
	if strings.HasPrefix(spec, globalPrefix) {
		value := om.globalComm.Get(strings.TrimPrefix(spec, globalPrefix))
		if value == "" {
			return nil, ErrNullReference
		}
		spec = value
	}
	return om.d.StringToObject(spec)
}
