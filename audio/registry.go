// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import (
	"errors"
	"strings"

	"github.com/diffeo/go-arts/iomanager"
	"github.com/sirupsen/logrus"
)

// Env is what a driver receives from the subsystem that runs it.
type Env struct {
	// IOManager is the event loop the subsystem runs on.  Drivers
	// without a selectable descriptor use its clock and timers.
	IOManager iomanager.IOManager

	// Logger receives driver diagnostics.
	Logger logrus.FieldLogger

	// Notify tells the subsystem the driver is ready for the given
	// I/O.  Drivers with a selectable descriptor need not call it.
	Notify func(types iomanager.IOType)
}

// Factory describes a driver.
type Factory struct {
	// Name is the short name used to select the driver.
	Name string

	// FullName describes the driver.
	FullName string

	// AutoDetect scores how much the driver should be preferred
	// when none is named; zero means never pick it automatically.
	AutoDetect int

	// New creates an unopened driver.
	New func(env Env) AudioIO
}

// Registry holds the available drivers.
type Registry struct {
	factories []Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry creates a registry holding the built-in drivers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add(NullFactory)
	r.Add(WavFactory)
	return r
}

// Add registers a driver, replacing any driver with the same name.
func (r *Registry) Add(f Factory) {
	for i, existing := range r.factories {
		if existing.Name == f.Name {
			r.factories[i] = f
			return
		}
	}
	r.factories = append(r.factories, f)
}

// Factories returns the registered drivers in registration order.
func (r *Registry) Factories() []Factory {
	return append([]Factory(nil), r.factories...)
}

// Lookup finds a driver by name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	for _, f := range r.factories {
		if f.Name == name {
			return f, true
		}
	}
	return Factory{}, false
}

// Create makes a new driver by name.
func (r *Registry) Create(name string, env Env) (AudioIO, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, ErrUnknownMethod{Name: name}
	}
	return f.New(env), nil
}

// AutoDetect returns the name of the driver with the highest positive
// score, the earliest registered winning ties, or "" if there is
// none.
func (r *Registry) AutoDetect() string {
	best, name := 0, ""
	for _, f := range r.factories {
		if f.AutoDetect > best {
			best, name = f.AutoDetect, f.Name
		}
	}
	return name
}

// Method names a driver and, optionally, the device it should open.
// This implements the flag.Value interface, and so a typical use is
//
//     method := audio.Method{}
//     flag.Var(&method, "a", "audio I/O method[:device]")
//     flag.Parse()
//
// An empty Name asks the subsystem to auto-detect the driver.
type Method struct {
	// Name holds the driver name; for instance, "null".
	Name string

	// Device holds a driver-specific device, such as the output
	// file of the wav driver.
	Device string
}

// String renders a method as "name" or "name:device".
func (m *Method) String() string {
	if m.Device == "" {
		return m.Name
	}
	return m.Name + ":" + m.Device
}

// Set parses a string of the form "name" or "name:device" into an
// existing method.  It does not check that the driver exists, since
// the registry is not known yet when flags are parsed.
//
// This is part of the flag.Value interface.
func (m *Method) Set(param string) error {
	parts := strings.SplitN(param, ":", 2)
	if parts[0] == "" {
		return errors.New("must specify an audio I/O method")
	}
	m.Name = parts[0]
	m.Device = ""
	if len(parts) == 2 {
		m.Device = parts[1]
	}
	return nil
}
