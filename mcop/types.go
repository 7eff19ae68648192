// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import "strings"

// MethodFlags describe how a method is invoked.
type MethodFlags int32

// Method invocation styles.  A oneway method sends no reply.
const (
	MethodOneway MethodFlags = 1
	MethodTwoway MethodFlags = 2
)

// AttributeFlags describe an interface attribute.
type AttributeFlags int32

// AttributeReadOnly attributes get no setter.
const AttributeReadOnly AttributeFlags = 1

// ParamDef describes one method parameter.
type ParamDef struct {
	Type string `mapstructure:"type"`
	Name string `mapstructure:"name"`
}

// WriteType marshals the parameter definition.
func (p ParamDef) WriteType(b *Buffer) {
	b.WriteString(p.Type)
	b.WriteString(p.Name)
}

// ReadType unmarshals the parameter definition.
func (p *ParamDef) ReadType(b *Buffer) {
	p.Type = b.ReadString()
	p.Name = b.ReadString()
}

// MethodDef describes one method of an interface.  Two definitions
// name the same method if their names, return types, and parameter
// types agree; parameter names do not matter.
type MethodDef struct {
	Name      string      `mapstructure:"name"`
	Type      string      `mapstructure:"type"`
	Flags     MethodFlags `mapstructure:"-"`
	Oneway    bool        `mapstructure:"oneway"`
	Signature []ParamDef  `mapstructure:"signature"`
}

// IsOneway reports whether the method is invoked without a reply.
func (m MethodDef) IsOneway() bool {
	return m.Flags&MethodOneway != 0
}

// Key returns a string identifying the method for lookup and
// caching, such as "play(string)->long".
func (m MethodDef) Key() string {
	types := make([]string, len(m.Signature))
	for i, p := range m.Signature {
		types[i] = p.Type
	}
	return m.Name + "(" + strings.Join(types, ",") + ")->" + m.Type
}

// Matches reports whether other names the same method.
func (m MethodDef) Matches(other MethodDef) bool {
	if m.Name != other.Name || m.Type != other.Type || len(m.Signature) != len(other.Signature) {
		return false
	}
	for i := range m.Signature {
		if m.Signature[i].Type != other.Signature[i].Type {
			return false
		}
	}
	return true
}

// WriteType marshals the method definition.
func (m MethodDef) WriteType(b *Buffer) {
	b.WriteString(m.Name)
	b.WriteString(m.Type)
	b.WriteLong(int32(m.Flags))
	b.WriteLong(int32(len(m.Signature)))
	for _, p := range m.Signature {
		p.WriteType(b)
	}
}

// ReadType unmarshals the method definition.
func (m *MethodDef) ReadType(b *Buffer) {
	m.Name = b.ReadString()
	m.Type = b.ReadString()
	m.Flags = MethodFlags(b.ReadLong())
	m.Oneway = m.Flags&MethodOneway != 0
	n := b.readCount()
	m.Signature = make([]ParamDef, 0, n/8)
	for i := 0; i < n && !b.ReadError(); i++ {
		var p ParamDef
		p.ReadType(b)
		m.Signature = append(m.Signature, p)
	}
}

// AttributeDef describes an interface attribute, which is exposed as
// a _get_ method and, unless read-only, a _set_ method.
type AttributeDef struct {
	Name     string         `mapstructure:"name"`
	Type     string         `mapstructure:"type"`
	Flags    AttributeFlags `mapstructure:"-"`
	ReadOnly bool           `mapstructure:"readonly"`
}

// WriteType marshals the attribute definition.
func (a AttributeDef) WriteType(b *Buffer) {
	b.WriteString(a.Name)
	b.WriteString(a.Type)
	b.WriteLong(int32(a.Flags))
}

// ReadType unmarshals the attribute definition.
func (a *AttributeDef) ReadType(b *Buffer) {
	a.Name = b.ReadString()
	a.Type = b.ReadString()
	a.Flags = AttributeFlags(b.ReadLong())
	a.ReadOnly = a.Flags&AttributeReadOnly != 0
}

// InterfaceDef describes an interface: its own methods and
// attributes, and the interfaces it inherits from.
type InterfaceDef struct {
	Name                string         `mapstructure:"name"`
	InheritedInterfaces []string       `mapstructure:"inherits"`
	Methods             []MethodDef    `mapstructure:"methods"`
	Attributes          []AttributeDef `mapstructure:"attributes"`
}

// WriteType marshals the interface definition.
func (d InterfaceDef) WriteType(b *Buffer) {
	b.WriteString(d.Name)
	b.WriteStringSeq(d.InheritedInterfaces)
	b.WriteLong(int32(len(d.Methods)))
	for _, m := range d.Methods {
		m.WriteType(b)
	}
	b.WriteLong(int32(len(d.Attributes)))
	for _, a := range d.Attributes {
		a.WriteType(b)
	}
}

// ReadType unmarshals the interface definition.
func (d *InterfaceDef) ReadType(b *Buffer) {
	d.Name = b.ReadString()
	d.InheritedInterfaces = b.ReadStringSeq()
	n := b.readCount()
	d.Methods = nil
	for i := 0; i < n && !b.ReadError(); i++ {
		var m MethodDef
		m.ReadType(b)
		d.Methods = append(d.Methods, m)
	}
	n = b.readCount()
	d.Attributes = nil
	for i := 0; i < n && !b.ReadError(); i++ {
		var a AttributeDef
		a.ReadType(b)
		d.Attributes = append(d.Attributes, a)
	}
}

// AllMethods returns the interface's own methods followed by the
// accessor methods generated from its attributes.  A getter
// "_get_name" takes no arguments and returns the attribute type; a
// setter "_set_name" takes one "newValue" argument.
func (d InterfaceDef) AllMethods() []MethodDef {
	methods := append([]MethodDef(nil), d.Methods...)
	for _, a := range d.Attributes {
		methods = append(methods, MethodDef{
			Name:  "_get_" + a.Name,
			Type:  a.Type,
			Flags: MethodTwoway,
		})
		if a.Flags&AttributeReadOnly == 0 {
			methods = append(methods, MethodDef{
				Name:      "_set_" + a.Name,
				Type:      "void",
				Flags:     MethodTwoway,
				Signature: []ParamDef{{Type: a.Type, Name: "newValue"}},
			})
		}
	}
	return methods
}
