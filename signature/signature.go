// Package signature parses and formats the generic signatures stored in
// Signature attributes: class signatures, method signatures and the type
// signatures of fields, record components and local variables.
package signature

import (
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid signature")

// ---------------------------------------------------------------------------
// Type signatures
// ---------------------------------------------------------------------------

// Type is a Java type signature: a BaseType, TypeVar, ArrayType or *ClassType.
type Type interface {
	String() string
	typeSig()
}

// BaseType is a primitive type, or void in a method result.
type BaseType struct {
	Descriptor byte
}

// TypeVar is a reference to a type parameter, written "TName;".
type TypeVar struct {
	Name string
}

// ArrayType is an array of Component.
type ArrayType struct {
	Component Type
}

// ClassType is a parameterized class type. A top-level type has a nil Outer
// and carries its full internal name; an inner type carries only its simple
// name and hangs off its Outer type.
type ClassType struct {
	Outer *ClassType
	Name  string
	Args  []TypeArg
}

// Wildcard qualifies a type argument.
type Wildcard byte

const (
	Exact     Wildcard = 0
	Extends   Wildcard = '+'
	Super     Wildcard = '-'
	Unbounded Wildcard = '*'
)

// TypeArg is one argument of a parameterized type. Type is nil when the
// wildcard is Unbounded.
type TypeArg struct {
	Wildcard Wildcard
	Type     Type
}

// TypeParam declares a type parameter with its bounds. ClassBound may be nil
// when only interface bounds are present.
type TypeParam struct {
	Name            string
	ClassBound      Type
	InterfaceBounds []Type
}

func (BaseType) typeSig()   {}
func (TypeVar) typeSig()    {}
func (ArrayType) typeSig()  {}
func (*ClassType) typeSig() {}

func (b BaseType) String() string { return string(b.Descriptor) }

func (v TypeVar) String() string { return "T" + v.Name + ";" }

func (a ArrayType) String() string { return "[" + a.Component.String() }

func (c *ClassType) String() string {
	var sb strings.Builder
	sb.WriteByte('L')
	c.write(&sb)
	sb.WriteByte(';')
	return sb.String()
}

func (c *ClassType) write(sb *strings.Builder) {
	if c.Outer != nil {
		c.Outer.write(sb)
		sb.WriteByte('.')
	}
	sb.WriteString(c.Name)
	if len(c.Args) > 0 {
		sb.WriteByte('<')
		for _, a := range c.Args {
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
}

// InternalName returns the binary name of the class, joining inner names to
// their outer class with '$'.
func (c *ClassType) InternalName() string {
	if c.Outer != nil {
		return c.Outer.InternalName() + "$" + c.Name
	}
	return c.Name
}

func (a TypeArg) String() string {
	switch a.Wildcard {
	case Unbounded:
		return "*"
	case Extends, Super:
		return string(a.Wildcard) + a.Type.String()
	}
	return a.Type.String()
}

func (p TypeParam) String() string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	sb.WriteByte(':')
	if p.ClassBound != nil {
		sb.WriteString(p.ClassBound.String())
	}
	for _, b := range p.InterfaceBounds {
		sb.WriteByte(':')
		sb.WriteString(b.String())
	}
	return sb.String()
}

func writeTypeParams(sb *strings.Builder, ps []TypeParam) {
	if len(ps) == 0 {
		return
	}
	sb.WriteByte('<')
	for _, p := range ps {
		sb.WriteString(p.String())
	}
	sb.WriteByte('>')
}

// ---------------------------------------------------------------------------
// Class and method signatures
// ---------------------------------------------------------------------------

// ClassSig is the signature of a class declaration.
type ClassSig struct {
	TypeParams []TypeParam
	Super      *ClassType
	Interfaces []*ClassType
}

func (s *ClassSig) String() string {
	var sb strings.Builder
	writeTypeParams(&sb, s.TypeParams)
	sb.WriteString(s.Super.String())
	for _, i := range s.Interfaces {
		sb.WriteString(i.String())
	}
	return sb.String()
}

// MethodSig is the signature of a method declaration. Result is BaseType{'V'}
// for void methods.
type MethodSig struct {
	TypeParams []TypeParam
	Params     []Type
	Result     Type
	Throws     []Type
}

func (s *MethodSig) String() string {
	var sb strings.Builder
	writeTypeParams(&sb, s.TypeParams)
	sb.WriteByte('(')
	for _, p := range s.Params {
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	sb.WriteString(s.Result.String())
	for _, t := range s.Throws {
		sb.WriteByte('^')
		sb.WriteString(t.String())
	}
	return sb.String()
}
