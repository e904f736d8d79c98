// Package desc parses and builds JVM field and method descriptors.
package desc

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDescriptor = errors.New("invalid descriptor")

// ---------------------------------------------------------------------------
// ClassDesc: field descriptors
// ---------------------------------------------------------------------------

// ClassDesc is a field descriptor such as "I", "Ljava/lang/String;" or "[J".
// The zero value is not a valid descriptor.
type ClassDesc string

// Common descriptors.
const (
	ObjectDesc ClassDesc = "Ljava/lang/Object;"
	StringDesc ClassDesc = "Ljava/lang/String;"
	VoidDesc   ClassDesc = "V"
	IntDesc    ClassDesc = "I"
	LongDesc   ClassDesc = "J"
)

// Parse validates s as a single field descriptor.
func Parse(s string) (ClassDesc, error) {
	end, ok := scanField(s, 0)
	if !ok || end != len(s) {
		return "", fmt.Errorf("%w: field descriptor %q", ErrInvalidDescriptor, s)
	}
	return ClassDesc(s), nil
}

// OfInternalName converts a constant-pool class name into a descriptor.
// Array names are already descriptors and are returned unchanged.
func OfInternalName(name string) ClassDesc {
	if strings.HasPrefix(name, "[") {
		return ClassDesc(name)
	}
	return ClassDesc("L" + name + ";")
}

// Of returns the descriptor of a primitive or void kind.
func Of(k TypeKind) ClassDesc { return ClassDesc(k.Descriptor()) }

// String returns the descriptor text.
func (d ClassDesc) String() string { return string(d) }

// IsArray reports whether d describes an array type.
func (d ClassDesc) IsArray() bool { return strings.HasPrefix(string(d), "[") }

// IsClass reports whether d describes a class or interface type.
func (d ClassDesc) IsClass() bool { return strings.HasPrefix(string(d), "L") }

// IsPrimitive reports whether d describes a primitive type or void.
func (d ClassDesc) IsPrimitive() bool { return len(d) == 1 }

// Kind returns the type kind of d.
func (d ClassDesc) Kind() TypeKind { return KindOf(string(d)) }

// ComponentType returns the component of an array descriptor, or "" if d is
// not an array.
func (d ClassDesc) ComponentType() ClassDesc {
	if !d.IsArray() {
		return ""
	}
	return d[1:]
}

// ArrayType returns the descriptor of a one-dimensional array of d.
func (d ClassDesc) ArrayType() ClassDesc { return "[" + d }

// ElementType strips every array dimension from d and returns the element
// descriptor with the number of dimensions removed.
func (d ClassDesc) ElementType() (ClassDesc, int) {
	dims := 0
	for dims < len(d) && d[dims] == '[' {
		dims++
	}
	return d[dims:], dims
}

// InternalName returns the constant-pool form of d: the binary name with
// slashes for a class type, and the descriptor itself for arrays and
// primitives.
func (d ClassDesc) InternalName() string {
	if d.IsClass() {
		return string(d[1 : len(d)-1])
	}
	return string(d)
}

// PackageName returns the package part of a class descriptor's internal
// name, or "" for the unnamed package and non-class types.
func (d ClassDesc) PackageName() string {
	if !d.IsClass() {
		return ""
	}
	n := d.InternalName()
	if i := strings.LastIndexByte(n, '/'); i >= 0 {
		return n[:i]
	}
	return ""
}

// ---------------------------------------------------------------------------
// MethodDesc: method descriptors
// ---------------------------------------------------------------------------

// MethodDesc is a parsed method descriptor.
type MethodDesc struct {
	Params []ClassDesc
	Return ClassDesc
}

// ParseMethod parses a method descriptor such as "(ILjava/lang/String;)V".
func ParseMethod(s string) (MethodDesc, error) {
	if !strings.HasPrefix(s, "(") {
		return MethodDesc{}, fmt.Errorf("%w: method descriptor %q", ErrInvalidDescriptor, s)
	}
	var m MethodDesc
	i := 1
	for i < len(s) && s[i] != ')' {
		end, ok := scanField(s, i)
		if !ok {
			return MethodDesc{}, fmt.Errorf("%w: method descriptor %q at %d", ErrInvalidDescriptor, s, i)
		}
		m.Params = append(m.Params, ClassDesc(s[i:end]))
		i = end
	}
	if i >= len(s) {
		return MethodDesc{}, fmt.Errorf("%w: method descriptor %q is unterminated", ErrInvalidDescriptor, s)
	}
	i++
	if i < len(s) && s[i] == 'V' && i+1 == len(s) {
		m.Return = VoidDesc
		return m, nil
	}
	end, ok := scanField(s, i)
	if !ok || end != len(s) {
		return MethodDesc{}, fmt.Errorf("%w: method descriptor %q has a bad return type", ErrInvalidDescriptor, s)
	}
	m.Return = ClassDesc(s[i:])
	return m, nil
}

// MustParseMethod is like ParseMethod but panics on error. It is meant for
// descriptors written as literals.
func MustParseMethod(s string) MethodDesc {
	m, err := ParseMethod(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MethodOf builds a method descriptor from a return type and parameters.
func MethodOf(ret ClassDesc, params ...ClassDesc) MethodDesc {
	return MethodDesc{Params: params, Return: ret}
}

// String returns the descriptor text.
func (m MethodDesc) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Params {
		sb.WriteString(string(p))
	}
	sb.WriteByte(')')
	sb.WriteString(string(m.Return))
	return sb.String()
}

// ParameterSlots returns the number of local slots the parameters occupy,
// excluding any receiver.
func (m MethodDesc) ParameterSlots() int {
	n := 0
	for _, p := range m.Params {
		n += p.Kind().SlotSize()
	}
	return n
}

// scanField returns the end of the field descriptor that starts at s[i].
func scanField(s string, i int) (int, bool) {
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, false
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, true
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi <= 1 {
			return 0, false
		}
		name := s[i+1 : i+semi]
		if strings.ContainsAny(name, ".[") {
			return 0, false
		}
		return i + semi + 1, true
	}
	return 0, false
}
