package classfile

import "strings"

// Magic is the four-byte marker every classfile starts with.
const Magic = 0xCAFEBABE

// AccessFlags is the access_flags word of a class, field, method, inner
// class or method parameter. As an element it replaces the flags of the
// class, field or method being built.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
	AccMandated     AccessFlags = 0x8000
)

func (f AccessFlags) Has(mask AccessFlags) bool { return f&mask == mask }
func (f AccessFlags) IsPublic() bool           { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool          { return f&AccPrivate != 0 }
func (f AccessFlags) IsStatic() bool           { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool            { return f&AccFinal != 0 }
func (f AccessFlags) IsInterface() bool        { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool         { return f&AccAbstract != 0 }
func (f AccessFlags) IsNative() bool           { return f&AccNative != 0 }
func (f AccessFlags) IsSynthetic() bool        { return f&AccSynthetic != 0 }

var flagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{0x0020, "super/synchronized"},
	{0x0040, "volatile/bridge"},
	{0x0080, "transient/varargs"},
	{AccNative, "native"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccStrict, "strict"},
	{AccSynthetic, "synthetic"},
	{AccAnnotation, "annotation"},
	{AccEnum, "enum"},
	{0x8000, "module/mandated"},
}

// String lists the set flags by name. Bits shared between class, field and
// method meanings are shown with both names.
func (f AccessFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}

func (AccessFlags) classElement()  {}
func (AccessFlags) fieldElement()  {}
func (AccessFlags) methodElement() {}

// MethodHandleKind is the reference_kind of a MethodHandle entry.
type MethodHandleKind uint8

const (
	RefGetField         MethodHandleKind = 1
	RefGetStatic        MethodHandleKind = 2
	RefPutField         MethodHandleKind = 3
	RefPutStatic        MethodHandleKind = 4
	RefInvokeVirtual    MethodHandleKind = 5
	RefInvokeStatic     MethodHandleKind = 6
	RefInvokeSpecial    MethodHandleKind = 7
	RefNewInvokeSpecial MethodHandleKind = 8
	RefInvokeInterface  MethodHandleKind = 9
)

var handleKindNames = [...]string{
	RefGetField:         "getField",
	RefGetStatic:        "getStatic",
	RefPutField:         "putField",
	RefPutStatic:        "putStatic",
	RefInvokeVirtual:    "invokeVirtual",
	RefInvokeStatic:     "invokeStatic",
	RefInvokeSpecial:    "invokeSpecial",
	RefNewInvokeSpecial: "newInvokeSpecial",
	RefInvokeInterface:  "invokeInterface",
}

func (k MethodHandleKind) String() string {
	if k >= RefGetField && k <= RefInvokeInterface {
		return handleKindNames[k]
	}
	return "invalid"
}

// IsField reports whether the handle refers to a field.
func (k MethodHandleKind) IsField() bool { return k >= RefGetField && k <= RefPutStatic }
