package classfile

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/chazu/cfx/desc"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldRef           Tag = 9
	TagMethodRef          Tag = 10
	TagInterfaceMethodRef Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldRef:           "Fieldref",
	TagMethodRef:          "Methodref",
	TagInterfaceMethodRef: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Slots returns the number of pool indices an entry of this kind occupies.
func (t Tag) Slots() int {
	if t == TagLong || t == TagDouble {
		return 2
	}
	return 1
}

// ---------------------------------------------------------------------------
// Entry: the common contract
// ---------------------------------------------------------------------------

// Entry is a constant pool entry. Entries are immutable. Index is assigned
// when the entry is created and never changes for the lifetime of its pool.
type Entry interface {
	Tag() Tag
	Index() int
	Pool() ConstantPool
	String() string
	header() *entryHeader
}

// LoadableEntry is an entry that ldc can push and that may be a bootstrap
// method argument or a ConstantValue.
type LoadableEntry interface {
	Entry
	TypeKind() desc.TypeKind
	loadable()
}

// MemberRefEntry is a Fieldref, Methodref or InterfaceMethodref.
type MemberRefEntry interface {
	Entry
	Owner() *ClassEntry
	NameAndType() *NameAndTypeEntry
	MemberName() string
	MemberType() string
}

type entryHeader struct {
	pool  ConstantPool
	index int
}

// Index returns the entry's 1-based pool index.
func (h *entryHeader) Index() int { return h.index }

// Pool returns the pool that owns the entry.
func (h *entryHeader) Pool() ConstantPool { return h.pool }

func (h *entryHeader) header() *entryHeader { return h }

// isNil reports whether e is nil or a typed nil pointer.
func isNil(e Entry) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// ---------------------------------------------------------------------------
// Value entries
// ---------------------------------------------------------------------------

// Utf8Entry holds a string in modified UTF-8.
type Utf8Entry struct {
	entryHeader
	value string
}

func (*Utf8Entry) Tag() Tag { return TagUtf8 }

// String returns the decoded text.
func (e *Utf8Entry) String() string { return e.value }

// Equals reports whether the entry holds s.
func (e *Utf8Entry) Equals(s string) bool { return e.value == s }

// IntegerEntry holds an int constant.
type IntegerEntry struct {
	entryHeader
	value int32
}

func (*IntegerEntry) Tag() Tag                  { return TagInteger }
func (e *IntegerEntry) Value() int32            { return e.value }
func (e *IntegerEntry) String() string          { return strconv.Itoa(int(e.value)) }
func (*IntegerEntry) TypeKind() desc.TypeKind   { return desc.Int }
func (*IntegerEntry) loadable()                 {}

// FloatEntry holds a float constant.
type FloatEntry struct {
	entryHeader
	value float32
}

func (*FloatEntry) Tag() Tag                { return TagFloat }
func (e *FloatEntry) Value() float32        { return e.value }
func (e *FloatEntry) String() string        { return strconv.FormatFloat(float64(e.value), 'g', -1, 32) + "f" }
func (*FloatEntry) TypeKind() desc.TypeKind { return desc.Float }
func (*FloatEntry) loadable()               {}

// LongEntry holds a long constant. It occupies two pool indices.
type LongEntry struct {
	entryHeader
	value int64
}

func (*LongEntry) Tag() Tag                { return TagLong }
func (e *LongEntry) Value() int64          { return e.value }
func (e *LongEntry) String() string        { return strconv.FormatInt(e.value, 10) + "L" }
func (*LongEntry) TypeKind() desc.TypeKind { return desc.Long }
func (*LongEntry) loadable()               {}

// DoubleEntry holds a double constant. It occupies two pool indices.
type DoubleEntry struct {
	entryHeader
	value float64
}

func (*DoubleEntry) Tag() Tag                { return TagDouble }
func (e *DoubleEntry) Value() float64        { return e.value }
func (e *DoubleEntry) String() string        { return strconv.FormatFloat(e.value, 'g', -1, 64) + "d" }
func (*DoubleEntry) TypeKind() desc.TypeKind { return desc.Double }
func (*DoubleEntry) loadable()               {}

// ---------------------------------------------------------------------------
// Named entries
// ---------------------------------------------------------------------------

// ClassEntry names a class, interface or array type.
type ClassEntry struct {
	entryHeader
	name *Utf8Entry
}

func (*ClassEntry) Tag() Tag                { return TagClass }
func (*ClassEntry) TypeKind() desc.TypeKind { return desc.Reference }
func (*ClassEntry) loadable()               {}

// Name returns the Utf8 entry holding the internal name.
func (e *ClassEntry) Name() *Utf8Entry { return e.name }

// InternalName returns the slash-separated name, or the descriptor of an
// array type.
func (e *ClassEntry) InternalName() string { return e.name.value }

// Desc returns the field descriptor of the named type.
func (e *ClassEntry) Desc() desc.ClassDesc { return desc.OfInternalName(e.name.value) }

func (e *ClassEntry) String() string { return e.name.value }

// StringEntry is a java.lang.String constant.
type StringEntry struct {
	entryHeader
	utf8 *Utf8Entry
}

func (*StringEntry) Tag() Tag                { return TagString }
func (*StringEntry) TypeKind() desc.TypeKind { return desc.Reference }
func (*StringEntry) loadable()               {}
func (e *StringEntry) Utf8() *Utf8Entry      { return e.utf8 }
func (e *StringEntry) Value() string         { return e.utf8.value }
func (e *StringEntry) String() string        { return strconv.Quote(e.utf8.value) }

// NameAndTypeEntry pairs a member name with its descriptor.
type NameAndTypeEntry struct {
	entryHeader
	name *Utf8Entry
	typ  *Utf8Entry
}

func (*NameAndTypeEntry) Tag() Tag           { return TagNameAndType }
func (e *NameAndTypeEntry) Name() *Utf8Entry { return e.name }
func (e *NameAndTypeEntry) Type() *Utf8Entry { return e.typ }
func (e *NameAndTypeEntry) String() string   { return e.name.value + ":" + e.typ.value }

// ModuleEntry names a module.
type ModuleEntry struct {
	entryHeader
	name *Utf8Entry
}

func (*ModuleEntry) Tag() Tag           { return TagModule }
func (e *ModuleEntry) Name() *Utf8Entry { return e.name }
func (e *ModuleEntry) String() string   { return e.name.value }

// PackageEntry names a package in internal form.
type PackageEntry struct {
	entryHeader
	name *Utf8Entry
}

func (*PackageEntry) Tag() Tag           { return TagPackage }
func (e *PackageEntry) Name() *Utf8Entry { return e.name }
func (e *PackageEntry) String() string   { return e.name.value }

// ---------------------------------------------------------------------------
// Member references
// ---------------------------------------------------------------------------

type memberRef struct {
	entryHeader
	owner *ClassEntry
	nat   *NameAndTypeEntry
}

// Owner returns the class declaring the member.
func (m *memberRef) Owner() *ClassEntry { return m.owner }

// NameAndType returns the member's name and descriptor.
func (m *memberRef) NameAndType() *NameAndTypeEntry { return m.nat }

// MemberName returns the member name.
func (m *memberRef) MemberName() string { return m.nat.name.value }

// MemberType returns the member descriptor.
func (m *memberRef) MemberType() string { return m.nat.typ.value }

func (m *memberRef) String() string {
	return m.owner.name.value + "." + m.nat.name.value + ":" + m.nat.typ.value
}

// FieldRefEntry refers to a field.
type FieldRefEntry struct{ memberRef }

// MethodRefEntry refers to a class method.
type MethodRefEntry struct{ memberRef }

// InterfaceMethodRefEntry refers to an interface method.
type InterfaceMethodRefEntry struct{ memberRef }

func (*FieldRefEntry) Tag() Tag           { return TagFieldRef }
func (*MethodRefEntry) Tag() Tag          { return TagMethodRef }
func (*InterfaceMethodRefEntry) Tag() Tag { return TagInterfaceMethodRef }

// ---------------------------------------------------------------------------
// Method handles, method types and dynamic constants
// ---------------------------------------------------------------------------

// MethodHandleEntry is a method handle constant.
type MethodHandleEntry struct {
	entryHeader
	kind MethodHandleKind
	ref  MemberRefEntry
}

func (*MethodHandleEntry) Tag() Tag                 { return TagMethodHandle }
func (*MethodHandleEntry) TypeKind() desc.TypeKind  { return desc.Reference }
func (*MethodHandleEntry) loadable()                {}
func (e *MethodHandleEntry) Kind() MethodHandleKind { return e.kind }
func (e *MethodHandleEntry) Reference() MemberRefEntry {
	return e.ref
}
func (e *MethodHandleEntry) String() string { return e.kind.String() + " " + e.ref.String() }

// MethodTypeEntry is a method type constant.
type MethodTypeEntry struct {
	entryHeader
	descriptor *Utf8Entry
}

func (*MethodTypeEntry) Tag() Tag                 { return TagMethodType }
func (*MethodTypeEntry) TypeKind() desc.TypeKind  { return desc.Reference }
func (*MethodTypeEntry) loadable()                {}
func (e *MethodTypeEntry) Descriptor() *Utf8Entry { return e.descriptor }
func (e *MethodTypeEntry) String() string         { return e.descriptor.value }

type dynamicRef struct {
	entryHeader
	bsm *BootstrapMethodEntry
	nat *NameAndTypeEntry
}

// Bootstrap returns the bootstrap method that produces the value.
func (d *dynamicRef) Bootstrap() *BootstrapMethodEntry { return d.bsm }

// NameAndType returns the name and descriptor of the call site or constant.
func (d *dynamicRef) NameAndType() *NameAndTypeEntry { return d.nat }

func (d *dynamicRef) String() string {
	return fmt.Sprintf("#%d:%s", d.bsm.index, d.nat.String())
}

// DynamicEntry is a dynamically-computed constant.
type DynamicEntry struct{ dynamicRef }

func (*DynamicEntry) Tag() Tag { return TagDynamic }
func (*DynamicEntry) loadable() {}

// TypeKind returns the kind named by the constant's field descriptor.
func (e *DynamicEntry) TypeKind() desc.TypeKind { return desc.KindOf(e.nat.typ.value) }

// InvokeDynamicEntry is a dynamically-computed call site.
type InvokeDynamicEntry struct{ dynamicRef }

func (*InvokeDynamicEntry) Tag() Tag { return TagInvokeDynamic }

// ---------------------------------------------------------------------------
// Structural keys for interning
// ---------------------------------------------------------------------------

// poolKey is the hash-consing key of an entry. Referenced entries are keyed
// by their index in the pool being interned into.
type poolKey struct {
	tag  Tag
	s    string
	a, b int
	bits uint64
}

func keyOf(e Entry) poolKey {
	switch e := e.(type) {
	case *Utf8Entry:
		return poolKey{tag: TagUtf8, s: e.value}
	case *IntegerEntry:
		return poolKey{tag: TagInteger, bits: uint64(uint32(e.value))}
	case *FloatEntry:
		return poolKey{tag: TagFloat, bits: uint64(math.Float32bits(e.value))}
	case *LongEntry:
		return poolKey{tag: TagLong, bits: uint64(e.value)}
	case *DoubleEntry:
		return poolKey{tag: TagDouble, bits: math.Float64bits(e.value)}
	case *ClassEntry:
		return poolKey{tag: TagClass, a: e.name.index}
	case *StringEntry:
		return poolKey{tag: TagString, a: e.utf8.index}
	case *NameAndTypeEntry:
		return poolKey{tag: TagNameAndType, a: e.name.index, b: e.typ.index}
	case *FieldRefEntry:
		return poolKey{tag: TagFieldRef, a: e.owner.index, b: e.nat.index}
	case *MethodRefEntry:
		return poolKey{tag: TagMethodRef, a: e.owner.index, b: e.nat.index}
	case *InterfaceMethodRefEntry:
		return poolKey{tag: TagInterfaceMethodRef, a: e.owner.index, b: e.nat.index}
	case *MethodHandleEntry:
		return poolKey{tag: TagMethodHandle, a: int(e.kind), b: e.ref.Index()}
	case *MethodTypeEntry:
		return poolKey{tag: TagMethodType, a: e.descriptor.index}
	case *DynamicEntry:
		return poolKey{tag: TagDynamic, a: e.bsm.index, b: e.nat.index}
	case *InvokeDynamicEntry:
		return poolKey{tag: TagInvokeDynamic, a: e.bsm.index, b: e.nat.index}
	case *ModuleEntry:
		return poolKey{tag: TagModule, a: e.name.index}
	case *PackageEntry:
		return poolKey{tag: TagPackage, a: e.name.index}
	}
	panic(fmt.Sprintf("classfile: unknown entry type %T", e))
}
