package classfile

import (
	"math"

	"github.com/chazu/cfx/binio"
	"github.com/chazu/cfx/desc"
)

const maxPoolSize = math.MaxUint16

// PoolBuilder is a constant pool under construction. Every factory method
// interns: structurally equal requests return the same entry. A builder
// seeded from a Reader keeps the reader's entries at their original indices,
// reuses them when they match a request, and copies their bytes verbatim on
// output.
//
// Errors (pool overflow, invalid arguments) are sticky and reported by Err;
// the factory methods still return a usable entry.
type PoolBuilder struct {
	parent  *Reader
	base    int // first index owned by the builder
	size    int // next free index
	entries []Entry
	byIndex []Entry // index - base -> entry, nil for second slots
	lookup  map[poolKey]Entry
	indexed bool

	bsms      []*BootstrapMethodEntry
	bsmLookup map[string]*BootstrapMethodEntry

	err error
}

// NewPoolBuilder returns an empty pool.
func NewPoolBuilder() *PoolBuilder {
	return newPoolBuilder(nil)
}

func newPoolBuilder(parent *Reader) *PoolBuilder {
	pb := &PoolBuilder{
		parent:    parent,
		base:      1,
		lookup:    make(map[poolKey]Entry),
		bsmLookup: make(map[string]*BootstrapMethodEntry),
	}
	if parent != nil {
		pb.base = parent.Size()
	}
	pb.size = pb.base
	return pb
}

// Err returns the first error recorded while interning.
func (pb *PoolBuilder) Err() error { return pb.err }

func (pb *PoolBuilder) fail(err error) {
	if pb.err == nil {
		pb.err = err
	}
}

// ensureIndexed adds the parent's entries and bootstrap methods to the
// intern tables. The first occurrence of a duplicated constant wins.
func (pb *PoolBuilder) ensureIndexed() {
	if pb.indexed {
		return
	}
	pb.indexed = true
	if pb.parent == nil {
		return
	}
	skipped := 0
	for i := 1; i < pb.parent.Size(); i++ {
		if pb.parent.offsets[i] == 0 {
			continue
		}
		e, err := pb.parent.EntryByIndex(i)
		if err != nil {
			skipped++
			continue
		}
		k := keyOf(e)
		if _, ok := pb.lookup[k]; !ok {
			pb.lookup[k] = e
		}
	}
	n := pb.parent.BootstrapMethodCount()
	for i := 0; i < n; i++ {
		b, err := pb.parent.BootstrapMethodByIndex(i)
		if err != nil {
			pb.fail(err)
			return
		}
		pb.bsms = append(pb.bsms, b)
		key := bootstrapKey(b.handle.index, entryIndices(b.args))
		if _, ok := pb.bsmLookup[key]; !ok {
			pb.bsmLookup[key] = b
		}
	}
	log.Debugf("indexed parent pool: %d slots, %d bootstrap methods, %d undecodable entries skipped",
		pb.parent.Size(), n, skipped)
}

func entryIndices(args []LoadableEntry) []int {
	idx := make([]int, len(args))
	for i, a := range args {
		idx[i] = a.Index()
	}
	return idx
}

// ---------------------------------------------------------------------------
// ConstantPool
// ---------------------------------------------------------------------------

// Size returns the constant_pool_count the pool would be written with.
func (pb *PoolBuilder) Size() int { return pb.size }

// EntryByIndex returns the entry at index i, from the parent or the builder.
func (pb *PoolBuilder) EntryByIndex(i int) (Entry, error) {
	if pb.parent != nil && i < pb.base {
		return pb.parent.EntryByIndex(i)
	}
	if i < pb.base || i >= pb.size || pb.byIndex[i-pb.base] == nil {
		return nil, misuse("constant pool index %d is not an entry (pool size %d)", i, pb.size)
	}
	return pb.byIndex[i-pb.base], nil
}

// BootstrapMethodCount returns the number of bootstrap table rows.
func (pb *PoolBuilder) BootstrapMethodCount() int {
	pb.ensureIndexed()
	return len(pb.bsms)
}

// BootstrapMethodByIndex returns bootstrap table row i.
func (pb *PoolBuilder) BootstrapMethodByIndex(i int) (*BootstrapMethodEntry, error) {
	pb.ensureIndexed()
	if i < 0 || i >= len(pb.bsms) {
		return nil, misuse("bootstrap method index %d out of range (%d methods)", i, len(pb.bsms))
	}
	return pb.bsms[i], nil
}

// ---------------------------------------------------------------------------
// Interning
// ---------------------------------------------------------------------------

func (pb *PoolBuilder) intern(k poolKey, mk func(h entryHeader) Entry) Entry {
	pb.ensureIndexed()
	if e, ok := pb.lookup[k]; ok {
		return e
	}
	e := mk(entryHeader{pool: pb, index: pb.size})
	slots := k.tag.Slots()
	if pb.size+slots > maxPoolSize {
		pb.fail(ErrPoolOverflow)
	}
	pb.size += slots
	pb.entries = append(pb.entries, e)
	pb.byIndex = append(pb.byIndex, e)
	if slots == 2 {
		pb.byIndex = append(pb.byIndex, nil)
	}
	pb.lookup[k] = e
	return e
}

// owns reports whether e can be referenced by index from this pool.
func (pb *PoolBuilder) owns(e Entry) bool {
	p := e.Pool()
	return p == ConstantPool(pb) || (pb.parent != nil && p == ConstantPool(pb.parent))
}

// indexOf returns the index of e in this pool, copying it in if it belongs
// to a foreign pool.
func (pb *PoolBuilder) indexOf(e Entry) int {
	if pb.owns(e) {
		return e.Index()
	}
	return pb.clone(e).Index()
}

// adopt returns e if this pool can reference it, else an equal entry of this
// pool.
func adopt[T Entry](pb *PoolBuilder, e T) T {
	if pb.owns(e) {
		return e
	}
	return pb.clone(e).(T)
}

func (pb *PoolBuilder) clone(e Entry) Entry {
	switch e := e.(type) {
	case *Utf8Entry:
		return pb.Utf8Entry(e.value)
	case *IntegerEntry:
		return pb.IntegerEntry(e.value)
	case *FloatEntry:
		return pb.FloatEntry(e.value)
	case *LongEntry:
		return pb.LongEntry(e.value)
	case *DoubleEntry:
		return pb.DoubleEntry(e.value)
	case *ClassEntry:
		return pb.ClassEntry(e.name.value)
	case *StringEntry:
		return pb.StringEntry(e.utf8.value)
	case *NameAndTypeEntry:
		return pb.NameAndTypeEntry(e.name.value, e.typ.value)
	case *FieldRefEntry:
		return pb.FieldRefEntryOf(adopt(pb, e.owner), adopt(pb, e.nat))
	case *MethodRefEntry:
		return pb.MethodRefEntryOf(adopt(pb, e.owner), adopt(pb, e.nat))
	case *InterfaceMethodRefEntry:
		return pb.InterfaceMethodRefEntryOf(adopt(pb, e.owner), adopt(pb, e.nat))
	case *MethodHandleEntry:
		return pb.MethodHandleEntry(e.kind, e.ref)
	case *MethodTypeEntry:
		return pb.MethodTypeEntry(e.descriptor.value)
	case *DynamicEntry:
		return pb.DynamicEntry(e.bsm, e.nat)
	case *InvokeDynamicEntry:
		return pb.InvokeDynamicEntry(e.bsm, e.nat)
	case *ModuleEntry:
		return pb.ModuleEntry(e.name.value)
	case *PackageEntry:
		return pb.PackageEntry(e.name.value)
	}
	panic("classfile: clone of unknown entry type")
}

// Utf8Entry interns a string constant.
func (pb *PoolBuilder) Utf8Entry(s string) *Utf8Entry {
	if modifiedUTF8Len(s) > math.MaxUint16 {
		pb.fail(misuse("string of %d bytes does not fit a Utf8 entry", modifiedUTF8Len(s)))
	}
	return pb.intern(poolKey{tag: TagUtf8, s: s}, func(h entryHeader) Entry {
		return &Utf8Entry{entryHeader: h, value: s}
	}).(*Utf8Entry)
}

// IntegerEntry interns an int constant.
func (pb *PoolBuilder) IntegerEntry(v int32) *IntegerEntry {
	return pb.intern(poolKey{tag: TagInteger, bits: uint64(uint32(v))}, func(h entryHeader) Entry {
		return &IntegerEntry{entryHeader: h, value: v}
	}).(*IntegerEntry)
}

// FloatEntry interns a float constant. Floats are keyed by bit pattern, so
// distinct NaN payloads stay distinct.
func (pb *PoolBuilder) FloatEntry(v float32) *FloatEntry {
	return pb.intern(poolKey{tag: TagFloat, bits: uint64(math.Float32bits(v))}, func(h entryHeader) Entry {
		return &FloatEntry{entryHeader: h, value: v}
	}).(*FloatEntry)
}

// LongEntry interns a long constant.
func (pb *PoolBuilder) LongEntry(v int64) *LongEntry {
	return pb.intern(poolKey{tag: TagLong, bits: uint64(v)}, func(h entryHeader) Entry {
		return &LongEntry{entryHeader: h, value: v}
	}).(*LongEntry)
}

// DoubleEntry interns a double constant.
func (pb *PoolBuilder) DoubleEntry(v float64) *DoubleEntry {
	return pb.intern(poolKey{tag: TagDouble, bits: math.Float64bits(v)}, func(h entryHeader) Entry {
		return &DoubleEntry{entryHeader: h, value: v}
	}).(*DoubleEntry)
}

// ClassEntry interns a class entry for an internal name such as
// "java/lang/String" or an array descriptor.
func (pb *PoolBuilder) ClassEntry(internalName string) *ClassEntry {
	return pb.ClassEntryOf(pb.Utf8Entry(internalName))
}

// ClassEntryOf interns a class entry naming an existing Utf8 entry.
func (pb *PoolBuilder) ClassEntryOf(name *Utf8Entry) *ClassEntry {
	name = adopt(pb, name)
	return pb.intern(poolKey{tag: TagClass, a: name.index}, func(h entryHeader) Entry {
		return &ClassEntry{entryHeader: h, name: name}
	}).(*ClassEntry)
}

// ClassEntryFor interns a class entry for a class or array descriptor.
// Primitive descriptors have no class entry.
func (pb *PoolBuilder) ClassEntryFor(d desc.ClassDesc) *ClassEntry {
	if d.IsPrimitive() {
		pb.fail(misuse("no class entry for primitive descriptor %s", d))
	}
	return pb.ClassEntry(d.InternalName())
}

// StringEntry interns a String constant.
func (pb *PoolBuilder) StringEntry(s string) *StringEntry {
	u := pb.Utf8Entry(s)
	return pb.intern(poolKey{tag: TagString, a: u.index}, func(h entryHeader) Entry {
		return &StringEntry{entryHeader: h, utf8: u}
	}).(*StringEntry)
}

// NameAndTypeEntry interns a name and descriptor pair.
func (pb *PoolBuilder) NameAndTypeEntry(name, typ string) *NameAndTypeEntry {
	return pb.NameAndTypeEntryOf(pb.Utf8Entry(name), pb.Utf8Entry(typ))
}

// NameAndTypeEntryOf interns a name and descriptor pair of existing entries.
func (pb *PoolBuilder) NameAndTypeEntryOf(name, typ *Utf8Entry) *NameAndTypeEntry {
	name, typ = adopt(pb, name), adopt(pb, typ)
	return pb.intern(poolKey{tag: TagNameAndType, a: name.index, b: typ.index}, func(h entryHeader) Entry {
		return &NameAndTypeEntry{entryHeader: h, name: name, typ: typ}
	}).(*NameAndTypeEntry)
}

// FieldRefEntry interns a field reference.
func (pb *PoolBuilder) FieldRefEntry(owner *ClassEntry, name, typ string) *FieldRefEntry {
	return pb.FieldRefEntryOf(owner, pb.NameAndTypeEntry(name, typ))
}

// FieldRefEntryOf interns a field reference from existing entries.
func (pb *PoolBuilder) FieldRefEntryOf(owner *ClassEntry, nat *NameAndTypeEntry) *FieldRefEntry {
	owner, nat = adopt(pb, owner), adopt(pb, nat)
	return pb.intern(poolKey{tag: TagFieldRef, a: owner.index, b: nat.index}, func(h entryHeader) Entry {
		return &FieldRefEntry{memberRef{entryHeader: h, owner: owner, nat: nat}}
	}).(*FieldRefEntry)
}

// MethodRefEntry interns a class method reference.
func (pb *PoolBuilder) MethodRefEntry(owner *ClassEntry, name, typ string) *MethodRefEntry {
	return pb.MethodRefEntryOf(owner, pb.NameAndTypeEntry(name, typ))
}

// MethodRefEntryOf interns a class method reference from existing entries.
func (pb *PoolBuilder) MethodRefEntryOf(owner *ClassEntry, nat *NameAndTypeEntry) *MethodRefEntry {
	owner, nat = adopt(pb, owner), adopt(pb, nat)
	return pb.intern(poolKey{tag: TagMethodRef, a: owner.index, b: nat.index}, func(h entryHeader) Entry {
		return &MethodRefEntry{memberRef{entryHeader: h, owner: owner, nat: nat}}
	}).(*MethodRefEntry)
}

// InterfaceMethodRefEntry interns an interface method reference.
func (pb *PoolBuilder) InterfaceMethodRefEntry(owner *ClassEntry, name, typ string) *InterfaceMethodRefEntry {
	return pb.InterfaceMethodRefEntryOf(owner, pb.NameAndTypeEntry(name, typ))
}

// InterfaceMethodRefEntryOf interns an interface method reference from
// existing entries.
func (pb *PoolBuilder) InterfaceMethodRefEntryOf(owner *ClassEntry, nat *NameAndTypeEntry) *InterfaceMethodRefEntry {
	owner, nat = adopt(pb, owner), adopt(pb, nat)
	return pb.intern(poolKey{tag: TagInterfaceMethodRef, a: owner.index, b: nat.index}, func(h entryHeader) Entry {
		return &InterfaceMethodRefEntry{memberRef{entryHeader: h, owner: owner, nat: nat}}
	}).(*InterfaceMethodRefEntry)
}

// MethodHandleEntry interns a method handle.
func (pb *PoolBuilder) MethodHandleEntry(kind MethodHandleKind, ref MemberRefEntry) *MethodHandleEntry {
	if !handleRefMatches(kind, ref) {
		pb.fail(misuse("method handle kind %s cannot refer to %s", kind, ref.Tag()))
	}
	ref = adopt(pb, ref)
	return pb.intern(poolKey{tag: TagMethodHandle, a: int(kind), b: ref.Index()}, func(h entryHeader) Entry {
		return &MethodHandleEntry{entryHeader: h, kind: kind, ref: ref}
	}).(*MethodHandleEntry)
}

// MethodTypeEntry interns a method type for a method descriptor.
func (pb *PoolBuilder) MethodTypeEntry(descriptor string) *MethodTypeEntry {
	u := pb.Utf8Entry(descriptor)
	return pb.intern(poolKey{tag: TagMethodType, a: u.index}, func(h entryHeader) Entry {
		return &MethodTypeEntry{entryHeader: h, descriptor: u}
	}).(*MethodTypeEntry)
}

// DynamicEntry interns a dynamically-computed constant.
func (pb *PoolBuilder) DynamicEntry(bsm *BootstrapMethodEntry, nat *NameAndTypeEntry) *DynamicEntry {
	bsm, nat = pb.adoptBootstrap(bsm), adopt(pb, nat)
	return pb.intern(poolKey{tag: TagDynamic, a: bsm.index, b: nat.index}, func(h entryHeader) Entry {
		return &DynamicEntry{dynamicRef{entryHeader: h, bsm: bsm, nat: nat}}
	}).(*DynamicEntry)
}

// InvokeDynamicEntry interns a dynamically-computed call site.
func (pb *PoolBuilder) InvokeDynamicEntry(bsm *BootstrapMethodEntry, nat *NameAndTypeEntry) *InvokeDynamicEntry {
	bsm, nat = pb.adoptBootstrap(bsm), adopt(pb, nat)
	return pb.intern(poolKey{tag: TagInvokeDynamic, a: bsm.index, b: nat.index}, func(h entryHeader) Entry {
		return &InvokeDynamicEntry{dynamicRef{entryHeader: h, bsm: bsm, nat: nat}}
	}).(*InvokeDynamicEntry)
}

// ModuleEntry interns a module name.
func (pb *PoolBuilder) ModuleEntry(name string) *ModuleEntry {
	u := pb.Utf8Entry(name)
	return pb.intern(poolKey{tag: TagModule, a: u.index}, func(h entryHeader) Entry {
		return &ModuleEntry{entryHeader: h, name: u}
	}).(*ModuleEntry)
}

// PackageEntry interns a package name in internal form.
func (pb *PoolBuilder) PackageEntry(name string) *PackageEntry {
	u := pb.Utf8Entry(name)
	return pb.intern(poolKey{tag: TagPackage, a: u.index}, func(h entryHeader) Entry {
		return &PackageEntry{entryHeader: h, name: u}
	}).(*PackageEntry)
}

// BootstrapMethodEntry interns a bootstrap table row.
func (pb *PoolBuilder) BootstrapMethodEntry(handle *MethodHandleEntry, args ...LoadableEntry) *BootstrapMethodEntry {
	pb.ensureIndexed()
	handle = adopt(pb, handle)
	own := make([]LoadableEntry, len(args))
	for i, a := range args {
		own[i] = adopt(pb, a)
	}
	key := bootstrapKey(handle.index, entryIndices(own))
	if b, ok := pb.bsmLookup[key]; ok {
		return b
	}
	b := &BootstrapMethodEntry{pool: pb, index: len(pb.bsms), handle: handle, args: own}
	pb.bsms = append(pb.bsms, b)
	pb.bsmLookup[key] = b
	return b
}

func (pb *PoolBuilder) adoptBootstrap(b *BootstrapMethodEntry) *BootstrapMethodEntry {
	if b.pool == ConstantPool(pb) || (pb.parent != nil && b.pool == ConstantPool(pb.parent)) {
		pb.ensureIndexed()
		return b
	}
	return pb.BootstrapMethodEntry(b.handle, b.args...)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// writeTo writes constant_pool_count and the entries. Parent entries are
// copied verbatim.
func (pb *PoolBuilder) writeTo(w *binio.Writer) {
	w.U2(pb.size)
	if pb.parent != nil {
		w.Write(pb.parent.poolBytes())
	}
	for _, e := range pb.entries {
		writeEntry(w, e)
	}
}

func writeEntry(w *binio.Writer, e Entry) {
	w.U1(int(e.Tag()))
	switch e := e.(type) {
	case *Utf8Entry:
		b := appendModifiedUTF8(nil, e.value)
		w.U2(len(b))
		w.Write(b)
	case *IntegerEntry:
		w.I4(e.value)
	case *FloatEntry:
		w.F4(e.value)
	case *LongEntry:
		w.I8(e.value)
	case *DoubleEntry:
		w.F8(e.value)
	case *ClassEntry:
		w.U2(e.name.index)
	case *StringEntry:
		w.U2(e.utf8.index)
	case *NameAndTypeEntry:
		w.U2(e.name.index)
		w.U2(e.typ.index)
	case *FieldRefEntry:
		w.U2(e.owner.index)
		w.U2(e.nat.index)
	case *MethodRefEntry:
		w.U2(e.owner.index)
		w.U2(e.nat.index)
	case *InterfaceMethodRefEntry:
		w.U2(e.owner.index)
		w.U2(e.nat.index)
	case *MethodHandleEntry:
		w.U1(int(e.kind))
		w.U2(e.ref.Index())
	case *MethodTypeEntry:
		w.U2(e.descriptor.index)
	case *DynamicEntry:
		w.U2(e.bsm.index)
		w.U2(e.nat.index)
	case *InvokeDynamicEntry:
		w.U2(e.bsm.index)
		w.U2(e.nat.index)
	case *ModuleEntry:
		w.U2(e.name.index)
	case *PackageEntry:
		w.U2(e.name.index)
	}
}

// writeBootstrapMethods writes the body of the BootstrapMethods attribute.
func (pb *PoolBuilder) writeBootstrapMethods(w *binio.Writer) {
	w.U2(len(pb.bsms))
	for _, b := range pb.bsms {
		w.U2(b.handle.index)
		w.U2(len(b.args))
		for _, a := range b.args {
			w.U2(a.Index())
		}
	}
}
