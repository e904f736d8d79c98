package classfile

import (
	"fmt"

	"github.com/chazu/cfx/binio"
)

// Reader is the bound constant pool of a parsed classfile and the index of
// its structure. The pool is scanned once to record entry offsets; entries
// are decoded on first request and cached, so repeated lookups of an index
// return the identical Entry. A Reader is not safe for concurrent use.
type Reader struct {
	buf  binio.Cursor
	opts Option

	offsets   []int // pool index -> offset of the tag byte, 0 if not an entry
	entries   []Entry
	resolving []bool
	poolEnd   int

	flags      AccessFlags
	minor      int
	major      int
	thisIndex  int
	superIndex int
	interfaces []int
	fields     []memberSpan
	methods    []memberSpan
	attrStart  int

	bsmScanned bool
	bsmErr     error
	bsmOffsets []int
	bsms       []*BootstrapMethodEntry
}

// memberSpan locates a field_info or method_info.
type memberSpan struct {
	start     int
	attrStart int
	end       int
}

func newReader(b []byte, opts Option) (*Reader, error) {
	r := &Reader{buf: binio.NewCursor(b), opts: opts}
	c := r.buf
	if !c.Has(0, 10) {
		return nil, malformed(0, "%d bytes is too short for a classfile header", len(b))
	}
	if c.U4(0) != Magic {
		return nil, malformed(0, "bad magic 0x%08X", c.U4(0))
	}
	r.minor = c.U2(4)
	r.major = c.U2(6)
	if err := r.scanPool(); err != nil {
		return nil, err
	}
	if err := r.scanStructure(); err != nil {
		return nil, err
	}
	log.Debugf("indexed classfile: %d pool slots, %d fields, %d methods",
		len(r.offsets), len(r.fields), len(r.methods))
	return r, nil
}

// scanPool walks the constant pool once, recording where each entry starts.
func (r *Reader) scanPool() error {
	c := r.buf
	count := c.U2(8)
	if count == 0 {
		return malformed(8, "constant_pool_count is 0")
	}
	r.offsets = make([]int, count)
	r.entries = make([]Entry, count)
	r.resolving = make([]bool, count)

	p := 10
	for i := 1; i < count; i++ {
		if !c.Has(p, 1) {
			return malformed(p, "constant pool truncated at entry #%d", i)
		}
		r.offsets[i] = p
		var size int
		switch tag := Tag(c.U1(p)); tag {
		case TagUtf8:
			if !c.Has(p, 3) {
				return malformed(p, "constant pool truncated at entry #%d", i)
			}
			size = 3 + c.U2(p+1)
		case TagInteger, TagFloat:
			size = 5
		case TagLong, TagDouble:
			size = 9
			if i+1 >= count {
				return malformed(p, "%s entry #%d has no second slot", tag, i)
			}
			i++
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			size = 3
		case TagMethodHandle:
			size = 4
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef, TagNameAndType, TagDynamic, TagInvokeDynamic:
			size = 5
		default:
			return malformed(p, "unknown constant pool tag %d at entry #%d", uint8(tag), i)
		}
		if !c.Has(p, size) {
			return malformed(p, "constant pool truncated at entry #%d", i)
		}
		p += size
	}
	r.poolEnd = p
	return nil
}

// scanStructure locates the class header fields, members and attribute
// tables without decoding any attribute body.
func (r *Reader) scanStructure() error {
	d := binio.NewDecoder(r.buf, r.poolEnd, r.buf.Len())
	r.flags = AccessFlags(d.U2())
	r.thisIndex = d.U2()
	r.superIndex = d.U2()
	n := d.U2()
	if d.Err() == nil {
		r.interfaces = make([]int, n)
		for i := range r.interfaces {
			r.interfaces[i] = d.U2()
		}
	}
	r.fields = scanMembers(d)
	r.methods = scanMembers(d)
	r.attrStart = d.Pos()
	skipAttributes(d)
	if err := d.Err(); err != nil {
		return &DecodeError{Offset: d.Pos(), Reason: "truncated class structure", Err: err}
	}
	if d.Remaining() != 0 {
		return malformed(d.Pos(), "%d trailing bytes after class attributes", d.Remaining())
	}
	return nil
}

func scanMembers(d *binio.Decoder) []memberSpan {
	n := d.U2()
	if d.Err() != nil {
		return nil
	}
	spans := make([]memberSpan, 0, n)
	for i := 0; i < n && d.Err() == nil; i++ {
		s := memberSpan{start: d.Pos()}
		d.Skip(6)
		s.attrStart = d.Pos()
		skipAttributes(d)
		s.end = d.Pos()
		spans = append(spans, s)
	}
	return spans
}

// skipAttributes advances past an attribute table using only the declared
// length of each attribute.
func skipAttributes(d *binio.Decoder) {
	n := d.U2()
	for i := 0; i < n && d.Err() == nil; i++ {
		d.Skip(2)
		length := d.U4()
		if uint64(length) > uint64(d.Remaining()) {
			d.Fail(fmt.Errorf("%w: attribute length %d exceeds remaining %d bytes",
				binio.ErrUnexpectedEOF, length, d.Remaining()))
			return
		}
		d.Skip(int(length))
	}
}

// attributeEnvelope is one (name, length, body) record of an attribute
// table. off is the offset of the body.
type attributeEnvelope struct {
	name   *Utf8Entry
	off    int
	length int
}

// envelopes lists the attribute table starting at off. The table was
// bounds-checked by scanStructure.
func (r *Reader) envelopes(off int) ([]attributeEnvelope, error) {
	c := r.buf
	n := c.U2(off)
	p := off + 2
	out := make([]attributeEnvelope, 0, n)
	for i := 0; i < n; i++ {
		name, err := refAt[*Utf8Entry](r, p, c.U2(p))
		if err != nil {
			return nil, err
		}
		length := int(c.U4(p + 2))
		out = append(out, attributeEnvelope{name: name, off: p + 6, length: length})
		p += 6 + length
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// ConstantPool
// ---------------------------------------------------------------------------

// Size returns the constant_pool_count.
func (r *Reader) Size() int { return len(r.offsets) }

// EntryByIndex decodes the entry at index i on first use and caches it.
func (r *Reader) EntryByIndex(i int) (Entry, error) {
	if i <= 0 || i >= len(r.offsets) || r.offsets[i] == 0 {
		return nil, malformed(0, "constant pool index %d is not an entry (pool size %d)", i, len(r.offsets))
	}
	if e := r.entries[i]; e != nil {
		return e, nil
	}
	if r.resolving[i] {
		return nil, malformed(r.offsets[i], "constant pool entry #%d refers to itself", i)
	}
	r.resolving[i] = true
	e, err := r.decodeEntry(i)
	r.resolving[i] = false
	if err != nil {
		return nil, err
	}
	r.entries[i] = e
	return e, nil
}

// refAt resolves an entry reference stored at byte offset off.
func refAt[T Entry](r *Reader, off, i int) (T, error) {
	e, err := EntryAs[T](r, i)
	if err != nil {
		var zero T
		return zero, &DecodeError{Offset: off, Reason: fmt.Sprintf("reference to #%d", i), Err: err}
	}
	return e, nil
}

func (r *Reader) decodeEntry(i int) (Entry, error) {
	c := r.buf
	p := r.offsets[i]
	h := entryHeader{pool: r, index: i}
	switch Tag(c.U1(p)) {
	case TagUtf8:
		s, err := decodeModifiedUTF8(c.Slice(p+3, c.U2(p+1)))
		if err != nil {
			return nil, &DecodeError{Offset: p, Reason: fmt.Sprintf("Utf8 entry #%d", i), Err: err}
		}
		return &Utf8Entry{entryHeader: h, value: s}, nil
	case TagInteger:
		return &IntegerEntry{entryHeader: h, value: c.I4(p + 1)}, nil
	case TagFloat:
		return &FloatEntry{entryHeader: h, value: c.F4(p + 1)}, nil
	case TagLong:
		return &LongEntry{entryHeader: h, value: c.I8(p + 1)}, nil
	case TagDouble:
		return &DoubleEntry{entryHeader: h, value: c.F8(p + 1)}, nil
	case TagClass:
		name, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		return &ClassEntry{entryHeader: h, name: name}, nil
	case TagString:
		s, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		return &StringEntry{entryHeader: h, utf8: s}, nil
	case TagMethodType:
		d, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		return &MethodTypeEntry{entryHeader: h, descriptor: d}, nil
	case TagModule:
		name, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		return &ModuleEntry{entryHeader: h, name: name}, nil
	case TagPackage:
		name, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		return &PackageEntry{entryHeader: h, name: name}, nil
	case TagNameAndType:
		name, err := refAt[*Utf8Entry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		typ, err := refAt[*Utf8Entry](r, p, c.U2(p+3))
		if err != nil {
			return nil, err
		}
		return &NameAndTypeEntry{entryHeader: h, name: name, typ: typ}, nil
	case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
		owner, err := refAt[*ClassEntry](r, p, c.U2(p+1))
		if err != nil {
			return nil, err
		}
		nat, err := refAt[*NameAndTypeEntry](r, p, c.U2(p+3))
		if err != nil {
			return nil, err
		}
		m := memberRef{entryHeader: h, owner: owner, nat: nat}
		switch Tag(c.U1(p)) {
		case TagFieldRef:
			return &FieldRefEntry{m}, nil
		case TagMethodRef:
			return &MethodRefEntry{m}, nil
		}
		return &InterfaceMethodRefEntry{m}, nil
	case TagMethodHandle:
		kind := MethodHandleKind(c.U1(p + 1))
		ref, err := refAt[MemberRefEntry](r, p, c.U2(p+2))
		if err != nil {
			return nil, err
		}
		if !handleRefMatches(kind, ref) {
			return nil, malformed(p, "method handle #%d of kind %d refers to %s", i, uint8(kind), ref.Tag())
		}
		return &MethodHandleEntry{entryHeader: h, kind: kind, ref: ref}, nil
	case TagDynamic, TagInvokeDynamic:
		bsm, err := r.BootstrapMethodByIndex(c.U2(p + 1))
		if err != nil {
			return nil, &DecodeError{Offset: p, Reason: fmt.Sprintf("bootstrap method of entry #%d", i), Err: err}
		}
		nat, err := refAt[*NameAndTypeEntry](r, p, c.U2(p+3))
		if err != nil {
			return nil, err
		}
		d := dynamicRef{entryHeader: h, bsm: bsm, nat: nat}
		if Tag(c.U1(p)) == TagDynamic {
			return &DynamicEntry{d}, nil
		}
		return &InvokeDynamicEntry{d}, nil
	}
	return nil, malformed(p, "unknown constant pool tag %d", c.U1(p))
}

// handleRefMatches checks the reference kind of a method handle against the
// kind of entry it names.
func handleRefMatches(kind MethodHandleKind, ref MemberRefEntry) bool {
	switch kind {
	case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
		return ref.Tag() == TagFieldRef
	case RefInvokeVirtual, RefNewInvokeSpecial:
		return ref.Tag() == TagMethodRef
	case RefInvokeStatic, RefInvokeSpecial:
		return ref.Tag() == TagMethodRef || ref.Tag() == TagInterfaceMethodRef
	case RefInvokeInterface:
		return ref.Tag() == TagInterfaceMethodRef
	}
	return false
}

// ---------------------------------------------------------------------------
// Bootstrap method table
// ---------------------------------------------------------------------------

// BootstrapMethodCount returns the number of rows in the BootstrapMethods
// attribute, or 0 if the class has none or it cannot be read.
func (r *Reader) BootstrapMethodCount() int {
	if r.scanBootstrap() != nil {
		return 0
	}
	return len(r.bsmOffsets)
}

// BootstrapMethodByIndex decodes row i of the bootstrap method table on
// first use.
func (r *Reader) BootstrapMethodByIndex(i int) (*BootstrapMethodEntry, error) {
	if err := r.scanBootstrap(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(r.bsmOffsets) {
		return nil, malformed(0, "bootstrap method index %d out of range (%d methods)", i, len(r.bsmOffsets))
	}
	if b := r.bsms[i]; b != nil {
		return b, nil
	}
	c := r.buf
	p := r.bsmOffsets[i]
	handle, err := refAt[*MethodHandleEntry](r, p, c.U2(p))
	if err != nil {
		return nil, err
	}
	n := c.U2(p + 2)
	args := make([]LoadableEntry, n)
	for j := range args {
		a, err := refAt[LoadableEntry](r, p+4+2*j, c.U2(p+4+2*j))
		if err != nil {
			return nil, err
		}
		args[j] = a
	}
	b := &BootstrapMethodEntry{pool: r, index: i, handle: handle, args: args}
	r.bsms[i] = b
	return b, nil
}

func (r *Reader) scanBootstrap() error {
	if r.bsmScanned {
		return r.bsmErr
	}
	r.bsmScanned = true
	envs, err := r.envelopes(r.attrStart)
	if err != nil {
		r.bsmErr = err
		return err
	}
	for _, env := range envs {
		if !env.name.Equals(attrBootstrapMethods) {
			continue
		}
		d := binio.NewDecoder(r.buf, env.off, env.off+env.length)
		n := d.U2()
		offs := make([]int, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			offs = append(offs, d.Pos())
			d.Skip(2)
			d.Skip(2 * d.U2())
		}
		switch {
		case d.Err() != nil:
			r.bsmErr = &DecodeError{Offset: d.Pos(), Reason: "BootstrapMethods attribute", Err: d.Err()}
		case d.Remaining() != 0:
			r.bsmErr = malformed(d.Pos(), "%d trailing bytes in BootstrapMethods attribute", d.Remaining())
		default:
			r.bsmOffsets = offs
			r.bsms = make([]*BootstrapMethodEntry, n)
		}
		break
	}
	return r.bsmErr
}

// poolBytes returns the encoded pool entries, without the count.
func (r *Reader) poolBytes() []byte { return r.buf.Slice(10, r.poolEnd-10) }

func (r *Reader) slice(off, n int) []byte { return r.buf.Slice(off, n) }
