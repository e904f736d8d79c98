package classfile

import (
	"github.com/chazu/cfx/binio"
	"github.com/chazu/cfx/desc"
)

// memberCopyable reports whether bound fields and methods may be copied
// verbatim under opts.
func memberCopyable(opts Option) bool {
	return opts&(DropDebugInfo|DropLineNumbers|DropStackMaps|DropUnknownAttributes) == 0
}

// builtCode is a Code attribute whose body is already encoded.
type builtCode struct {
	attrBase
	body []byte
}

func (*builtCode) AttributeName() string { return attrCode }

func (c *builtCode) writeBody(w *bufWriter) error {
	w.Write(c.body)
	return nil
}

// ---------------------------------------------------------------------------
// Direct class builder
// ---------------------------------------------------------------------------

// directClassBuilder serializes members as they arrive and assembles the
// classfile once the pool is complete.
type directClassBuilder struct {
	classOps
	s          *buildSession
	pool       *PoolBuilder
	original   *ClassModel
	this       *ClassEntry
	flags      AccessFlags
	major      int
	minor      int
	super      *ClassEntry
	interfaces []*ClassEntry

	fields      *bufWriter
	fieldCount  int
	methods     *bufWriter
	methodCount int
	attrs       []Attribute
}

func newDirectClassBuilder(s *buildSession, pool *PoolBuilder, this *ClassEntry, original *ClassModel) *directClassBuilder {
	b := &directClassBuilder{
		s:        s,
		pool:     pool,
		original: original,
		this:     adopt(pool, this),
		flags:    AccPublic,
		major:    DefaultMajorVersion,
		fields:   newBufWriter(s, pool),
		methods:  newBufWriter(s, pool),
	}
	b.self = b
	return b
}

func (b *directClassBuilder) ThisClass() *ClassEntry     { return b.this }
func (b *directClassBuilder) Original() *ClassModel      { return b.original }
func (b *directClassBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *directClassBuilder) session() *buildSession     { return b.s }

func (b *directClassBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

func (b *directClassBuilder) With(e ClassElement) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil class element"))
	case AccessFlags:
		b.flags = e
	case Version:
		b.major, b.minor = e.Major, e.Minor
	case Superclass:
		b.super = e.Class
	case Interfaces:
		b.interfaces = e.Classes
	case FieldModel:
		b.s.fail(b.writeField(e))
	case MethodModel:
		b.s.fail(b.writeMethod(e))
	case Attribute:
		b.attrs = append(b.attrs, e)
	default:
		b.s.fail(misuse("unsupported class element %T", e))
	}
	return b
}

func (b *directClassBuilder) WithField(name, descriptor string, flags AccessFlags, handler func(FieldBuilder) error) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	fb := newDirectFieldBuilder(b.s, b.pool, b.pool.Utf8Entry(name), b.pool.Utf8Entry(descriptor), flags, nil)
	if err := handler(fb); err != nil {
		b.s.fail(err)
		return b
	}
	b.s.fail(b.finishField(fb))
	return b
}

func (b *directClassBuilder) TransformField(f FieldModel, t FieldTransform) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	fb := newDirectFieldBuilder(b.s, b.pool, f.Name(), f.Descriptor(), f.Flags(), f)
	if err := runField(f, t, fb); err != nil {
		b.s.fail(err)
		return b
	}
	b.s.fail(b.finishField(fb))
	return b
}

func (b *directClassBuilder) WithMethod(name, descriptor string, flags AccessFlags, handler func(MethodBuilder) error) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	mb := newDirectMethodBuilder(b.s, b.pool, b.pool.Utf8Entry(name), b.pool.Utf8Entry(descriptor), flags, nil)
	if err := handler(mb); err != nil {
		b.s.fail(err)
		return b
	}
	b.s.fail(b.finishMethod(mb))
	return b
}

func (b *directClassBuilder) TransformMethod(m MethodModel, t MethodTransform) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	mb := newDirectMethodBuilder(b.s, b.pool, m.Name(), m.Descriptor(), m.Flags(), m)
	if err := runMethod(m, t, mb); err != nil {
		b.s.fail(err)
		return b
	}
	b.s.fail(b.finishMethod(mb))
	return b
}

func (b *directClassBuilder) writeField(f FieldModel) error {
	if bf, ok := f.(*boundField); ok && b.fields.shares(bf.class.r) && memberCopyable(b.s.opts) {
		b.fields.Write(bf.class.r.slice(bf.span.start, bf.span.end-bf.span.start))
		b.fieldCount++
		return nil
	}
	fb := newDirectFieldBuilder(b.s, b.pool, f.Name(), f.Descriptor(), f.Flags(), f)
	err := f.ForEach(func(e FieldElement) error {
		fb.With(e)
		return fb.Err()
	})
	if err != nil {
		return err
	}
	return b.finishField(fb)
}

func (b *directClassBuilder) writeMethod(m MethodModel) error {
	if bm, ok := m.(*boundMethod); ok && b.methods.shares(bm.class.r) && memberCopyable(b.s.opts) {
		b.methods.Write(bm.class.r.slice(bm.span.start, bm.span.end-bm.span.start))
		b.methodCount++
		return nil
	}
	mb := newDirectMethodBuilder(b.s, b.pool, m.Name(), m.Descriptor(), m.Flags(), m)
	err := m.ForEach(func(e MethodElement) error {
		mb.With(e)
		return mb.Err()
	})
	if err != nil {
		return err
	}
	return b.finishMethod(mb)
}

func (b *directClassBuilder) finishField(fb *directFieldBuilder) error {
	if err := fb.Err(); err != nil {
		return err
	}
	b.fieldCount++
	return fb.writeTo(b.fields)
}

func (b *directClassBuilder) finishMethod(mb *directMethodBuilder) error {
	if err := mb.Err(); err != nil {
		return err
	}
	b.methodCount++
	return mb.writeTo(b.methods)
}

// build assembles the classfile. The constant pool is written last among
// the inputs, after every member and attribute has interned its entries.
func (b *directClassBuilder) build() ([]byte, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if b.fieldCount > 0xFFFF || b.methodCount > 0xFFFF {
		return nil, misuse("%d fields and %d methods", b.fieldCount, b.methodCount)
	}
	aw := newBufWriter(b.s, b.pool)
	if err := aw.attributeList(b.attrs); err != nil {
		return nil, err
	}
	nattrs := len(b.attrs)
	if b.pool.BootstrapMethodCount() > 0 {
		nattrs++
		aw.ref(b.pool.Utf8Entry(attrBootstrapMethods))
		mark := aw.BeginLength()
		b.pool.writeBootstrapMethods(aw.Writer)
		if err := aw.EndLength(mark); err != nil {
			return nil, err
		}
	}
	hw := newBufWriter(b.s, b.pool)
	hw.U2(int(b.flags))
	hw.ref(b.this)
	hw.optRef(b.super)
	hw.count(len(b.interfaces))
	for _, c := range b.interfaces {
		hw.ref(c)
	}
	for _, w := range []*bufWriter{aw, hw, b.fields, b.methods} {
		if w.err != nil {
			return nil, w.err
		}
	}
	if err := b.pool.Err(); err != nil {
		return nil, err
	}

	out := binio.NewWriter(16 + hw.Len() + b.fields.Len() + b.methods.Len() + aw.Len())
	out.U4(Magic)
	out.U2(b.minor)
	out.U2(b.major)
	b.pool.writeTo(out)
	out.Write(hw.Bytes())
	out.U2(b.fieldCount)
	out.Write(b.fields.Bytes())
	out.U2(b.methodCount)
	out.Write(b.methods.Bytes())
	out.U2(nattrs)
	out.Write(aw.Bytes())
	log.Debugf("built %s: %d bytes, %d pool slots, %d fields, %d methods",
		b.this.InternalName(), out.Len(), b.pool.Size(), b.fieldCount, b.methodCount)
	return out.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Direct field and method builders
// ---------------------------------------------------------------------------

type directFieldBuilder struct {
	fieldOps
	s        *buildSession
	pool     *PoolBuilder
	original FieldModel
	name     *Utf8Entry
	desc     *Utf8Entry
	flags    AccessFlags
	attrs    []Attribute
}

func newDirectFieldBuilder(s *buildSession, pool *PoolBuilder, name, typ *Utf8Entry, flags AccessFlags, original FieldModel) *directFieldBuilder {
	b := &directFieldBuilder{s: s, pool: pool, original: original, name: name, desc: typ, flags: flags}
	b.self = b
	return b
}

func (b *directFieldBuilder) With(e FieldElement) FieldBuilder {
	if b.Err() != nil {
		return b
	}
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil field element"))
	case AccessFlags:
		b.flags = e
	case Attribute:
		b.attrs = append(b.attrs, e)
	default:
		b.s.fail(misuse("unsupported field element %T", e))
	}
	return b
}

func (b *directFieldBuilder) Name() *Utf8Entry           { return b.name }
func (b *directFieldBuilder) Descriptor() *Utf8Entry     { return b.desc }
func (b *directFieldBuilder) Original() FieldModel       { return b.original }
func (b *directFieldBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *directFieldBuilder) session() *buildSession     { return b.s }

func (b *directFieldBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

func (b *directFieldBuilder) writeTo(w *bufWriter) error {
	w.U2(int(b.flags))
	w.ref(b.name)
	w.ref(b.desc)
	return w.attributes(b.attrs)
}

type directMethodBuilder struct {
	methodOps
	s        *buildSession
	pool     *PoolBuilder
	original MethodModel
	name     *Utf8Entry
	desc     *Utf8Entry
	flags    AccessFlags
	attrs    []Attribute
}

func newDirectMethodBuilder(s *buildSession, pool *PoolBuilder, name, typ *Utf8Entry, flags AccessFlags, original MethodModel) *directMethodBuilder {
	b := &directMethodBuilder{s: s, pool: pool, original: original, name: name, desc: typ, flags: flags}
	b.self = b
	return b
}

func (b *directMethodBuilder) Name() *Utf8Entry           { return b.name }
func (b *directMethodBuilder) Descriptor() *Utf8Entry     { return b.desc }
func (b *directMethodBuilder) Flags() AccessFlags         { return b.flags }
func (b *directMethodBuilder) Original() MethodModel      { return b.original }
func (b *directMethodBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *directMethodBuilder) session() *buildSession     { return b.s }

func (b *directMethodBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

func (b *directMethodBuilder) methodDesc() (desc.MethodDesc, error) {
	md, err := desc.ParseMethod(b.desc.value)
	if err != nil {
		return desc.MethodDesc{}, misuse("method %s: %v", b.name.value, err)
	}
	return md, nil
}

func (b *directMethodBuilder) With(e MethodElement) MethodBuilder {
	if b.Err() != nil {
		return b
	}
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil method element"))
	case AccessFlags:
		b.flags = e
	case *CodeAttribute:
		b.attrs = append(b.attrs, e)
	case CodeModel:
		md, err := b.methodDesc()
		if err != nil {
			b.s.fail(err)
			return b
		}
		body, err := buildCodeBody(b.s, b.pool, b.flags.IsStatic(), md, e, nil)
		if err != nil {
			b.s.fail(err)
			return b
		}
		b.attrs = append(b.attrs, &builtCode{body: body})
	case Attribute:
		b.attrs = append(b.attrs, e)
	default:
		b.s.fail(misuse("unsupported method element %T", e))
	}
	return b
}

func (b *directMethodBuilder) WithCode(handler func(CodeBuilder) error) MethodBuilder {
	return b.code(nil, func(cb *directCodeBuilder) error { return handler(cb) })
}

func (b *directMethodBuilder) TransformCode(c CodeModel, t CodeTransform) MethodBuilder {
	return b.code(c, func(cb *directCodeBuilder) error { return runCode(c, t, cb) })
}

func (b *directMethodBuilder) code(original CodeModel, fill func(*directCodeBuilder) error) MethodBuilder {
	if b.Err() != nil {
		return b
	}
	md, err := b.methodDesc()
	if err != nil {
		b.s.fail(err)
		return b
	}
	cb := newDirectCodeBuilder(b.s, b.pool, b.flags.IsStatic(), md, original)
	if err := fill(cb); err != nil {
		b.s.fail(err)
		return b
	}
	body, err := cb.finish()
	if err != nil {
		b.s.fail(err)
		return b
	}
	b.attrs = append(b.attrs, &builtCode{body: body})
	return b
}

func (b *directMethodBuilder) writeTo(w *bufWriter) error {
	w.U2(int(b.flags))
	w.ref(b.name)
	w.ref(b.desc)
	return w.attributes(b.attrs)
}
