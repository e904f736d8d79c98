package classfile

// buildSession is the state shared by every builder of one Build or
// Transform call. The first failure is kept and aborts the build.
type buildSession struct {
	opts Option
	err  error
}

func (s *buildSession) fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// ---------------------------------------------------------------------------
// Class builders
// ---------------------------------------------------------------------------

// ClassBuilder accepts the elements of a class being built. Failures are
// sticky: later calls do nothing and Err reports the first failure.
type ClassBuilder interface {
	With(e ClassElement) ClassBuilder
	WithFlags(f AccessFlags) ClassBuilder
	WithVersion(major, minor int) ClassBuilder
	WithSuperclass(c *ClassEntry) ClassBuilder
	WithInterfaces(cs ...*ClassEntry) ClassBuilder
	// WithField adds a field configured by handler.
	WithField(name, descriptor string, flags AccessFlags, handler func(FieldBuilder) error) ClassBuilder
	// WithMethod adds a method configured by handler.
	WithMethod(name, descriptor string, flags AccessFlags, handler func(MethodBuilder) error) ClassBuilder
	// TransformField adds f rewritten by t.
	TransformField(f FieldModel, t FieldTransform) ClassBuilder
	// TransformMethod adds m rewritten by t.
	TransformMethod(m MethodModel, t MethodTransform) ClassBuilder
	// Transform replays the elements of m through t into this builder.
	Transform(m *ClassModel, t ClassTransform) ClassBuilder

	ThisClass() *ClassEntry
	// Original returns the class being transformed, nil for Build.
	Original() *ClassModel
	ConstantPool() *PoolBuilder
	Err() error

	session() *buildSession
}

// classOps implements the ClassBuilder conveniences on top of With.
type classOps struct {
	self ClassBuilder
}

func (o classOps) WithFlags(f AccessFlags) ClassBuilder { return o.self.With(f) }

func (o classOps) WithVersion(major, minor int) ClassBuilder {
	return o.self.With(Version{Major: major, Minor: minor})
}

func (o classOps) WithSuperclass(c *ClassEntry) ClassBuilder {
	return o.self.With(Superclass{Class: c})
}

func (o classOps) WithInterfaces(cs ...*ClassEntry) ClassBuilder {
	return o.self.With(Interfaces{Classes: cs})
}

func (o classOps) WithField(name, descriptor string, flags AccessFlags, handler func(FieldBuilder) error) ClassBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	pool := b.ConstantPool()
	fb := newBufferedFieldBuilder(b.session(), pool, pool.Utf8Entry(name), pool.Utf8Entry(descriptor), flags, nil)
	if err := handler(fb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(fb.model())
}

func (o classOps) WithMethod(name, descriptor string, flags AccessFlags, handler func(MethodBuilder) error) ClassBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	pool := b.ConstantPool()
	mb := newBufferedMethodBuilder(b.session(), pool, pool.Utf8Entry(name), pool.Utf8Entry(descriptor), flags, nil)
	if err := handler(mb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(mb.model())
}

func (o classOps) TransformField(f FieldModel, t FieldTransform) ClassBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	fb := newBufferedFieldBuilder(b.session(), b.ConstantPool(), f.Name(), f.Descriptor(), f.Flags(), f)
	if err := runField(f, t, fb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(fb.model())
}

func (o classOps) TransformMethod(m MethodModel, t MethodTransform) ClassBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	mb := newBufferedMethodBuilder(b.session(), b.ConstantPool(), m.Name(), m.Descriptor(), m.Flags(), m)
	if err := runMethod(m, t, mb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(mb.model())
}

func (o classOps) Transform(m *ClassModel, t ClassTransform) ClassBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	if err := runClass(m, t, b); err != nil {
		b.session().fail(err)
	}
	return b
}

// chainedClassBuilder hands each element to the next stage of a transform
// chain. Everything else is delegated to the terminal builder.
type chainedClassBuilder struct {
	classOps
	terminal ClassBuilder
	consumer func(ClassElement) error
}

func chainClass(down ClassBuilder, consumer func(ClassElement) error) ClassBuilder {
	terminal := down
	if c, ok := down.(*chainedClassBuilder); ok {
		terminal = c.terminal
	}
	b := &chainedClassBuilder{terminal: terminal, consumer: consumer}
	b.self = b
	return b
}

func (b *chainedClassBuilder) With(e ClassElement) ClassBuilder {
	if b.Err() != nil {
		return b
	}
	if e == nil {
		b.session().fail(misuse("nil class element"))
		return b
	}
	if err := b.consumer(e); err != nil {
		b.session().fail(err)
	}
	return b
}

func (b *chainedClassBuilder) ThisClass() *ClassEntry     { return b.terminal.ThisClass() }
func (b *chainedClassBuilder) Original() *ClassModel      { return b.terminal.Original() }
func (b *chainedClassBuilder) ConstantPool() *PoolBuilder { return b.terminal.ConstantPool() }
func (b *chainedClassBuilder) Err() error                 { return b.terminal.Err() }
func (b *chainedClassBuilder) session() *buildSession     { return b.terminal.session() }

// ---------------------------------------------------------------------------
// Field builders
// ---------------------------------------------------------------------------

// FieldBuilder accepts the elements of a field.
type FieldBuilder interface {
	With(e FieldElement) FieldBuilder
	WithFlags(f AccessFlags) FieldBuilder
	// Transform replays the elements of f through t into this builder.
	Transform(f FieldModel, t FieldTransform) FieldBuilder

	Name() *Utf8Entry
	Descriptor() *Utf8Entry
	// Original returns the field being transformed, if any.
	Original() FieldModel
	ConstantPool() *PoolBuilder
	Err() error

	session() *buildSession
}

type fieldOps struct {
	self FieldBuilder
}

func (o fieldOps) WithFlags(f AccessFlags) FieldBuilder { return o.self.With(f) }

func (o fieldOps) Transform(f FieldModel, t FieldTransform) FieldBuilder {
	b := o.self
	if b.Err() == nil {
		if err := runField(f, t, b); err != nil {
			b.session().fail(err)
		}
	}
	return b
}

// bufferedFieldBuilder collects a field into a bufferedField.
type bufferedFieldBuilder struct {
	fieldOps
	s        *buildSession
	pool     *PoolBuilder
	original FieldModel
	f        bufferedField
}

func newBufferedFieldBuilder(s *buildSession, pool *PoolBuilder, name, typ *Utf8Entry, flags AccessFlags, original FieldModel) *bufferedFieldBuilder {
	b := &bufferedFieldBuilder{s: s, pool: pool, original: original, f: bufferedField{flags: flags, name: name, desc: typ}}
	b.self = b
	return b
}

func (b *bufferedFieldBuilder) With(e FieldElement) FieldBuilder {
	if b.s.err != nil {
		return b
	}
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil field element"))
	case AccessFlags:
		b.f.flags = e
	default:
		b.f.elements = append(b.f.elements, e)
	}
	return b
}

func (b *bufferedFieldBuilder) model() *bufferedField {
	f := b.f
	return &f
}

func (b *bufferedFieldBuilder) Name() *Utf8Entry           { return b.f.name }
func (b *bufferedFieldBuilder) Descriptor() *Utf8Entry     { return b.f.desc }
func (b *bufferedFieldBuilder) Original() FieldModel       { return b.original }
func (b *bufferedFieldBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *bufferedFieldBuilder) session() *buildSession     { return b.s }

func (b *bufferedFieldBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

type chainedFieldBuilder struct {
	fieldOps
	terminal FieldBuilder
	consumer func(FieldElement) error
}

func chainField(down FieldBuilder, consumer func(FieldElement) error) FieldBuilder {
	terminal := down
	if c, ok := down.(*chainedFieldBuilder); ok {
		terminal = c.terminal
	}
	b := &chainedFieldBuilder{terminal: terminal, consumer: consumer}
	b.self = b
	return b
}

func (b *chainedFieldBuilder) With(e FieldElement) FieldBuilder {
	if b.Err() != nil {
		return b
	}
	if e == nil {
		b.session().fail(misuse("nil field element"))
		return b
	}
	if err := b.consumer(e); err != nil {
		b.session().fail(err)
	}
	return b
}

func (b *chainedFieldBuilder) Name() *Utf8Entry           { return b.terminal.Name() }
func (b *chainedFieldBuilder) Descriptor() *Utf8Entry     { return b.terminal.Descriptor() }
func (b *chainedFieldBuilder) Original() FieldModel       { return b.terminal.Original() }
func (b *chainedFieldBuilder) ConstantPool() *PoolBuilder { return b.terminal.ConstantPool() }
func (b *chainedFieldBuilder) Err() error                 { return b.terminal.Err() }
func (b *chainedFieldBuilder) session() *buildSession     { return b.terminal.session() }

// ---------------------------------------------------------------------------
// Method builders
// ---------------------------------------------------------------------------

// MethodBuilder accepts the elements of a method.
type MethodBuilder interface {
	With(e MethodElement) MethodBuilder
	WithFlags(f AccessFlags) MethodBuilder
	// WithCode adds a body configured by handler.
	WithCode(handler func(CodeBuilder) error) MethodBuilder
	// TransformCode adds c rewritten by t.
	TransformCode(c CodeModel, t CodeTransform) MethodBuilder
	// Transform replays the elements of m through t into this builder.
	Transform(m MethodModel, t MethodTransform) MethodBuilder

	Name() *Utf8Entry
	Descriptor() *Utf8Entry
	// Flags returns the flags as currently set.
	Flags() AccessFlags
	// Original returns the method being transformed, if any.
	Original() MethodModel
	ConstantPool() *PoolBuilder
	Err() error

	session() *buildSession
}

type methodOps struct {
	self MethodBuilder
}

func (o methodOps) WithFlags(f AccessFlags) MethodBuilder { return o.self.With(f) }

func (o methodOps) WithCode(handler func(CodeBuilder) error) MethodBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	cb, err := newBufferedCodeBuilderFor(b, nil)
	if err != nil {
		b.session().fail(err)
		return b
	}
	if err := handler(cb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(cb.model())
}

func (o methodOps) TransformCode(c CodeModel, t CodeTransform) MethodBuilder {
	b := o.self
	if b.Err() != nil {
		return b
	}
	cb, err := newBufferedCodeBuilderFor(b, c)
	if err != nil {
		b.session().fail(err)
		return b
	}
	if err := runCode(c, t, cb); err != nil {
		b.session().fail(err)
		return b
	}
	return b.With(cb.model())
}

func (o methodOps) Transform(m MethodModel, t MethodTransform) MethodBuilder {
	b := o.self
	if b.Err() == nil {
		if err := runMethod(m, t, b); err != nil {
			b.session().fail(err)
		}
	}
	return b
}

// bufferedMethodBuilder collects a method into a bufferedMethod.
type bufferedMethodBuilder struct {
	methodOps
	s        *buildSession
	pool     *PoolBuilder
	original MethodModel
	m        bufferedMethod
}

func newBufferedMethodBuilder(s *buildSession, pool *PoolBuilder, name, typ *Utf8Entry, flags AccessFlags, original MethodModel) *bufferedMethodBuilder {
	b := &bufferedMethodBuilder{s: s, pool: pool, original: original, m: bufferedMethod{flags: flags, name: name, desc: typ}}
	b.self = b
	return b
}

func (b *bufferedMethodBuilder) With(e MethodElement) MethodBuilder {
	if b.s.err != nil {
		return b
	}
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil method element"))
	case AccessFlags:
		b.m.flags = e
	default:
		b.m.elements = append(b.m.elements, e)
	}
	return b
}

func (b *bufferedMethodBuilder) model() *bufferedMethod {
	m := b.m
	return &m
}

func (b *bufferedMethodBuilder) Name() *Utf8Entry           { return b.m.name }
func (b *bufferedMethodBuilder) Descriptor() *Utf8Entry     { return b.m.desc }
func (b *bufferedMethodBuilder) Flags() AccessFlags         { return b.m.flags }
func (b *bufferedMethodBuilder) Original() MethodModel      { return b.original }
func (b *bufferedMethodBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *bufferedMethodBuilder) session() *buildSession     { return b.s }

func (b *bufferedMethodBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

type chainedMethodBuilder struct {
	methodOps
	terminal MethodBuilder
	consumer func(MethodElement) error
}

func chainMethod(down MethodBuilder, consumer func(MethodElement) error) MethodBuilder {
	terminal := down
	if c, ok := down.(*chainedMethodBuilder); ok {
		terminal = c.terminal
	}
	b := &chainedMethodBuilder{terminal: terminal, consumer: consumer}
	b.self = b
	return b
}

func (b *chainedMethodBuilder) With(e MethodElement) MethodBuilder {
	if b.Err() != nil {
		return b
	}
	if e == nil {
		b.session().fail(misuse("nil method element"))
		return b
	}
	if err := b.consumer(e); err != nil {
		b.session().fail(err)
	}
	return b
}

func (b *chainedMethodBuilder) Name() *Utf8Entry           { return b.terminal.Name() }
func (b *chainedMethodBuilder) Descriptor() *Utf8Entry     { return b.terminal.Descriptor() }
func (b *chainedMethodBuilder) Flags() AccessFlags         { return b.terminal.Flags() }
func (b *chainedMethodBuilder) Original() MethodModel      { return b.terminal.Original() }
func (b *chainedMethodBuilder) ConstantPool() *PoolBuilder { return b.terminal.ConstantPool() }
func (b *chainedMethodBuilder) Err() error                 { return b.terminal.Err() }
func (b *chainedMethodBuilder) session() *buildSession     { return b.terminal.session() }
