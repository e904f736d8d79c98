package classfile

// Transform rewrites the elements of a traversal into a builder. Accept sees
// each original element and may forward it with b.With, replace it, drop it
// or emit more elements. AtEnd runs once after the last element, before the
// builder's output is finalized. An error from either aborts the build and
// is returned unchanged.
type Transform[B any, E any] interface {
	Accept(b B, e E) error
	AtEnd(b B) error
}

type (
	ClassTransform  = Transform[ClassBuilder, ClassElement]
	FieldTransform  = Transform[FieldBuilder, FieldElement]
	MethodTransform = Transform[MethodBuilder, MethodElement]
	CodeTransform   = Transform[CodeBuilder, CodeElement]
)

// TransformFunc adapts a function to a Transform without an end hook.
type TransformFunc[B any, E any] func(b B, e E) error

func (f TransformFunc[B, E]) Accept(b B, e E) error { return f(b, e) }
func (TransformFunc[B, E]) AtEnd(B) error           { return nil }

type (
	ClassTransformFunc  = TransformFunc[ClassBuilder, ClassElement]
	FieldTransformFunc  = TransformFunc[FieldBuilder, FieldElement]
	MethodTransformFunc = TransformFunc[MethodBuilder, MethodElement]
	CodeTransformFunc   = TransformFunc[CodeBuilder, CodeElement]
)

// ---------------------------------------------------------------------------
// Composition
// ---------------------------------------------------------------------------

type chainTransform[B any, E any] struct {
	first, second Transform[B, E]
}

// Accept and AtEnd are used only when a chain is applied outside a
// traversal; traversals resolve chains into chained builders.
func (c chainTransform[B, E]) Accept(b B, e E) error {
	return misuse("chained transform applied outside a traversal")
}

func (c chainTransform[B, E]) AtEnd(B) error { return nil }

// Chain composes transforms left to right: the second sees whatever the
// first emits, through a chained builder rather than a buffered copy.
func Chain[B any, E any](ts ...Transform[B, E]) Transform[B, E] {
	if len(ts) == 0 {
		return nil
	}
	t := ts[0]
	for _, next := range ts[1:] {
		t = chainTransform[B, E]{first: t, second: next}
	}
	return t
}

// ClassChain composes class transforms.
func ClassChain(ts ...ClassTransform) ClassTransform { return Chain(ts...) }

// FieldChain composes field transforms.
func FieldChain(ts ...FieldTransform) FieldTransform { return Chain(ts...) }

// MethodChain composes method transforms.
func MethodChain(ts ...MethodTransform) MethodTransform { return Chain(ts...) }

// CodeChain composes code transforms.
func CodeChain(ts ...CodeTransform) CodeTransform { return Chain(ts...) }

type statefulTransform[B any, E any] struct {
	factory func() Transform[B, E]
}

func (s statefulTransform[B, E]) Accept(b B, e E) error {
	return misuse("stateful transform applied outside a traversal")
}

func (s statefulTransform[B, E]) AtEnd(B) error { return nil }

// Stateful returns a transform whose state is created fresh by factory for
// every traversal it is applied to.
func Stateful[B any, E any](factory func() Transform[B, E]) Transform[B, E] {
	return statefulTransform[B, E]{factory: factory}
}

// session is a transform bound to one builder for one traversal.
type session[E any] struct {
	accept func(E) error
	atEnd  func() error
}

// resolve binds t to b. Stateful transforms get fresh state; chains bind
// their second stage to b and their first to a chained builder feeding it.
func resolve[B any, E any](t Transform[B, E], b B, chain func(down B, consumer func(E) error) B) session[E] {
	switch t := t.(type) {
	case statefulTransform[B, E]:
		return resolve(t.factory(), b, chain)
	case chainTransform[B, E]:
		second := resolve(t.second, b, chain)
		first := resolve(t.first, chain(b, second.accept), chain)
		return session[E]{
			accept: first.accept,
			atEnd: func() error {
				if err := first.atEnd(); err != nil {
					return err
				}
				return second.atEnd()
			},
		}
	}
	return session[E]{
		accept: func(e E) error { return t.Accept(b, e) },
		atEnd:  func() error { return t.AtEnd(b) },
	}
}

type erring interface {
	Err() error
}

// run replays a traversal through t into b, stopping at the first error of
// the transform or the builder.
func run[B erring, E any](forEach func(func(E) error) error, t Transform[B, E], b B, chain func(B, func(E) error) B) error {
	if t == nil {
		return misuse("nil transform")
	}
	s := resolve(t, b, chain)
	err := forEach(func(e E) error {
		if err := s.accept(e); err != nil {
			return err
		}
		return b.Err()
	})
	if err != nil {
		return err
	}
	if err := s.atEnd(); err != nil {
		return err
	}
	return b.Err()
}

func runClass(m *ClassModel, t ClassTransform, b ClassBuilder) error {
	return run(m.ForEach, t, b, chainClass)
}

func runField(f FieldModel, t FieldTransform, b FieldBuilder) error {
	return run(f.ForEach, t, b, chainField)
}

func runMethod(m MethodModel, t MethodTransform, b MethodBuilder) error {
	return run(m.ForEach, t, b, chainMethod)
}

func runCode(c CodeModel, t CodeTransform, b CodeBuilder) error {
	return run(c.ForEach, t, b, chainCode)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type withBuilder[B any, E any] interface {
	With(e E) B
}

type passThrough[B withBuilder[B, E], E any] struct {
	drop func(E) bool
	end  func(B) error
}

func (p passThrough[B, E]) Accept(b B, e E) error {
	if p.drop == nil || !p.drop(e) {
		b.With(e)
	}
	return nil
}

func (p passThrough[B, E]) AtEnd(b B) error {
	if p.end != nil {
		return p.end(b)
	}
	return nil
}

// Transforms that forward every element unchanged.
var (
	ClassPassThrough  ClassTransform  = passThrough[ClassBuilder, ClassElement]{}
	FieldPassThrough  FieldTransform  = passThrough[FieldBuilder, FieldElement]{}
	MethodPassThrough MethodTransform = passThrough[MethodBuilder, MethodElement]{}
	CodePassThrough   CodeTransform   = passThrough[CodeBuilder, CodeElement]{}
)

// ClassEndHandler forwards every element and calls fn at the end.
func ClassEndHandler(fn func(ClassBuilder) error) ClassTransform {
	return passThrough[ClassBuilder, ClassElement]{end: fn}
}

// MethodEndHandler forwards every element and calls fn at the end.
func MethodEndHandler(fn func(MethodBuilder) error) MethodTransform {
	return passThrough[MethodBuilder, MethodElement]{end: fn}
}

// FieldEndHandler forwards every element and calls fn at the end.
func FieldEndHandler(fn func(FieldBuilder) error) FieldTransform {
	return passThrough[FieldBuilder, FieldElement]{end: fn}
}

// CodeEndHandler forwards every element and calls fn at the end.
func CodeEndHandler(fn func(CodeBuilder) error) CodeTransform {
	return passThrough[CodeBuilder, CodeElement]{end: fn}
}

// DropClassElements drops the elements matching pred.
func DropClassElements(pred func(ClassElement) bool) ClassTransform {
	return passThrough[ClassBuilder, ClassElement]{drop: pred}
}

// DropMethodElements drops the elements matching pred.
func DropMethodElements(pred func(MethodElement) bool) MethodTransform {
	return passThrough[MethodBuilder, MethodElement]{drop: pred}
}

// DropFieldElements drops the elements matching pred.
func DropFieldElements(pred func(FieldElement) bool) FieldTransform {
	return passThrough[FieldBuilder, FieldElement]{drop: pred}
}

// DropCodeElements drops the elements matching pred.
func DropCodeElements(pred func(CodeElement) bool) CodeTransform {
	return passThrough[CodeBuilder, CodeElement]{drop: pred}
}

// TransformingMethods applies t to the methods matching pred (all methods
// when pred is nil) and forwards every other element.
func TransformingMethods(pred func(MethodModel) bool, t MethodTransform) ClassTransform {
	return ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
		if m, ok := e.(MethodModel); ok && (pred == nil || pred(m)) {
			b.TransformMethod(m, t)
			return nil
		}
		b.With(e)
		return nil
	})
}

// TransformingFields applies t to the fields matching pred (all fields when
// pred is nil) and forwards every other element.
func TransformingFields(pred func(FieldModel) bool, t FieldTransform) ClassTransform {
	return ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
		if f, ok := e.(FieldModel); ok && (pred == nil || pred(f)) {
			b.TransformField(f, t)
			return nil
		}
		b.With(e)
		return nil
	})
}

// TransformingCode applies t to the body of a method.
func TransformingCode(t CodeTransform) MethodTransform {
	return MethodTransformFunc(func(b MethodBuilder, e MethodElement) error {
		if c, ok := e.(CodeModel); ok {
			b.TransformCode(c, t)
			return nil
		}
		b.With(e)
		return nil
	})
}

// TransformingMethodBodies applies t to the bodies of the methods matching
// pred.
func TransformingMethodBodies(pred func(MethodModel) bool, t CodeTransform) ClassTransform {
	return TransformingMethods(pred, TransformingCode(t))
}
