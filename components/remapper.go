package components

import (
	"fmt"
	"strings"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/chazu/cfx/signature"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cfx.components")

// ClassRemapper is a ClassTransform that renames class references. The
// rename function sees class descriptors only: array descriptors are
// reduced to their element type first, and primitives are never passed.
//
// FieldTransform, MethodTransform and CodeTransform expose the same
// rewriting for use on their own. A ClassRemapper holds no per-traversal
// state and may be reused.
type ClassRemapper struct {
	rename func(desc.ClassDesc) desc.ClassDesc
}

// NewClassRemapper returns a remapper applying rename to every class
// descriptor.
func NewClassRemapper(rename func(desc.ClassDesc) desc.ClassDesc) *ClassRemapper {
	if rename == nil {
		rename = func(d desc.ClassDesc) desc.ClassDesc { return d }
	}
	return &ClassRemapper{rename: rename}
}

// NewMapRemapper returns a remapper renaming internal names by table.
// Names missing from renames are kept.
func NewMapRemapper(renames map[string]string) *ClassRemapper {
	return NewClassRemapper(func(d desc.ClassDesc) desc.ClassDesc {
		if to, ok := renames[d.InternalName()]; ok {
			return desc.OfInternalName(to)
		}
		return d
	})
}

// Map renames d. Arrays keep their dimensions.
func (r *ClassRemapper) Map(d desc.ClassDesc) desc.ClassDesc {
	el, dims := d.ElementType()
	if !el.IsClass() {
		return d
	}
	return desc.ClassDesc(strings.Repeat("[", dims)) + r.rename(el)
}

// MapInternalName renames a constant-pool class name, which is either a
// binary name or an array descriptor.
func (r *ClassRemapper) MapInternalName(name string) string {
	return r.Map(desc.OfInternalName(name)).InternalName()
}

// RemapClass rewrites m including its own name.
func (r *ClassRemapper) RemapClass(m *classfile.ClassModel) ([]byte, error) {
	name := r.MapInternalName(m.ThisClass().InternalName())
	log.Debugf("remapping %s to %s", m.ThisClass().InternalName(), name)
	return m.TransformAs(name, r)
}

// ---------------------------------------------------------------------------
// Class level
// ---------------------------------------------------------------------------

// Accept rewrites one class element.
func (r *ClassRemapper) Accept(b classfile.ClassBuilder, e classfile.ClassElement) error {
	pool := b.ConstantPool()
	switch e := e.(type) {
	case classfile.FieldModel:
		typ, err := r.mapFieldDesc(e.Descriptor().String())
		if err != nil {
			return err
		}
		b.WithField(e.Name().String(), typ, e.Flags(), func(fb classfile.FieldBuilder) error {
			fb.Transform(e, r.FieldTransform())
			return nil
		})
	case classfile.MethodModel:
		typ, err := r.mapMethodDesc(e.Descriptor().String())
		if err != nil {
			return err
		}
		b.WithMethod(e.Name().String(), typ, e.Flags(), func(mb classfile.MethodBuilder) error {
			mb.Transform(e, r.MethodTransform())
			return nil
		})
	case classfile.Superclass:
		b.WithSuperclass(r.mapClass(pool, e.Class))
	case classfile.Interfaces:
		b.WithInterfaces(r.mapClasses(pool, e.Classes)...)
	case *classfile.SignatureAttribute:
		sig, err := signature.ParseClass(e.Signature.String())
		if err != nil {
			return err
		}
		b.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry(r.mapClassSig(sig).String())})
	case *classfile.InnerClassesAttribute:
		out := &classfile.InnerClassesAttribute{Classes: make([]classfile.InnerClassInfo, len(e.Classes))}
		for i, ic := range e.Classes {
			ic.Inner = r.mapClass(pool, ic.Inner)
			ic.Outer = r.mapClass(pool, ic.Outer)
			out.Classes[i] = ic
		}
		b.With(out)
	case *classfile.EnclosingMethodAttribute:
		out := &classfile.EnclosingMethodAttribute{Class: r.mapClass(pool, e.Class)}
		if e.Method != nil {
			typ, err := r.mapMethodDesc(e.Method.Type().String())
			if err != nil {
				return err
			}
			out.Method = pool.NameAndTypeEntry(e.Method.Name().String(), typ)
		}
		b.With(out)
	case *classfile.NestHostAttribute:
		b.With(&classfile.NestHostAttribute{Host: r.mapClass(pool, e.Host)})
	case *classfile.NestMembersAttribute:
		b.With(&classfile.NestMembersAttribute{Members: r.mapClasses(pool, e.Members)})
	case *classfile.PermittedSubclassesAttribute:
		b.With(&classfile.PermittedSubclassesAttribute{Subclasses: r.mapClasses(pool, e.Subclasses)})
	case *classfile.RecordAttribute:
		out := &classfile.RecordAttribute{Components: make([]classfile.RecordComponent, len(e.Components))}
		for i, c := range e.Components {
			rc, err := r.mapRecordComponent(pool, c)
			if err != nil {
				return err
			}
			out.Components[i] = rc
		}
		b.With(out)
	case *classfile.ModuleAttribute:
		out := classfile.ModuleAttribute{
			Module:   e.Module,
			Flags:    e.Flags,
			Version:  e.Version,
			Requires: e.Requires,
			Exports:  e.Exports,
			Opens:    e.Opens,
			Uses:     r.mapClasses(pool, e.Uses),
			Provides: make([]classfile.ModuleProvide, len(e.Provides)),
		}
		for i, p := range e.Provides {
			out.Provides[i] = classfile.ModuleProvide{
				Service: r.mapClass(pool, p.Service),
				With:    r.mapClasses(pool, p.With),
			}
		}
		b.With(&out)
	case *classfile.AnnotationsAttribute:
		a, err := r.mapAnnotationsAttr(pool, e)
		if err != nil {
			return err
		}
		b.With(a)
	case *classfile.TypeAnnotationsAttribute:
		a, err := r.mapTypeAnnotationsAttr(pool, e)
		if err != nil {
			return err
		}
		b.With(a)
	default:
		b.With(e)
	}
	return nil
}

// AtEnd does nothing.
func (r *ClassRemapper) AtEnd(classfile.ClassBuilder) error { return nil }

// ---------------------------------------------------------------------------
// Fields, methods and code
// ---------------------------------------------------------------------------

// FieldTransform returns the field part of the remapping.
func (r *ClassRemapper) FieldTransform() classfile.FieldTransform {
	return classfile.FieldTransformFunc(func(b classfile.FieldBuilder, e classfile.FieldElement) error {
		pool := b.ConstantPool()
		switch e := e.(type) {
		case *classfile.SignatureAttribute:
			s, err := r.mapTypeSigString(e.Signature.String())
			if err != nil {
				return err
			}
			b.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry(s)})
		case *classfile.AnnotationsAttribute:
			a, err := r.mapAnnotationsAttr(pool, e)
			if err != nil {
				return err
			}
			b.With(a)
		case *classfile.TypeAnnotationsAttribute:
			a, err := r.mapTypeAnnotationsAttr(pool, e)
			if err != nil {
				return err
			}
			b.With(a)
		default:
			b.With(e)
		}
		return nil
	})
}

// MethodTransform returns the method part of the remapping, which rewrites
// the body with CodeTransform.
func (r *ClassRemapper) MethodTransform() classfile.MethodTransform {
	return classfile.MethodTransformFunc(func(b classfile.MethodBuilder, e classfile.MethodElement) error {
		pool := b.ConstantPool()
		switch e := e.(type) {
		case classfile.CodeModel:
			b.TransformCode(e, r.CodeTransform())
		case *classfile.ExceptionsAttribute:
			b.With(&classfile.ExceptionsAttribute{Exceptions: r.mapClasses(pool, e.Exceptions)})
		case *classfile.SignatureAttribute:
			sig, err := signature.ParseMethod(e.Signature.String())
			if err != nil {
				return err
			}
			b.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry(r.mapMethodSig(sig).String())})
		case *classfile.AnnotationDefaultAttribute:
			v, err := r.mapAnnotationValue(pool, e.Value)
			if err != nil {
				return err
			}
			b.With(&classfile.AnnotationDefaultAttribute{Value: v})
		case *classfile.AnnotationsAttribute:
			a, err := r.mapAnnotationsAttr(pool, e)
			if err != nil {
				return err
			}
			b.With(a)
		case *classfile.ParameterAnnotationsAttribute:
			out := &classfile.ParameterAnnotationsAttribute{Visible: e.Visible, Parameters: make([][]classfile.Annotation, len(e.Parameters))}
			for i, as := range e.Parameters {
				mapped, err := r.mapAnnotations(pool, as)
				if err != nil {
					return err
				}
				out.Parameters[i] = mapped
			}
			b.With(out)
		case *classfile.TypeAnnotationsAttribute:
			a, err := r.mapTypeAnnotationsAttr(pool, e)
			if err != nil {
				return err
			}
			b.With(a)
		default:
			b.With(e)
		}
		return nil
	})
}

// CodeTransform returns the body part of the remapping.
func (r *ClassRemapper) CodeTransform() classfile.CodeTransform {
	return classfile.CodeTransformFunc(r.acceptCode)
}

func (r *ClassRemapper) acceptCode(b classfile.CodeBuilder, e classfile.CodeElement) error {
	pool := b.ConstantPool()
	switch e := e.(type) {
	case classfile.FieldInstruction:
		typ, err := r.mapFieldDesc(e.Field.MemberType())
		if err != nil {
			return err
		}
		b.FieldAccess(e.Op, r.mapClass(pool, e.Field.Owner()), e.Field.MemberName(), typ)
	case classfile.InvokeInstruction:
		typ, err := r.mapMethodDesc(e.Method.MemberType())
		if err != nil {
			return err
		}
		_, isInterface := e.Method.(*classfile.InterfaceMethodRefEntry)
		b.Invoke(e.Op, r.mapClass(pool, e.Method.Owner()), e.Method.MemberName(), typ, isInterface)
	case classfile.InvokeDynamicInstruction:
		bsm, err := r.mapBootstrap(pool, e.Site.Bootstrap())
		if err != nil {
			return err
		}
		nat := e.Site.NameAndType()
		typ, err := r.mapMethodDesc(nat.Type().String())
		if err != nil {
			return err
		}
		b.InvokeDynamic(pool.InvokeDynamicEntry(bsm, pool.NameAndTypeEntry(nat.Name().String(), typ)))
	case classfile.NewObjectInstruction:
		b.New(r.mapClass(pool, e.Class))
	case classfile.NewReferenceArrayInstruction:
		b.NewReferenceArray(r.mapClass(pool, e.Component))
	case classfile.NewMultiArrayInstruction:
		b.MultiNewArray(r.mapClass(pool, e.Array), e.Dimensions)
	case classfile.TypeCheckInstruction:
		b.With(classfile.TypeCheckInstruction{Op: e.Op, Type: r.mapClass(pool, e.Type)})
	case classfile.ConstantInstruction:
		if e.Entry == nil {
			b.With(e)
			break
		}
		v, err := r.mapLoadable(pool, e.Entry)
		if err != nil {
			return err
		}
		b.Ldc(v)
	case classfile.ExceptionCatch:
		e.CatchType = r.mapClass(pool, e.CatchType)
		b.With(e)
	case classfile.LocalVariable:
		typ, err := r.mapFieldDesc(e.Type.String())
		if err != nil {
			return err
		}
		e.Type = pool.Utf8Entry(typ)
		b.With(e)
	case classfile.LocalVariableType:
		s, err := r.mapTypeSigString(e.Signature.String())
		if err != nil {
			return err
		}
		e.Signature = pool.Utf8Entry(s)
		b.With(e)
	case *classfile.StackMapTableAttribute:
		b.With(r.mapStackMap(e))
	case *classfile.TypeAnnotationsAttribute:
		a, err := r.mapTypeAnnotationsAttr(pool, e)
		if err != nil {
			return err
		}
		b.With(a)
	default:
		b.With(e)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entries and descriptors
// ---------------------------------------------------------------------------

func (r *ClassRemapper) mapClass(pool *classfile.PoolBuilder, c *classfile.ClassEntry) *classfile.ClassEntry {
	if c == nil {
		return nil
	}
	name := c.InternalName()
	mapped := r.MapInternalName(name)
	if mapped == name {
		return c
	}
	return pool.ClassEntry(mapped)
}

func (r *ClassRemapper) mapClasses(pool *classfile.PoolBuilder, cs []*classfile.ClassEntry) []*classfile.ClassEntry {
	if cs == nil {
		return nil
	}
	out := make([]*classfile.ClassEntry, len(cs))
	for i, c := range cs {
		out[i] = r.mapClass(pool, c)
	}
	return out
}

// mapFieldDesc accepts void as well, for class literals in annotations.
func (r *ClassRemapper) mapFieldDesc(s string) (string, error) {
	if s == desc.VoidDesc.String() {
		return s, nil
	}
	d, err := desc.Parse(s)
	if err != nil {
		return "", err
	}
	return r.Map(d).String(), nil
}

func (r *ClassRemapper) mapMethodDesc(s string) (string, error) {
	md, err := desc.ParseMethod(s)
	if err != nil {
		return "", err
	}
	params := make([]desc.ClassDesc, len(md.Params))
	for i, p := range md.Params {
		params[i] = r.Map(p)
	}
	return desc.MethodOf(r.Map(md.Return), params...).String(), nil
}

func (r *ClassRemapper) mapHandle(pool *classfile.PoolBuilder, h *classfile.MethodHandleEntry) (*classfile.MethodHandleEntry, error) {
	ref := h.Reference()
	owner := r.mapClass(pool, ref.Owner())
	var mapped classfile.MemberRefEntry
	switch ref.(type) {
	case *classfile.FieldRefEntry:
		typ, err := r.mapFieldDesc(ref.MemberType())
		if err != nil {
			return nil, err
		}
		mapped = pool.FieldRefEntry(owner, ref.MemberName(), typ)
	case *classfile.InterfaceMethodRefEntry:
		typ, err := r.mapMethodDesc(ref.MemberType())
		if err != nil {
			return nil, err
		}
		mapped = pool.InterfaceMethodRefEntry(owner, ref.MemberName(), typ)
	default:
		typ, err := r.mapMethodDesc(ref.MemberType())
		if err != nil {
			return nil, err
		}
		mapped = pool.MethodRefEntry(owner, ref.MemberName(), typ)
	}
	return pool.MethodHandleEntry(h.Kind(), mapped), nil
}

func (r *ClassRemapper) mapBootstrap(pool *classfile.PoolBuilder, b *classfile.BootstrapMethodEntry) (*classfile.BootstrapMethodEntry, error) {
	h, err := r.mapHandle(pool, b.Method())
	if err != nil {
		return nil, err
	}
	args := make([]classfile.LoadableEntry, len(b.Arguments()))
	for i, a := range b.Arguments() {
		if args[i], err = r.mapLoadable(pool, a); err != nil {
			return nil, err
		}
	}
	return pool.BootstrapMethodEntry(h, args...), nil
}

// mapLoadable renames the types inside an ldc operand or bootstrap
// argument. Numbers and strings are returned unchanged.
func (r *ClassRemapper) mapLoadable(pool *classfile.PoolBuilder, e classfile.LoadableEntry) (classfile.LoadableEntry, error) {
	switch e := e.(type) {
	case *classfile.ClassEntry:
		return r.mapClass(pool, e), nil
	case *classfile.MethodTypeEntry:
		typ, err := r.mapMethodDesc(e.Descriptor().String())
		if err != nil {
			return nil, err
		}
		return pool.MethodTypeEntry(typ), nil
	case *classfile.MethodHandleEntry:
		return r.mapHandle(pool, e)
	case *classfile.DynamicEntry:
		bsm, err := r.mapBootstrap(pool, e.Bootstrap())
		if err != nil {
			return nil, err
		}
		nat := e.NameAndType()
		typ, err := r.mapFieldDesc(nat.Type().String())
		if err != nil {
			return nil, err
		}
		return pool.DynamicEntry(bsm, pool.NameAndTypeEntry(nat.Name().String(), typ)), nil
	}
	return e, nil
}

func (r *ClassRemapper) mapStackMap(a *classfile.StackMapTableAttribute) *classfile.StackMapTableAttribute {
	mapTypes := func(vs []classfile.VerificationType) []classfile.VerificationType {
		out := make([]classfile.VerificationType, len(vs))
		for i, v := range vs {
			if v.Tag == classfile.VtObject {
				v.ClassName = r.MapInternalName(v.ClassName)
			}
			out[i] = v
		}
		return out
	}
	out := &classfile.StackMapTableAttribute{Frames: make([]classfile.StackMapFrame, len(a.Frames))}
	for i, f := range a.Frames {
		out.Frames[i] = classfile.StackMapFrame{Target: f.Target, Locals: mapTypes(f.Locals), Stack: mapTypes(f.Stack)}
	}
	return out
}

func (r *ClassRemapper) mapRecordComponent(pool *classfile.PoolBuilder, c classfile.RecordComponent) (classfile.RecordComponent, error) {
	typ, err := r.mapFieldDesc(c.Descriptor.String())
	if err != nil {
		return c, err
	}
	out := classfile.RecordComponent{Name: c.Name, Descriptor: pool.Utf8Entry(typ)}
	for _, a := range c.Attributes {
		switch a := a.(type) {
		case *classfile.SignatureAttribute:
			s, err := r.mapTypeSigString(a.Signature.String())
			if err != nil {
				return c, err
			}
			out.Attributes = append(out.Attributes, &classfile.SignatureAttribute{Signature: pool.Utf8Entry(s)})
		case *classfile.AnnotationsAttribute:
			m, err := r.mapAnnotationsAttr(pool, a)
			if err != nil {
				return c, err
			}
			out.Attributes = append(out.Attributes, m)
		case *classfile.TypeAnnotationsAttribute:
			m, err := r.mapTypeAnnotationsAttr(pool, a)
			if err != nil {
				return c, err
			}
			out.Attributes = append(out.Attributes, m)
		default:
			out.Attributes = append(out.Attributes, a)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Annotations
// ---------------------------------------------------------------------------

func (r *ClassRemapper) mapAnnotationsAttr(pool *classfile.PoolBuilder, a *classfile.AnnotationsAttribute) (*classfile.AnnotationsAttribute, error) {
	as, err := r.mapAnnotations(pool, a.Annotations)
	if err != nil {
		return nil, err
	}
	return &classfile.AnnotationsAttribute{Visible: a.Visible, Annotations: as}, nil
}

func (r *ClassRemapper) mapTypeAnnotationsAttr(pool *classfile.PoolBuilder, a *classfile.TypeAnnotationsAttribute) (*classfile.TypeAnnotationsAttribute, error) {
	out := &classfile.TypeAnnotationsAttribute{Visible: a.Visible, Annotations: make([]classfile.TypeAnnotation, len(a.Annotations))}
	for i, ta := range a.Annotations {
		ann, err := r.mapAnnotation(pool, ta.Annotation)
		if err != nil {
			return nil, err
		}
		ta.Annotation = ann
		out.Annotations[i] = ta
	}
	return out, nil
}

func (r *ClassRemapper) mapAnnotations(pool *classfile.PoolBuilder, as []classfile.Annotation) ([]classfile.Annotation, error) {
	out := make([]classfile.Annotation, len(as))
	for i, a := range as {
		m, err := r.mapAnnotation(pool, a)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (r *ClassRemapper) mapAnnotation(pool *classfile.PoolBuilder, a classfile.Annotation) (classfile.Annotation, error) {
	typ, err := r.mapFieldDesc(a.Type.String())
	if err != nil {
		return a, err
	}
	out := classfile.Annotation{Type: pool.Utf8Entry(typ), Elements: make([]classfile.AnnotationElement, len(a.Elements))}
	for i, el := range a.Elements {
		v, err := r.mapAnnotationValue(pool, el.Value)
		if err != nil {
			return a, err
		}
		out.Elements[i] = classfile.AnnotationElement{Name: el.Name, Value: v}
	}
	return out, nil
}

func (r *ClassRemapper) mapAnnotationValue(pool *classfile.PoolBuilder, v classfile.AnnotationValue) (classfile.AnnotationValue, error) {
	switch v := v.(type) {
	case classfile.ConstAnnotationValue:
		return v, nil
	case classfile.EnumAnnotationValue:
		typ, err := r.mapFieldDesc(v.Type.String())
		if err != nil {
			return nil, err
		}
		return classfile.EnumAnnotationValue{Type: pool.Utf8Entry(typ), Constant: v.Constant}, nil
	case classfile.ClassAnnotationValue:
		typ, err := r.mapFieldDesc(v.Class.String())
		if err != nil {
			return nil, err
		}
		return classfile.ClassAnnotationValue{Class: pool.Utf8Entry(typ)}, nil
	case classfile.NestedAnnotationValue:
		a, err := r.mapAnnotation(pool, v.Annotation)
		if err != nil {
			return nil, err
		}
		return classfile.NestedAnnotationValue{Annotation: a}, nil
	case classfile.ArrayAnnotationValue:
		out := classfile.ArrayAnnotationValue{Values: make([]classfile.AnnotationValue, len(v.Values))}
		for i, x := range v.Values {
			m, err := r.mapAnnotationValue(pool, x)
			if err != nil {
				return nil, err
			}
			out.Values[i] = m
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: annotation value %T", classfile.ErrBuilderMisuse, v)
}

// ---------------------------------------------------------------------------
// Generic signatures
// ---------------------------------------------------------------------------

func (r *ClassRemapper) mapTypeSigString(s string) (string, error) {
	t, err := signature.ParseType(s)
	if err != nil {
		return "", err
	}
	return r.mapSig(t).String(), nil
}

func (r *ClassRemapper) mapSig(t signature.Type) signature.Type {
	switch t := t.(type) {
	case signature.ArrayType:
		return signature.ArrayType{Component: r.mapSig(t.Component)}
	case *signature.ClassType:
		return r.mapClassType(t)
	}
	return t
}

// mapClassType renames a class type signature. An inner type stays nested
// while its renamed binary name extends the renamed outer name with '$'.
// Otherwise it becomes a top-level type under its full renamed name, and
// the outer type arguments are lost.
func (r *ClassRemapper) mapClassType(c *signature.ClassType) *signature.ClassType {
	if c == nil {
		return nil
	}
	out := &signature.ClassType{Name: r.MapInternalName(c.InternalName())}
	if c.Outer != nil {
		outer := r.mapClassType(c.Outer)
		if rest, ok := strings.CutPrefix(out.Name, outer.InternalName()+"$"); ok {
			out.Outer, out.Name = outer, rest
		}
	}
	if len(c.Args) > 0 {
		out.Args = make([]signature.TypeArg, len(c.Args))
		for i, a := range c.Args {
			if a.Type != nil {
				a.Type = r.mapSig(a.Type)
			}
			out.Args[i] = a
		}
	}
	return out
}

func (r *ClassRemapper) mapTypeParams(ps []signature.TypeParam) []signature.TypeParam {
	if ps == nil {
		return nil
	}
	out := make([]signature.TypeParam, len(ps))
	for i, p := range ps {
		q := signature.TypeParam{Name: p.Name}
		if p.ClassBound != nil {
			q.ClassBound = r.mapSig(p.ClassBound)
		}
		for _, b := range p.InterfaceBounds {
			q.InterfaceBounds = append(q.InterfaceBounds, r.mapSig(b))
		}
		out[i] = q
	}
	return out
}

func (r *ClassRemapper) mapClassSig(s *signature.ClassSig) *signature.ClassSig {
	out := &signature.ClassSig{TypeParams: r.mapTypeParams(s.TypeParams), Super: r.mapClassType(s.Super)}
	for _, i := range s.Interfaces {
		out.Interfaces = append(out.Interfaces, r.mapClassType(i))
	}
	return out
}

func (r *ClassRemapper) mapMethodSig(s *signature.MethodSig) *signature.MethodSig {
	out := &signature.MethodSig{TypeParams: r.mapTypeParams(s.TypeParams), Result: r.mapSig(s.Result)}
	for _, p := range s.Params {
		out.Params = append(out.Params, r.mapSig(p))
	}
	for _, t := range s.Throws {
		out.Throws = append(out.Throws, r.mapSig(t))
	}
	return out
}
