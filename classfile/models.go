package classfile

import (
	"fmt"

	"github.com/chazu/cfx/desc"
)

// FieldModel is a field of a class: a bound field of a parsed classfile or
// a buffered field produced by a builder.
type FieldModel interface {
	ClassElement
	Flags() AccessFlags
	Name() *Utf8Entry
	Descriptor() *Utf8Entry
	Attributes() ([]Attribute, error)
	// ForEach visits AccessFlags, then each attribute.
	ForEach(fn func(FieldElement) error) error
}

// MethodModel is a method of a class.
type MethodModel interface {
	ClassElement
	Flags() AccessFlags
	Name() *Utf8Entry
	Descriptor() *Utf8Entry
	Attributes() ([]Attribute, error)
	// Code returns the body, or nil for abstract and native methods.
	Code() (CodeModel, error)
	// ForEach visits AccessFlags, then each attribute including the body.
	ForEach(fn func(MethodElement) error) error
}

// CodeModel is a method body. Bound bodies are *CodeAttribute.
type CodeModel interface {
	MethodElement
	ForEach(fn func(CodeElement) error) error
	Elements() ([]CodeElement, error)
	// Parent returns the owning method, nil when unknown.
	Parent() MethodModel
	declaredMax() (stack, locals int, ok bool)
}

// FindAttribute returns the first attribute of type T.
func FindAttribute[T Attribute](as []Attribute) (T, bool) {
	for _, a := range as {
		if t, ok := a.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// ---------------------------------------------------------------------------
// ClassModel
// ---------------------------------------------------------------------------

// ClassModel is a parsed classfile. Header fields are decoded by Parse;
// attributes are decoded on first use. A ClassModel is not safe for
// concurrent use.
type ClassModel struct {
	r          *Reader
	flags      AccessFlags
	minor      int
	major      int
	this       *ClassEntry
	super      *ClassEntry
	interfaces []*ClassEntry
	fields     []*boundField
	methods    []*boundMethod

	attrs     []Attribute
	attrsDone bool
	attrsErr  error
}

func newClassModel(r *Reader) (*ClassModel, error) {
	m := &ClassModel{r: r, flags: r.flags, minor: r.minor, major: r.major}
	at := r.poolEnd + 2
	this, err := refAt[*ClassEntry](r, at, r.thisIndex)
	if err != nil {
		return nil, err
	}
	m.this = this
	if r.superIndex != 0 {
		if m.super, err = refAt[*ClassEntry](r, at+2, r.superIndex); err != nil {
			return nil, err
		}
	}
	at += 6
	for i, idx := range r.interfaces {
		ce, err := refAt[*ClassEntry](r, at+2*i, idx)
		if err != nil {
			return nil, err
		}
		m.interfaces = append(m.interfaces, ce)
	}
	for _, s := range r.fields {
		flags, name, typ, err := memberHeader(r, s)
		if err != nil {
			return nil, err
		}
		m.fields = append(m.fields, &boundField{class: m, span: s, flags: flags, name: name, desc: typ})
	}
	for _, s := range r.methods {
		flags, name, typ, err := memberHeader(r, s)
		if err != nil {
			return nil, err
		}
		m.methods = append(m.methods, &boundMethod{class: m, span: s, flags: flags, name: name, desc: typ})
	}
	return m, nil
}

func memberHeader(r *Reader, s memberSpan) (AccessFlags, *Utf8Entry, *Utf8Entry, error) {
	c := r.buf
	name, err := refAt[*Utf8Entry](r, s.start+2, c.U2(s.start+2))
	if err != nil {
		return 0, nil, nil, err
	}
	typ, err := refAt[*Utf8Entry](r, s.start+4, c.U2(s.start+4))
	if err != nil {
		return 0, nil, nil, err
	}
	return AccessFlags(c.U2(s.start)), name, typ, nil
}

// Flags returns the class access flags.
func (m *ClassModel) Flags() AccessFlags { return m.flags }

// MajorVersion returns the classfile major version.
func (m *ClassModel) MajorVersion() int { return m.major }

// MinorVersion returns the classfile minor version.
func (m *ClassModel) MinorVersion() int { return m.minor }

// ThisClass returns the class being defined.
func (m *ClassModel) ThisClass() *ClassEntry { return m.this }

// Superclass returns the direct superclass, or nil for java/lang/Object
// and module descriptors.
func (m *ClassModel) Superclass() *ClassEntry { return m.super }

// Interfaces returns the direct superinterfaces.
func (m *ClassModel) Interfaces() []*ClassEntry { return m.interfaces }

// ConstantPool returns the bound constant pool.
func (m *ClassModel) ConstantPool() ConstantPool { return m.r }

// Options returns the options the class was parsed with.
func (m *ClassModel) Options() Option { return m.r.opts }

// Fields returns the fields in declaration order.
func (m *ClassModel) Fields() []FieldModel {
	out := make([]FieldModel, len(m.fields))
	for i, f := range m.fields {
		out[i] = f
	}
	return out
}

// Methods returns the methods in declaration order.
func (m *ClassModel) Methods() []MethodModel {
	out := make([]MethodModel, len(m.methods))
	for i, mm := range m.methods {
		out[i] = mm
	}
	return out
}

// Attributes returns the class attributes, excluding BootstrapMethods,
// which is exposed through the constant pool.
func (m *ClassModel) Attributes() ([]Attribute, error) {
	if !m.attrsDone {
		m.attrsDone = true
		m.attrs, m.attrsErr = readAttributeTable(attrContext{r: m.r, holder: holderClass}, m.r.attrStart, m.r.buf.Len())
	}
	return m.attrs, m.attrsErr
}

// ForEach visits the class in order: AccessFlags, Version, Superclass (when
// present), Interfaces, the fields, the methods and the class attributes.
func (m *ClassModel) ForEach(fn func(ClassElement) error) error {
	head := []ClassElement{m.flags, Version{Major: m.major, Minor: m.minor}}
	if m.super != nil {
		head = append(head, Superclass{Class: m.super})
	}
	head = append(head, Interfaces{Classes: m.interfaces})
	for _, e := range head {
		if err := fn(e); err != nil {
			return err
		}
	}
	for _, f := range m.fields {
		if err := fn(f); err != nil {
			return err
		}
	}
	for _, mm := range m.methods {
		if err := fn(mm); err != nil {
			return err
		}
	}
	attrs, err := m.Attributes()
	if err != nil {
		return err
	}
	for _, a := range attrs {
		ce, ok := a.(ClassElement)
		if !ok {
			return fmt.Errorf("%w: attribute %s is not a class element", ErrMalformed, a.AttributeName())
		}
		if err := fn(ce); err != nil {
			return err
		}
	}
	return nil
}

func (m *ClassModel) String() string { return "class " + m.this.InternalName() }

// ---------------------------------------------------------------------------
// Bound members
// ---------------------------------------------------------------------------

type boundField struct {
	class *ClassModel
	span  memberSpan
	flags AccessFlags
	name  *Utf8Entry
	desc  *Utf8Entry

	attrs     []Attribute
	attrsDone bool
	attrsErr  error
}

func (*boundField) classElement() {}

func (f *boundField) Flags() AccessFlags     { return f.flags }
func (f *boundField) Name() *Utf8Entry       { return f.name }
func (f *boundField) Descriptor() *Utf8Entry { return f.desc }

func (f *boundField) Attributes() ([]Attribute, error) {
	if !f.attrsDone {
		f.attrsDone = true
		f.attrs, f.attrsErr = readAttributeTable(attrContext{r: f.class.r, holder: holderField}, f.span.attrStart, f.span.end)
	}
	return f.attrs, f.attrsErr
}

func (f *boundField) ForEach(fn func(FieldElement) error) error {
	if err := fn(f.flags); err != nil {
		return err
	}
	attrs, err := f.Attributes()
	if err != nil {
		return err
	}
	for _, a := range attrs {
		fe, ok := a.(FieldElement)
		if !ok {
			return fmt.Errorf("%w: attribute %s is not a field element", ErrMalformed, a.AttributeName())
		}
		if err := fn(fe); err != nil {
			return err
		}
	}
	return nil
}

func (f *boundField) String() string { return "field " + f.name.value + ":" + f.desc.value }

type boundMethod struct {
	class *ClassModel
	span  memberSpan
	flags AccessFlags
	name  *Utf8Entry
	desc  *Utf8Entry

	attrs     []Attribute
	attrsDone bool
	attrsErr  error
}

func (*boundMethod) classElement() {}

func (m *boundMethod) Flags() AccessFlags     { return m.flags }
func (m *boundMethod) Name() *Utf8Entry       { return m.name }
func (m *boundMethod) Descriptor() *Utf8Entry { return m.desc }

func (m *boundMethod) methodDesc() (desc.MethodDesc, error) {
	md, err := desc.ParseMethod(m.desc.value)
	if err != nil {
		return desc.MethodDesc{}, &DecodeError{Offset: m.span.start + 4, Reason: "bad method descriptor", Err: err}
	}
	return md, nil
}

func (m *boundMethod) Attributes() ([]Attribute, error) {
	if !m.attrsDone {
		m.attrsDone = true
		ctx := attrContext{r: m.class.r, holder: holderMethod, method: m}
		m.attrs, m.attrsErr = readAttributeTable(ctx, m.span.attrStart, m.span.end)
	}
	return m.attrs, m.attrsErr
}

func (m *boundMethod) Code() (CodeModel, error) {
	attrs, err := m.Attributes()
	if err != nil {
		return nil, err
	}
	if c, ok := FindAttribute[*CodeAttribute](attrs); ok {
		return c, nil
	}
	return nil, nil
}

func (m *boundMethod) ForEach(fn func(MethodElement) error) error {
	if err := fn(m.flags); err != nil {
		return err
	}
	attrs, err := m.Attributes()
	if err != nil {
		return err
	}
	for _, a := range attrs {
		me, ok := a.(MethodElement)
		if !ok {
			return fmt.Errorf("%w: attribute %s is not a method element", ErrMalformed, a.AttributeName())
		}
		if err := fn(me); err != nil {
			return err
		}
	}
	return nil
}

func (m *boundMethod) String() string { return "method " + m.name.value + m.desc.value }

// ---------------------------------------------------------------------------
// Buffered models
// ---------------------------------------------------------------------------

// bufferedField is the result of a buffered field builder.
type bufferedField struct {
	flags    AccessFlags
	name     *Utf8Entry
	desc     *Utf8Entry
	elements []FieldElement // without AccessFlags
}

func (*bufferedField) classElement() {}

func (f *bufferedField) Flags() AccessFlags     { return f.flags }
func (f *bufferedField) Name() *Utf8Entry       { return f.name }
func (f *bufferedField) Descriptor() *Utf8Entry { return f.desc }

func (f *bufferedField) Attributes() ([]Attribute, error) {
	var out []Attribute
	for _, e := range f.elements {
		if a, ok := e.(Attribute); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *bufferedField) ForEach(fn func(FieldElement) error) error {
	if err := fn(f.flags); err != nil {
		return err
	}
	for _, e := range f.elements {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *bufferedField) String() string { return "field " + f.name.value + ":" + f.desc.value }

// bufferedMethod is the result of a buffered method builder.
type bufferedMethod struct {
	flags    AccessFlags
	name     *Utf8Entry
	desc     *Utf8Entry
	elements []MethodElement // without AccessFlags
}

func (*bufferedMethod) classElement() {}

func (m *bufferedMethod) Flags() AccessFlags     { return m.flags }
func (m *bufferedMethod) Name() *Utf8Entry       { return m.name }
func (m *bufferedMethod) Descriptor() *Utf8Entry { return m.desc }

func (m *bufferedMethod) Attributes() ([]Attribute, error) {
	var out []Attribute
	for _, e := range m.elements {
		if a, ok := e.(Attribute); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *bufferedMethod) Code() (CodeModel, error) {
	for _, e := range m.elements {
		if c, ok := e.(CodeModel); ok {
			return c, nil
		}
	}
	return nil, nil
}

func (m *bufferedMethod) ForEach(fn func(MethodElement) error) error {
	if err := fn(m.flags); err != nil {
		return err
	}
	for _, e := range m.elements {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *bufferedMethod) String() string { return "method " + m.name.value + m.desc.value }

// bufferedCode is the result of a buffered code builder. Its declared
// limits are those of the body it was derived from, if any.
type bufferedCode struct {
	parent   MethodModel
	original CodeModel
	elements []CodeElement
}

func (*bufferedCode) methodElement() {}

func (c *bufferedCode) ForEach(fn func(CodeElement) error) error {
	for _, e := range c.elements {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *bufferedCode) Elements() ([]CodeElement, error) { return c.elements, nil }

func (c *bufferedCode) Parent() MethodModel { return c.parent }

func (c *bufferedCode) declaredMax() (int, int, bool) {
	if c.original == nil {
		return 0, 0, false
	}
	return c.original.declaredMax()
}
