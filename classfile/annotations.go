package classfile

import "fmt"

// Annotation is a declaration or type annotation: the descriptor of the
// annotation interface and its element-value pairs.
type Annotation struct {
	Type     *Utf8Entry
	Elements []AnnotationElement
}

// AnnotationElement is a name and value pair of an annotation.
type AnnotationElement struct {
	Name  *Utf8Entry
	Value AnnotationValue
}

// AnnotationValue is an element_value: ConstAnnotationValue,
// EnumAnnotationValue, ClassAnnotationValue, NestedAnnotationValue or
// ArrayAnnotationValue.
type AnnotationValue interface {
	Tag() byte
}

// ConstAnnotationValue is a primitive or String value. Kind is the
// element_value tag (one of BCDFIJSZs); Value is an Integer, Float, Long or
// Double entry, or a Utf8 entry for strings.
type ConstAnnotationValue struct {
	Kind  byte
	Value Entry
}

// EnumAnnotationValue is an enum constant.
type EnumAnnotationValue struct {
	Type     *Utf8Entry
	Constant *Utf8Entry
}

// ClassAnnotationValue is a class literal, as a return descriptor.
type ClassAnnotationValue struct {
	Class *Utf8Entry
}

// NestedAnnotationValue is an annotation used as a value.
type NestedAnnotationValue struct {
	Annotation Annotation
}

// ArrayAnnotationValue is an array of values.
type ArrayAnnotationValue struct {
	Values []AnnotationValue
}

func (v ConstAnnotationValue) Tag() byte { return v.Kind }
func (EnumAnnotationValue) Tag() byte    { return 'e' }
func (ClassAnnotationValue) Tag() byte   { return 'c' }
func (NestedAnnotationValue) Tag() byte  { return '@' }
func (ArrayAnnotationValue) Tag() byte   { return '[' }

// AnnotationsAttribute is RuntimeVisibleAnnotations or
// RuntimeInvisibleAnnotations.
type AnnotationsAttribute struct {
	attrBase
	Visible     bool
	Annotations []Annotation
}

// ParameterAnnotationsAttribute is RuntimeVisibleParameterAnnotations or
// RuntimeInvisibleParameterAnnotations, one list per parameter.
type ParameterAnnotationsAttribute struct {
	attrBase
	Visible    bool
	Parameters [][]Annotation
}

// TypeAnnotation is an annotation on a use of a type. TargetInfo and
// TypePath are kept in their encoded form; offsets inside a TargetInfo of a
// code body are not relocated when the body is rebuilt.
type TypeAnnotation struct {
	TargetType byte
	TargetInfo []byte
	TypePath   []byte // two bytes per step
	Annotation Annotation
}

// TypeAnnotationsAttribute is RuntimeVisibleTypeAnnotations or
// RuntimeInvisibleTypeAnnotations.
type TypeAnnotationsAttribute struct {
	attrBase
	Visible     bool
	Annotations []TypeAnnotation
}

func (a *AnnotationsAttribute) AttributeName() string {
	if a.Visible {
		return attrRuntimeVisibleAnnotations
	}
	return attrRuntimeInvisibleAnnotations
}

func (a *ParameterAnnotationsAttribute) AttributeName() string {
	if a.Visible {
		return attrRuntimeVisibleParameterAnnotations
	}
	return attrRuntimeInvisibleParameterAnnotations
}

func (a *TypeAnnotationsAttribute) AttributeName() string {
	if a.Visible {
		return attrRuntimeVisibleTypeAnnotations
	}
	return attrRuntimeInvisibleTypeAnnotations
}

func (*AnnotationsAttribute) classElement()           {}
func (*AnnotationsAttribute) fieldElement()           {}
func (*AnnotationsAttribute) methodElement()          {}
func (*ParameterAnnotationsAttribute) methodElement() {}
func (*TypeAnnotationsAttribute) classElement()       {}
func (*TypeAnnotationsAttribute) fieldElement()       {}
func (*TypeAnnotationsAttribute) methodElement()      {}
func (*TypeAnnotationsAttribute) codeElement()        {}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func (d *attrDecoder) annotations() []Annotation {
	n := d.U2()
	var out []Annotation
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, d.annotation())
	}
	return out
}

func (d *attrDecoder) annotation() Annotation {
	if !d.enter() {
		return Annotation{}
	}
	defer d.leave()
	a := Annotation{Type: readRef[*Utf8Entry](d)}
	n := d.U2()
	for i := 0; i < n && d.Err() == nil; i++ {
		name := readRef[*Utf8Entry](d)
		a.Elements = append(a.Elements, AnnotationElement{Name: name, Value: d.annotationValue()})
	}
	return a
}

func (d *attrDecoder) annotationValue() AnnotationValue {
	if !d.enter() {
		return nil
	}
	defer d.leave()
	at := d.Pos()
	tag := byte(d.U1())
	switch tag {
	case 'B', 'C', 'I', 'S', 'Z':
		return ConstAnnotationValue{Kind: tag, Value: readRef[*IntegerEntry](d)}
	case 'D':
		return ConstAnnotationValue{Kind: tag, Value: readRef[*DoubleEntry](d)}
	case 'F':
		return ConstAnnotationValue{Kind: tag, Value: readRef[*FloatEntry](d)}
	case 'J':
		return ConstAnnotationValue{Kind: tag, Value: readRef[*LongEntry](d)}
	case 's':
		return ConstAnnotationValue{Kind: tag, Value: readRef[*Utf8Entry](d)}
	case 'e':
		typ := readRef[*Utf8Entry](d)
		return EnumAnnotationValue{Type: typ, Constant: readRef[*Utf8Entry](d)}
	case 'c':
		return ClassAnnotationValue{Class: readRef[*Utf8Entry](d)}
	case '@':
		return NestedAnnotationValue{Annotation: d.annotation()}
	case '[':
		n := d.U2()
		v := ArrayAnnotationValue{}
		for i := 0; i < n && d.Err() == nil; i++ {
			v.Values = append(v.Values, d.annotationValue())
		}
		return v
	}
	if d.Err() == nil {
		d.Fail(malformed(at, "unknown element_value tag %q", tag))
	}
	return nil
}

// targetInfoLength returns the size of the target_info of a type annotation
// with a fixed-size target, or -1 for localvar targets.
func targetInfoLength(targetType byte) (int, bool) {
	switch {
	case targetType == 0x00, targetType == 0x01, targetType == 0x16:
		return 1, true
	case targetType >= 0x10 && targetType <= 0x12, targetType == 0x17:
		return 2, true
	case targetType >= 0x13 && targetType <= 0x15:
		return 0, true
	case targetType == 0x40, targetType == 0x41:
		return -1, true
	case targetType >= 0x42 && targetType <= 0x46:
		return 2, true
	case targetType >= 0x47 && targetType <= 0x4B:
		return 3, true
	}
	return 0, false
}

func (d *attrDecoder) typeAnnotation() TypeAnnotation {
	at := d.Pos()
	ta := TypeAnnotation{TargetType: byte(d.U1())}
	n, ok := targetInfoLength(ta.TargetType)
	if !ok {
		d.Fail(malformed(at, "unknown type annotation target 0x%02X", ta.TargetType))
		return ta
	}
	start := d.Pos()
	if n < 0 {
		d.Skip(6 * d.U2())
	} else {
		d.Skip(n)
	}
	if d.Err() != nil {
		return ta
	}
	ta.TargetInfo = d.ctx.r.slice(start, d.Pos()-start)
	steps := d.U1()
	ta.TypePath = d.Bytes(2 * steps)
	ta.Annotation = d.annotation()
	return ta
}

func decodeAnnotations(visible bool) func(d *attrDecoder) Attribute {
	return func(d *attrDecoder) Attribute {
		return &AnnotationsAttribute{Visible: visible, Annotations: d.annotations()}
	}
}

func decodeParameterAnnotations(visible bool) func(d *attrDecoder) Attribute {
	return func(d *attrDecoder) Attribute {
		a := &ParameterAnnotationsAttribute{Visible: visible}
		n := d.U1()
		for i := 0; i < n && d.Err() == nil; i++ {
			a.Parameters = append(a.Parameters, d.annotations())
		}
		return a
	}
}

func decodeTypeAnnotations(visible bool) func(d *attrDecoder) Attribute {
	return func(d *attrDecoder) Attribute {
		a := &TypeAnnotationsAttribute{Visible: visible}
		n := d.U2()
		for i := 0; i < n && d.Err() == nil; i++ {
			a.Annotations = append(a.Annotations, d.typeAnnotation())
		}
		return a
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func (a *AnnotationsAttribute) writeBody(w *bufWriter) error {
	return writeAnnotations(w, a.Annotations)
}

func (a *ParameterAnnotationsAttribute) writeBody(w *bufWriter) error {
	if len(a.Parameters) > 255 {
		return misuse("%d annotated parameters", len(a.Parameters))
	}
	w.U1(len(a.Parameters))
	for _, p := range a.Parameters {
		if err := writeAnnotations(w, p); err != nil {
			return err
		}
	}
	return nil
}

func (a *TypeAnnotationsAttribute) writeBody(w *bufWriter) error {
	w.count(len(a.Annotations))
	for _, ta := range a.Annotations {
		if len(ta.TypePath)%2 != 0 {
			return misuse("type path of %d bytes", len(ta.TypePath))
		}
		w.U1(int(ta.TargetType))
		w.Write(ta.TargetInfo)
		w.U1(len(ta.TypePath) / 2)
		w.Write(ta.TypePath)
		if err := writeAnnotation(w, ta.Annotation); err != nil {
			return err
		}
	}
	return nil
}

func writeAnnotations(w *bufWriter, as []Annotation) error {
	w.count(len(as))
	for _, a := range as {
		if err := writeAnnotation(w, a); err != nil {
			return err
		}
	}
	return nil
}

func writeAnnotation(w *bufWriter, a Annotation) error {
	w.ref(a.Type)
	w.count(len(a.Elements))
	for _, e := range a.Elements {
		w.ref(e.Name)
		if err := writeAnnotationValue(w, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeAnnotationValue(w *bufWriter, v AnnotationValue) error {
	if v == nil {
		return misuse("nil annotation value")
	}
	w.U1(int(v.Tag()))
	switch v := v.(type) {
	case ConstAnnotationValue:
		w.ref(v.Value)
	case EnumAnnotationValue:
		w.ref(v.Type)
		w.ref(v.Constant)
	case ClassAnnotationValue:
		w.ref(v.Class)
	case NestedAnnotationValue:
		return writeAnnotation(w, v.Annotation)
	case ArrayAnnotationValue:
		w.count(len(v.Values))
		for _, x := range v.Values {
			if err := writeAnnotationValue(w, x); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: annotation value %T", ErrBuilderMisuse, v)
	}
	return nil
}
