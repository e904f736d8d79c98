package classfile

// Attribute is a named metadata block of a class, field, method, record
// component or code body. Decoded attributes remember where their body lies
// in the source classfile, so unchanged attributes are copied verbatim when
// the output shares the source's constant pool.
type Attribute interface {
	AttributeName() string
	attr() *attrBase
	writeBody(w *bufWriter) error
}

// attrBase locates the body of a decoded attribute. It is zero for
// attributes created by user code.
type attrBase struct {
	src    *Reader
	off    int
	length int
}

func (a *attrBase) attr() *attrBase { return a }

const (
	attrAnnotationDefault                    = "AnnotationDefault"
	attrBootstrapMethods                     = "BootstrapMethods"
	attrCode                                 = "Code"
	attrConstantValue                        = "ConstantValue"
	attrDeprecated                           = "Deprecated"
	attrEnclosingMethod                      = "EnclosingMethod"
	attrExceptions                           = "Exceptions"
	attrInnerClasses                         = "InnerClasses"
	attrLineNumberTable                      = "LineNumberTable"
	attrLocalVariableTable                   = "LocalVariableTable"
	attrLocalVariableTypeTable               = "LocalVariableTypeTable"
	attrMethodParameters                     = "MethodParameters"
	attrModule                               = "Module"
	attrNestHost                             = "NestHost"
	attrNestMembers                          = "NestMembers"
	attrPermittedSubclasses                  = "PermittedSubclasses"
	attrRecord                               = "Record"
	attrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	attrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	attrRuntimeInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
	attrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	attrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	attrRuntimeVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	attrSignature                            = "Signature"
	attrSourceDebugExtension                 = "SourceDebugExtension"
	attrSourceFile                           = "SourceFile"
	attrStackMapTable                        = "StackMapTable"
	attrSynthetic                            = "Synthetic"
)

// allowsMultiple reports whether a holder may carry several attributes like
// a.
func allowsMultiple(a Attribute) bool {
	if _, ok := a.(*UnknownAttribute); ok {
		return true
	}
	switch a.AttributeName() {
	case attrLineNumberTable, attrLocalVariableTable, attrLocalVariableTypeTable:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Class attributes
// ---------------------------------------------------------------------------

// SourceFileAttribute names the source file.
type SourceFileAttribute struct {
	attrBase
	SourceFile *Utf8Entry
}

// SourceDebugExtensionAttribute holds extended debugging information.
type SourceDebugExtensionAttribute struct {
	attrBase
	Data []byte
}

// InnerClassInfo is one row of an InnerClasses attribute. Outer and Name are
// nil for local and anonymous classes.
type InnerClassInfo struct {
	Inner *ClassEntry
	Outer *ClassEntry
	Name  *Utf8Entry
	Flags AccessFlags
}

// InnerClassesAttribute lists nested class relationships.
type InnerClassesAttribute struct {
	attrBase
	Classes []InnerClassInfo
}

// EnclosingMethodAttribute names the method enclosing a local or anonymous
// class. Method is nil when the class is not enclosed by a method.
type EnclosingMethodAttribute struct {
	attrBase
	Class  *ClassEntry
	Method *NameAndTypeEntry
}

// NestHostAttribute names the nest host.
type NestHostAttribute struct {
	attrBase
	Host *ClassEntry
}

// NestMembersAttribute lists the members of the nest.
type NestMembersAttribute struct {
	attrBase
	Members []*ClassEntry
}

// PermittedSubclassesAttribute lists the permitted direct subclasses of a
// sealed class.
type PermittedSubclassesAttribute struct {
	attrBase
	Subclasses []*ClassEntry
}

// RecordComponent describes one component of a record class.
type RecordComponent struct {
	Name       *Utf8Entry
	Descriptor *Utf8Entry
	Attributes []Attribute
}

// RecordAttribute lists the components of a record class.
type RecordAttribute struct {
	attrBase
	Components []RecordComponent
}

// ModuleRequire is a requires directive.
type ModuleRequire struct {
	Module  *ModuleEntry
	Flags   int
	Version *Utf8Entry
}

// ModuleExport is an exports or opens directive. An empty To list means the
// package is exported to every module.
type ModuleExport struct {
	Package *PackageEntry
	Flags   int
	To      []*ModuleEntry
}

// ModuleProvide is a provides directive.
type ModuleProvide struct {
	Service *ClassEntry
	With    []*ClassEntry
}

// ModuleAttribute describes a module declaration.
type ModuleAttribute struct {
	attrBase
	Module   *ModuleEntry
	Flags    int
	Version  *Utf8Entry
	Requires []ModuleRequire
	Exports  []ModuleExport
	Opens    []ModuleExport
	Uses     []*ClassEntry
	Provides []ModuleProvide
}

// ---------------------------------------------------------------------------
// Shared attributes
// ---------------------------------------------------------------------------

// SignatureAttribute holds a generic signature.
type SignatureAttribute struct {
	attrBase
	Signature *Utf8Entry
}

// DeprecatedAttribute marks a deprecated declaration.
type DeprecatedAttribute struct{ attrBase }

// SyntheticAttribute marks a compiler-generated declaration.
type SyntheticAttribute struct{ attrBase }

// UnknownAttribute is an attribute without a known layout, or a known
// attribute in a holder where it is not defined. Data aliases the source
// classfile when decoded.
type UnknownAttribute struct {
	attrBase
	Name string
	Data []byte
}

// ---------------------------------------------------------------------------
// Field and method attributes
// ---------------------------------------------------------------------------

// ConstantValueAttribute is the initial value of a static field: an
// Integer, Float, Long, Double or String entry.
type ConstantValueAttribute struct {
	attrBase
	Value LoadableEntry
}

// ExceptionsAttribute lists the checked exceptions a method declares.
type ExceptionsAttribute struct {
	attrBase
	Exceptions []*ClassEntry
}

// MethodParameter is one MethodParameters row. Name is nil for an unnamed
// parameter.
type MethodParameter struct {
	Name  *Utf8Entry
	Flags AccessFlags
}

// MethodParametersAttribute names the formal parameters of a method.
type MethodParametersAttribute struct {
	attrBase
	Parameters []MethodParameter
}

// AnnotationDefaultAttribute is the default value of an annotation element.
type AnnotationDefaultAttribute struct {
	attrBase
	Value AnnotationValue
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

func (*SourceFileAttribute) AttributeName() string           { return attrSourceFile }
func (*SourceDebugExtensionAttribute) AttributeName() string { return attrSourceDebugExtension }
func (*InnerClassesAttribute) AttributeName() string         { return attrInnerClasses }
func (*EnclosingMethodAttribute) AttributeName() string      { return attrEnclosingMethod }
func (*NestHostAttribute) AttributeName() string             { return attrNestHost }
func (*NestMembersAttribute) AttributeName() string          { return attrNestMembers }
func (*PermittedSubclassesAttribute) AttributeName() string  { return attrPermittedSubclasses }
func (*RecordAttribute) AttributeName() string               { return attrRecord }
func (*ModuleAttribute) AttributeName() string               { return attrModule }
func (*SignatureAttribute) AttributeName() string            { return attrSignature }
func (*DeprecatedAttribute) AttributeName() string           { return attrDeprecated }
func (*SyntheticAttribute) AttributeName() string            { return attrSynthetic }
func (a *UnknownAttribute) AttributeName() string            { return a.Name }
func (*ConstantValueAttribute) AttributeName() string        { return attrConstantValue }
func (*ExceptionsAttribute) AttributeName() string           { return attrExceptions }
func (*MethodParametersAttribute) AttributeName() string     { return attrMethodParameters }
func (*AnnotationDefaultAttribute) AttributeName() string    { return attrAnnotationDefault }

// ---------------------------------------------------------------------------
// Element markers
// ---------------------------------------------------------------------------

func (*SourceFileAttribute) classElement()           {}
func (*SourceDebugExtensionAttribute) classElement() {}
func (*InnerClassesAttribute) classElement()         {}
func (*EnclosingMethodAttribute) classElement()      {}
func (*NestHostAttribute) classElement()             {}
func (*NestMembersAttribute) classElement()          {}
func (*PermittedSubclassesAttribute) classElement()  {}
func (*RecordAttribute) classElement()               {}
func (*ModuleAttribute) classElement()               {}

func (*SignatureAttribute) classElement()  {}
func (*SignatureAttribute) fieldElement()  {}
func (*SignatureAttribute) methodElement() {}

func (*DeprecatedAttribute) classElement()  {}
func (*DeprecatedAttribute) fieldElement()  {}
func (*DeprecatedAttribute) methodElement() {}

func (*SyntheticAttribute) classElement()  {}
func (*SyntheticAttribute) fieldElement()  {}
func (*SyntheticAttribute) methodElement() {}

func (*UnknownAttribute) classElement()  {}
func (*UnknownAttribute) fieldElement()  {}
func (*UnknownAttribute) methodElement() {}
func (*UnknownAttribute) codeElement()   {}

func (*ConstantValueAttribute) fieldElement()      {}
func (*ExceptionsAttribute) methodElement()        {}
func (*MethodParametersAttribute) methodElement()  {}
func (*AnnotationDefaultAttribute) methodElement() {}

// ---------------------------------------------------------------------------
// Bodies
// ---------------------------------------------------------------------------

func (a *SourceFileAttribute) writeBody(w *bufWriter) error {
	w.ref(a.SourceFile)
	return nil
}

func (a *SourceDebugExtensionAttribute) writeBody(w *bufWriter) error {
	w.Write(a.Data)
	return nil
}

func (a *InnerClassesAttribute) writeBody(w *bufWriter) error {
	w.count(len(a.Classes))
	for _, c := range a.Classes {
		w.ref(c.Inner)
		w.optRef(c.Outer)
		w.optRef(c.Name)
		w.U2(int(c.Flags))
	}
	return nil
}

func (a *EnclosingMethodAttribute) writeBody(w *bufWriter) error {
	w.ref(a.Class)
	w.optRef(a.Method)
	return nil
}

func (a *NestHostAttribute) writeBody(w *bufWriter) error {
	w.ref(a.Host)
	return nil
}

func (a *NestMembersAttribute) writeBody(w *bufWriter) error {
	writeRefs(w, a.Members)
	return nil
}

func (a *PermittedSubclassesAttribute) writeBody(w *bufWriter) error {
	writeRefs(w, a.Subclasses)
	return nil
}

func (a *RecordAttribute) writeBody(w *bufWriter) error {
	w.count(len(a.Components))
	for _, c := range a.Components {
		w.ref(c.Name)
		w.ref(c.Descriptor)
		if err := w.attributes(c.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (a *ModuleAttribute) writeBody(w *bufWriter) error {
	w.ref(a.Module)
	w.U2(a.Flags)
	w.optRef(a.Version)
	w.count(len(a.Requires))
	for _, r := range a.Requires {
		w.ref(r.Module)
		w.U2(r.Flags)
		w.optRef(r.Version)
	}
	for _, list := range [][]ModuleExport{a.Exports, a.Opens} {
		w.count(len(list))
		for _, e := range list {
			w.ref(e.Package)
			w.U2(e.Flags)
			writeRefs(w, e.To)
		}
	}
	writeRefs(w, a.Uses)
	w.count(len(a.Provides))
	for _, p := range a.Provides {
		w.ref(p.Service)
		writeRefs(w, p.With)
	}
	return nil
}

func (a *SignatureAttribute) writeBody(w *bufWriter) error {
	w.ref(a.Signature)
	return nil
}

func (*DeprecatedAttribute) writeBody(*bufWriter) error { return nil }
func (*SyntheticAttribute) writeBody(*bufWriter) error  { return nil }

func (a *UnknownAttribute) writeBody(w *bufWriter) error {
	w.Write(a.Data)
	return nil
}

func (a *ConstantValueAttribute) writeBody(w *bufWriter) error {
	switch a.Value.(type) {
	case *IntegerEntry, *FloatEntry, *LongEntry, *DoubleEntry, *StringEntry:
	default:
		return misuse("ConstantValue cannot hold %T", a.Value)
	}
	w.ref(a.Value)
	return nil
}

func (a *ExceptionsAttribute) writeBody(w *bufWriter) error {
	writeRefs(w, a.Exceptions)
	return nil
}

func (a *MethodParametersAttribute) writeBody(w *bufWriter) error {
	if len(a.Parameters) > 255 {
		return misuse("%d method parameters", len(a.Parameters))
	}
	w.U1(len(a.Parameters))
	for _, p := range a.Parameters {
		w.optRef(p.Name)
		w.U2(int(p.Flags))
	}
	return nil
}

func (a *AnnotationDefaultAttribute) writeBody(w *bufWriter) error {
	return writeAnnotationValue(w, a.Value)
}

func writeRefs[T Entry](w *bufWriter, es []T) {
	w.count(len(es))
	for _, e := range es {
		w.ref(e)
	}
}
