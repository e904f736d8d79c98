// Package inspect renders classfiles for people and tools: a deterministic
// text dump, a compact CBOR summary, and unified diffs of dumps.
//
// Dumps never show constant pool indices and name labels in order of
// appearance, so two classfiles with the same structure dump identically
// even when their pools are laid out differently.
package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/cfx/classfile"
)

// printer writes indented lines and keeps the first write error.
type printer struct {
	w      io.Writer
	indent int
	err    error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

// Dump writes a listing of m to w.
func Dump(w io.Writer, m *classfile.ClassModel) error {
	p := &printer{w: w}
	p.line("class %s", m.ThisClass().InternalName())
	p.indent++
	p.line("version %d.%d", m.MajorVersion(), m.MinorVersion())
	p.line("flags %s", m.Flags())
	if s := m.Superclass(); s != nil {
		p.line("super %s", s.InternalName())
	}
	for _, i := range m.Interfaces() {
		p.line("implements %s", i.InternalName())
	}
	attrs, err := m.Attributes()
	if err != nil {
		return err
	}
	dumpAttributes(p, attrs)
	p.indent--

	for _, f := range m.Fields() {
		p.line("field %s %s", f.Name(), f.Descriptor())
		p.indent++
		p.line("flags %s", f.Flags())
		attrs, err := f.Attributes()
		if err != nil {
			return err
		}
		dumpAttributes(p, attrs)
		p.indent--
	}
	for _, mm := range m.Methods() {
		if err := dumpMethod(p, mm); err != nil {
			return err
		}
	}
	return p.err
}

// DumpString returns the listing of m.
func DumpString(m *classfile.ClassModel) (string, error) {
	var sb strings.Builder
	if err := Dump(&sb, m); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func dumpMethod(p *printer, m classfile.MethodModel) error {
	p.line("method %s%s", m.Name(), m.Descriptor())
	p.indent++
	defer func() { p.indent-- }()
	p.line("flags %s", m.Flags())
	attrs, err := m.Attributes()
	if err != nil {
		return err
	}
	var c *classfile.CodeAttribute
	var rest []classfile.Attribute
	for _, a := range attrs {
		if code, ok := a.(*classfile.CodeAttribute); ok {
			c = code
			continue
		}
		rest = append(rest, a)
	}
	dumpAttributes(p, rest)
	if c == nil {
		return nil
	}
	p.line("code stack=%d locals=%d", c.MaxStack(), c.MaxLocals())
	els, err := c.Elements()
	if err != nil {
		return err
	}
	p.indent++
	dumpCode(p, els)
	p.indent--
	return nil
}

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// labeler names labels L0, L1, ... in the order they are bound.
type labeler map[*classfile.Label]string

func newLabeler(els []classfile.CodeElement) labeler {
	l := labeler{}
	for _, e := range els {
		if t, ok := e.(classfile.LabelTarget); ok {
			l.name(t.Label)
		}
	}
	return l
}

func (l labeler) name(x *classfile.Label) string {
	if x == nil {
		return "-"
	}
	if n, ok := l[x]; ok {
		return n
	}
	n := fmt.Sprintf("L%d", len(l))
	l[x] = n
	return n
}

func dumpCode(p *printer, els []classfile.CodeElement) {
	labels := newLabeler(els)
	for _, e := range els {
		switch e := e.(type) {
		case classfile.LabelTarget:
			p.indent--
			p.line("%s:", labels.name(e.Label))
			p.indent++
		case classfile.Instruction:
			p.line("%s", formatInstruction(e, labels))
		case classfile.ExceptionCatch:
			catch := "any"
			if e.CatchType != nil {
				catch = e.CatchType.InternalName()
			}
			p.line("catch %s %s..%s -> %s", catch, labels.name(e.Start), labels.name(e.End), labels.name(e.Handler))
		case classfile.LineNumber:
			p.line("line %d", e.Line)
		case classfile.LocalVariable:
			p.line("local %d %s %s %s..%s", e.Slot, e.Name, e.Type, labels.name(e.Start), labels.name(e.End))
		case classfile.LocalVariableType:
			p.line("local %d %s %s %s..%s", e.Slot, e.Name, e.Signature, labels.name(e.Start), labels.name(e.End))
		case *classfile.StackMapTableAttribute:
			for _, f := range e.Frames {
				p.line("frame %s locals=%s stack=%s", labels.name(f.Target), formatTypes(f.Locals, labels), formatTypes(f.Stack, labels))
			}
		case classfile.Attribute:
			p.line("attribute %s", e.AttributeName())
		}
	}
}

func formatTypes(vs []classfile.VerificationType, labels labeler) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		switch v.Tag {
		case classfile.VtTop:
			parts[i] = "top"
		case classfile.VtInteger:
			parts[i] = "int"
		case classfile.VtFloat:
			parts[i] = "float"
		case classfile.VtDouble:
			parts[i] = "double"
		case classfile.VtLong:
			parts[i] = "long"
		case classfile.VtNull:
			parts[i] = "null"
		case classfile.VtUninitializedThis:
			parts[i] = "uninitializedThis"
		case classfile.VtObject:
			parts[i] = v.ClassName
		case classfile.VtUninitialized:
			parts[i] = "uninitialized(" + labels.name(v.New) + ")"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatInstruction(i classfile.Instruction, labels labeler) string {
	op := i.Opcode()
	switch i := i.(type) {
	case classfile.LoadInstruction:
		if op.Size() == 1 {
			return op.String()
		}
		return fmt.Sprintf("%s %d", op, i.Slot)
	case classfile.StoreInstruction:
		if op.Size() == 1 {
			return op.String()
		}
		return fmt.Sprintf("%s %d", op, i.Slot)
	case classfile.IncrementInstruction:
		return fmt.Sprintf("iinc %d %d", i.Slot, i.Delta)
	case classfile.BranchInstruction:
		return fmt.Sprintf("%s %s", op, labels.name(i.Target))
	case classfile.LookupSwitchInstruction:
		return formatSwitch(op, i.Default, i.Cases, labels)
	case classfile.TableSwitchInstruction:
		return formatSwitch(op, i.Default, i.Cases, labels)
	case classfile.FieldInstruction:
		return fmt.Sprintf("%s %s", op, i.Field)
	case classfile.InvokeInstruction:
		if _, ok := i.Method.(*classfile.InterfaceMethodRefEntry); ok {
			return fmt.Sprintf("%s interface %s", op, i.Method)
		}
		return fmt.Sprintf("%s %s", op, i.Method)
	case classfile.InvokeDynamicInstruction:
		return fmt.Sprintf("%s %s %s", op, i.Site.NameAndType(), i.Site.Bootstrap())
	case classfile.NewObjectInstruction:
		return fmt.Sprintf("%s %s", op, i.Class)
	case classfile.NewPrimitiveArrayInstruction:
		return fmt.Sprintf("%s %s", op, i.Component)
	case classfile.NewReferenceArrayInstruction:
		return fmt.Sprintf("%s %s", op, i.Component)
	case classfile.NewMultiArrayInstruction:
		return fmt.Sprintf("%s %s %d", op, i.Array, i.Dimensions)
	case classfile.TypeCheckInstruction:
		return fmt.Sprintf("%s %s", op, i.Type)
	case classfile.ConstantInstruction:
		switch {
		case i.Entry != nil && op == classfile.OpLdcW:
			return fmt.Sprintf("%s %s", classfile.OpLdc, i.Entry)
		case i.Entry != nil:
			return fmt.Sprintf("%s %s", op, i.Entry)
		case op == classfile.OpBipush || op == classfile.OpSipush:
			return fmt.Sprintf("%s %d", op, i.Value)
		}
	case classfile.DiscontinuedInstruction:
		if op == classfile.OpRet {
			return fmt.Sprintf("%s %d", op, i.Slot)
		}
		return fmt.Sprintf("%s %s", op, labels.name(i.Target))
	}
	return op.String()
}

func formatSwitch(op classfile.Opcode, def *classfile.Label, cases []classfile.SwitchCase, labels labeler) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s default %s", op, labels.name(def))
	for _, c := range cases {
		fmt.Fprintf(&sb, " %d:%s", c.Value, labels.name(c.Target))
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

func dumpAttributes(p *printer, attrs []classfile.Attribute) {
	for _, a := range attrs {
		dumpAttribute(p, a)
	}
}

func dumpAttribute(p *printer, a classfile.Attribute) {
	name := a.AttributeName()
	switch a := a.(type) {
	case *classfile.SourceFileAttribute:
		p.line("%s %s", name, a.SourceFile)
	case *classfile.SignatureAttribute:
		p.line("%s %s", name, a.Signature)
	case *classfile.ConstantValueAttribute:
		p.line("%s %s", name, a.Value)
	case *classfile.ExceptionsAttribute:
		p.line("%s %s", name, classNames(a.Exceptions))
	case *classfile.NestHostAttribute:
		p.line("%s %s", name, a.Host)
	case *classfile.NestMembersAttribute:
		p.line("%s %s", name, classNames(a.Members))
	case *classfile.PermittedSubclassesAttribute:
		p.line("%s %s", name, classNames(a.Subclasses))
	case *classfile.EnclosingMethodAttribute:
		if a.Method != nil {
			p.line("%s %s %s", name, a.Class, a.Method)
		} else {
			p.line("%s %s", name, a.Class)
		}
	case *classfile.InnerClassesAttribute:
		p.line("%s", name)
		p.indent++
		for _, ic := range a.Classes {
			outer, simple := "-", "-"
			if ic.Outer != nil {
				outer = ic.Outer.InternalName()
			}
			if ic.Name != nil {
				simple = ic.Name.String()
			}
			p.line("%s outer=%s name=%s flags=%s", ic.Inner, outer, simple, ic.Flags)
		}
		p.indent--
	case *classfile.RecordAttribute:
		p.line("%s", name)
		p.indent++
		for _, c := range a.Components {
			p.line("component %s %s", c.Name, c.Descriptor)
			p.indent++
			dumpAttributes(p, c.Attributes)
			p.indent--
		}
		p.indent--
	case *classfile.MethodParametersAttribute:
		parts := make([]string, len(a.Parameters))
		for i, mp := range a.Parameters {
			parts[i] = "-"
			if mp.Name != nil {
				parts[i] = mp.Name.String()
			}
		}
		p.line("%s [%s]", name, strings.Join(parts, " "))
	case *classfile.AnnotationsAttribute:
		p.line("%s", name)
		p.indent++
		for _, an := range a.Annotations {
			p.line("%s", formatAnnotation(an))
		}
		p.indent--
	case *classfile.ParameterAnnotationsAttribute:
		p.line("%s", name)
		p.indent++
		for i, as := range a.Parameters {
			for _, an := range as {
				p.line("%d %s", i, formatAnnotation(an))
			}
		}
		p.indent--
	case *classfile.TypeAnnotationsAttribute:
		p.line("%s", name)
		p.indent++
		for _, ta := range a.Annotations {
			p.line("target=0x%02x %s", ta.TargetType, formatAnnotation(ta.Annotation))
		}
		p.indent--
	case *classfile.AnnotationDefaultAttribute:
		p.line("%s %s", name, formatAnnotationValue(a.Value))
	case *classfile.ModuleAttribute:
		p.line("%s %s requires=%d exports=%d opens=%d uses=%s provides=%d",
			name, a.Module, len(a.Requires), len(a.Exports), len(a.Opens), classNames(a.Uses), len(a.Provides))
	case *classfile.UnknownAttribute:
		p.line("%s (%d bytes)", name, len(a.Data))
	default:
		p.line("%s", name)
	}
}

func classNames(cs []*classfile.ClassEntry) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.InternalName()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatAnnotation(a classfile.Annotation) string {
	var sb strings.Builder
	sb.WriteString("@")
	sb.WriteString(a.Type.String())
	sb.WriteString("(")
	for i, el := range a.Elements {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(el.Name.String())
		sb.WriteString("=")
		sb.WriteString(formatAnnotationValue(el.Value))
	}
	sb.WriteString(")")
	return sb.String()
}

func formatAnnotationValue(v classfile.AnnotationValue) string {
	switch v := v.(type) {
	case classfile.ConstAnnotationValue:
		return fmt.Sprintf("%c:%s", v.Kind, v.Value)
	case classfile.EnumAnnotationValue:
		return v.Type.String() + "." + v.Constant.String()
	case classfile.ClassAnnotationValue:
		return v.Class.String() + ".class"
	case classfile.NestedAnnotationValue:
		return formatAnnotation(v.Annotation)
	case classfile.ArrayAnnotationValue:
		parts := make([]string, len(v.Values))
		for i, x := range v.Values {
			parts[i] = formatAnnotationValue(x)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}
