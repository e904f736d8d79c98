package components

import (
	"testing"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/stretchr/testify/require"
)

// buildUser builds com/example/User, a subclass of Outer that mentions
// Outer in descriptors, signatures, annotations and code.
func buildUser(t *testing.T) []byte {
	t.Helper()
	b, err := classfile.Build("com/example/User", "Outer", func(cb classfile.ClassBuilder) error {
		pool := cb.ConstantPool()
		outer := pool.ClassEntry("Outer")
		cb.WithInterfaces(pool.ClassEntry("java/lang/Comparable"))
		cb.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry("LOuter;Ljava/lang/Comparable<LOuter;>;")})
		cb.With(&classfile.NestMembersAttribute{Members: []*classfile.ClassEntry{pool.ClassEntry("Outer$Inner")}})
		cb.WithField("o", "LOuter;", classfile.AccPrivate, func(fb classfile.FieldBuilder) error {
			fb.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry("Ljava/util/List<LOuter;>;")})
			return nil
		})
		cb.WithField("s", "Ljava/lang/String;", classfile.AccPrivate, func(classfile.FieldBuilder) error { return nil })
		cb.WithField("grid", "[[LOuter;", classfile.AccPrivate, func(classfile.FieldBuilder) error { return nil })
		cb.WithMethod("make", "(LOuter;[I)[LOuter;", classfile.AccPublic|classfile.AccStatic, func(mb classfile.MethodBuilder) error {
			mb.With(&classfile.ExceptionsAttribute{Exceptions: []*classfile.ClassEntry{pool.ClassEntry("OuterException")}})
			mb.With(&classfile.AnnotationsAttribute{Visible: true, Annotations: []classfile.Annotation{{
				Type: pool.Utf8Entry("LOuterMarker;"),
				Elements: []classfile.AnnotationElement{
					{Name: pool.Utf8Entry("value"), Value: classfile.ClassAnnotationValue{Class: pool.Utf8Entry("LOuter;")}},
					{Name: pool.Utf8Entry("primitive"), Value: classfile.ClassAnnotationValue{Class: pool.Utf8Entry("I")}},
				},
			}}})
			mb.WithCode(func(c classfile.CodeBuilder) error {
				c.New(outer)
				c.Op(classfile.OpDup)
				c.Invoke(classfile.OpInvokespecial, outer, "<init>", "()V", false)
				c.CheckCast(outer)
				c.InstanceOf(outer)
				c.Op(classfile.OpPop)
				c.FieldAccess(classfile.OpGetstatic, outer, "INSTANCE", "LOuter;")
				c.Op(classfile.OpPop)
				c.FieldAccess(classfile.OpGetstatic, pool.ClassEntry("java/lang/System"), "out", "Ljava/io/PrintStream;")
				c.Op(classfile.OpPop)
				c.Ldc(pool.ClassEntry("[LOuter;"))
				c.Op(classfile.OpPop)
				c.Op(classfile.OpAconstNull)
				c.Return(desc.Reference)
				return nil
			})
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	return b
}

func method(t *testing.T, m *classfile.ClassModel, name string) classfile.MethodModel {
	t.Helper()
	for _, mm := range m.Methods() {
		if mm.Name().Equals(name) {
			return mm
		}
	}
	t.Fatalf("no method %s", name)
	return nil
}

func bodyInstructions(t *testing.T, mm classfile.MethodModel) []classfile.Instruction {
	t.Helper()
	c, err := mm.Code()
	require.NoError(t, err)
	require.NotNil(t, c)
	els, err := c.Elements()
	require.NoError(t, err)
	var out []classfile.Instruction
	for _, e := range els {
		if i, ok := e.(classfile.Instruction); ok {
			out = append(out, i)
		}
	}
	return out
}

func TestClassRemapper(t *testing.T) {
	m, err := classfile.Parse(buildUser(t))
	require.NoError(t, err)

	r := NewMapRemapper(map[string]string{
		"Outer":          "Router",
		"Outer$Inner":    "Router$Inner",
		"OuterException": "RouterException",
		"OuterMarker":    "RouterMarker",
	})
	out, err := m.Transform(r)
	require.NoError(t, err)
	got, err := classfile.Parse(out)
	require.NoError(t, err)

	require.Equal(t, "com/example/User", got.ThisClass().InternalName())
	require.Equal(t, "Router", got.Superclass().InternalName())
	require.Equal(t, "java/lang/Comparable", got.Interfaces()[0].InternalName())

	attrs, err := got.Attributes()
	require.NoError(t, err)
	sig, ok := classfile.FindAttribute[*classfile.SignatureAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "LRouter;Ljava/lang/Comparable<LRouter;>;", sig.Signature.String())
	nest, ok := classfile.FindAttribute[*classfile.NestMembersAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "Router$Inner", nest.Members[0].InternalName())

	fields := got.Fields()
	require.Len(t, fields, 3)
	require.Equal(t, "LRouter;", fields[0].Descriptor().String())
	require.Equal(t, "Ljava/lang/String;", fields[1].Descriptor().String())
	require.Equal(t, "[[LRouter;", fields[2].Descriptor().String())
	fattrs, err := fields[0].Attributes()
	require.NoError(t, err)
	fsig, ok := classfile.FindAttribute[*classfile.SignatureAttribute](fattrs)
	require.True(t, ok)
	require.Equal(t, "Ljava/util/List<LRouter;>;", fsig.Signature.String())

	mk := method(t, got, "make")
	require.Equal(t, "(LRouter;[I)[LRouter;", mk.Descriptor().String())
	mattrs, err := mk.Attributes()
	require.NoError(t, err)
	exc, ok := classfile.FindAttribute[*classfile.ExceptionsAttribute](mattrs)
	require.True(t, ok)
	require.Equal(t, "RouterException", exc.Exceptions[0].InternalName())
	ann, ok := classfile.FindAttribute[*classfile.AnnotationsAttribute](mattrs)
	require.True(t, ok)
	require.Equal(t, "LRouterMarker;", ann.Annotations[0].Type.String())
	require.Equal(t, "LRouter;", ann.Annotations[0].Elements[0].Value.(classfile.ClassAnnotationValue).Class.String())
	require.Equal(t, "I", ann.Annotations[0].Elements[1].Value.(classfile.ClassAnnotationValue).Class.String())

	ins := bodyInstructions(t, mk)
	require.Equal(t, "Router", ins[0].(classfile.NewObjectInstruction).Class.InternalName())
	require.Equal(t, "Router", ins[2].(classfile.InvokeInstruction).Method.Owner().InternalName())
	require.Equal(t, "Router", ins[3].(classfile.TypeCheckInstruction).Type.InternalName())
	require.Equal(t, "Router", ins[4].(classfile.TypeCheckInstruction).Type.InternalName())
	get := ins[6].(classfile.FieldInstruction)
	require.Equal(t, "Router", get.Field.Owner().InternalName())
	require.Equal(t, "LRouter;", get.Field.MemberType())
	sys := ins[8].(classfile.FieldInstruction)
	require.Equal(t, "java/lang/System", sys.Field.Owner().InternalName())
	require.Equal(t, "Ljava/io/PrintStream;", sys.Field.MemberType())
	ldc := ins[10].(classfile.ConstantInstruction)
	require.Equal(t, "[LRouter;", ldc.Entry.(*classfile.ClassEntry).InternalName())
}

func TestRemapClassRenamesItself(t *testing.T) {
	m, err := classfile.Parse(buildUser(t))
	require.NoError(t, err)

	r := NewClassRemapper(func(d desc.ClassDesc) desc.ClassDesc {
		switch d.InternalName() {
		case "com/example/User":
			return desc.OfInternalName("org/example/User")
		case "Outer":
			return desc.OfInternalName("Router")
		}
		return d
	})
	out, err := r.RemapClass(m)
	require.NoError(t, err)
	got, err := classfile.Parse(out)
	require.NoError(t, err)
	require.Equal(t, "org/example/User", got.ThisClass().InternalName())
	require.Equal(t, "Router", got.Superclass().InternalName())
}

func TestClassRemapperMap(t *testing.T) {
	r := NewMapRemapper(map[string]string{"a/A": "b/B"})
	tests := []struct {
		in, want desc.ClassDesc
	}{
		{"La/A;", "Lb/B;"},
		{"[[La/A;", "[[Lb/B;"},
		{"I", "I"},
		{"[J", "[J"},
		{"Ljava/lang/String;", "Ljava/lang/String;"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, r.Map(tt.in), "Map(%s)", tt.in)
	}
	require.Equal(t, "[Lb/B;", r.MapInternalName("[La/A;"))
	require.Equal(t, "b/B", r.MapInternalName("a/A"))
}

func TestClassRemapperIdentityKeepsStructure(t *testing.T) {
	in := buildUser(t)
	m, err := classfile.Parse(in)
	require.NoError(t, err)
	out, err := m.Transform(NewClassRemapper(nil))
	require.NoError(t, err)
	got, err := classfile.Parse(out)
	require.NoError(t, err)
	require.Equal(t, "Outer", got.Superclass().InternalName())
	require.Len(t, bodyInstructions(t, method(t, got, "make")), len(bodyInstructions(t, method(t, m, "make"))))
}

func TestClassRemapperInnerClassSignatures(t *testing.T) {
	tests := []struct {
		name    string
		renames map[string]string
		in      string
		want    string
	}{
		{
			name:    "outer and inner renamed together",
			renames: map[string]string{"Outer": "Router", "Outer$Inner": "Router$Inner"},
			in:      "LOuter<TT;>.Inner;",
			want:    "LRouter<TT;>.Inner;",
		},
		{
			name:    "inner moved out of its outer class",
			renames: map[string]string{"Outer$Inner": "foo/Bar"},
			in:      "LOuter<TT;>.Inner;",
			want:    "Lfoo/Bar;",
		},
		{
			name:    "only the outer class renamed",
			renames: map[string]string{"Outer": "Router"},
			in:      "LOuter<TT;>.Inner;",
			want:    "LOuter$Inner;",
		},
		{
			name:    "nested arguments",
			renames: map[string]string{"Outer": "Router", "Outer$Inner": "Router$Inner"},
			in:      "Ljava/util/Map<LOuter;LOuter<*>.Inner;>;",
			want:    "Ljava/util/Map<LRouter;LRouter<*>.Inner;>;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMapRemapper(tt.renames).mapTypeSigString(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// buildKit builds com/example/Kit, which mentions Outer and its companions
// in every place a class name can hide outside plain descriptors.
func buildKit(t *testing.T) []byte {
	t.Helper()
	b, err := classfile.Build("com/example/Kit", "java/lang/Object", func(cb classfile.ClassBuilder) error {
		pool := cb.ConstantPool()
		outer := pool.ClassEntry("Outer")
		marker := pool.Utf8Entry("LOuterMarker;")

		cb.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry("<T:LOuter;:LOuterApi;>Ljava/lang/Object;")})
		cb.With(&classfile.InnerClassesAttribute{Classes: []classfile.InnerClassInfo{{
			Inner: pool.ClassEntry("Outer$Inner"),
			Outer: outer,
			Name:  pool.Utf8Entry("Inner"),
			Flags: classfile.AccPublic | classfile.AccStatic,
		}}})
		cb.With(&classfile.EnclosingMethodAttribute{Class: outer, Method: pool.NameAndTypeEntry("make", "(LOuter;)V")})
		cb.With(&classfile.RecordAttribute{Components: []classfile.RecordComponent{{
			Name:       pool.Utf8Entry("o"),
			Descriptor: pool.Utf8Entry("LOuter;"),
			Attributes: []classfile.Attribute{&classfile.SignatureAttribute{Signature: pool.Utf8Entry("Ljava/util/List<LOuter;>;")}},
		}}})
		cb.With(&classfile.ModuleAttribute{
			Module:   pool.ModuleEntry("kit"),
			Uses:     []*classfile.ClassEntry{pool.ClassEntry("OuterApi")},
			Provides: []classfile.ModuleProvide{{Service: pool.ClassEntry("OuterApi"), With: []*classfile.ClassEntry{outer}}},
		})
		cb.With(&classfile.PermittedSubclassesAttribute{Subclasses: []*classfile.ClassEntry{outer}})
		cb.With(&classfile.TypeAnnotationsAttribute{Visible: true, Annotations: []classfile.TypeAnnotation{{
			TargetType: 0x10,
			TargetInfo: []byte{0xFF, 0xFF},
			Annotation: classfile.Annotation{Type: marker},
		}}})

		constant := pool.BootstrapMethodEntry(pool.MethodHandleEntry(classfile.RefInvokeStatic,
			pool.MethodRefEntry(outer, "constant", "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/Class;)LOuter;")))
		boot := pool.BootstrapMethodEntry(pool.MethodHandleEntry(classfile.RefInvokeStatic,
			pool.MethodRefEntry(outer, "boot", "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;")),
			outer,
			pool.MethodTypeEntry("(LOuter;)V"),
			pool.MethodHandleEntry(classfile.RefInvokeVirtual, pool.MethodRefEntry(outer, "run", "(LOuter;)V")),
			pool.DynamicEntry(constant, pool.NameAndTypeEntry("k", "LOuter;")),
		)
		site := pool.InvokeDynamicEntry(boot, pool.NameAndTypeEntry("apply", "(LOuter;)Ljava/lang/Runnable;"))

		cb.WithMethod("run", "(LOuter;)V", classfile.AccPublic|classfile.AccStatic, func(mb classfile.MethodBuilder) error {
			mb.With(&classfile.SignatureAttribute{Signature: pool.Utf8Entry("<X:LOuter;>(TX;)V^LOuterException;")})
			mb.With(&classfile.ParameterAnnotationsAttribute{Visible: true, Parameters: [][]classfile.Annotation{{{
				Type: marker,
				Elements: []classfile.AnnotationElement{
					{Name: pool.Utf8Entry("kind"), Value: classfile.EnumAnnotationValue{Type: pool.Utf8Entry("LOuterKind;"), Constant: pool.Utf8Entry("VALUE")}},
					{Name: pool.Utf8Entry("nested"), Value: classfile.NestedAnnotationValue{Annotation: classfile.Annotation{
						Type: marker,
						Elements: []classfile.AnnotationElement{
							{Name: pool.Utf8Entry("value"), Value: classfile.ClassAnnotationValue{Class: pool.Utf8Entry("LOuter;")}},
						},
					}}},
					{Name: pool.Utf8Entry("kinds"), Value: classfile.ArrayAnnotationValue{Values: []classfile.AnnotationValue{
						classfile.EnumAnnotationValue{Type: pool.Utf8Entry("LOuterKind;"), Constant: pool.Utf8Entry("OTHER")},
					}}},
				},
			}}}})
			mb.WithCode(func(c classfile.CodeBuilder) error {
				start, end, handler := c.NewLabel(), c.NewLabel(), c.NewLabel()
				c.ExceptionCatch(start, end, handler, pool.ClassEntry("OuterException"))
				c.LabelBinding(start)
				c.LoadLocal(desc.Reference, 0)
				c.InvokeDynamic(site)
				c.Op(classfile.OpPop)
				c.LabelBinding(end)
				c.Return(desc.Void)
				c.LabelBinding(handler)
				c.StoreLocal(desc.Reference, 0)
				c.Return(desc.Void)
				c.LocalVariable(0, "o", "LOuter;", start, end)
				c.With(classfile.LocalVariableType{
					Slot:      0,
					Name:      pool.Utf8Entry("o"),
					Signature: pool.Utf8Entry("Ljava/util/List<LOuter;>;"),
					Start:     start,
					End:       end,
				})
				c.With(&classfile.StackMapTableAttribute{Frames: []classfile.StackMapFrame{{
					Target: handler,
					Locals: []classfile.VerificationType{{Tag: classfile.VtObject, ClassName: "Outer"}},
					Stack:  []classfile.VerificationType{{Tag: classfile.VtObject, ClassName: "OuterException"}},
				}}})
				return nil
			})
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	return b
}

func TestClassRemapperReachesEveryClassName(t *testing.T) {
	m, err := classfile.Parse(buildKit(t))
	require.NoError(t, err)

	r := NewMapRemapper(map[string]string{
		"Outer":          "Router",
		"Outer$Inner":    "Router$Inner",
		"OuterApi":       "RouterApi",
		"OuterException": "RouterException",
		"OuterMarker":    "RouterMarker",
		"OuterKind":      "RouterKind",
	})
	out, err := m.Transform(r)
	require.NoError(t, err)
	got, err := classfile.Parse(out)
	require.NoError(t, err)

	attrs, err := got.Attributes()
	require.NoError(t, err)

	sig, ok := classfile.FindAttribute[*classfile.SignatureAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "<T:LRouter;:LRouterApi;>Ljava/lang/Object;", sig.Signature.String())

	inner, ok := classfile.FindAttribute[*classfile.InnerClassesAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "Router$Inner", inner.Classes[0].Inner.InternalName())
	require.Equal(t, "Router", inner.Classes[0].Outer.InternalName())
	require.Equal(t, "Inner", inner.Classes[0].Name.String())

	encl, ok := classfile.FindAttribute[*classfile.EnclosingMethodAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "Router", encl.Class.InternalName())
	require.Equal(t, "make", encl.Method.Name().String())
	require.Equal(t, "(LRouter;)V", encl.Method.Type().String())

	rec, ok := classfile.FindAttribute[*classfile.RecordAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "LRouter;", rec.Components[0].Descriptor.String())
	rsig, ok := classfile.FindAttribute[*classfile.SignatureAttribute](rec.Components[0].Attributes)
	require.True(t, ok)
	require.Equal(t, "Ljava/util/List<LRouter;>;", rsig.Signature.String())

	mod, ok := classfile.FindAttribute[*classfile.ModuleAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "kit", mod.Module.String())
	require.Equal(t, "RouterApi", mod.Uses[0].InternalName())
	require.Equal(t, "RouterApi", mod.Provides[0].Service.InternalName())
	require.Equal(t, "Router", mod.Provides[0].With[0].InternalName())

	perm, ok := classfile.FindAttribute[*classfile.PermittedSubclassesAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "Router", perm.Subclasses[0].InternalName())

	tann, ok := classfile.FindAttribute[*classfile.TypeAnnotationsAttribute](attrs)
	require.True(t, ok)
	require.Equal(t, "LRouterMarker;", tann.Annotations[0].Annotation.Type.String())
	require.Equal(t, []byte{0xFF, 0xFF}, tann.Annotations[0].TargetInfo)

	run := method(t, got, "run")
	require.Equal(t, "(LRouter;)V", run.Descriptor().String())
	mattrs, err := run.Attributes()
	require.NoError(t, err)
	msig, ok := classfile.FindAttribute[*classfile.SignatureAttribute](mattrs)
	require.True(t, ok)
	require.Equal(t, "<X:LRouter;>(TX;)V^LRouterException;", msig.Signature.String())

	params, ok := classfile.FindAttribute[*classfile.ParameterAnnotationsAttribute](mattrs)
	require.True(t, ok)
	ann := params.Parameters[0][0]
	require.Equal(t, "LRouterMarker;", ann.Type.String())
	kind := ann.Elements[0].Value.(classfile.EnumAnnotationValue)
	require.Equal(t, "LRouterKind;", kind.Type.String())
	require.Equal(t, "VALUE", kind.Constant.String())
	nested := ann.Elements[1].Value.(classfile.NestedAnnotationValue).Annotation
	require.Equal(t, "LRouterMarker;", nested.Type.String())
	require.Equal(t, "LRouter;", nested.Elements[0].Value.(classfile.ClassAnnotationValue).Class.String())
	kinds := ann.Elements[2].Value.(classfile.ArrayAnnotationValue)
	require.Equal(t, "LRouterKind;", kinds.Values[0].(classfile.EnumAnnotationValue).Type.String())

	c, err := run.Code()
	require.NoError(t, err)
	els, err := c.Elements()
	require.NoError(t, err)
	var (
		indy     classfile.InvokeDynamicInstruction
		catch    classfile.ExceptionCatch
		local    classfile.LocalVariable
		localSig classfile.LocalVariableType
		frames   *classfile.StackMapTableAttribute
	)
	for _, e := range els {
		switch e := e.(type) {
		case classfile.InvokeDynamicInstruction:
			indy = e
		case classfile.ExceptionCatch:
			catch = e
		case classfile.LocalVariable:
			local = e
		case classfile.LocalVariableType:
			localSig = e
		case *classfile.StackMapTableAttribute:
			frames = e
		}
	}

	require.NotNil(t, indy.Site)
	require.Equal(t, "(LRouter;)Ljava/lang/Runnable;", indy.Site.NameAndType().Type().String())
	bsm := indy.Site.Bootstrap()
	require.Equal(t, "Router", bsm.Method().Reference().Owner().InternalName())
	args := bsm.Arguments()
	require.Len(t, args, 4)
	require.Equal(t, "Router", args[0].(*classfile.ClassEntry).InternalName())
	require.Equal(t, "(LRouter;)V", args[1].(*classfile.MethodTypeEntry).Descriptor().String())
	handle := args[2].(*classfile.MethodHandleEntry)
	require.Equal(t, classfile.RefInvokeVirtual, handle.Kind())
	require.Equal(t, "Router", handle.Reference().Owner().InternalName())
	require.Equal(t, "(LRouter;)V", handle.Reference().MemberType())
	dyn := args[3].(*classfile.DynamicEntry)
	require.Equal(t, "LRouter;", dyn.NameAndType().Type().String())
	require.Equal(t, "Router", dyn.Bootstrap().Method().Reference().Owner().InternalName())
	require.Equal(t, "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/Class;)LRouter;",
		dyn.Bootstrap().Method().Reference().MemberType())

	require.Equal(t, "RouterException", catch.CatchType.InternalName())
	require.Equal(t, "LRouter;", local.Type.String())
	require.Equal(t, "Ljava/util/List<LRouter;>;", localSig.Signature.String())

	require.NotNil(t, frames)
	require.Equal(t, "Router", frames.Frames[0].Locals[0].ClassName)
	require.Equal(t, "RouterException", frames.Frames[0].Stack[0].ClassName)
}
