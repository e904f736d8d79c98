package classfile

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/chazu/cfx/desc"
)

func TestBuildAndParse(t *testing.T) {
	m := parseSample(t)
	if got := m.ThisClass().InternalName(); got != "com/example/Sample" {
		t.Errorf("ThisClass = %q", got)
	}
	if m.Superclass() == nil || m.Superclass().InternalName() != "java/lang/Object" {
		t.Errorf("Superclass = %v", m.Superclass())
	}
	if m.MajorVersion() != DefaultMajorVersion || m.MinorVersion() != 0 {
		t.Errorf("version = %d.%d", m.MajorVersion(), m.MinorVersion())
	}
	if m.Flags() != AccPublic|AccSuper {
		t.Errorf("Flags = %v", m.Flags())
	}
	if len(m.Fields()) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(m.Fields()))
	}
	name := m.Fields()[1]
	attrs, err := name.Attributes()
	if err != nil {
		t.Fatal(err)
	}
	cv, ok := FindAttribute[*ConstantValueAttribute](attrs)
	if !ok {
		t.Fatal("NAME has no ConstantValue")
	}
	if s, ok := cv.Value.(*StringEntry); !ok || s.Value() != "sample" {
		t.Errorf("ConstantValue = %v", cv.Value)
	}
	if got, want := methodNames(m), []string{"<init>", "add", "sum"}; !slices.Equal(got, want) {
		t.Errorf("methods = %v, want %v", got, want)
	}
	cattrs, err := m.Attributes()
	if err != nil {
		t.Fatal(err)
	}
	sf, ok := FindAttribute[*SourceFileAttribute](cattrs)
	if !ok || sf.SourceFile.String() != "Sample.java" {
		t.Errorf("SourceFile = %v", sf)
	}
}

func TestCodeEncoding(t *testing.T) {
	m := parseSample(t)
	c := codeOf(t, findMethod(t, m, "sum"))
	if !bytes.Equal(c.Bytes(), sumCode) {
		t.Errorf("sum code = % X\nwant       % X", c.Bytes(), sumCode)
	}
	if c.MaxStack() != 2 || c.MaxLocals() != 2 {
		t.Errorf("max stack/locals = %d/%d, want 2/2", c.MaxStack(), c.MaxLocals())
	}
	ins := instructions(t, c)
	if len(ins) != 12 {
		t.Fatalf("decoded %d instructions, want 12", len(ins))
	}
	br, ok := ins[3].(BranchInstruction)
	if !ok || br.Op != OpIfle {
		t.Fatalf("ins[3] = %#v", ins[3])
	}
	back, ok := ins[9].(BranchInstruction)
	if !ok || back.Op != OpGoto {
		t.Fatalf("ins[9] = %#v", ins[9])
	}
	if inc, ok := ins[8].(IncrementInstruction); !ok || inc.Slot != 0 || inc.Delta != -1 {
		t.Errorf("ins[8] = %#v", ins[8])
	}

	init := codeOf(t, findMethod(t, m, "<init>"))
	if init.MaxStack() != 1 || init.MaxLocals() != 1 {
		t.Errorf("<init> max stack/locals = %d/%d, want 1/1", init.MaxStack(), init.MaxLocals())
	}
	call, ok := instructions(t, init)[1].(InvokeInstruction)
	if !ok || call.Method.Owner().InternalName() != "java/lang/Object" || call.Method.MemberName() != "<init>" {
		t.Errorf("<init> call = %#v", call)
	}
}

func TestLineNumbersDecoded(t *testing.T) {
	c := codeOf(t, findMethod(t, parseSample(t), "add"))
	els, err := c.Elements()
	if err != nil {
		t.Fatal(err)
	}
	var lines []int
	for _, e := range els {
		if ln, ok := e.(LineNumber); ok {
			lines = append(lines, ln.Line)
		}
	}
	if !slices.Equal(lines, []int{10}) {
		t.Errorf("lines = %v, want [10]", lines)
	}
}

func TestTransformIdentityIsByteExact(t *testing.T) {
	in := buildSample(t)
	m, err := Parse(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Transform(ClassPassThrough)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("identity transform changed the classfile: %d bytes in, %d out", len(in), len(out))
	}
}

func TestTransformWithoutPoolSharing(t *testing.T) {
	m := parseSample(t, NoPoolSharing)
	out, err := m.Transform(ClassPassThrough)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := methodNames(again); !slices.Equal(got, []string{"<init>", "add", "sum"}) {
		t.Errorf("methods = %v", got)
	}
	c := codeOf(t, findMethod(t, again, "sum"))
	if !bytes.Equal(c.Bytes(), sumCode) {
		t.Errorf("sum code = % X", c.Bytes())
	}
	if c.MaxStack() != 2 || c.MaxLocals() != 2 {
		t.Errorf("max stack/locals = %d/%d", c.MaxStack(), c.MaxLocals())
	}
	attrs, err := again.Attributes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := FindAttribute[*SourceFileAttribute](attrs); !ok {
		t.Error("SourceFile lost")
	}
}

func TestDropDebugInfo(t *testing.T) {
	m := parseSample(t, DropDebugInfo)
	out, err := m.Transform(ClassPassThrough)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	els, err := codeOf(t, findMethod(t, again, "add")).Elements()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range els {
		if _, ok := e.(LineNumber); ok {
			t.Fatal("line number survived DropDebugInfo")
		}
	}
}

func TestTransformAs(t *testing.T) {
	m := parseSample(t)
	out, err := m.TransformAs("com/example/Renamed", ClassPassThrough)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := again.ThisClass().InternalName(); got != "com/example/Renamed" {
		t.Errorf("ThisClass = %q", got)
	}
	if len(again.Methods()) != 3 {
		t.Errorf("len(Methods) = %d", len(again.Methods()))
	}
}

func TestDropMethod(t *testing.T) {
	m := parseSample(t)
	out, err := m.Transform(DropClassElements(func(e ClassElement) bool {
		mm, ok := e.(MethodModel)
		return ok && mm.Name().Equals("add")
	}))
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := methodNames(again); !slices.Equal(got, []string{"<init>", "sum"}) {
		t.Errorf("methods = %v", got)
	}
}

func TestRewriteMethodBody(t *testing.T) {
	m := parseSample(t)
	swap := CodeTransformFunc(func(b CodeBuilder, e CodeElement) error {
		if op, ok := e.(OperatorInstruction); ok && op.Op == OpIadd {
			b.Op(OpIsub)
			return nil
		}
		b.With(e)
		return nil
	})
	out, err := m.Transform(TransformingMethodBodies(func(mm MethodModel) bool {
		return mm.Name().Equals("add")
	}, swap))
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	add := codeOf(t, findMethod(t, again, "add"))
	if want := []byte{0x1A, 0x1B, 0x64, 0xAC}; !bytes.Equal(add.Bytes(), want) {
		t.Errorf("add code = % X, want % X", add.Bytes(), want)
	}
	if !bytes.Equal(codeOf(t, findMethod(t, again, "sum")).Bytes(), sumCode) {
		t.Error("sum was rewritten")
	}
}

func TestEndHandlersRunInChainOrder(t *testing.T) {
	m := parseSample(t)
	native := func(name string) func(ClassBuilder) error {
		return func(b ClassBuilder) error {
			b.WithMethod(name, "()V", AccPublic|AccNative, func(MethodBuilder) error { return nil })
			return nil
		}
	}
	out, err := m.Transform(ClassChain(ClassEndHandler(native("first")), ClassEndHandler(native("second"))))
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"<init>", "add", "sum", "first", "second"}
	if got := methodNames(again); !slices.Equal(got, want) {
		t.Errorf("methods = %v, want %v", got, want)
	}
}

func TestChainSeesUpstreamOutput(t *testing.T) {
	m := parseSample(t)
	var seen []string
	rename := ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
		if mm, ok := e.(MethodModel); ok && mm.Name().Equals("sum") {
			b.WithMethod("total", mm.Descriptor().String(), mm.Flags(), func(mb MethodBuilder) error {
				c, err := mm.Code()
				if err != nil {
					return err
				}
				mb.With(c)
				return nil
			})
			return nil
		}
		b.With(e)
		return nil
	})
	record := ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
		if mm, ok := e.(MethodModel); ok {
			seen = append(seen, mm.Name().String())
		}
		b.With(e)
		return nil
	})
	out, err := m.Transform(ClassChain(rename, record))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, []string{"<init>", "add", "total"}) {
		t.Errorf("downstream saw %v", seen)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(codeOf(t, findMethod(t, again, "total")).Bytes(), sumCode) {
		t.Error("total does not carry the body of sum")
	}
}

func TestStatefulTransformIsFreshPerTraversal(t *testing.T) {
	m := parseSample(t)
	created := 0
	counts := []int{}
	st := Stateful(func() ClassTransform {
		created++
		n := 0
		return ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
			if _, ok := e.(MethodModel); ok {
				n++
				if n == 3 {
					counts = append(counts, n)
				}
			}
			b.With(e)
			return nil
		})
	})
	for i := 0; i < 2; i++ {
		if _, err := m.Transform(st); err != nil {
			t.Fatal(err)
		}
	}
	if created != 2 || !slices.Equal(counts, []int{3, 3}) {
		t.Errorf("created = %d, counts = %v", created, counts)
	}
}

func TestTransformErrorIsReturnedUnchanged(t *testing.T) {
	m := parseSample(t)
	boom := errors.New("boom")
	_, err := m.Transform(ClassTransformFunc(func(b ClassBuilder, e ClassElement) error {
		if _, ok := e.(MethodModel); ok {
			return boom
		}
		b.With(e)
		return nil
	}))
	if err != boom {
		t.Errorf("err = %v, want boom", err)
	}

	_, err = Build("Fails", "", func(ClassBuilder) error { return boom })
	if err != boom {
		t.Errorf("Build err = %v, want boom", err)
	}
}

func TestExceptionTableRoundTrip(t *testing.T) {
	b, err := Build("Catcher", "java/lang/Object", func(cb ClassBuilder) error {
		exc := cb.ConstantPool().ClassEntry("java/lang/Exception")
		cb.WithMethod("run", "()I", AccStatic, func(mb MethodBuilder) error {
			mb.WithCode(func(c CodeBuilder) error {
				start, end, handler := c.NewLabel(), c.NewLabel(), c.NewLabel()
				c.ExceptionCatch(start, end, handler, exc)
				c.LabelBinding(start)
				c.ConstantInt(1)
				c.Return(desc.Int)
				c.LabelBinding(end)
				c.LabelBinding(handler)
				c.Op(OpPop)
				c.ConstantInt(0)
				c.Return(desc.Int)
				return nil
			})
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m, err := Parse(b, NoPoolSharing)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Transform(ClassPassThrough)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	c := codeOf(t, findMethod(t, again, "run"))
	if c.MaxStack() != 1 {
		t.Errorf("MaxStack = %d, want 1", c.MaxStack())
	}
	els, err := c.Elements()
	if err != nil {
		t.Fatal(err)
	}
	var catches []ExceptionCatch
	for _, e := range els {
		if ec, ok := e.(ExceptionCatch); ok {
			catches = append(catches, ec)
		}
	}
	if len(catches) != 1 || catches[0].CatchType.InternalName() != "java/lang/Exception" {
		t.Fatalf("catches = %#v", catches)
	}
	if catches[0].Start.bci != 0 || catches[0].End.bci != 2 || catches[0].Handler.bci != 2 {
		t.Errorf("catch range = [%d, %d) -> %d", catches[0].Start.bci, catches[0].End.bci, catches[0].Handler.bci)
	}
}

func TestHandlerEntryCountsTowardMaxStack(t *testing.T) {
	for _, catchFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("catch first %v", catchFirst), func(t *testing.T) {
			b, err := Build("Guard", "java/lang/Object", func(cb ClassBuilder) error {
				exc := cb.ConstantPool().ClassEntry("java/lang/Throwable")
				cb.WithMethod("bump", "(I)V", AccStatic, func(mb MethodBuilder) error {
					mb.WithCode(func(c CodeBuilder) error {
						start, end, handler := c.NewLabel(), c.NewLabel(), c.NewLabel()
						if catchFirst {
							c.ExceptionCatch(start, end, handler, exc)
						}
						c.LabelBinding(start)
						c.Iinc(0, 1)
						c.LabelBinding(end)
						c.Return(desc.Void)
						c.LabelBinding(handler)
						c.StoreLocal(desc.Reference, 0)
						c.Return(desc.Void)
						if !catchFirst {
							c.ExceptionCatch(start, end, handler, exc)
						}
						return nil
					})
					return nil
				})
				return nil
			})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			m, err := Parse(b)
			if err != nil {
				t.Fatal(err)
			}
			if got := codeOf(t, findMethod(t, m, "bump")).MaxStack(); got != 1 {
				t.Errorf("built MaxStack = %d, want 1", got)
			}

			out, err := m.Transform(TransformingMethodBodies(nil, CodePassThrough))
			if err != nil {
				t.Fatal(err)
			}
			again, err := Parse(out)
			if err != nil {
				t.Fatal(err)
			}
			if got := codeOf(t, findMethod(t, again, "bump")).MaxStack(); got != 1 {
				t.Errorf("rebuilt MaxStack = %d, want 1", got)
			}
		})
	}
}

func TestInvokeDynamicAndBootstrapTable(t *testing.T) {
	in, err := Build("Indy", "java/lang/Object", func(cb ClassBuilder) error {
		pool := cb.ConstantPool()
		bsm := pool.BootstrapMethodEntry(pool.MethodHandleEntry(RefInvokeStatic,
			pool.MethodRefEntry(pool.ClassEntry("Indy"), "bootstrap",
				"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;")),
			pool.StringEntry("arg"))
		site := pool.InvokeDynamicEntry(bsm, pool.NameAndTypeEntry("run", "()Ljava/lang/Runnable;"))
		cb.WithMethod("make", "()Ljava/lang/Runnable;", AccStatic, func(mb MethodBuilder) error {
			mb.WithCode(func(c CodeBuilder) error {
				c.InvokeDynamic(site)
				c.Return(desc.Reference)
				return nil
			})
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m, err := Parse(in)
	if err != nil {
		t.Fatal(err)
	}
	pool := m.ConstantPool()
	if pool.BootstrapMethodCount() != 1 {
		t.Fatalf("BootstrapMethodCount = %d", pool.BootstrapMethodCount())
	}
	bsm, err := pool.BootstrapMethodByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if bsm.Method().Kind() != RefInvokeStatic || len(bsm.Arguments()) != 1 {
		t.Errorf("bootstrap = %v", bsm)
	}
	c := codeOf(t, findMethod(t, m, "make"))
	indy, ok := instructions(t, c)[0].(InvokeDynamicInstruction)
	if !ok || indy.Site.Bootstrap() != bsm {
		t.Fatalf("first instruction = %#v", instructions(t, c)[0])
	}
	if c.MaxStack() != 1 {
		t.Errorf("MaxStack = %d", c.MaxStack())
	}
	attrs, err := m.Attributes()
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range attrs {
		if a.AttributeName() == "BootstrapMethods" {
			t.Error("BootstrapMethods exposed as a class attribute")
		}
	}
	out, err := m.Transform(ClassPassThrough)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Error("identity transform changed a class with a bootstrap table")
	}
}

func TestLdcWidensPastByteIndex(t *testing.T) {
	in, err := Build("Wide", "java/lang/Object", func(cb ClassBuilder) error {
		pool := cb.ConstantPool()
		for i := 0; i < 300; i++ {
			pool.Utf8Entry(fmt.Sprintf("filler%d", i))
		}
		cb.WithMethod("late", "()Ljava/lang/String;", AccStatic, func(mb MethodBuilder) error {
			mb.WithCode(func(c CodeBuilder) error {
				c.ConstantString("late")
				c.Return(desc.Reference)
				return nil
			})
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := Parse(in)
	if err != nil {
		t.Fatal(err)
	}
	ldc, ok := instructions(t, codeOf(t, findMethod(t, m, "late")))[0].(ConstantInstruction)
	if !ok || ldc.Op != OpLdcW {
		t.Fatalf("first instruction = %#v, want ldc_w", ldc)
	}
	if s, ok := ldc.Entry.(*StringEntry); !ok || s.Value() != "late" {
		t.Errorf("ldc entry = %v", ldc.Entry)
	}
}

func TestBuildErrors(t *testing.T) {
	method := func(body func(CodeBuilder)) func(ClassBuilder) error {
		return func(cb ClassBuilder) error {
			cb.WithMethod("m", "()V", AccStatic, func(mb MethodBuilder) error {
				mb.WithCode(func(c CodeBuilder) error {
					body(c)
					return nil
				})
				return nil
			})
			return nil
		}
	}
	tests := []struct {
		name      string
		configure func(ClassBuilder) error
		want      error
	}{
		{"unresolved label", method(func(c CodeBuilder) {
			c.Goto(c.NewLabel())
			c.Return(desc.Void)
		}), ErrUnresolvedLabel},
		{"empty body", method(func(CodeBuilder) {}), ErrBuilderMisuse},
		{"unreachable push", method(func(c CodeBuilder) {
			l := c.NewLabel()
			c.Goto(l)
			c.ConstantInt(1)
			c.LabelBinding(l)
			c.Return(desc.Void)
		}), ErrStackUnknown},
		{"label bound twice", method(func(c CodeBuilder) {
			l := c.NewLabel()
			c.LabelBinding(l)
			c.LabelBinding(l)
			c.Return(desc.Void)
		}), ErrBuilderMisuse},
		{"receiver of static", method(func(c CodeBuilder) {
			c.ReceiverSlot()
			c.Return(desc.Void)
		}), ErrBuilderMisuse},
		{"duplicate attribute", func(cb ClassBuilder) error {
			src := cb.ConstantPool().Utf8Entry("A.java")
			cb.With(&SourceFileAttribute{SourceFile: src})
			cb.With(&SourceFileAttribute{SourceFile: src})
			return nil
		}, ErrDuplicateAttribute},
		{"nil element", func(cb ClassBuilder) error {
			cb.With(nil)
			return nil
		}, ErrBuilderMisuse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("Broken", "java/lang/Object", tt.configure)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBranchOverflow(t *testing.T) {
	_, err := Build("Far", "java/lang/Object", func(cb ClassBuilder) error {
		cb.WithMethod("m", "()V", AccStatic, func(mb MethodBuilder) error {
			mb.WithCode(func(c CodeBuilder) error {
				end := c.NewLabel()
				c.Goto(end)
				c.LabelBinding(c.NewLabel())
				for i := 0; i < 40000; i++ {
					c.Op(OpNop)
				}
				c.LabelBinding(end)
				c.Return(desc.Void)
				return nil
			})
			return nil
		})
		return nil
	})
	if !errors.Is(err, ErrBuilderMisuse) {
		t.Errorf("err = %v, want ErrBuilderMisuse", err)
	}
}

func TestParseMalformed(t *testing.T) {
	good := buildSample(t)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, good[4:]...)},
		{"truncated pool", good[:20]},
		{"truncated members", good[:len(good)-10]},
		{"trailing bytes", append(slices.Clone(good), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("err %T is not a *DecodeError", err)
			}
		})
	}
}

func TestEntriesAreCachedByIndex(t *testing.T) {
	m := parseSample(t)
	pool := m.ConstantPool()
	idx := m.ThisClass().Index()
	a, err := pool.EntryByIndex(idx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EntryAs[*ClassEntry](pool, idx)
	if err != nil {
		t.Fatal(err)
	}
	if a != Entry(b) || b != m.ThisClass() {
		t.Error("repeated lookups returned distinct entries")
	}
	if _, err := EntryAs[*Utf8Entry](pool, idx); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("EntryAs wrong kind = %v, want ErrTypeMismatch", err)
	}
	if _, err := pool.EntryByIndex(0); err == nil {
		t.Error("index 0 resolved")
	}
}

func FuzzParse(f *testing.F) {
	f.Add(buildSample(f))
	f.Fuzz(func(t *testing.T, b []byte) {
		m, err := Parse(b)
		if err != nil {
			return
		}
		_ = m.ForEach(func(e ClassElement) error {
			switch e := e.(type) {
			case MethodModel:
				return e.ForEach(func(me MethodElement) error {
					if c, ok := me.(CodeModel); ok {
						_, err := c.Elements()
						return err
					}
					return nil
				})
			case FieldModel:
				_, err := e.Attributes()
				return err
			}
			return nil
		})
	})
}
