package classfile_test

import (
	"testing"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/chazu/cfx/inspect"
)

func buildSwitcher(t *testing.T) []byte {
	t.Helper()
	b, err := classfile.Build("demo/Switcher", "java/lang/Object", func(cb classfile.ClassBuilder) error {
		pool := cb.ConstantPool()
		cb.With(&classfile.SourceFileAttribute{SourceFile: pool.Utf8Entry("Switcher.java")})
		cb.WithField("LIMIT", "J", classfile.AccStatic|classfile.AccFinal, func(fb classfile.FieldBuilder) error {
			fb.With(&classfile.ConstantValueAttribute{Value: pool.LongEntry(5)})
			return nil
		})
		cb.WithMethod("pick", "(I)I", classfile.AccPublic|classfile.AccStatic, func(mb classfile.MethodBuilder) error {
			mb.WithCode(func(c classfile.CodeBuilder) error {
				start, end, handler := c.NewLabel(), c.NewLabel(), c.NewLabel()
				one, two, other := c.NewLabel(), c.NewLabel(), c.NewLabel()
				c.ExceptionCatch(start, end, handler, pool.ClassEntry("java/lang/RuntimeException"))
				c.LabelBinding(start)
				c.LineNumber(4)
				c.LoadLocal(desc.Int, 0)
				c.With(classfile.TableSwitchInstruction{Low: 1, High: 2, Default: other, Cases: []classfile.SwitchCase{
					{Value: 1, Target: one},
					{Value: 2, Target: two},
				}})
				c.LabelBinding(one)
				c.ConstantInt(10)
				c.Return(desc.Int)
				c.LabelBinding(two)
				c.ConstantInt(300)
				c.Return(desc.Int)
				c.LabelBinding(other)
				c.ConstantString("x")
				c.Invoke(classfile.OpInvokevirtual, pool.ClassEntry("java/lang/String"), "length", "()I", false)
				c.Return(desc.Int)
				c.LabelBinding(end)
				c.LabelBinding(handler)
				c.Op(classfile.OpPop)
				c.ConstantInt(-1)
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
	return b
}

func dump(t *testing.T, b []byte) string {
	t.Helper()
	m, err := classfile.Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := inspect.DumpString(m)
	if err != nil {
		t.Fatalf("DumpString: %v", err)
	}
	return s
}

func TestRoundTripIsStructurallyEqual(t *testing.T) {
	in := buildSwitcher(t)
	want := dump(t, in)

	for _, tt := range []struct {
		name string
		opts classfile.Option
	}{
		{"shared pool", 0},
		{"fresh pool", classfile.NoPoolSharing},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m, err := classfile.Parse(in, tt.opts)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			out, err := m.Transform(classfile.ClassPassThrough)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			if got := dump(t, out); got != want {
				t.Errorf("round trip changed the class:\n%s", inspect.Diff("before", want, "after", got))
			}
		})
	}
}

func TestRoundTripThroughCodeRebuild(t *testing.T) {
	in := buildSwitcher(t)
	m, err := classfile.Parse(in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Forcing every body through the code builder re-encodes it even when
	// the pool is shared.
	out, err := m.Transform(classfile.TransformingMethodBodies(nil, classfile.CodePassThrough))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want, got := dump(t, in), dump(t, out)
	if got != want {
		t.Errorf("rebuilding code changed the class:\n%s", inspect.Diff("before", want, "after", got))
	}
}
