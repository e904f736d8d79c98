package inspect

import (
	"strings"
	"testing"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/stretchr/testify/require"
)

func buildCounter(t *testing.T, opts ...classfile.Option) *classfile.ClassModel {
	t.Helper()
	b, err := classfile.Build("demo/Counter", "java/lang/Object", func(cb classfile.ClassBuilder) error {
		pool := cb.ConstantPool()
		cb.With(&classfile.SourceFileAttribute{SourceFile: pool.Utf8Entry("Counter.java")})
		cb.WithField("count", "I", classfile.AccPrivate, func(classfile.FieldBuilder) error { return nil })
		cb.WithMethod("loop", "(I)I", classfile.AccPublic|classfile.AccStatic, func(mb classfile.MethodBuilder) error {
			mb.WithCode(func(c classfile.CodeBuilder) error {
				top := c.NewLabel()
				done := c.NewLabel()
				c.LineNumber(3)
				c.LabelBinding(top)
				c.LoadLocal(desc.Int, 0)
				c.Branch(classfile.OpIfle, done)
				c.Iinc(0, -1)
				c.Goto(top)
				c.LabelBinding(done)
				c.LoadLocal(desc.Int, 0)
				c.Return(desc.Int)
				return nil
			})
			return nil
		})
		return nil
	}, opts...)
	require.NoError(t, err)
	m, err := classfile.Parse(b)
	require.NoError(t, err)
	return m
}

func TestDump(t *testing.T) {
	out, err := DumpString(buildCounter(t))
	require.NoError(t, err)

	for _, want := range []string{
		"class demo/Counter\n",
		"  super java/lang/Object\n",
		"  SourceFile Counter.java\n",
		"field count I\n",
		"method loop(I)I\n",
		"  code stack=1 locals=1\n",
		"  L0:\n",
		"    line 3\n",
		"    ifle L1\n",
		"    iinc 0 -1\n",
		"    goto L0\n",
		"  L1:\n",
		"    ireturn\n",
	} {
		require.Contains(t, out, want)
	}
	require.Less(t, strings.Index(out, "L0:"), strings.Index(out, "L1:"))
}

func TestDumpIgnoresPoolLayout(t *testing.T) {
	m := buildCounter(t)
	a, err := DumpString(m)
	require.NoError(t, err)

	out, err := m.Transform(classfile.ClassPassThrough)
	require.NoError(t, err)
	copied, err := classfile.Parse(out, classfile.NoPoolSharing)
	require.NoError(t, err)
	fresh, err := copied.Transform(classfile.ClassPassThrough)
	require.NoError(t, err)
	m2, err := classfile.Parse(fresh)
	require.NoError(t, err)

	b, err := DumpString(m2)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(buildCounter(t))
	require.NoError(t, err)
	require.Equal(t, "demo/Counter", s.Name)
	require.Equal(t, "java/lang/Object", s.Super)
	require.Equal(t, []string{"SourceFile"}, s.Attributes)
	require.Len(t, s.Fields, 1)
	require.Equal(t, "count", s.Fields[0].Name)
	require.Zero(t, s.Fields[0].CodeLength)
	require.Len(t, s.Methods, 1)
	loop := s.Methods[0]
	require.Equal(t, "(I)I", loop.Descriptor)
	require.Equal(t, uint16(classfile.AccPublic|classfile.AccStatic), loop.Flags)
	require.Equal(t, 1, loop.MaxStack)
	require.Equal(t, 1, loop.MaxLocals)
	require.Positive(t, loop.CodeLength)
	require.Equal(t, []string{"demo/Counter", "java/lang/Object"}, s.References)
}

func TestSummaryCBOR(t *testing.T) {
	s, err := Summarize(buildCounter(t))
	require.NoError(t, err)
	data, err := MarshalSummary(s)
	require.NoError(t, err)

	again, err := MarshalSummary(s)
	require.NoError(t, err)
	require.Equal(t, data, again, "encoding is not deterministic")

	got, err := UnmarshalSummary(data)
	require.NoError(t, err)
	require.Equal(t, s, got)

	_, err = UnmarshalSummary([]byte{0xff})
	require.Error(t, err)
}

func TestDiff(t *testing.T) {
	require.Empty(t, Diff("a", "x\ny\n", "b", "x\ny\n"))

	d := Diff("a", "x\ny\n", "b", "x\nz")
	require.Contains(t, d, "--- a\n")
	require.Contains(t, d, "+++ b\n")
	require.Contains(t, d, "-y\n")
	require.Contains(t, d, "+z\n")
}

func TestDiffModels(t *testing.T) {
	a := buildCounter(t)
	out, err := a.Transform(classfile.DropClassElements(func(e classfile.ClassElement) bool {
		_, ok := e.(*classfile.SourceFileAttribute)
		return ok
	}))
	require.NoError(t, err)
	b, err := classfile.Parse(out)
	require.NoError(t, err)

	d, err := DiffModels("before", a, "after", b)
	require.NoError(t, err)
	require.Contains(t, d, "-  SourceFile Counter.java\n")

	same, err := DiffModels("a", a, "b", a)
	require.NoError(t, err)
	require.Empty(t, same)
}
