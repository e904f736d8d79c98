package classfile

import (
	"testing"

	"github.com/chazu/cfx/desc"
)

// sumCode is the body of Sample.sum: a countdown loop adding n..1.
var sumCode = []byte{
	0x03,             // iconst_0
	0x3C,             // istore_1
	0x1A,             // iload_0
	0x9E, 0x00, 0x0D, // ifle +13
	0x1B,             // iload_1
	0x1A,             // iload_0
	0x60,             // iadd
	0x3C,             // istore_1
	0x84, 0x00, 0xFF, // iinc 0 -1
	0xA7, 0xFF, 0xF5, // goto -11
	0x1B, // iload_1
	0xAC, // ireturn
}

func configureSample(cb ClassBuilder) error {
	pool := cb.ConstantPool()
	object := pool.ClassEntry("java/lang/Object")
	cb.WithFlags(AccPublic | AccSuper)
	cb.WithField("count", "I", AccPrivate, func(FieldBuilder) error { return nil })
	cb.WithField("NAME", "Ljava/lang/String;", AccPublic|AccStatic|AccFinal, func(fb FieldBuilder) error {
		fb.With(&ConstantValueAttribute{Value: pool.StringEntry("sample")})
		return nil
	})
	cb.WithMethod("<init>", "()V", AccPublic, func(mb MethodBuilder) error {
		mb.WithCode(func(c CodeBuilder) error {
			c.LoadLocal(desc.Reference, c.ReceiverSlot())
			c.Invoke(OpInvokespecial, object, "<init>", "()V", false)
			c.Return(desc.Void)
			return nil
		})
		return nil
	})
	cb.WithMethod("add", "(II)I", AccPublic|AccStatic, func(mb MethodBuilder) error {
		mb.WithCode(func(c CodeBuilder) error {
			c.LineNumber(10)
			c.LoadLocal(desc.Int, c.ParameterSlot(0))
			c.LoadLocal(desc.Int, c.ParameterSlot(1))
			c.Op(OpIadd)
			c.Return(desc.Int)
			return nil
		})
		return nil
	})
	cb.WithMethod("sum", "(I)I", AccPublic|AccStatic, func(mb MethodBuilder) error {
		mb.WithCode(func(c CodeBuilder) error {
			loop, done := c.NewLabel(), c.NewLabel()
			c.ConstantInt(0)
			c.StoreLocal(desc.Int, 1)
			c.LabelBinding(loop)
			c.LoadLocal(desc.Int, 0)
			c.Branch(OpIfle, done)
			c.LoadLocal(desc.Int, 1)
			c.LoadLocal(desc.Int, 0)
			c.Op(OpIadd)
			c.StoreLocal(desc.Int, 1)
			c.Iinc(0, -1)
			c.Goto(loop)
			c.LabelBinding(done)
			c.LoadLocal(desc.Int, 1)
			c.Return(desc.Int)
			return nil
		})
		return nil
	})
	cb.With(&SourceFileAttribute{SourceFile: pool.Utf8Entry("Sample.java")})
	return nil
}

func buildSample(t testing.TB, opts ...Option) []byte {
	t.Helper()
	b, err := Build("com/example/Sample", "java/lang/Object", configureSample, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return b
}

func parseSample(t testing.TB, opts ...Option) *ClassModel {
	t.Helper()
	m, err := Parse(buildSample(t), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func findMethod(t testing.TB, m *ClassModel, name string) MethodModel {
	t.Helper()
	for _, mm := range m.Methods() {
		if mm.Name().Equals(name) {
			return mm
		}
	}
	t.Fatalf("method %s not found", name)
	return nil
}

func codeOf(t testing.TB, m MethodModel) *CodeAttribute {
	t.Helper()
	c, err := m.Code()
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	ca, ok := c.(*CodeAttribute)
	if !ok {
		t.Fatalf("method %s has no bound body", m.Name())
	}
	return ca
}

func methodNames(m *ClassModel) []string {
	var out []string
	for _, mm := range m.Methods() {
		out = append(out, mm.Name().String())
	}
	return out
}

func instructions(t testing.TB, c CodeModel) []Instruction {
	t.Helper()
	els, err := c.Elements()
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	var out []Instruction
	for _, e := range els {
		if i, ok := e.(Instruction); ok {
			out = append(out, i)
		}
	}
	return out
}
