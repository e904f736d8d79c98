package desc

import (
	"errors"
	"testing"
)

func TestParseFieldDescriptors(t *testing.T) {
	valid := []string{"I", "J", "[I", "[[Ljava/lang/String;", "LOuter;", "Z"}
	for _, s := range valid {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q) = %v", s, err)
		}
	}
	invalid := []string{"", "V", "L;", "Ljava/lang/String", "[", "II", "Ljava.lang.String;", "Q"}
	for _, s := range invalid {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidDescriptor", s, err)
		}
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("(IJ[Ljava/lang/String;D)LOuter;")
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	if len(m.Params) != 4 {
		t.Fatalf("len(Params) = %d, want 4", len(m.Params))
	}
	if m.Params[2] != "[Ljava/lang/String;" {
		t.Errorf("Params[2] = %q", m.Params[2])
	}
	if m.Return != "LOuter;" {
		t.Errorf("Return = %q", m.Return)
	}
	if got := m.ParameterSlots(); got != 6 {
		t.Errorf("ParameterSlots() = %d, want 6", got)
	}
	if got := m.String(); got != "(IJ[Ljava/lang/String;D)LOuter;" {
		t.Errorf("String() = %q", got)
	}

	for _, s := range []string{"()V", "(I)V", "()[I"} {
		if _, err := ParseMethod(s); err != nil {
			t.Errorf("ParseMethod(%q) = %v", s, err)
		}
	}
	for _, s := range []string{"", "V", "(V)V", "(I", "()", "()VV", "(I)Lfoo"} {
		if _, err := ParseMethod(s); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("ParseMethod(%q) = %v, want ErrInvalidDescriptor", s, err)
		}
	}
}

func TestClassDescShapes(t *testing.T) {
	d := ClassDesc("[[LOuter;")
	elem, dims := d.ElementType()
	if elem != "LOuter;" || dims != 2 {
		t.Errorf("ElementType() = %q, %d", elem, dims)
	}
	if d.ComponentType() != "[LOuter;" {
		t.Errorf("ComponentType() = %q", d.ComponentType())
	}
	if d.InternalName() != "[[LOuter;" {
		t.Errorf("InternalName() of array = %q", d.InternalName())
	}
	if OfInternalName("java/lang/String") != StringDesc {
		t.Errorf("OfInternalName(java/lang/String) = %q", OfInternalName("java/lang/String"))
	}
	if OfInternalName("[I") != "[I" {
		t.Errorf("OfInternalName([I) = %q", OfInternalName("[I"))
	}
	if got := ClassDesc("Lcom/acme/Outer;").PackageName(); got != "com/acme" {
		t.Errorf("PackageName() = %q", got)
	}
	if !ClassDesc("I").IsPrimitive() || ClassDesc("[I").IsPrimitive() {
		t.Errorf("IsPrimitive is wrong")
	}
}

func TestTypeKind(t *testing.T) {
	tests := []struct {
		desc  string
		kind  TypeKind
		slots int
	}{
		{"I", Int, 1},
		{"J", Long, 2},
		{"D", Double, 2},
		{"Z", Boolean, 1},
		{"V", Void, 0},
		{"[J", Reference, 1},
		{"Ljava/lang/Object;", Reference, 1},
	}
	for _, tt := range tests {
		k := KindOf(tt.desc)
		if k != tt.kind {
			t.Errorf("KindOf(%q) = %v, want %v", tt.desc, k, tt.kind)
		}
		if k.SlotSize() != tt.slots {
			t.Errorf("%v.SlotSize() = %d, want %d", k, k.SlotSize(), tt.slots)
		}
	}
	if Byte.Computational() != Int || Long.Computational() != Long {
		t.Errorf("Computational is wrong")
	}
}
