package signature

import (
	"errors"
	"testing"
)

func TestRoundTripSignatures(t *testing.T) {
	classSigs := []string{
		"Ljava/lang/Object;",
		"<T:Ljava/lang/Object;>Ljava/lang/Object;Ljava/lang/Comparable<TT;>;",
		"<K::Ljava/lang/Comparable<-TK;>;V:LOuter;>LOuter<TK;>.Inner<TV;>;",
		"Ljava/util/AbstractList<[I>;Ljava/util/List<*>;",
	}
	for _, s := range classSigs {
		sig, err := ParseClass(s)
		if err != nil {
			t.Errorf("ParseClass(%q) = %v", s, err)
			continue
		}
		if got := sig.String(); got != s {
			t.Errorf("ParseClass(%q).String() = %q", s, got)
		}
	}

	methodSigs := []string{
		"()V",
		"<T:Ljava/lang/Object;>(TT;[TT;I)Ljava/util/List<+TT;>;",
		"(LOuter;)LOuter;^Ljava/io/IOException;^TE;",
	}
	for _, s := range methodSigs {
		sig, err := ParseMethod(s)
		if err != nil {
			t.Errorf("ParseMethod(%q) = %v", s, err)
			continue
		}
		if got := sig.String(); got != s {
			t.Errorf("ParseMethod(%q).String() = %q", s, got)
		}
	}

	for _, s := range []string{"I", "TT;", "[[Ljava/util/Map<TK;TV;>;", "LOuter<*>.Inner;"} {
		typ, err := ParseType(s)
		if err != nil {
			t.Errorf("ParseType(%q) = %v", s, err)
			continue
		}
		if got := typ.String(); got != s {
			t.Errorf("ParseType(%q).String() = %q", s, got)
		}
	}
}

func TestInnerClassNames(t *testing.T) {
	typ, err := ParseType("Lpkg/Outer<TT;>.Inner<Ljava/lang/String;>.Deep;")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	ct, ok := typ.(*ClassType)
	if !ok {
		t.Fatalf("ParseType returned %T, want *ClassType", typ)
	}
	if got := ct.InternalName(); got != "pkg/Outer$Inner$Deep" {
		t.Errorf("InternalName() = %q", got)
	}
	if ct.Outer == nil || ct.Outer.Name != "Inner" || len(ct.Outer.Args) != 1 {
		t.Errorf("Outer = %+v", ct.Outer)
	}
}

func TestTypeParamBounds(t *testing.T) {
	sig, err := ParseClass("<T::Ljava/lang/Runnable;:Ljava/io/Closeable;>Ljava/lang/Object;")
	if err != nil {
		t.Fatalf("ParseClass: %v", err)
	}
	tp := sig.TypeParams[0]
	if tp.ClassBound != nil {
		t.Errorf("ClassBound = %v, want nil", tp.ClassBound)
	}
	if len(tp.InterfaceBounds) != 2 {
		t.Errorf("len(InterfaceBounds) = %d, want 2", len(tp.InterfaceBounds))
	}
}

func TestInvalidSignatures(t *testing.T) {
	bad := []string{"", "L;", "Ljava/lang/Object", "<>Ljava/lang/Object;", "LList<>;", "TT", "Q"}
	for _, s := range bad {
		if _, err := ParseType(s); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("ParseType(%q) = %v, want ErrInvalidSignature", s, err)
		}
	}
	if _, err := ParseMethod("(I"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ParseMethod((I) = %v, want ErrInvalidSignature", err)
	}
	if _, err := ParseClass("<T:>"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ParseClass(<T:>) = %v, want ErrInvalidSignature", err)
	}
}
