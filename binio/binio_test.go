package binio

import (
	"errors"
	"math"
	"testing"
)

func TestCursorReads(t *testing.T) {
	c := NewCursor([]byte{0xCA, 0xFE, 0xBA, 0xBE, 0xFF, 0x80, 0x00, 0x01})

	if got := c.U4(0); got != 0xCAFEBABE {
		t.Errorf("U4(0) = %#x, want 0xCAFEBABE", got)
	}
	if got := c.U2(4); got != 0xFF80 {
		t.Errorf("U2(4) = %#x, want 0xFF80", got)
	}
	if got := c.S2(4); got != -128 {
		t.Errorf("S2(4) = %d, want -128", got)
	}
	if got := c.S1(4); got != -1 {
		t.Errorf("S1(4) = %d, want -1", got)
	}
	if got := c.U1(7); got != 1 {
		t.Errorf("U1(7) = %d, want 1", got)
	}
	if got := c.I8(0); uint64(got) != 0xCAFEBABEFF800001 {
		t.Errorf("I8(0) = %#x", got)
	}
}

func TestCursorBounds(t *testing.T) {
	c := NewCursor(make([]byte, 4))

	tests := []struct {
		p, n int
		ok   bool
	}{
		{0, 4, true},
		{4, 0, true},
		{3, 2, false},
		{-1, 1, false},
		{0, -1, false},
		{5, 0, false},
	}
	for _, tt := range tests {
		if got := c.Has(tt.p, tt.n); got != tt.ok {
			t.Errorf("Has(%d, %d) = %v, want %v", tt.p, tt.n, got, tt.ok)
		}
		err := c.Check(tt.p, tt.n)
		if tt.ok && err != nil {
			t.Errorf("Check(%d, %d) = %v, want nil", tt.p, tt.n, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnexpectedEOF) {
			t.Errorf("Check(%d, %d) = %v, want ErrUnexpectedEOF", tt.p, tt.n, err)
		}
	}
}

func TestSliceSharesBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	s := NewCursor(buf).Slice(1, 2)
	buf[1] = 9
	if s[0] != 9 {
		t.Errorf("Slice copied the buffer")
	}
	if cap(s) != 2 {
		t.Errorf("cap(Slice) = %d, want 2", cap(s))
	}
}

func TestDecoderStickyError(t *testing.T) {
	d := NewDecoder(NewCursor([]byte{0, 5, 1, 2, 3}), 0, 5)

	if got := d.U2(); got != 5 {
		t.Fatalf("U2() = %d, want 5", got)
	}
	if got := d.Bytes(3); len(got) != 3 || got[2] != 3 {
		t.Fatalf("Bytes(3) = %v", got)
	}
	if d.Err() != nil {
		t.Fatalf("unexpected error: %v", d.Err())
	}
	if got := d.U1(); got != 0 {
		t.Errorf("U1() past end = %d, want 0", got)
	}
	first := d.Err()
	if !errors.Is(first, ErrUnexpectedEOF) {
		t.Fatalf("Err() = %v, want ErrUnexpectedEOF", first)
	}
	d.U4()
	if d.Err() != first {
		t.Errorf("error was replaced by a later read")
	}
}

func TestDecoderWindowClipped(t *testing.T) {
	d := NewDecoder(NewCursor([]byte{1, 2}), 0, 10)
	if d.End() != 2 {
		t.Errorf("End() = %d, want 2", d.End())
	}
	d.Skip(3)
	if !errors.Is(d.Err(), ErrUnexpectedEOF) {
		t.Errorf("Skip past end: err = %v", d.Err())
	}
}

func TestWriterLengthRegion(t *testing.T) {
	w := NewWriter(16)
	w.U2(7)
	mark := w.BeginLength()
	w.U1(1)
	w.U2(2)
	w.I4(-1)
	if err := w.EndLength(mark); err != nil {
		t.Fatalf("EndLength: %v", err)
	}

	c := NewCursor(w.Bytes())
	if got := c.U4(mark); got != 7 {
		t.Errorf("patched length = %d, want 7", got)
	}
	if got := c.I4(mark + 7); got != -1 {
		t.Errorf("I4 = %d, want -1", got)
	}
}

func TestWriterFloats(t *testing.T) {
	w := NewWriter(0)
	w.F4(1.5)
	w.F8(math.Inf(-1))
	w.I8(math.MinInt64)

	c := NewCursor(w.Bytes())
	if got := c.F4(0); got != 1.5 {
		t.Errorf("F4 = %v, want 1.5", got)
	}
	if got := c.F8(4); !math.IsInf(got, -1) {
		t.Errorf("F8 = %v, want -Inf", got)
	}
	if got := c.I8(12); got != math.MinInt64 {
		t.Errorf("I8 = %d, want MinInt64", got)
	}
}

func TestWriterPatch(t *testing.T) {
	w := NewWriter(0)
	p := w.Reserve(2)
	w.U1(0xAA)
	w.PatchU2(p, 0x1234)
	want := []byte{0x12, 0x34, 0xAA}
	if string(w.Bytes()) != string(want) {
		t.Errorf("Bytes() = %x, want %x", w.Bytes(), want)
	}
}

func TestWriterNegativeOffsets(t *testing.T) {
	w := NewWriter(0)
	short := w.Reserve(2)
	wide := w.Reserve(4)
	w.U2(-3)
	w.PatchU2(short, -2)
	neg := int32(-70000)
	w.PatchU4(wide, uint32(neg))

	want := []byte{0xFF, 0xFE, 0xFF, 0xFE, 0xEE, 0x90, 0xFF, 0xFD}
	if string(w.Bytes()) != string(want) {
		t.Fatalf("Bytes() = %x, want %x", w.Bytes(), want)
	}
	c := NewCursor(w.Bytes())
	if got := c.S2(short); got != -2 {
		t.Errorf("S2 = %d, want -2", got)
	}
	if got := c.I4(wide); got != -70000 {
		t.Errorf("I4 = %d, want -70000", got)
	}
	if got := c.S2(6); got != -3 {
		t.Errorf("S2 = %d, want -3", got)
	}
}
