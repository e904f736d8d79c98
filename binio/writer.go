package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer is a growable big-endian output buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the buffer until the
// next write.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset discards all written bytes, keeping the allocation.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// U1 appends one byte.
func (w *Writer) U1(v int) { w.buf = append(w.buf, byte(v)) }

// U2 appends a 16-bit value.
func (w *Writer) U2(v int) { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }

// U4 appends a 32-bit value.
func (w *Writer) U4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

// I4 appends a signed 32-bit value.
func (w *Writer) I4(v int32) { w.U4(uint32(v)) }

// I8 appends a signed 64-bit value.
func (w *Writer) I8(v int64) { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }

// F4 appends an IEEE 754 single.
func (w *Writer) F4(v float32) { w.U4(math.Float32bits(v)) }

// F8 appends an IEEE 754 double.
func (w *Writer) F8(v float64) { w.I8(int64(math.Float64bits(v))) }

// Write appends raw bytes.
func (w *Writer) Write(b []byte) { w.buf = append(w.buf, b...) }

// Reserve appends n zero bytes and returns their position for a later patch.
func (w *Writer) Reserve(n int) int {
	p := len(w.buf)
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
	return p
}

// PatchU1 overwrites one byte at p.
func (w *Writer) PatchU1(p, v int) { w.buf[p] = byte(v) }

// PatchU2 overwrites a 16-bit value at p.
func (w *Writer) PatchU2(p, v int) { binary.BigEndian.PutUint16(w.buf[p:], uint16(v)) }

// PatchU4 overwrites a 32-bit value at p.
func (w *Writer) PatchU4(p int, v uint32) { binary.BigEndian.PutUint32(w.buf[p:], v) }

// BeginLength reserves a 4-byte length prefix and returns its position.
func (w *Writer) BeginLength() int { return w.Reserve(4) }

// EndLength patches the length prefix reserved at mark with the number of
// bytes written after it.
func (w *Writer) EndLength(mark int) error {
	n := len(w.buf) - mark - 4
	if n < 0 || uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: region length %d", ErrOverflow, n)
	}
	w.PatchU4(mark, uint32(n))
	return nil
}
