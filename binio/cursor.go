package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnexpectedEOF = errors.New("unexpected end of data")
	ErrOverflow      = errors.New("value does not fit its field")
)

// ---------------------------------------------------------------------------
// Cursor: positional reads
// ---------------------------------------------------------------------------

// Cursor reads big-endian values at absolute positions of a byte slice.
// Positional reads do not check bounds; callers validate a region with Has or
// Check before reading from it.
type Cursor struct {
	buf []byte
}

// NewCursor returns a Cursor over b. The slice is shared, not copied.
func NewCursor(b []byte) Cursor {
	return Cursor{buf: b}
}

// Len returns the size of the underlying buffer.
func (c Cursor) Len() int { return len(c.buf) }

// Has reports whether n bytes starting at p lie within the buffer.
func (c Cursor) Has(p, n int) bool {
	return p >= 0 && n >= 0 && p <= len(c.buf)-n
}

// Check returns ErrUnexpectedEOF if n bytes starting at p are not available.
func (c Cursor) Check(p, n int) error {
	if !c.Has(p, n) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, p, len(c.buf))
	}
	return nil
}

// U1 reads an unsigned byte.
func (c Cursor) U1(p int) int { return int(c.buf[p]) }

// S1 reads a signed byte.
func (c Cursor) S1(p int) int { return int(int8(c.buf[p])) }

// U2 reads an unsigned 16-bit value.
func (c Cursor) U2(p int) int {
	return int(binary.BigEndian.Uint16(c.buf[p:]))
}

// S2 reads a signed 16-bit value.
func (c Cursor) S2(p int) int { return int(int16(c.U2(p))) }

// U4 reads an unsigned 32-bit value.
func (c Cursor) U4(p int) uint32 {
	return binary.BigEndian.Uint32(c.buf[p:])
}

// I4 reads a signed 32-bit value.
func (c Cursor) I4(p int) int32 { return int32(c.U4(p)) }

// I8 reads a signed 64-bit value.
func (c Cursor) I8(p int) int64 {
	return int64(binary.BigEndian.Uint64(c.buf[p:]))
}

// F4 reads an IEEE 754 single.
func (c Cursor) F4(p int) float32 { return math.Float32frombits(c.U4(p)) }

// F8 reads an IEEE 754 double.
func (c Cursor) F8(p int) float64 { return math.Float64frombits(uint64(c.I8(p))) }

// Slice returns the n bytes at p without copying.
func (c Cursor) Slice(p, n int) []byte { return c.buf[p : p+n : p+n] }

// Equal reports whether the n bytes at p equal b.
func (c Cursor) Equal(p int, b []byte) bool {
	if !c.Has(p, len(b)) {
		return false
	}
	return string(c.buf[p:p+len(b)]) == string(b)
}

// ---------------------------------------------------------------------------
// Decoder: sequential reads with a sticky error
// ---------------------------------------------------------------------------

// Decoder reads sequentially from a window [start, end) of a Cursor. The first
// read past the window records ErrUnexpectedEOF; every later read returns
// zero values and Err keeps reporting the first failure.
type Decoder struct {
	c   Cursor
	pos int
	end int
	err error
}

// NewDecoder returns a Decoder over c[start:end]. An end past the buffer is
// clipped, so that reads fail instead of panicking.
func NewDecoder(c Cursor, start, end int) *Decoder {
	if end > c.Len() {
		end = c.Len()
	}
	d := &Decoder{c: c, pos: start, end: end}
	if start < 0 || start > end {
		d.err = fmt.Errorf("%w: window [%d, %d) outside buffer", ErrUnexpectedEOF, start, end)
	}
	return d
}

// Pos returns the absolute position of the next read.
func (d *Decoder) Pos() int { return d.pos }

// End returns the absolute end of the window.
func (d *Decoder) End() int { return d.end }

// Remaining returns the number of unread bytes in the window.
func (d *Decoder) Remaining() int { return d.end - d.pos }

// Err returns the first error encountered, if any.
func (d *Decoder) Err() error { return d.err }

// Fail records err unless an earlier error is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || d.pos+n > d.end {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, window ends at %d", ErrUnexpectedEOF, n, d.pos, d.end)
		return false
	}
	return true
}

// U1 reads an unsigned byte.
func (d *Decoder) U1() int {
	if !d.need(1) {
		return 0
	}
	v := d.c.U1(d.pos)
	d.pos++
	return v
}

// U2 reads an unsigned 16-bit value.
func (d *Decoder) U2() int {
	if !d.need(2) {
		return 0
	}
	v := d.c.U2(d.pos)
	d.pos += 2
	return v
}

// S2 reads a signed 16-bit value.
func (d *Decoder) S2() int {
	if !d.need(2) {
		return 0
	}
	v := d.c.S2(d.pos)
	d.pos += 2
	return v
}

// U4 reads an unsigned 32-bit value.
func (d *Decoder) U4() uint32 {
	if !d.need(4) {
		return 0
	}
	v := d.c.U4(d.pos)
	d.pos += 4
	return v
}

// I4 reads a signed 32-bit value.
func (d *Decoder) I4() int32 { return int32(d.U4()) }

// Bytes returns the next n bytes without copying.
func (d *Decoder) Bytes(n int) []byte {
	if !d.need(n) {
		return nil
	}
	b := d.c.Slice(d.pos, n)
	d.pos += n
	return b
}

// Skip advances past n bytes.
func (d *Decoder) Skip(n int) {
	if d.need(n) {
		d.pos += n
	}
}
