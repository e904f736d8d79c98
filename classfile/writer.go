package classfile

import (
	"fmt"
	"math"

	"github.com/chazu/cfx/binio"
)

// bufWriter encodes classfile structures against an output pool. Entry
// references from foreign pools are copied into the pool as they are
// written. Missing required references are recorded as a sticky error.
type bufWriter struct {
	*binio.Writer
	pool    *PoolBuilder
	session *buildSession
	labels  func(*Label) (int, error) // set while writing code attributes
	err     error
}

func newBufWriter(s *buildSession, pool *PoolBuilder) *bufWriter {
	return &bufWriter{Writer: binio.NewWriter(256), pool: pool, session: s}
}

func (w *bufWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// ref writes the index of a required entry.
func (w *bufWriter) ref(e Entry) {
	if isNil(e) {
		w.fail(misuse("missing constant pool reference"))
		w.U2(0)
		return
	}
	w.U2(w.pool.indexOf(e))
}

// optRef writes the index of an optional entry, 0 when absent.
func (w *bufWriter) optRef(e Entry) {
	if isNil(e) {
		w.U2(0)
		return
	}
	w.U2(w.pool.indexOf(e))
}

// count writes a u2 table length.
func (w *bufWriter) count(n int) {
	if n > math.MaxUint16 {
		w.fail(misuse("table of %d entries", n))
	}
	w.U2(n)
}

// shares reports whether entries of src keep their indices in the output.
func (w *bufWriter) shares(src *Reader) bool {
	return src != nil && w.pool.parent == src
}

// rawCopyable reports whether a decoded attribute's bytes are still valid
// output under opts.
func rawCopyable(a Attribute, opts Option) bool {
	switch a.(type) {
	case *StackMapTableAttribute:
		return false
	case *CodeAttribute:
		return opts&(DropDebugInfo|DropLineNumbers|DropStackMaps|DropUnknownAttributes) == 0
	case *RecordAttribute:
		return !opts.Has(DropUnknownAttributes)
	}
	return true
}

// attribute writes one attribute with its envelope.
func (w *bufWriter) attribute(a Attribute) error {
	if a == nil {
		return misuse("nil attribute")
	}
	w.ref(w.pool.Utf8Entry(a.AttributeName()))
	mark := w.BeginLength()
	base := a.attr()
	if w.shares(base.src) && rawCopyable(a, w.session.opts) {
		w.Write(base.src.slice(base.off, base.length))
	} else if err := a.writeBody(w); err != nil {
		return err
	}
	if err := w.EndLength(mark); err != nil {
		return fmt.Errorf("%w: attribute %s: %v", ErrBuilderMisuse, a.AttributeName(), err)
	}
	return w.err
}

// attributes writes an attribute table, rejecting repeated attributes that
// may occur only once per holder.
func (w *bufWriter) attributes(as []Attribute) error {
	w.count(len(as))
	return w.attributeList(as)
}

// attributeList writes the entries of an attribute table without its count.
func (w *bufWriter) attributeList(as []Attribute) error {
	seen := make(map[string]bool, len(as))
	for _, a := range as {
		if a == nil {
			return misuse("nil attribute")
		}
		name := a.AttributeName()
		if seen[name] && !allowsMultiple(a) {
			return fmt.Errorf("%w: %s", ErrDuplicateAttribute, name)
		}
		seen[name] = true
		if err := w.attribute(a); err != nil {
			return err
		}
	}
	return w.err
}
