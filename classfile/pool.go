package classfile

import (
	"fmt"
	"reflect"
	"strings"
)

// ConstantPool is read access to a constant pool, bound (a Reader) or under
// construction (a PoolBuilder).
type ConstantPool interface {
	// EntryByIndex returns the entry at a 1-based index. Index 0 and the
	// second slot of a long or double are not entries.
	EntryByIndex(i int) (Entry, error)
	// Size returns the constant_pool_count: one past the highest index.
	Size() int
	BootstrapMethodCount() int
	BootstrapMethodByIndex(i int) (*BootstrapMethodEntry, error)
}

// EntryAs returns the entry at index i if it has type T, and an error
// matching ErrTypeMismatch if it has another kind.
func EntryAs[T Entry](p ConstantPool, i int) (T, error) {
	var zero T
	e, err := p.EntryByIndex(i)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: #%d is %s, want %T", ErrTypeMismatch, i, e.Tag(), reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}

// BootstrapMethodEntry is a row of the bootstrap method table: a method
// handle and its static arguments.
type BootstrapMethodEntry struct {
	pool   ConstantPool
	index  int
	handle *MethodHandleEntry
	args   []LoadableEntry
}

// Index returns the 0-based position in the bootstrap method table.
func (b *BootstrapMethodEntry) Index() int { return b.index }

// Pool returns the pool owning the table.
func (b *BootstrapMethodEntry) Pool() ConstantPool { return b.pool }

// Method returns the bootstrap method handle.
func (b *BootstrapMethodEntry) Method() *MethodHandleEntry { return b.handle }

// Arguments returns the static arguments. The slice must not be modified.
func (b *BootstrapMethodEntry) Arguments() []LoadableEntry { return b.args }

func (b *BootstrapMethodEntry) String() string {
	var sb strings.Builder
	sb.WriteString(b.handle.String())
	sb.WriteString(" [")
	for i, a := range b.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// bootstrapKey is the dedup key of a table row, over indices in the pool
// being interned into.
func bootstrapKey(handle int, args []int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", handle)
	for _, a := range args {
		fmt.Fprintf(&sb, ",%d", a)
	}
	return sb.String()
}
