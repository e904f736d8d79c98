package components

import (
	"fmt"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/chazu/cfx/signature"
)

// LocalsShifter is a CodeTransform that moves every local above the
// receiver and parameter slots to a slot allocated from the target
// builder. Each original slot is allocated on first use and keeps its new
// slot for the rest of the body; one-slot and two-slot values sharing an
// original slot are kept apart.
//
// Stack map frames describe the old layout and are dropped. A
// LocalsShifter serves one body.
type LocalsShifter struct {
	fixed  int
	locals []int // key -> new slot + 1
}

// NewLocalsShifter returns a shifter leaving slots below fixed in place.
func NewLocalsShifter(fixed int) *LocalsShifter {
	return &LocalsShifter{fixed: fixed}
}

// LocalsShifterFor returns a shifter for a method with the given flags and
// descriptor.
func LocalsShifterFor(flags classfile.AccessFlags, descriptor string) (*LocalsShifter, error) {
	md, err := desc.ParseMethod(descriptor)
	if err != nil {
		return nil, err
	}
	fixed := md.ParameterSlots()
	if !flags.IsStatic() {
		fixed++
	}
	return NewLocalsShifter(fixed), nil
}

// ShiftingLocals returns a method transform that shifts the locals of the
// body, with a fresh shifter for each method.
func ShiftingLocals() classfile.MethodTransform {
	return classfile.MethodTransformFunc(func(b classfile.MethodBuilder, e classfile.MethodElement) error {
		c, ok := e.(classfile.CodeModel)
		if !ok {
			b.With(e)
			return nil
		}
		s, err := LocalsShifterFor(b.Flags(), b.Descriptor().String())
		if err != nil {
			return err
		}
		b.TransformCode(c, s)
		return nil
	})
}

// Accept forwards e with its local slots shifted.
func (s *LocalsShifter) Accept(b classfile.CodeBuilder, e classfile.CodeElement) error {
	switch e := e.(type) {
	case classfile.LoadInstruction:
		k := e.TypeKind()
		slot, err := s.shift(b, e.Slot, k)
		if err != nil {
			return err
		}
		b.LoadLocal(k, slot)
	case classfile.StoreInstruction:
		k := e.TypeKind()
		slot, err := s.shift(b, e.Slot, k)
		if err != nil {
			return err
		}
		b.StoreLocal(k, slot)
	case classfile.IncrementInstruction:
		slot, err := s.shift(b, e.Slot, desc.Int)
		if err != nil {
			return err
		}
		b.Iinc(slot, e.Delta)
	case classfile.LocalVariable:
		slot, err := s.shift(b, e.Slot, desc.KindOf(e.Type.String()))
		if err != nil {
			return err
		}
		e.Slot = slot
		b.With(e)
	case classfile.LocalVariableType:
		k := desc.Reference
		if t, err := signature.ParseType(e.Signature.String()); err == nil {
			if bt, ok := t.(signature.BaseType); ok {
				k = desc.KindOf(string(bt.Descriptor))
			}
		}
		slot, err := s.shift(b, e.Slot, k)
		if err != nil {
			return err
		}
		e.Slot = slot
		b.With(e)
	case *classfile.StackMapTableAttribute:
		log.Debugf("dropping stack map of %d frames after shifting locals", len(e.Frames))
	default:
		b.With(e)
	}
	return nil
}

// AtEnd does nothing.
func (s *LocalsShifter) AtEnd(classfile.CodeBuilder) error { return nil }

func (s *LocalsShifter) shift(b classfile.CodeBuilder, slot int, k desc.TypeKind) (int, error) {
	if k == desc.Void {
		return 0, fmt.Errorf("%w: local of kind void", classfile.ErrBuilderMisuse)
	}
	if slot < s.fixed {
		return slot, nil
	}
	size := k.SlotSize()
	key := 2*slot - s.fixed + size - 1
	if key >= len(s.locals) {
		s.locals = append(s.locals, make([]int, key+20-len(s.locals))...)
	}
	if n := s.locals[key]; n > 0 {
		return n - 1, nil
	}
	n := b.AllocateLocal(k)
	s.locals[key] = n + 1
	if size == 2 {
		s.locals[key-1] = n + 1
	}
	return n, nil
}
