package components

import (
	"errors"
	"testing"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/stretchr/testify/require"
)

func buildLocals(t *testing.T) *classfile.ClassModel {
	t.Helper()
	b, err := classfile.Build("Locals", "java/lang/Object", func(cb classfile.ClassBuilder) error {
		cb.WithMethod("run", "(I)V", classfile.AccPublic, func(mb classfile.MethodBuilder) error {
			mb.WithCode(func(c classfile.CodeBuilder) error {
				c.LoadLocal(desc.Int, 1)
				c.StoreLocal(desc.Int, 5)
				c.LoadLocal(desc.Int, 5)
				c.StoreLocal(desc.Int, 1)
				c.Iinc(5, 1)
				c.ConstantInt(0)
				c.Op(classfile.OpI2l)
				c.StoreLocal(desc.Long, 2)
				c.Return(desc.Void)
				return nil
			})
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	m, err := classfile.Parse(b)
	require.NoError(t, err)
	return m
}

func slotsOf(ins []classfile.Instruction) []int {
	var slots []int
	for _, i := range ins {
		switch i := i.(type) {
		case classfile.LoadInstruction:
			slots = append(slots, i.Slot)
		case classfile.StoreInstruction:
			slots = append(slots, i.Slot)
		case classfile.IncrementInstruction:
			slots = append(slots, i.Slot)
		}
	}
	return slots
}

func TestLocalsShifter(t *testing.T) {
	m := buildLocals(t)
	out, err := m.Transform(classfile.TransformingMethods(func(classfile.MethodModel) bool { return true }, ShiftingLocals()))
	require.NoError(t, err)
	got, err := classfile.Parse(out)
	require.NoError(t, err)

	slots := slotsOf(bodyInstructions(t, method(t, got, "run")))
	require.Len(t, slots, 6)
	require.Equal(t, 1, slots[0], "parameter load moved")
	require.Equal(t, 1, slots[3], "parameter store moved")

	shifted := slots[1]
	require.GreaterOrEqual(t, shifted, 2)
	require.Equal(t, shifted, slots[2], "store and load of slot 5 diverged")
	require.Equal(t, shifted, slots[4], "iinc of slot 5 diverged")
	require.NotEqual(t, shifted, slots[5])
	require.GreaterOrEqual(t, slots[5], 2)
}

func TestLocalsShifterFor(t *testing.T) {
	s, err := LocalsShifterFor(classfile.AccStatic, "(JI)V")
	require.NoError(t, err)
	require.Equal(t, 3, s.fixed)

	s, err = LocalsShifterFor(classfile.AccPublic, "(D)V")
	require.NoError(t, err)
	require.Equal(t, 3, s.fixed)

	_, err = LocalsShifterFor(0, "nope")
	require.ErrorIs(t, err, desc.ErrInvalidDescriptor)
}

func TestLocalsShifterRejectsVoid(t *testing.T) {
	s := NewLocalsShifter(0)
	_, err := s.shift(nil, 4, desc.Void)
	require.True(t, errors.Is(err, classfile.ErrBuilderMisuse))
}
