package classfile

import (
	"slices"
	"testing"

	"github.com/chazu/cfx/desc"
)

func feed(t *StackTracker, els ...CodeElement) {
	for _, e := range els {
		t.track(e)
	}
}

func TestStackTracker(t *testing.T) {
	loop, done := newLabel(), newLabel()
	tests := []struct {
		name    string
		initial []desc.TypeKind
		els     []CodeElement
		max     int
		maxOK   bool
		stack   []desc.TypeKind
		stackOK bool
	}{
		{
			name:    "add two ints",
			els:     []CodeElement{ConstantInstruction{Op: OpIconst1}, ConstantInstruction{Op: OpIconst2}, OperatorInstruction{Op: OpIadd}},
			max:     2,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Int},
			stackOK: true,
		},
		{
			name:  "return leaves the stack unknown",
			els:   []CodeElement{ConstantInstruction{Op: OpIconst1}, ReturnInstruction{Op: OpIreturn}},
			max:   1,
			maxOK: true,
		},
		{
			name:  "push after goto",
			els:   []CodeElement{BranchInstruction{Op: OpGoto, Target: loop}, ConstantInstruction{Op: OpIconst1}},
			maxOK: false,
		},
		{
			name: "label restores the branch state",
			els: []CodeElement{
				ConstantInstruction{Op: OpLconst0},
				ConstantInstruction{Op: OpIconst0},
				BranchInstruction{Op: OpIfeq, Target: done},
				StackInstruction{Op: OpPop2},
				ReturnInstruction{Op: OpReturn},
				LabelTarget{Label: done},
			},
			max:     3,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Long},
			stackOK: true,
		},
		{
			name:    "dup2 of a long",
			els:     []CodeElement{ConstantInstruction{Op: OpLconst1}, StackInstruction{Op: OpDup2}},
			max:     4,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Long, desc.Long},
			stackOK: true,
		},
		{
			name:    "dup_x1",
			initial: []desc.TypeKind{desc.Reference, desc.Int},
			els:     []CodeElement{StackInstruction{Op: OpDupX1}},
			max:     3,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Int, desc.Reference, desc.Int},
			stackOK: true,
		},
		{
			name:    "swap",
			initial: []desc.TypeKind{desc.Reference, desc.Float},
			els:     []CodeElement{StackInstruction{Op: OpSwap}},
			max:     2,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Float, desc.Reference},
			stackOK: true,
		},
		{
			name:    "sub-int kinds widen",
			initial: []desc.TypeKind{desc.Byte, desc.Boolean},
			max:     2,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Int, desc.Int},
			stackOK: true,
		},
		{
			name: "handler starts with the exception",
			els: []CodeElement{
				ExceptionCatch{Start: loop, End: done, Handler: done},
				ReturnInstruction{Op: OpReturn},
				LabelTarget{Label: done},
				StackInstruction{Op: OpDup},
			},
			max:     2,
			maxOK:   true,
			stack:   []desc.TypeKind{desc.Reference, desc.Reference},
			stackOK: true,
		},
		{
			name: "handler entry counts toward the maximum",
			els: []CodeElement{
				ExceptionCatch{Start: loop, End: done, Handler: done},
				LabelTarget{Label: loop},
				IncrementInstruction{Slot: 0, Delta: 1},
				ReturnInstruction{Op: OpReturn},
				LabelTarget{Label: done},
				StoreInstruction{Op: OpAstore0, Slot: 0},
				ReturnInstruction{Op: OpReturn},
			},
			max:   1,
			maxOK: true,
		},
		{
			name:  "pop of empty stack",
			els:   []CodeElement{StackInstruction{Op: OpPop}},
			maxOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewStackTracker(tt.initial...)
			feed(tr, tt.els...)
			max, ok := tr.MaxStackSize()
			if ok != tt.maxOK || (ok && max != tt.max) {
				t.Errorf("MaxStackSize = %d, %v; want %d, %v", max, ok, tt.max, tt.maxOK)
			}
			stack, ok := tr.Stack()
			if ok != tt.stackOK || !slices.Equal(stack, tt.stack) {
				t.Errorf("Stack = %v, %v; want %v, %v", stack, ok, tt.stack, tt.stackOK)
			}
		})
	}
}

func TestStackTrackerUnreachableBranchKeepsState(t *testing.T) {
	l := newLabel()
	tr := NewStackTracker()
	feed(tr,
		ConstantInstruction{Op: OpIconst0},
		BranchInstruction{Op: OpIfeq, Target: l},
		ConstantInstruction{Op: OpAconstNull},
		ReturnInstruction{Op: OpAreturn},
		LabelTarget{Label: l},
	)
	stack, ok := tr.Stack()
	if !ok || len(stack) != 0 {
		t.Errorf("Stack = %v, %v; want empty", stack, ok)
	}
}

func TestStackTrackerAsTransform(t *testing.T) {
	m := parseSample(t)
	tr := NewStackTracker()
	_, err := m.Transform(TransformingMethodBodies(func(mm MethodModel) bool {
		return mm.Name().Equals("sum")
	}, tr))
	if err != nil {
		t.Fatal(err)
	}
	if max, ok := tr.MaxStackSize(); !ok || max != 2 {
		t.Errorf("MaxStackSize = %d, %v; want 2, true", max, ok)
	}
}
