package classfile

import "github.com/chazu/cfx/desc"

// stackItem is a node of the persistent operand stack. Forks share tails.
type stackItem struct {
	kind desc.TypeKind
	next *stackItem
}

// stackState is an immutable snapshot of the operand stack.
type stackState struct {
	top   *stackItem
	slots int
}

// StackTracker is a CodeTransform that forwards every element and simulates
// the operand stack as it goes, recording the greatest depth in slots.
//
// After an unconditional transfer (goto, return, athrow, a switch) the stack
// is unknown until a label with a recorded state is reached. A push or pop
// while the stack is unknown makes the maximum unknown for the rest of the
// body. A StackTracker serves one traversal.
type StackTracker struct {
	cur      *stackState
	max      int
	maxKnown bool
	pending  map[*Label]*stackState
}

// NewStackTracker returns a tracker whose stack holds initial, bottom first.
func NewStackTracker(initial ...desc.TypeKind) *StackTracker {
	t := &StackTracker{cur: &stackState{}, maxKnown: true, pending: make(map[*Label]*stackState)}
	for _, k := range initial {
		t.push(k)
	}
	return t
}

// Stack returns the current stack, bottom first, with sub-int kinds
// widened to Int. ok is false when the stack is unknown.
func (t *StackTracker) Stack() (kinds []desc.TypeKind, ok bool) {
	if t.cur == nil {
		return nil, false
	}
	for it := t.cur.top; it != nil; it = it.next {
		kinds = append(kinds, it.kind)
	}
	for i, j := 0, len(kinds)-1; i < j; i, j = i+1, j-1 {
		kinds[i], kinds[j] = kinds[j], kinds[i]
	}
	return kinds, true
}

// MaxStackSize returns the greatest depth seen, in slots. ok is false when
// the depth could not be followed.
func (t *StackTracker) MaxStackSize() (int, bool) {
	return t.max, t.maxKnown
}

// Accept forwards e to b and applies its effect to the simulated stack.
func (t *StackTracker) Accept(b CodeBuilder, e CodeElement) error {
	b.With(e)
	t.track(e)
	return nil
}

// AtEnd does nothing.
func (t *StackTracker) AtEnd(CodeBuilder) error { return nil }

func (t *StackTracker) lose() {
	t.maxKnown = false
	t.cur = nil
}

func (t *StackTracker) push(k desc.TypeKind) {
	if t.cur == nil {
		t.maxKnown = false
		return
	}
	if k == desc.Void {
		return
	}
	k = k.Computational()
	t.cur = &stackState{top: &stackItem{kind: k, next: t.cur.top}, slots: t.cur.slots + k.SlotSize()}
	if t.cur.slots > t.max {
		t.max = t.cur.slots
	}
}

// popOne removes the top value. Popping an empty stack makes the state
// unknown.
func (t *StackTracker) popOne() (desc.TypeKind, bool) {
	if t.cur == nil || t.cur.top == nil {
		t.lose()
		return 0, false
	}
	it := t.cur.top
	t.cur = &stackState{top: it.next, slots: t.cur.slots - it.kind.SlotSize()}
	return it.kind, true
}

func (t *StackTracker) pop(n int) {
	if t.cur == nil {
		t.maxKnown = false
		return
	}
	for ; n > 0; n-- {
		if _, ok := t.popOne(); !ok {
			return
		}
	}
}

// pops removes n values and reports their kinds, top first.
func (t *StackTracker) pops(n int) ([]desc.TypeKind, bool) {
	out := make([]desc.TypeKind, 0, n)
	for ; n > 0; n-- {
		k, ok := t.popOne()
		if !ok {
			return nil, false
		}
		out = append(out, k)
	}
	return out, true
}

// pushAll pushes kinds in order, so the last ends on top.
func (t *StackTracker) pushAll(kinds ...desc.TypeKind) {
	for _, k := range kinds {
		t.push(k)
	}
}

// branchTo records the state at a jump to l. Jumps from unreachable code
// carry nothing.
func (t *StackTracker) branchTo(l *Label) {
	if t.cur != nil {
		t.pending[l] = t.cur
	}
}

func (t *StackTracker) track(e CodeElement) {
	switch e := e.(type) {
	case LabelTarget:
		if s, ok := t.pending[e.Label]; ok {
			t.cur = s
			if s.slots > t.max {
				t.max = s.slots
			}
		}
	case ExceptionCatch:
		t.pending[e.Handler] = &stackState{top: &stackItem{kind: desc.Reference}, slots: 1}
	case LoadInstruction:
		t.push(e.TypeKind())
	case StoreInstruction:
		t.pop(1)
	case IncrementInstruction, NopInstruction:
	case BranchInstruction:
		switch e.Op {
		case OpGoto, OpGotoW:
			t.branchTo(e.Target)
			t.cur = nil
			return
		case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple, OpIfAcmpeq, OpIfAcmpne:
			t.pop(2)
		default:
			t.pop(1)
		}
		t.branchTo(e.Target)
	case LookupSwitchInstruction:
		t.pop(1)
		t.branchTo(e.Default)
		for _, c := range e.Cases {
			t.branchTo(c.Target)
		}
		t.cur = nil
	case TableSwitchInstruction:
		t.pop(1)
		t.branchTo(e.Default)
		for _, c := range e.Cases {
			t.branchTo(c.Target)
		}
		t.cur = nil
	case ReturnInstruction, ThrowInstruction:
		t.cur = nil
	case FieldInstruction:
		k := desc.KindOf(e.Field.MemberType())
		switch e.Op {
		case OpGetstatic:
			t.push(k)
		case OpGetfield:
			t.pop(1)
			t.push(k)
		case OpPutstatic:
			t.pop(1)
		case OpPutfield:
			t.pop(2)
		}
	case InvokeInstruction:
		md, err := desc.ParseMethod(e.Method.MemberType())
		if err != nil {
			t.lose()
			return
		}
		t.pop(len(md.Params))
		if e.Op != OpInvokestatic {
			t.pop(1)
		}
		t.push(md.Return.Kind())
	case InvokeDynamicInstruction:
		md, err := desc.ParseMethod(e.Site.NameAndType().Type().value)
		if err != nil {
			t.lose()
			return
		}
		t.pop(len(md.Params))
		t.push(md.Return.Kind())
	case NewObjectInstruction:
		t.push(desc.Reference)
	case NewPrimitiveArrayInstruction, NewReferenceArrayInstruction:
		t.pop(1)
		t.push(desc.Reference)
	case NewMultiArrayInstruction:
		t.pop(e.Dimensions)
		t.push(desc.Reference)
	case ArrayLoadInstruction:
		t.pop(2)
		t.push(e.TypeKind())
	case ArrayStoreInstruction:
		t.pop(3)
	case TypeCheckInstruction:
		t.pop(1)
		if e.Op == OpInstanceof {
			t.push(desc.Int)
		} else {
			t.push(desc.Reference)
		}
	case ConvertInstruction:
		t.pop(1)
		t.push(e.ToType())
	case OperatorInstruction:
		switch e.Op {
		case OpArraylength, OpIneg, OpLneg, OpFneg, OpDneg:
			t.pop(1)
		default:
			t.pop(2)
		}
		t.push(e.TypeKind())
	case ConstantInstruction:
		t.push(e.TypeKind())
	case MonitorInstruction:
		t.pop(1)
	case StackInstruction:
		t.stackOp(e.Op)
	case DiscontinuedInstruction:
		switch e.Op {
		case OpJsr, OpJsrW:
			t.push(desc.Reference)
			t.branchTo(e.Target)
			t.pop(1)
		case OpRet:
			t.cur = nil
		}
	}
}

// stackOp applies pop, dup and swap forms, which depend on the slot sizes
// of the values they touch.
func (t *StackTracker) stackOp(op Opcode) {
	if t.cur == nil {
		t.maxKnown = false
		return
	}
	wide := func(k desc.TypeKind) bool { return k.SlotSize() == 2 }
	switch op {
	case OpPop:
		t.pop(1)
	case OpPop2:
		if v, ok := t.popOne(); ok && !wide(v) {
			t.pop(1)
		}
	case OpDup:
		if v, ok := t.popOne(); ok {
			t.pushAll(v, v)
		}
	case OpSwap:
		if v, ok := t.pops(2); ok {
			t.pushAll(v[0], v[1])
		}
	case OpDupX1:
		if v, ok := t.pops(2); ok {
			t.pushAll(v[0], v[1], v[0])
		}
	case OpDupX2:
		v1, ok := t.popOne()
		if !ok {
			return
		}
		v2, ok := t.popOne()
		if !ok {
			return
		}
		if wide(v2) {
			t.pushAll(v1, v2, v1)
			return
		}
		if v3, ok := t.popOne(); ok {
			t.pushAll(v1, v3, v2, v1)
		}
	case OpDup2:
		v1, ok := t.popOne()
		if !ok {
			return
		}
		if wide(v1) {
			t.pushAll(v1, v1)
			return
		}
		if v2, ok := t.popOne(); ok {
			t.pushAll(v2, v1, v2, v1)
		}
	case OpDup2X1:
		v1, ok := t.popOne()
		if !ok {
			return
		}
		v2, ok := t.popOne()
		if !ok {
			return
		}
		if wide(v1) {
			t.pushAll(v1, v2, v1)
			return
		}
		if v3, ok := t.popOne(); ok {
			t.pushAll(v2, v1, v3, v2, v1)
		}
	case OpDup2X2:
		v1, ok := t.popOne()
		if !ok {
			return
		}
		v2, ok := t.popOne()
		if !ok {
			return
		}
		switch {
		case !wide(v1):
			v3, ok := t.popOne()
			if !ok {
				return
			}
			if wide(v3) {
				t.pushAll(v2, v1, v3, v2, v1)
				return
			}
			if v4, ok := t.popOne(); ok {
				t.pushAll(v2, v1, v4, v3, v2, v1)
			}
		case wide(v2):
			t.pushAll(v1, v2, v1)
		default:
			if v3, ok := t.popOne(); ok {
				t.pushAll(v1, v3, v2, v1)
			}
		}
	}
}
