package classfile

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/cfx/binio"
	"github.com/chazu/cfx/desc"
)

// branchFixup is a branch offset to patch once its target is bound.
type branchFixup struct {
	at     int // position of the offset field
	bci    int // position of the instruction
	target *Label
	wide   bool
}

type lineEntry struct {
	pc   int
	line int
}

// directCodeBuilder encodes instructions as they arrive. Branch offsets and
// the tables that refer to labels are resolved in finish.
type directCodeBuilder struct {
	codeOps
	s        *buildSession
	pool     *PoolBuilder
	original CodeModel
	frame    localFrame
	flow     []CodeElement // labels and instructions, replayed for max_stack

	code      *binio.Writer
	bound     map[*Label]int
	fixups    []branchFixup
	catches   []ExceptionCatch
	lines     []lineEntry
	vars      []LocalVariable
	varTypes  []LocalVariableType
	attrs     []Attribute
	maxLocals int
	start     *Label
	end       *Label
}

func newDirectCodeBuilder(s *buildSession, pool *PoolBuilder, static bool, md desc.MethodDesc, original CodeModel) *directCodeBuilder {
	b := &directCodeBuilder{
		s:        s,
		pool:     pool,
		original: original,
		frame:    newLocalFrame(static, md, original),
		code:     binio.NewWriter(64),
		bound:    make(map[*Label]int),
	}
	b.maxLocals = b.frame.next
	b.self = b
	return b
}

// buildCodeBody encodes the body of a Code attribute from source, through t
// when it is not nil.
func buildCodeBody(s *buildSession, pool *PoolBuilder, static bool, md desc.MethodDesc, source CodeModel, t CodeTransform) ([]byte, error) {
	b := newDirectCodeBuilder(s, pool, static, md, source)
	var err error
	if t == nil {
		err = source.ForEach(func(e CodeElement) error {
			b.With(e)
			return b.Err()
		})
	} else {
		err = runCode(source, t, b)
	}
	if err != nil {
		return nil, err
	}
	return b.finish()
}

func (b *directCodeBuilder) NewLabel() *Label { return newLabel() }

func (b *directCodeBuilder) StartLabel() *Label {
	if b.start == nil {
		b.start = newLabel()
		b.bound[b.start] = 0
	}
	return b.start
}

func (b *directCodeBuilder) EndLabel() *Label {
	if b.end == nil {
		b.end = newLabel()
	}
	return b.end
}

func (b *directCodeBuilder) ReceiverSlot() int      { return b.frame.receiverSlot(b.s) }
func (b *directCodeBuilder) ParameterSlot(i int) int { return b.frame.parameterSlot(b.s, i) }

func (b *directCodeBuilder) AllocateLocal(k desc.TypeKind) int {
	slot := b.frame.allocate(b.s, k)
	b.useLocal(slot, k)
	return slot
}

func (b *directCodeBuilder) Original() CodeModel        { return b.original }
func (b *directCodeBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *directCodeBuilder) session() *buildSession     { return b.s }

func (b *directCodeBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

func (b *directCodeBuilder) useLocal(slot int, k desc.TypeKind) {
	if n := slot + k.SlotSize(); n > b.maxLocals {
		b.maxLocals = n
	}
}

func (b *directCodeBuilder) With(e CodeElement) CodeBuilder {
	if b.Err() != nil {
		return b
	}
	opts := b.s.opts
	switch e := e.(type) {
	case nil:
		b.s.fail(misuse("nil code element"))
		return b
	case LabelTarget:
		if e.Label == nil {
			b.s.fail(misuse("binding a nil label"))
			return b
		}
		if _, ok := b.bound[e.Label]; ok {
			b.s.fail(misuse("label bound twice"))
			return b
		}
		b.bound[e.Label] = b.code.Len()
	case ExceptionCatch:
		b.catches = append(b.catches, e)
	case LineNumber:
		if !opts.dropsLineNumbers() {
			b.lines = append(b.lines, lineEntry{pc: b.code.Len(), line: e.Line})
		}
	case LocalVariable:
		if !opts.Has(DropDebugInfo) {
			b.vars = append(b.vars, e)
			if !isNil(e.Type) {
				b.useLocal(e.Slot, desc.KindOf(e.Type.value))
			}
		}
	case LocalVariableType:
		if !opts.Has(DropDebugInfo) {
			b.varTypes = append(b.varTypes, e)
		}
	case *StackMapTableAttribute:
		if !opts.Has(DropStackMaps) {
			b.attrs = append(b.attrs, e)
		}
	case *UnknownAttribute:
		if !opts.Has(DropUnknownAttributes) {
			b.attrs = append(b.attrs, e)
		}
	case Instruction:
		if err := b.encode(e); err != nil {
			b.s.fail(err)
			return b
		}
	case Attribute:
		b.attrs = append(b.attrs, e)
	default:
		b.s.fail(misuse("unsupported code element %T", e))
		return b
	}
	switch e.(type) {
	case LabelTarget, Instruction:
		b.flow = append(b.flow, e)
	}
	return b
}

// ---------------------------------------------------------------------------
// Instruction encoding
// ---------------------------------------------------------------------------

func (b *directCodeBuilder) ref(e Entry) (int, error) {
	if isNil(e) {
		return 0, misuse("missing constant pool reference")
	}
	return b.pool.indexOf(e), nil
}

func (b *directCodeBuilder) branch(op Opcode, target *Label, bci int) {
	w := b.code
	w.U1(int(op))
	wide := op == OpGotoW || op == OpJsrW
	n := 2
	if wide {
		n = 4
	}
	b.fixups = append(b.fixups, branchFixup{at: w.Reserve(n), bci: bci, target: target, wide: wide})
}

func (b *directCodeBuilder) wideBranch(target *Label, bci int) {
	b.fixups = append(b.fixups, branchFixup{at: b.code.Reserve(4), bci: bci, target: target, wide: true})
}

// local encodes a load or store. A short-form opcode is kept when its slot
// still matches; other slots use the indexed form, widened past 255.
func (b *directCodeBuilder) local(op Opcode, slot int) error {
	w := b.code
	if slot < 0 || slot > math.MaxUint16 {
		return misuse("local slot %d out of range", slot)
	}
	if implicit, ok := op.implicitSlot(); ok && implicit == slot {
		w.U1(int(op))
		return nil
	}
	base := baseForm(op)
	if slot <= math.MaxUint8 {
		w.U1(int(base))
		w.U1(slot)
		return nil
	}
	w.U1(opWide)
	w.U1(int(base))
	w.U2(slot)
	return nil
}

func (b *directCodeBuilder) encode(ins Instruction) error {
	w := b.code
	bci := w.Len()
	switch i := ins.(type) {
	case LoadInstruction:
		b.useLocal(i.Slot, i.TypeKind())
		return b.local(i.Op, i.Slot)
	case StoreInstruction:
		b.useLocal(i.Slot, i.TypeKind())
		return b.local(i.Op, i.Slot)
	case IncrementInstruction:
		b.useLocal(i.Slot, desc.Int)
		switch {
		case i.Slot >= 0 && i.Slot <= math.MaxUint8 && i.Delta >= math.MinInt8 && i.Delta <= math.MaxInt8:
			w.U1(int(OpIinc))
			w.U1(i.Slot)
			w.U1(i.Delta)
		case i.Slot >= 0 && i.Slot <= math.MaxUint16 && i.Delta >= math.MinInt16 && i.Delta <= math.MaxInt16:
			w.U1(opWide)
			w.U1(int(OpIinc))
			w.U2(i.Slot)
			w.U2(i.Delta)
		default:
			return misuse("iinc %d by %d out of range", i.Slot, i.Delta)
		}
	case BranchInstruction:
		if i.Target == nil {
			return misuse("%s without a target", i.Op)
		}
		b.branch(i.Op, i.Target, bci)
	case LookupSwitchInstruction:
		w.U1(int(OpLookupswitch))
		b.pad()
		b.wideBranch(i.Default, bci)
		cases := append([]SwitchCase(nil), i.Cases...)
		sort.SliceStable(cases, func(x, y int) bool { return cases[x].Value < cases[y].Value })
		w.I4(int32(len(cases)))
		for k, c := range cases {
			if k > 0 && cases[k-1].Value == c.Value {
				return misuse("lookupswitch has duplicate case %d", c.Value)
			}
			w.I4(c.Value)
			b.wideBranch(c.Target, bci)
		}
	case TableSwitchInstruction:
		if i.Low > i.High {
			return misuse("tableswitch low %d above high %d", i.Low, i.High)
		}
		w.U1(int(OpTableswitch))
		b.pad()
		b.wideBranch(i.Default, bci)
		w.I4(i.Low)
		w.I4(i.High)
		targets := make(map[int32]*Label, len(i.Cases))
		for _, c := range i.Cases {
			targets[c.Value] = c.Target
		}
		for v := int64(i.Low); v <= int64(i.High); v++ {
			t, ok := targets[int32(v)]
			if !ok {
				t = i.Default
			}
			b.wideBranch(t, bci)
		}
	case ConstantInstruction:
		return b.constant(i)
	case FieldInstruction:
		idx, err := b.ref(i.Field)
		if err != nil {
			return err
		}
		w.U1(int(i.Op))
		w.U2(idx)
	case InvokeInstruction:
		idx, err := b.ref(i.Method)
		if err != nil {
			return err
		}
		w.U1(int(i.Op))
		w.U2(idx)
		if i.Op == OpInvokeinterface {
			md, err := desc.ParseMethod(i.Method.MemberType())
			if err != nil {
				return misuse("invokeinterface %s: %v", i.Method, err)
			}
			w.U1(1 + md.ParameterSlots())
			w.U1(0)
		}
	case InvokeDynamicInstruction:
		idx, err := b.ref(i.Site)
		if err != nil {
			return err
		}
		w.U1(int(OpInvokedynamic))
		w.U2(idx)
		w.U2(0)
	case NewObjectInstruction:
		return b.classOp(OpNew, i.Class)
	case NewReferenceArrayInstruction:
		return b.classOp(OpAnewarray, i.Component)
	case TypeCheckInstruction:
		return b.classOp(i.Op, i.Type)
	case NewMultiArrayInstruction:
		if err := b.classOp(OpMultianewarray, i.Array); err != nil {
			return err
		}
		w.U1(i.Dimensions)
	case NewPrimitiveArrayInstruction:
		code, ok := primitiveArrayCode(i.Component)
		if !ok {
			return misuse("newarray of %s", i.Component)
		}
		w.U1(int(OpNewarray))
		w.U1(code)
	case DiscontinuedInstruction:
		if i.Op == OpRet {
			b.useLocal(i.Slot, desc.Reference)
			if i.Slot <= math.MaxUint8 {
				w.U1(int(OpRet))
				w.U1(i.Slot)
			} else {
				w.U1(opWide)
				w.U1(int(OpRet))
				w.U2(i.Slot)
			}
			return nil
		}
		b.branch(i.Op, i.Target, bci)
	default:
		op := ins.Opcode()
		if info, ok := op.Info(); !ok || info.Size != 1 {
			return misuse("cannot encode %T %s", ins, op)
		}
		w.U1(int(op))
	}
	return nil
}

// pad aligns switch operands to a multiple of four from the start of the
// body.
func (b *directCodeBuilder) pad() {
	for b.code.Len()%4 != 0 {
		b.code.U1(0)
	}
}

func (b *directCodeBuilder) classOp(op Opcode, c *ClassEntry) error {
	idx, err := b.ref(c)
	if err != nil {
		return err
	}
	b.code.U1(int(op))
	b.code.U2(idx)
	return nil
}

func (b *directCodeBuilder) constant(i ConstantInstruction) error {
	w := b.code
	switch i.Op {
	case OpBipush:
		if i.Value < math.MinInt8 || i.Value > math.MaxInt8 {
			return misuse("bipush %d out of range", i.Value)
		}
		w.U1(int(OpBipush))
		w.U1(i.Value)
	case OpSipush:
		if i.Value < math.MinInt16 || i.Value > math.MaxInt16 {
			return misuse("sipush %d out of range", i.Value)
		}
		w.U1(int(OpSipush))
		w.U2(i.Value)
	case OpLdc, OpLdcW, OpLdc2W:
		idx, err := b.ref(i.Entry)
		if err != nil {
			return err
		}
		wide := i.Entry.TypeKind().SlotSize() == 2
		switch {
		case wide:
			w.U1(int(OpLdc2W))
			w.U2(idx)
		case i.Op == OpLdc && idx <= math.MaxUint8:
			w.U1(int(OpLdc))
			w.U1(idx)
		default:
			w.U1(int(OpLdcW))
			w.U2(idx)
		}
	default:
		if info, ok := i.Op.Info(); !ok || info.Kind != KindConstant || info.Size != 1 {
			return misuse("%s is not a constant instruction", i.Op)
		}
		w.U1(int(i.Op))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Finishing
// ---------------------------------------------------------------------------

func (b *directCodeBuilder) offset(l *Label) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("%w: nil label", ErrUnresolvedLabel)
	}
	off, ok := b.bound[l]
	if !ok {
		return 0, ErrUnresolvedLabel
	}
	return off, nil
}

func (b *directCodeBuilder) resolveFixups() error {
	code := b.code
	for _, f := range b.fixups {
		target, err := b.offset(f.target)
		if err != nil {
			return err
		}
		delta := target - f.bci
		if f.wide {
			code.PatchU4(f.at, uint32(int32(delta)))
			continue
		}
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return misuse("branch offset %d at %d does not fit 16 bits", delta, f.bci)
		}
		code.PatchU2(f.at, delta)
	}
	return nil
}

func (b *directCodeBuilder) maxStack() (int, error) {
	var declared int
	var hasDeclared bool
	if b.original != nil {
		declared, _, hasDeclared = b.original.declaredMax()
	}
	if hasDeclared && b.s.opts.Has(KeepMaxStack) {
		return declared, nil
	}
	if n, ok := b.trackStack(); ok {
		return n, nil
	}
	if hasDeclared {
		log.Debugf("stack depth unknown, keeping declared max_stack %d", declared)
		return declared, nil
	}
	return 0, ErrStackUnknown
}

// trackStack replays the body through a StackTracker. Every handler is
// seeded before the first instruction, wherever its catch was declared.
func (b *directCodeBuilder) trackStack() (int, bool) {
	t := NewStackTracker()
	for _, c := range b.catches {
		t.track(c)
	}
	for _, e := range b.flow {
		t.track(e)
	}
	return t.MaxStackSize()
}

// finish returns the body of the Code attribute.
func (b *directCodeBuilder) finish() ([]byte, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	codeLen := b.code.Len()
	if codeLen == 0 {
		return nil, misuse("empty code body")
	}
	if codeLen > math.MaxUint16 {
		return nil, misuse("code body of %d bytes", codeLen)
	}
	if b.end != nil {
		if _, ok := b.bound[b.end]; !ok {
			b.bound[b.end] = codeLen
		}
	}
	if err := b.resolveFixups(); err != nil {
		return nil, err
	}
	maxStack, err := b.maxStack()
	if err != nil {
		return nil, err
	}

	w := newBufWriter(b.s, b.pool)
	w.labels = b.offset
	w.U2(maxStack)
	w.U2(b.maxLocals)
	w.U4(uint32(codeLen))
	w.Write(b.code.Bytes())

	if err := b.writeCatches(w); err != nil {
		return nil, err
	}

	n := len(b.attrs)
	for _, present := range []bool{len(b.lines) > 0, len(b.vars) > 0, len(b.varTypes) > 0} {
		if present {
			n++
		}
	}
	w.count(n)
	if len(b.lines) > 0 {
		w.ref(b.pool.Utf8Entry(attrLineNumberTable))
		mark := w.BeginLength()
		w.count(len(b.lines))
		for _, l := range b.lines {
			w.U2(l.pc)
			w.U2(l.line)
		}
		if err := w.EndLength(mark); err != nil {
			return nil, err
		}
	}
	if len(b.vars) > 0 {
		rows := make([]localRow, len(b.vars))
		for i, v := range b.vars {
			rows[i] = localRow{v.Slot, v.Name, v.Type, v.Start, v.End}
		}
		if err := b.writeLocals(w, attrLocalVariableTable, rows); err != nil {
			return nil, err
		}
	}
	if len(b.varTypes) > 0 {
		rows := make([]localRow, len(b.varTypes))
		for i, v := range b.varTypes {
			rows[i] = localRow{v.Slot, v.Name, v.Signature, v.Start, v.End}
		}
		if err := b.writeLocals(w, attrLocalVariableTypeTable, rows); err != nil {
			return nil, err
		}
	}
	if err := w.attributeList(b.attrs); err != nil {
		return nil, err
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.Bytes(), nil
}

// writeCatches writes the exception table. Ranges that cover no code are
// dropped.
func (b *directCodeBuilder) writeCatches(w *bufWriter) error {
	type row struct{ start, end, handler int }
	rows := make([]row, 0, len(b.catches))
	kept := make([]ExceptionCatch, 0, len(b.catches))
	for _, c := range b.catches {
		start, err := b.offset(c.Start)
		if err != nil {
			return err
		}
		end, err := b.offset(c.End)
		if err != nil {
			return err
		}
		handler, err := b.offset(c.Handler)
		if err != nil {
			return err
		}
		if start == end {
			continue
		}
		if start > end {
			return misuse("exception range [%d, %d) is reversed", start, end)
		}
		rows = append(rows, row{start, end, handler})
		kept = append(kept, c)
	}
	w.count(len(rows))
	for i, r := range rows {
		w.U2(r.start)
		w.U2(r.end)
		w.U2(r.handler)
		w.optRef(kept[i].CatchType)
	}
	return nil
}

type localRow struct {
	slot       int
	name, typ  *Utf8Entry
	start, end *Label
}

func (b *directCodeBuilder) writeLocals(w *bufWriter, name string, rows []localRow) error {
	w.ref(b.pool.Utf8Entry(name))
	mark := w.BeginLength()
	w.count(len(rows))
	for _, r := range rows {
		start, err := b.offset(r.start)
		if err != nil {
			return err
		}
		end, err := b.offset(r.end)
		if err != nil {
			return err
		}
		if end < start {
			return misuse("local variable %s range [%d, %d) is reversed", r.name, start, end)
		}
		w.U2(start)
		w.U2(end - start)
		w.ref(r.name)
		w.ref(r.typ)
		w.U2(r.slot)
	}
	return w.EndLength(mark)
}
