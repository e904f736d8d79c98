package classfile

import (
	"math"

	"github.com/chazu/cfx/desc"
)

// CodeBuilder accepts the elements of a method body. Besides With it offers
// one convenience per instruction family; each emits a single element.
type CodeBuilder interface {
	With(e CodeElement) CodeBuilder
	// Transform replays the elements of c through t into this builder.
	Transform(c CodeModel, t CodeTransform) CodeBuilder

	// NewLabel returns an unbound label.
	NewLabel() *Label
	// StartLabel is bound to the start of the body.
	StartLabel() *Label
	// EndLabel is bound to the end of the body.
	EndLabel() *Label
	// LabelBinding binds l to the current position.
	LabelBinding(l *Label) CodeBuilder

	// ReceiverSlot returns the slot of this. Static methods have none.
	ReceiverSlot() int
	// ParameterSlot returns the slot of parameter i.
	ParameterSlot(i int) int
	// AllocateLocal reserves a fresh local of kind k and returns its slot.
	AllocateLocal(k desc.TypeKind) int

	LoadLocal(k desc.TypeKind, slot int) CodeBuilder
	StoreLocal(k desc.TypeKind, slot int) CodeBuilder
	Iinc(slot, delta int) CodeBuilder
	Branch(op Opcode, target *Label) CodeBuilder
	Goto(target *Label) CodeBuilder
	Return(k desc.TypeKind) CodeBuilder
	// Op emits an instruction without operands, such as iadd or athrow.
	Op(op Opcode) CodeBuilder
	FieldAccess(op Opcode, owner *ClassEntry, name, typ string) CodeBuilder
	Invoke(op Opcode, owner *ClassEntry, name, typ string, isInterface bool) CodeBuilder
	InvokeDynamic(site *InvokeDynamicEntry) CodeBuilder
	New(c *ClassEntry) CodeBuilder
	NewPrimitiveArray(k desc.TypeKind) CodeBuilder
	NewReferenceArray(component *ClassEntry) CodeBuilder
	MultiNewArray(array *ClassEntry, dims int) CodeBuilder
	CheckCast(c *ClassEntry) CodeBuilder
	InstanceOf(c *ClassEntry) CodeBuilder
	// ConstantInt emits the shortest instruction pushing v.
	ConstantInt(v int32) CodeBuilder
	Ldc(e LoadableEntry) CodeBuilder
	ConstantString(s string) CodeBuilder
	ExceptionCatch(start, end, handler *Label, catchType *ClassEntry) CodeBuilder
	LocalVariable(slot int, name, typ string, start, end *Label) CodeBuilder
	LineNumber(line int) CodeBuilder

	// Original returns the body being transformed, if any.
	Original() CodeModel
	ConstantPool() *PoolBuilder
	Err() error

	session() *buildSession
}

// ---------------------------------------------------------------------------
// Conveniences
// ---------------------------------------------------------------------------

type codeOps struct {
	self CodeBuilder
}

func (o codeOps) fail(err error) CodeBuilder {
	o.self.session().fail(err)
	return o.self
}

func (o codeOps) Transform(c CodeModel, t CodeTransform) CodeBuilder {
	b := o.self
	if b.Err() == nil {
		if err := runCode(c, t, b); err != nil {
			b.session().fail(err)
		}
	}
	return b
}

func (o codeOps) LabelBinding(l *Label) CodeBuilder { return o.self.With(LabelTarget{Label: l}) }

func (o codeOps) LoadLocal(k desc.TypeKind, slot int) CodeBuilder {
	op, ok := loadOpcode(k)
	if !ok {
		return o.fail(misuse("no load instruction for %s", k))
	}
	if short, ok := shortForm(op, slot); ok {
		op = short
	}
	return o.self.With(LoadInstruction{Op: op, Slot: slot})
}

func (o codeOps) StoreLocal(k desc.TypeKind, slot int) CodeBuilder {
	op, ok := storeOpcode(k)
	if !ok {
		return o.fail(misuse("no store instruction for %s", k))
	}
	if short, ok := shortForm(op, slot); ok {
		op = short
	}
	return o.self.With(StoreInstruction{Op: op, Slot: slot})
}

func (o codeOps) Iinc(slot, delta int) CodeBuilder {
	return o.self.With(IncrementInstruction{Slot: slot, Delta: delta})
}

func (o codeOps) Branch(op Opcode, target *Label) CodeBuilder {
	if op.Kind() != KindBranch {
		return o.fail(misuse("%s is not a branch", op))
	}
	return o.self.With(BranchInstruction{Op: op, Target: target})
}

func (o codeOps) Goto(target *Label) CodeBuilder { return o.Branch(OpGoto, target) }

func (o codeOps) Return(k desc.TypeKind) CodeBuilder {
	op, ok := returnOpcode(k)
	if !ok {
		return o.fail(misuse("no return instruction for %s", k))
	}
	return o.self.With(ReturnInstruction{Op: op})
}

func (o codeOps) Op(op Opcode) CodeBuilder {
	ins, ok := simpleInstruction(op)
	if !ok {
		return o.fail(misuse("%s takes operands", op))
	}
	return o.self.With(ins)
}

func (o codeOps) FieldAccess(op Opcode, owner *ClassEntry, name, typ string) CodeBuilder {
	if op.Kind() != KindField {
		return o.fail(misuse("%s is not a field instruction", op))
	}
	return o.self.With(FieldInstruction{Op: op, Field: o.self.ConstantPool().FieldRefEntry(owner, name, typ)})
}

func (o codeOps) Invoke(op Opcode, owner *ClassEntry, name, typ string, isInterface bool) CodeBuilder {
	if op.Kind() != KindInvoke {
		return o.fail(misuse("%s is not an invoke instruction", op))
	}
	pool := o.self.ConstantPool()
	var m MemberRefEntry
	if isInterface || op == OpInvokeinterface {
		m = pool.InterfaceMethodRefEntry(owner, name, typ)
	} else {
		m = pool.MethodRefEntry(owner, name, typ)
	}
	return o.self.With(InvokeInstruction{Op: op, Method: m})
}

func (o codeOps) InvokeDynamic(site *InvokeDynamicEntry) CodeBuilder {
	return o.self.With(InvokeDynamicInstruction{Site: site})
}

func (o codeOps) New(c *ClassEntry) CodeBuilder { return o.self.With(NewObjectInstruction{Class: c}) }

func (o codeOps) NewPrimitiveArray(k desc.TypeKind) CodeBuilder {
	if _, ok := primitiveArrayCode(k); !ok {
		return o.fail(misuse("newarray of %s", k))
	}
	return o.self.With(NewPrimitiveArrayInstruction{Component: k})
}

func (o codeOps) NewReferenceArray(component *ClassEntry) CodeBuilder {
	return o.self.With(NewReferenceArrayInstruction{Component: component})
}

func (o codeOps) MultiNewArray(array *ClassEntry, dims int) CodeBuilder {
	if dims < 1 || dims > math.MaxUint8 {
		return o.fail(misuse("multianewarray of %d dimensions", dims))
	}
	return o.self.With(NewMultiArrayInstruction{Array: array, Dimensions: dims})
}

func (o codeOps) CheckCast(c *ClassEntry) CodeBuilder {
	return o.self.With(TypeCheckInstruction{Op: OpCheckcast, Type: c})
}

func (o codeOps) InstanceOf(c *ClassEntry) CodeBuilder {
	return o.self.With(TypeCheckInstruction{Op: OpInstanceof, Type: c})
}

func (o codeOps) ConstantInt(v int32) CodeBuilder {
	switch {
	case v >= -1 && v <= 5:
		return o.self.With(ConstantInstruction{Op: Opcode(int(OpIconst0) + int(v))})
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return o.self.With(ConstantInstruction{Op: OpBipush, Value: int(v)})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return o.self.With(ConstantInstruction{Op: OpSipush, Value: int(v)})
	}
	return o.Ldc(o.self.ConstantPool().IntegerEntry(v))
}

func (o codeOps) Ldc(e LoadableEntry) CodeBuilder {
	if isNil(e) {
		return o.fail(misuse("ldc of nil entry"))
	}
	op := OpLdc
	if e.TypeKind().SlotSize() == 2 {
		op = OpLdc2W
	}
	return o.self.With(ConstantInstruction{Op: op, Entry: e})
}

func (o codeOps) ConstantString(s string) CodeBuilder {
	return o.Ldc(o.self.ConstantPool().StringEntry(s))
}

func (o codeOps) ExceptionCatch(start, end, handler *Label, catchType *ClassEntry) CodeBuilder {
	return o.self.With(ExceptionCatch{Start: start, End: end, Handler: handler, CatchType: catchType})
}

func (o codeOps) LocalVariable(slot int, name, typ string, start, end *Label) CodeBuilder {
	pool := o.self.ConstantPool()
	return o.self.With(LocalVariable{Slot: slot, Name: pool.Utf8Entry(name), Type: pool.Utf8Entry(typ), Start: start, End: end})
}

func (o codeOps) LineNumber(line int) CodeBuilder { return o.self.With(LineNumber{Line: line}) }

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// localFrame tracks the receiver, parameter slots and the next free local
// of a body.
type localFrame struct {
	static bool
	md     desc.MethodDesc
	next   int
}

func newLocalFrame(static bool, md desc.MethodDesc, original CodeModel) localFrame {
	f := localFrame{static: static, md: md, next: md.ParameterSlots()}
	if !static {
		f.next++
	}
	if original != nil {
		if _, locals, ok := original.declaredMax(); ok && locals > f.next {
			f.next = locals
		}
	}
	return f
}

func (f *localFrame) receiverSlot(s *buildSession) int {
	if f.static {
		s.fail(misuse("static method has no receiver"))
		return -1
	}
	return 0
}

func (f *localFrame) parameterSlot(s *buildSession, i int) int {
	if i < 0 || i >= len(f.md.Params) {
		s.fail(misuse("parameter %d of %d", i, len(f.md.Params)))
		return -1
	}
	slot := 0
	if !f.static {
		slot = 1
	}
	for _, p := range f.md.Params[:i] {
		slot += p.Kind().SlotSize()
	}
	return slot
}

func (f *localFrame) allocate(s *buildSession, k desc.TypeKind) int {
	if k == desc.Void || k == 0 {
		s.fail(misuse("cannot allocate a local of kind %s", k))
		return -1
	}
	slot := f.next
	f.next += k.SlotSize()
	return slot
}

// ---------------------------------------------------------------------------
// Buffered code builder
// ---------------------------------------------------------------------------

// bufferedCodeBuilder collects a body into a bufferedCode, used where the
// body must be handed to a downstream consumer as a model.
type bufferedCodeBuilder struct {
	codeOps
	s        *buildSession
	pool     *PoolBuilder
	parent   MethodModel
	original CodeModel
	frame    localFrame
	start    *Label
	end      *Label
	elements []CodeElement
}

func newBufferedCodeBuilderFor(mb MethodBuilder, original CodeModel) (*bufferedCodeBuilder, error) {
	md, err := desc.ParseMethod(mb.Descriptor().value)
	if err != nil {
		return nil, misuse("method %s: %v", mb.Name().value, err)
	}
	b := &bufferedCodeBuilder{
		s:        mb.session(),
		pool:     mb.ConstantPool(),
		parent:   mb.Original(),
		original: original,
		frame:    newLocalFrame(mb.Flags().IsStatic(), md, original),
	}
	b.self = b
	return b, nil
}

func (b *bufferedCodeBuilder) With(e CodeElement) CodeBuilder {
	if b.s.err != nil {
		return b
	}
	if e == nil {
		b.s.fail(misuse("nil code element"))
		return b
	}
	b.elements = append(b.elements, e)
	return b
}

func (b *bufferedCodeBuilder) model() *bufferedCode {
	els := make([]CodeElement, 0, len(b.elements)+2)
	if b.start != nil {
		els = append(els, LabelTarget{Label: b.start})
	}
	els = append(els, b.elements...)
	if b.end != nil {
		els = append(els, LabelTarget{Label: b.end})
	}
	return &bufferedCode{parent: b.parent, original: b.original, elements: els}
}

func (b *bufferedCodeBuilder) NewLabel() *Label { return newLabel() }

func (b *bufferedCodeBuilder) StartLabel() *Label {
	if b.start == nil {
		b.start = newLabel()
	}
	return b.start
}

func (b *bufferedCodeBuilder) EndLabel() *Label {
	if b.end == nil {
		b.end = newLabel()
	}
	return b.end
}

func (b *bufferedCodeBuilder) ReceiverSlot() int      { return b.frame.receiverSlot(b.s) }
func (b *bufferedCodeBuilder) ParameterSlot(i int) int { return b.frame.parameterSlot(b.s, i) }

func (b *bufferedCodeBuilder) AllocateLocal(k desc.TypeKind) int { return b.frame.allocate(b.s, k) }

func (b *bufferedCodeBuilder) Original() CodeModel        { return b.original }
func (b *bufferedCodeBuilder) ConstantPool() *PoolBuilder { return b.pool }
func (b *bufferedCodeBuilder) session() *buildSession     { return b.s }

func (b *bufferedCodeBuilder) Err() error {
	if b.s.err != nil {
		return b.s.err
	}
	return b.pool.Err()
}

// ---------------------------------------------------------------------------
// Chained code builder
// ---------------------------------------------------------------------------

type chainedCodeBuilder struct {
	codeOps
	terminal CodeBuilder
	consumer func(CodeElement) error
}

func chainCode(down CodeBuilder, consumer func(CodeElement) error) CodeBuilder {
	terminal := down
	if c, ok := down.(*chainedCodeBuilder); ok {
		terminal = c.terminal
	}
	b := &chainedCodeBuilder{terminal: terminal, consumer: consumer}
	b.self = b
	return b
}

func (b *chainedCodeBuilder) With(e CodeElement) CodeBuilder {
	if b.Err() != nil {
		return b
	}
	if e == nil {
		b.session().fail(misuse("nil code element"))
		return b
	}
	if err := b.consumer(e); err != nil {
		b.session().fail(err)
	}
	return b
}

func (b *chainedCodeBuilder) NewLabel() *Label                  { return b.terminal.NewLabel() }
func (b *chainedCodeBuilder) StartLabel() *Label                { return b.terminal.StartLabel() }
func (b *chainedCodeBuilder) EndLabel() *Label                  { return b.terminal.EndLabel() }
func (b *chainedCodeBuilder) ReceiverSlot() int                 { return b.terminal.ReceiverSlot() }
func (b *chainedCodeBuilder) ParameterSlot(i int) int           { return b.terminal.ParameterSlot(i) }
func (b *chainedCodeBuilder) AllocateLocal(k desc.TypeKind) int { return b.terminal.AllocateLocal(k) }
func (b *chainedCodeBuilder) Original() CodeModel               { return b.terminal.Original() }
func (b *chainedCodeBuilder) ConstantPool() *PoolBuilder        { return b.terminal.ConstantPool() }
func (b *chainedCodeBuilder) Err() error                        { return b.terminal.Err() }
func (b *chainedCodeBuilder) session() *buildSession            { return b.terminal.session() }
