package classfile

import "github.com/chazu/cfx/desc"

// Instruction is a decoded JVM instruction. Instructions are values; the
// concrete types below cover every opcode, with wide forms folded into the
// instruction they widen.
type Instruction interface {
	CodeElement
	Opcode() Opcode
}

// LoadInstruction pushes a local variable: xload, xload_n.
type LoadInstruction struct {
	Op   Opcode
	Slot int
}

// StoreInstruction pops into a local variable: xstore, xstore_n.
type StoreInstruction struct {
	Op   Opcode
	Slot int
}

// IncrementInstruction is iinc.
type IncrementInstruction struct {
	Slot  int
	Delta int
}

// BranchInstruction is a conditional branch, goto or goto_w.
type BranchInstruction struct {
	Op     Opcode
	Target *Label
}

// SwitchCase is one match of a switch.
type SwitchCase struct {
	Value  int32
	Target *Label
}

// LookupSwitchInstruction is lookupswitch.
type LookupSwitchInstruction struct {
	Default *Label
	Cases   []SwitchCase
}

// TableSwitchInstruction is tableswitch. Cases lists one target per value in
// [Low, High]; values without a case branch to Default.
type TableSwitchInstruction struct {
	Low     int32
	High    int32
	Default *Label
	Cases   []SwitchCase
}

// ReturnInstruction is xreturn or return.
type ReturnInstruction struct {
	Op Opcode
}

// ThrowInstruction is athrow.
type ThrowInstruction struct{}

// FieldInstruction is getfield, putfield, getstatic or putstatic.
type FieldInstruction struct {
	Op    Opcode
	Field *FieldRefEntry
}

// InvokeInstruction is invokevirtual, invokespecial, invokestatic or
// invokeinterface. Method is a MethodRefEntry or InterfaceMethodRefEntry.
type InvokeInstruction struct {
	Op     Opcode
	Method MemberRefEntry
}

// InvokeDynamicInstruction is invokedynamic.
type InvokeDynamicInstruction struct {
	Site *InvokeDynamicEntry
}

// NewObjectInstruction is new.
type NewObjectInstruction struct {
	Class *ClassEntry
}

// NewPrimitiveArrayInstruction is newarray.
type NewPrimitiveArrayInstruction struct {
	Component desc.TypeKind
}

// NewReferenceArrayInstruction is anewarray.
type NewReferenceArrayInstruction struct {
	Component *ClassEntry
}

// NewMultiArrayInstruction is multianewarray.
type NewMultiArrayInstruction struct {
	Array      *ClassEntry
	Dimensions int
}

// ArrayLoadInstruction is xaload.
type ArrayLoadInstruction struct {
	Op Opcode
}

// ArrayStoreInstruction is xastore.
type ArrayStoreInstruction struct {
	Op Opcode
}

// TypeCheckInstruction is checkcast or instanceof.
type TypeCheckInstruction struct {
	Op   Opcode
	Type *ClassEntry
}

// ConvertInstruction is a primitive conversion such as i2l.
type ConvertInstruction struct {
	Op Opcode
}

// OperatorInstruction is an arithmetic, bitwise, comparison or
// arraylength instruction.
type OperatorInstruction struct {
	Op Opcode
}

// ConstantInstruction pushes a constant. Value holds the operand of bipush
// and sipush; Entry holds the operand of ldc, ldc_w and ldc2_w.
type ConstantInstruction struct {
	Op    Opcode
	Value int
	Entry LoadableEntry
}

// StackInstruction is pop, dup, swap and their variants.
type StackInstruction struct {
	Op Opcode
}

// MonitorInstruction is monitorenter or monitorexit.
type MonitorInstruction struct {
	Op Opcode
}

// NopInstruction is nop.
type NopInstruction struct{}

// DiscontinuedInstruction is jsr, jsr_w or ret. They are decoded so that old
// classfiles can be read, but the stack tracker cannot follow them.
type DiscontinuedInstruction struct {
	Op     Opcode
	Target *Label // jsr, jsr_w
	Slot   int    // ret
}

func (i LoadInstruction) Opcode() Opcode              { return i.Op }
func (i StoreInstruction) Opcode() Opcode             { return i.Op }
func (IncrementInstruction) Opcode() Opcode           { return OpIinc }
func (i BranchInstruction) Opcode() Opcode            { return i.Op }
func (LookupSwitchInstruction) Opcode() Opcode        { return OpLookupswitch }
func (TableSwitchInstruction) Opcode() Opcode         { return OpTableswitch }
func (i ReturnInstruction) Opcode() Opcode            { return i.Op }
func (ThrowInstruction) Opcode() Opcode               { return OpAthrow }
func (i FieldInstruction) Opcode() Opcode             { return i.Op }
func (i InvokeInstruction) Opcode() Opcode            { return i.Op }
func (InvokeDynamicInstruction) Opcode() Opcode       { return OpInvokedynamic }
func (NewObjectInstruction) Opcode() Opcode           { return OpNew }
func (NewPrimitiveArrayInstruction) Opcode() Opcode   { return OpNewarray }
func (NewReferenceArrayInstruction) Opcode() Opcode   { return OpAnewarray }
func (NewMultiArrayInstruction) Opcode() Opcode       { return OpMultianewarray }
func (i ArrayLoadInstruction) Opcode() Opcode         { return i.Op }
func (i ArrayStoreInstruction) Opcode() Opcode        { return i.Op }
func (i TypeCheckInstruction) Opcode() Opcode         { return i.Op }
func (i ConvertInstruction) Opcode() Opcode           { return i.Op }
func (i OperatorInstruction) Opcode() Opcode          { return i.Op }
func (i ConstantInstruction) Opcode() Opcode          { return i.Op }
func (i StackInstruction) Opcode() Opcode             { return i.Op }
func (i MonitorInstruction) Opcode() Opcode           { return i.Op }
func (NopInstruction) Opcode() Opcode                 { return OpNop }
func (i DiscontinuedInstruction) Opcode() Opcode      { return i.Op }

func (LoadInstruction) codeElement()              {}
func (StoreInstruction) codeElement()             {}
func (IncrementInstruction) codeElement()         {}
func (BranchInstruction) codeElement()            {}
func (LookupSwitchInstruction) codeElement()      {}
func (TableSwitchInstruction) codeElement()       {}
func (ReturnInstruction) codeElement()            {}
func (ThrowInstruction) codeElement()             {}
func (FieldInstruction) codeElement()             {}
func (InvokeInstruction) codeElement()            {}
func (InvokeDynamicInstruction) codeElement()     {}
func (NewObjectInstruction) codeElement()         {}
func (NewPrimitiveArrayInstruction) codeElement() {}
func (NewReferenceArrayInstruction) codeElement() {}
func (NewMultiArrayInstruction) codeElement()     {}
func (ArrayLoadInstruction) codeElement()         {}
func (ArrayStoreInstruction) codeElement()        {}
func (TypeCheckInstruction) codeElement()         {}
func (ConvertInstruction) codeElement()           {}
func (OperatorInstruction) codeElement()          {}
func (ConstantInstruction) codeElement()          {}
func (StackInstruction) codeElement()             {}
func (MonitorInstruction) codeElement()           {}
func (NopInstruction) codeElement()               {}
func (DiscontinuedInstruction) codeElement()      {}

// TypeKind returns the kind of the local variable.
func (i LoadInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the kind of the local variable.
func (i StoreInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the kind of the returned value, Void for return.
func (i ReturnInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the array component kind.
func (i ArrayLoadInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the array component kind.
func (i ArrayStoreInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the result kind.
func (i OperatorInstruction) TypeKind() desc.TypeKind { return i.Op.TypeKind() }

// FromType returns the kind converted from.
func (i ConvertInstruction) FromType() desc.TypeKind { return opcodeInfoTable[i.Op].From }

// ToType returns the kind converted to.
func (i ConvertInstruction) ToType() desc.TypeKind { return i.Op.TypeKind() }

// TypeKind returns the kind of the pushed constant.
func (i ConstantInstruction) TypeKind() desc.TypeKind {
	if i.Entry != nil {
		return i.Entry.TypeKind()
	}
	return i.Op.TypeKind()
}

// ---------------------------------------------------------------------------
// Pseudo-instructions
// ---------------------------------------------------------------------------

// LabelTarget binds a label to the current position.
type LabelTarget struct {
	Label *Label
}

// ExceptionCatch is an exception table row. A nil CatchType catches
// everything.
type ExceptionCatch struct {
	Start     *Label
	End       *Label
	Handler   *Label
	CatchType *ClassEntry
}

// LineNumber maps the current position to a source line.
type LineNumber struct {
	Line int
}

// LocalVariable is a LocalVariableTable row.
type LocalVariable struct {
	Slot  int
	Name  *Utf8Entry
	Type  *Utf8Entry
	Start *Label
	End   *Label
}

// LocalVariableType is a LocalVariableTypeTable row.
type LocalVariableType struct {
	Slot      int
	Name      *Utf8Entry
	Signature *Utf8Entry
	Start     *Label
	End       *Label
}

func (LabelTarget) codeElement()       {}
func (ExceptionCatch) codeElement()    {}
func (LineNumber) codeElement()        {}
func (LocalVariable) codeElement()     {}
func (LocalVariableType) codeElement() {}

// simpleInstruction returns the instruction for an opcode without operands.
func simpleInstruction(op Opcode) (Instruction, bool) {
	info, ok := op.Info()
	if !ok || info.Size != 1 {
		return nil, false
	}
	switch info.Kind {
	case KindLoad:
		slot, _ := op.implicitSlot()
		return LoadInstruction{Op: op, Slot: slot}, true
	case KindStore:
		slot, _ := op.implicitSlot()
		return StoreInstruction{Op: op, Slot: slot}, true
	case KindReturn:
		return ReturnInstruction{Op: op}, true
	case KindThrow:
		return ThrowInstruction{}, true
	case KindArrayLoad:
		return ArrayLoadInstruction{Op: op}, true
	case KindArrayStore:
		return ArrayStoreInstruction{Op: op}, true
	case KindConvert:
		return ConvertInstruction{Op: op}, true
	case KindOperator:
		return OperatorInstruction{Op: op}, true
	case KindConstant:
		return ConstantInstruction{Op: op}, true
	case KindStack:
		return StackInstruction{Op: op}, true
	case KindMonitor:
		return MonitorInstruction{Op: op}, true
	case KindNop:
		return NopInstruction{}, true
	}
	return nil, false
}
