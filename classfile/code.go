package classfile

import (
	"github.com/chazu/cfx/binio"
	"github.com/chazu/cfx/desc"
)

// CodeAttribute is the Code attribute of a parsed method: the bound
// CodeModel. The body is decoded into elements on first traversal.
type CodeAttribute struct {
	attrBase
	method    *boundMethod
	maxStack  int
	maxLocals int
	codeStart int
	codeLen   int
	excStart  int
	attrStart int

	labels     labelTable
	inflated   bool
	inflateErr error
	elements   []CodeElement
}

func (*CodeAttribute) AttributeName() string { return attrCode }
func (*CodeAttribute) methodElement()        {}

// MaxStack returns the declared max_stack.
func (c *CodeAttribute) MaxStack() int { return c.maxStack }

// MaxLocals returns the declared max_locals.
func (c *CodeAttribute) MaxLocals() int { return c.maxLocals }

// CodeLength returns the length of the bytecode in bytes.
func (c *CodeAttribute) CodeLength() int { return c.codeLen }

// Bytes returns the raw bytecode. The slice aliases the classfile.
func (c *CodeAttribute) Bytes() []byte { return c.src.slice(c.codeStart, c.codeLen) }

// Parent returns the method owning the body.
func (c *CodeAttribute) Parent() MethodModel {
	if c.method == nil {
		return nil
	}
	return c.method
}

func (c *CodeAttribute) declaredMax() (int, int, bool) { return c.maxStack, c.maxLocals, true }

// ForEach visits the body in order: exception catches, local variable
// scopes, then each instruction preceded by its label and line numbers, the
// end label, the stack map and the remaining code attributes.
func (c *CodeAttribute) ForEach(fn func(CodeElement) error) error {
	els, err := c.Elements()
	if err != nil {
		return err
	}
	for _, e := range els {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Elements returns the decoded body. The slice must not be modified.
func (c *CodeAttribute) Elements() ([]CodeElement, error) {
	if !c.inflated {
		c.inflated = true
		c.elements, c.inflateErr = c.decodeBody()
	}
	return c.elements, c.inflateErr
}

func (c *CodeAttribute) writeBody(w *bufWriter) error {
	var static bool
	var md desc.MethodDesc
	if c.method != nil {
		static = c.method.flags.IsStatic()
		var err error
		if md, err = c.method.methodDesc(); err != nil {
			return err
		}
	}
	body, err := buildCodeBody(w.session, w.pool, static, md, c, nil)
	if err != nil {
		return err
	}
	w.Write(body)
	return nil
}

func decodeCode(d *attrDecoder) Attribute {
	c := &CodeAttribute{method: d.ctx.method}
	c.maxStack = d.U2()
	c.maxLocals = d.U2()
	at := d.Pos()
	n := d.U4()
	if d.Err() == nil && (n == 0 || n > 0xFFFF) {
		d.Fail(malformed(at, "code length %d", n))
		return c
	}
	c.codeStart = d.Pos()
	c.codeLen = int(n)
	d.Skip(c.codeLen)
	c.excStart = d.Pos()
	d.Skip(8 * d.U2())
	c.attrStart = d.Pos()
	skipAttributes(d.Decoder)
	return c
}

type decodedInstruction struct {
	bci int
	ins Instruction
}

func (c *CodeAttribute) decodeBody() ([]CodeElement, error) {
	r := c.src
	buf := r.buf
	opts := r.opts

	var head []CodeElement
	n := buf.U2(c.excStart)
	for i := 0; i < n; i++ {
		p := c.excStart + 2 + 8*i
		start, end, handler := buf.U2(p), buf.U2(p+2), buf.U2(p+4)
		if start >= end || end > c.codeLen || handler >= c.codeLen {
			return nil, malformed(p, "exception range [%d, %d) handler %d in code of length %d", start, end, handler, c.codeLen)
		}
		ec := ExceptionCatch{Start: c.labels.at(start), End: c.labels.at(end), Handler: c.labels.at(handler)}
		if t := buf.U2(p + 6); t != 0 {
			ct, err := refAt[*ClassEntry](r, p+6, t)
			if err != nil {
				return nil, err
			}
			ec.CatchType = ct
		}
		head = append(head, ec)
	}

	lines := make(map[int][]int)
	var stackMaps, tail []CodeElement
	ctx := attrContext{r: r, holder: holderCode, method: c.method, code: c}
	d := binio.NewDecoder(buf, c.attrStart, c.off+c.length)
	count := d.U2()
	for i := 0; i < count && d.Err() == nil; i++ {
		at := d.Pos()
		name, err := refAt[*Utf8Entry](r, at, d.U2())
		if err != nil {
			return nil, err
		}
		env := attributeEnvelope{name: name, off: at + 6, length: int(d.U4())}
		d.Skip(env.length)
		switch name.value {
		case attrLineNumberTable:
			if opts.dropsLineNumbers() {
				continue
			}
			if err := c.decodeLineNumbers(env, lines); err != nil {
				return nil, err
			}
		case attrLocalVariableTable, attrLocalVariableTypeTable:
			if opts.Has(DropDebugInfo) {
				continue
			}
			vars, err := c.decodeLocalVariables(env)
			if err != nil {
				return nil, err
			}
			head = append(head, vars...)
		default:
			a, err := decodeAttribute(ctx, env, 1)
			if err != nil {
				return nil, err
			}
			ce, ok := a.(CodeElement)
			if !ok {
				ce = &UnknownAttribute{attrBase: *a.attr(), Name: name.value, Data: r.slice(env.off, env.length)}
			}
			switch ce.(type) {
			case *StackMapTableAttribute:
				if !opts.Has(DropStackMaps) {
					stackMaps = append(stackMaps, ce)
				}
			case *UnknownAttribute:
				if !opts.Has(DropUnknownAttributes) {
					tail = append(tail, ce)
				}
			default:
				tail = append(tail, ce)
			}
		}
	}
	if err := d.Err(); err != nil {
		return nil, &DecodeError{Offset: d.Pos(), Reason: "code attribute table", Err: err}
	}

	var insns []decodedInstruction
	starts := make(map[int]bool)
	for bci := 0; bci < c.codeLen; {
		ins, size, err := c.decodeInstruction(bci)
		if err != nil {
			return nil, err
		}
		insns = append(insns, decodedInstruction{bci: bci, ins: ins})
		starts[bci] = true
		bci += size
	}
	for _, off := range c.labels.offsets() {
		if off != c.codeLen && !starts[off] {
			return nil, malformed(c.codeStart+off, "offset %d is referenced but is not an instruction boundary", off)
		}
	}
	for pc := range lines {
		if !starts[pc] {
			return nil, malformed(c.codeStart+pc, "line number at offset %d is not an instruction boundary", pc)
		}
	}

	out := make([]CodeElement, 0, len(head)+2*len(insns)+len(stackMaps)+len(tail)+1)
	out = append(out, head...)
	for _, x := range insns {
		if l, ok := c.labels.lookup(x.bci); ok {
			out = append(out, LabelTarget{Label: l})
		}
		for _, line := range lines[x.bci] {
			out = append(out, LineNumber{Line: line})
		}
		out = append(out, x.ins)
	}
	if l, ok := c.labels.lookup(c.codeLen); ok {
		out = append(out, LabelTarget{Label: l})
	}
	out = append(out, stackMaps...)
	out = append(out, tail...)
	return out, nil
}

func (c *CodeAttribute) decodeLineNumbers(env attributeEnvelope, lines map[int][]int) error {
	buf := c.src.buf
	n := buf.U2(env.off)
	if env.length != 2+4*n {
		return malformed(env.off, "LineNumberTable of %d rows has length %d", n, env.length)
	}
	for i := 0; i < n; i++ {
		p := env.off + 2 + 4*i
		pc := buf.U2(p)
		if pc >= c.codeLen {
			return malformed(p, "line number offset %d beyond code length %d", pc, c.codeLen)
		}
		lines[pc] = append(lines[pc], buf.U2(p+2))
	}
	return nil
}

func (c *CodeAttribute) decodeLocalVariables(env attributeEnvelope) ([]CodeElement, error) {
	r := c.src
	buf := r.buf
	n := buf.U2(env.off)
	if env.length != 2+10*n {
		return nil, malformed(env.off, "%s of %d rows has length %d", env.name.value, n, env.length)
	}
	typed := env.name.value == attrLocalVariableTypeTable
	out := make([]CodeElement, 0, n)
	for i := 0; i < n; i++ {
		p := env.off + 2 + 10*i
		start, length := buf.U2(p), buf.U2(p+2)
		if start+length > c.codeLen {
			return nil, malformed(p, "local variable range [%d, %d) beyond code length %d", start, start+length, c.codeLen)
		}
		name, err := refAt[*Utf8Entry](r, p+4, buf.U2(p+4))
		if err != nil {
			return nil, err
		}
		typ, err := refAt[*Utf8Entry](r, p+6, buf.U2(p+6))
		if err != nil {
			return nil, err
		}
		slot := buf.U2(p + 8)
		startL, endL := c.labels.at(start), c.labels.at(start+length)
		if typed {
			out = append(out, LocalVariableType{Slot: slot, Name: name, Signature: typ, Start: startL, End: endL})
		} else {
			out = append(out, LocalVariable{Slot: slot, Name: name, Type: typ, Start: startL, End: endL})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Instruction decoding
// ---------------------------------------------------------------------------

// decodeInstruction decodes the instruction at offset bci of the body and
// returns it with its length.
func (c *CodeAttribute) decodeInstruction(bci int) (Instruction, int, error) {
	r := c.src
	buf := r.buf
	p := c.codeStart + bci
	fits := func(n int) bool { return bci+n <= c.codeLen }
	target := func(off int) (*Label, error) {
		t := bci + off
		if t < 0 || t >= c.codeLen {
			return nil, malformed(p, "branch at %d to %d outside code of length %d", bci, t, c.codeLen)
		}
		return c.labels.at(t), nil
	}
	truncated := func(op Opcode) (Instruction, int, error) {
		return nil, 0, malformed(p, "%s at %d runs past the end of the code", op, bci)
	}

	op := Opcode(buf.U1(p))
	if op == opWide {
		if !fits(4) {
			return truncated(op)
		}
		op = Opcode(buf.U1(p + 1))
		slot := buf.U2(p + 2)
		switch {
		case op == OpIinc:
			if !fits(6) {
				return truncated(op)
			}
			return IncrementInstruction{Slot: slot, Delta: buf.S2(p + 4)}, 6, nil
		case op >= OpIload && op <= OpAload:
			return LoadInstruction{Op: op, Slot: slot}, 4, nil
		case op >= OpIstore && op <= OpAstore:
			return StoreInstruction{Op: op, Slot: slot}, 4, nil
		case op == OpRet:
			return DiscontinuedInstruction{Op: op, Slot: slot}, 4, nil
		}
		return nil, 0, malformed(p, "wide cannot modify %s", op)
	}

	info, ok := op.Info()
	if !ok {
		return nil, 0, malformed(p, "unknown opcode 0x%02X at %d", byte(op), bci)
	}
	if info.Size > 0 && !fits(info.Size) {
		return truncated(op)
	}

	switch info.Kind {
	case KindLoad:
		if info.Size == 1 {
			slot, _ := op.implicitSlot()
			return LoadInstruction{Op: op, Slot: slot}, 1, nil
		}
		return LoadInstruction{Op: op, Slot: buf.U1(p + 1)}, 2, nil
	case KindStore:
		if info.Size == 1 {
			slot, _ := op.implicitSlot()
			return StoreInstruction{Op: op, Slot: slot}, 1, nil
		}
		return StoreInstruction{Op: op, Slot: buf.U1(p + 1)}, 2, nil
	case KindIncrement:
		return IncrementInstruction{Slot: buf.U1(p + 1), Delta: buf.S1(p + 2)}, 3, nil
	case KindBranch:
		off := buf.S2(p + 1)
		if op == OpGotoW {
			off = int(buf.I4(p + 1))
		}
		l, err := target(off)
		if err != nil {
			return nil, 0, err
		}
		return BranchInstruction{Op: op, Target: l}, info.Size, nil
	case KindTableSwitch, KindLookupSwitch:
		return c.decodeSwitch(op, bci, target)
	case KindConstant:
		switch op {
		case OpBipush:
			return ConstantInstruction{Op: op, Value: buf.S1(p + 1)}, 2, nil
		case OpSipush:
			return ConstantInstruction{Op: op, Value: buf.S2(p + 1)}, 3, nil
		case OpLdc, OpLdcW, OpLdc2W:
			idx := buf.U1(p + 1)
			if op != OpLdc {
				idx = buf.U2(p + 1)
			}
			e, err := refAt[LoadableEntry](r, p+1, idx)
			if err != nil {
				return nil, 0, err
			}
			if wide := e.TypeKind().SlotSize() == 2; wide != (op == OpLdc2W) {
				return nil, 0, malformed(p, "%s cannot load %s", op, e.Tag())
			}
			return ConstantInstruction{Op: op, Entry: e}, info.Size, nil
		}
		return ConstantInstruction{Op: op}, 1, nil
	case KindField:
		f, err := refAt[*FieldRefEntry](r, p+1, buf.U2(p+1))
		if err != nil {
			return nil, 0, err
		}
		return FieldInstruction{Op: op, Field: f}, 3, nil
	case KindInvoke:
		m, err := refAt[MemberRefEntry](r, p+1, buf.U2(p+1))
		if err != nil {
			return nil, 0, err
		}
		if m.Tag() == TagFieldRef || (op == OpInvokeinterface && m.Tag() != TagInterfaceMethodRef) {
			return nil, 0, malformed(p, "%s of %s", op, m.Tag())
		}
		return InvokeInstruction{Op: op, Method: m}, info.Size, nil
	case KindInvokeDynamic:
		site, err := refAt[*InvokeDynamicEntry](r, p+1, buf.U2(p+1))
		if err != nil {
			return nil, 0, err
		}
		return InvokeDynamicInstruction{Site: site}, 5, nil
	case KindNewObject, KindNewReferenceArray, KindTypeCheck, KindNewMultiArray:
		cls, err := refAt[*ClassEntry](r, p+1, buf.U2(p+1))
		if err != nil {
			return nil, 0, err
		}
		switch info.Kind {
		case KindNewObject:
			return NewObjectInstruction{Class: cls}, 3, nil
		case KindNewReferenceArray:
			return NewReferenceArrayInstruction{Component: cls}, 3, nil
		case KindTypeCheck:
			return TypeCheckInstruction{Op: op, Type: cls}, 3, nil
		}
		return NewMultiArrayInstruction{Array: cls, Dimensions: buf.U1(p + 3)}, 4, nil
	case KindNewPrimitiveArray:
		k, ok := primitiveArrayCodes[buf.U1(p+1)]
		if !ok {
			return nil, 0, malformed(p, "newarray of unknown type code %d", buf.U1(p+1))
		}
		return NewPrimitiveArrayInstruction{Component: k}, 2, nil
	case KindDiscontinued:
		if op == OpRet {
			return DiscontinuedInstruction{Op: op, Slot: buf.U1(p + 1)}, 2, nil
		}
		off := buf.S2(p + 1)
		if op == OpJsrW {
			off = int(buf.I4(p + 1))
		}
		l, err := target(off)
		if err != nil {
			return nil, 0, err
		}
		return DiscontinuedInstruction{Op: op, Target: l}, info.Size, nil
	}
	ins, ok := simpleInstruction(op)
	if !ok {
		return nil, 0, malformed(p, "cannot decode %s", op)
	}
	return ins, 1, nil
}

func (c *CodeAttribute) decodeSwitch(op Opcode, bci int, target func(int) (*Label, error)) (Instruction, int, error) {
	buf := c.src.buf
	p := c.codeStart + bci
	pad := (4 - (bci+1)%4) % 4
	q := p + 1 + pad
	fixed := 1 + pad + 8
	if op == OpTableswitch {
		fixed += 4
	}
	if bci+fixed > c.codeLen {
		return nil, 0, malformed(p, "%s at %d runs past the end of the code", op, bci)
	}
	def, err := target(int(buf.I4(q)))
	if err != nil {
		return nil, 0, err
	}
	if op == OpTableswitch {
		low, high := buf.I4(q+4), buf.I4(q+8)
		if high < low {
			return nil, 0, malformed(p, "tableswitch bounds [%d, %d]", low, high)
		}
		n := int64(high) - int64(low) + 1
		size := int64(fixed) + 4*n
		if int64(bci)+size > int64(c.codeLen) {
			return nil, 0, malformed(p, "tableswitch at %d runs past the end of the code", bci)
		}
		ts := TableSwitchInstruction{Low: low, High: high, Default: def, Cases: make([]SwitchCase, 0, n)}
		for i := int64(0); i < n; i++ {
			l, err := target(int(buf.I4(q + 12 + 4*int(i))))
			if err != nil {
				return nil, 0, err
			}
			ts.Cases = append(ts.Cases, SwitchCase{Value: low + int32(i), Target: l})
		}
		return ts, int(size), nil
	}
	npairs := buf.I4(q + 4)
	if npairs < 0 {
		return nil, 0, malformed(p, "lookupswitch with %d pairs", npairs)
	}
	size := int64(fixed) + 8*int64(npairs)
	if int64(bci)+size > int64(c.codeLen) {
		return nil, 0, malformed(p, "lookupswitch at %d runs past the end of the code", bci)
	}
	ls := LookupSwitchInstruction{Default: def, Cases: make([]SwitchCase, 0, npairs)}
	for i := 0; i < int(npairs); i++ {
		pq := q + 8 + 8*i
		l, err := target(int(buf.I4(pq + 4)))
		if err != nil {
			return nil, 0, err
		}
		ls.Cases = append(ls.Cases, SwitchCase{Value: buf.I4(pq), Target: l})
	}
	return ls, int(size), nil
}
