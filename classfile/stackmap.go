package classfile

import (
	"sort"

	"github.com/chazu/cfx/desc"
)

// Verification type tags of a stack map frame.
const (
	VtTop byte = iota
	VtInteger
	VtFloat
	VtDouble
	VtLong
	VtNull
	VtUninitializedThis
	VtObject
	VtUninitialized
)

// VerificationType is a stack map value type. ClassName is set for VtObject,
// New (the label of the new instruction) for VtUninitialized.
type VerificationType struct {
	Tag       byte
	ClassName string
	New       *Label
}

// StackMapFrame is the verifier state at Target. Long and double values take
// a single entry.
type StackMapFrame struct {
	Target *Label
	Locals []VerificationType
	Stack  []VerificationType
}

// StackMapTableAttribute is the stack map of a code body, with every frame
// expanded to its full locals and stack. It is written back as full frames.
type StackMapTableAttribute struct {
	attrBase
	Frames []StackMapFrame
}

func (*StackMapTableAttribute) AttributeName() string { return attrStackMapTable }
func (*StackMapTableAttribute) codeElement()          {}

func decodeStackMapTable(d *attrDecoder) Attribute {
	a := &StackMapTableAttribute{}
	c := d.ctx.code
	if c == nil {
		d.Fail(malformed(d.Pos(), "StackMapTable outside a code body"))
		return a
	}
	locals, err := initialFrameLocals(d.ctx.method)
	if err != nil {
		d.Fail(err)
		return a
	}
	n := d.U2()
	bci := -1
	for i := 0; i < n && d.Err() == nil; i++ {
		at := d.Pos()
		ft := d.U1()
		var delta int
		var stack []VerificationType
		switch {
		case ft <= 63:
			delta = ft
		case ft <= 127:
			delta = ft - 64
			stack = []VerificationType{d.verificationType(c)}
		case ft < 247:
			d.Fail(malformed(at, "reserved frame type %d", ft))
			return a
		case ft == 247:
			delta = d.U2()
			stack = []VerificationType{d.verificationType(c)}
		case ft <= 250:
			delta = d.U2()
			k := 251 - ft
			if k > len(locals) {
				d.Fail(malformed(at, "chop frame removes %d of %d locals", k, len(locals)))
				return a
			}
			locals = locals[:len(locals)-k:len(locals)-k]
		case ft == 251:
			delta = d.U2()
		case ft <= 254:
			delta = d.U2()
			for k := ft - 251; k > 0; k-- {
				locals = append(locals, d.verificationType(c))
			}
		default:
			delta = d.U2()
			locals = d.verificationTypes(c)
			stack = d.verificationTypes(c)
		}
		if bci < 0 {
			bci = delta
		} else {
			bci += delta + 1
		}
		if d.Err() != nil {
			break
		}
		if bci >= c.codeLen {
			d.Fail(malformed(at, "frame at offset %d beyond code length %d", bci, c.codeLen))
			break
		}
		a.Frames = append(a.Frames, StackMapFrame{
			Target: c.labels.at(bci),
			Locals: append([]VerificationType(nil), locals...),
			Stack:  stack,
		})
	}
	return a
}

func (d *attrDecoder) verificationTypes(c *CodeAttribute) []VerificationType {
	n := d.U2()
	var out []VerificationType
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, d.verificationType(c))
	}
	return out
}

func (d *attrDecoder) verificationType(c *CodeAttribute) VerificationType {
	at := d.Pos()
	v := VerificationType{Tag: byte(d.U1())}
	switch v.Tag {
	case VtTop, VtInteger, VtFloat, VtDouble, VtLong, VtNull, VtUninitializedThis:
	case VtObject:
		if cls := readRef[*ClassEntry](d); cls != nil {
			v.ClassName = cls.InternalName()
		}
	case VtUninitialized:
		off := d.U2()
		if off >= c.codeLen {
			d.Fail(malformed(at, "uninitialized value created at %d beyond code length %d", off, c.codeLen))
			return v
		}
		v.New = c.labels.at(off)
	default:
		d.Fail(malformed(at, "unknown verification type %d", v.Tag))
	}
	return v
}

// initialFrameLocals derives the implicit first frame from the method's
// receiver and parameters.
func initialFrameLocals(m *boundMethod) ([]VerificationType, error) {
	if m == nil {
		return nil, nil
	}
	md, err := desc.ParseMethod(m.desc.value)
	if err != nil {
		return nil, err
	}
	var locals []VerificationType
	if !m.flags.IsStatic() {
		if m.name.value == "<init>" {
			locals = append(locals, VerificationType{Tag: VtUninitializedThis})
		} else {
			locals = append(locals, VerificationType{Tag: VtObject, ClassName: m.class.this.InternalName()})
		}
	}
	for _, p := range md.Params {
		locals = append(locals, verificationTypeOf(p))
	}
	return locals, nil
}

func verificationTypeOf(d desc.ClassDesc) VerificationType {
	switch d.Kind() {
	case desc.Long:
		return VerificationType{Tag: VtLong}
	case desc.Double:
		return VerificationType{Tag: VtDouble}
	case desc.Float:
		return VerificationType{Tag: VtFloat}
	case desc.Reference:
		return VerificationType{Tag: VtObject, ClassName: d.InternalName()}
	}
	return VerificationType{Tag: VtInteger}
}

func (a *StackMapTableAttribute) writeBody(w *bufWriter) error {
	if w.labels == nil {
		return misuse("StackMapTable outside a code body")
	}
	type placed struct {
		off   int
		frame StackMapFrame
	}
	frames := make([]placed, 0, len(a.Frames))
	for _, f := range a.Frames {
		off, err := w.labels(f.Target)
		if err != nil {
			return err
		}
		frames = append(frames, placed{off: off, frame: f})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].off < frames[j].off })
	w.count(len(frames))
	prev := -1
	for _, p := range frames {
		if p.off == prev {
			return misuse("two stack map frames at offset %d", p.off)
		}
		w.U1(255)
		w.U2(p.off - prev - 1)
		for _, vs := range [][]VerificationType{p.frame.Locals, p.frame.Stack} {
			w.count(len(vs))
			for _, v := range vs {
				if err := writeVerificationType(w, v); err != nil {
					return err
				}
			}
		}
		prev = p.off
	}
	return nil
}

func writeVerificationType(w *bufWriter, v VerificationType) error {
	w.U1(int(v.Tag))
	switch v.Tag {
	case VtObject:
		w.ref(w.pool.ClassEntry(v.ClassName))
	case VtUninitialized:
		off, err := w.labels(v.New)
		if err != nil {
			return err
		}
		w.U2(off)
	}
	return nil
}
