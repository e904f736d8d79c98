package classfile

import (
	"fmt"

	"github.com/chazu/cfx/binio"
)

// holderKind is the kind of structure an attribute table belongs to.
type holderKind uint8

const (
	holderClass holderKind = 1 << iota
	holderField
	holderMethod
	holderCode
	holderRecordComponent
)

// maxNesting bounds the recursion of nested annotations and attribute
// tables.
const maxNesting = 64

type attrMapper struct {
	holders holderKind
	decode  func(d *attrDecoder) Attribute
}

var attrMappers map[string]attrMapper

func init() {
	const (
		cls  = holderClass
		fld  = holderField
		mth  = holderMethod
		code = holderCode
		rc   = holderRecordComponent
	)
	attrMappers = map[string]attrMapper{
		attrSourceFile:              {cls, decodeSourceFile},
		attrSourceDebugExtension:    {cls, decodeSourceDebugExtension},
		attrInnerClasses:            {cls, decodeInnerClasses},
		attrEnclosingMethod:         {cls, decodeEnclosingMethod},
		attrNestHost:                {cls, decodeNestHost},
		attrNestMembers:             {cls, decodeNestMembers},
		attrPermittedSubclasses:     {cls, decodePermittedSubclasses},
		attrRecord:                  {cls, decodeRecord},
		attrModule:                  {cls, decodeModule},
		attrSignature:               {cls | fld | mth | rc, decodeSignature},
		attrDeprecated:              {cls | fld | mth, decodeDeprecated},
		attrSynthetic:               {cls | fld | mth, decodeSynthetic},
		attrConstantValue:           {fld, decodeConstantValue},
		attrExceptions:              {mth, decodeExceptions},
		attrMethodParameters:        {mth, decodeMethodParameters},
		attrAnnotationDefault:       {mth, decodeAnnotationDefault},
		attrCode:                    {mth, decodeCode},
		attrStackMapTable:           {code, decodeStackMapTable},
		attrRuntimeVisibleAnnotations:            {cls | fld | mth | rc, decodeAnnotations(true)},
		attrRuntimeInvisibleAnnotations:          {cls | fld | mth | rc, decodeAnnotations(false)},
		attrRuntimeVisibleParameterAnnotations:   {mth, decodeParameterAnnotations(true)},
		attrRuntimeInvisibleParameterAnnotations: {mth, decodeParameterAnnotations(false)},
		attrRuntimeVisibleTypeAnnotations:        {cls | fld | mth | code | rc, decodeTypeAnnotations(true)},
		attrRuntimeInvisibleTypeAnnotations:      {cls | fld | mth | code | rc, decodeTypeAnnotations(false)},
	}
}

// attrContext is what an attribute decoder may need beyond its bytes.
type attrContext struct {
	r      *Reader
	holder holderKind
	method *boundMethod    // Code, and attributes nested in Code
	code   *CodeAttribute  // attributes nested in Code
}

// attrDecoder reads one attribute body. Errors are sticky, like the
// underlying binio.Decoder.
type attrDecoder struct {
	*binio.Decoder
	ctx   attrContext
	depth int
}

func (d *attrDecoder) enter() bool {
	if d.depth >= maxNesting {
		if d.Err() == nil {
			d.Fail(malformed(d.Pos(), "nesting deeper than %d", maxNesting))
		}
		return false
	}
	d.depth++
	return true
}

func (d *attrDecoder) leave() { d.depth-- }

// readRef reads a u2 index and resolves it to an entry of type T.
func readRef[T Entry](d *attrDecoder) T {
	var zero T
	at := d.Pos()
	i := d.U2()
	if d.Err() != nil {
		return zero
	}
	e, err := refAt[T](d.ctx.r, at, i)
	if err != nil {
		d.Fail(err)
		return zero
	}
	return e
}

// readOptRef is readRef where index 0 means absent.
func readOptRef[T Entry](d *attrDecoder) T {
	var zero T
	at := d.Pos()
	i := d.U2()
	if d.Err() != nil || i == 0 {
		return zero
	}
	e, err := refAt[T](d.ctx.r, at, i)
	if err != nil {
		d.Fail(err)
		return zero
	}
	return e
}

// readRefs reads a u2 count followed by that many indices.
func readRefs[T Entry](d *attrDecoder) []T {
	n := d.U2()
	var out []T
	for i := 0; i < n && d.Err() == nil; i++ {
		out = append(out, readRef[T](d))
	}
	return out
}

// readAttributeTable decodes an attribute table at off. BootstrapMethods is
// owned by the pool and never surfaces as a class attribute.
func readAttributeTable(ctx attrContext, off, end int) ([]Attribute, error) {
	d := binio.NewDecoder(ctx.r.buf, off, end)
	return readAttributes(ctx, d, 0)
}

func readAttributes(ctx attrContext, d *binio.Decoder, depth int) ([]Attribute, error) {
	n := d.U2()
	var out []Attribute
	for i := 0; i < n && d.Err() == nil; i++ {
		at := d.Pos()
		name, err := refAt[*Utf8Entry](ctx.r, at, d.U2())
		if err != nil {
			return nil, err
		}
		length := d.U4()
		if uint64(length) > uint64(d.Remaining()) {
			return nil, malformed(at, "attribute %s length %d exceeds remaining %d bytes", name.value, length, d.Remaining())
		}
		env := attributeEnvelope{name: name, off: d.Pos(), length: int(length)}
		d.Skip(int(length))
		if ctx.holder == holderClass && name.value == attrBootstrapMethods {
			continue
		}
		a, err := decodeAttribute(ctx, env, depth)
		if err != nil {
			return nil, err
		}
		if _, unknown := a.(*UnknownAttribute); unknown && ctx.r.opts.Has(DropUnknownAttributes) {
			log.Debugf("dropping unknown attribute %s", name.value)
			continue
		}
		out = append(out, a)
	}
	if err := d.Err(); err != nil {
		return nil, &DecodeError{Offset: d.Pos(), Reason: "attribute table", Err: err}
	}
	return out, nil
}

// decodeAttribute decodes one attribute body. Names without a decoder for
// this holder become UnknownAttribute.
func decodeAttribute(ctx attrContext, env attributeEnvelope, depth int) (Attribute, error) {
	var a Attribute
	m, ok := attrMappers[env.name.value]
	if ok && m.holders&ctx.holder != 0 {
		d := &attrDecoder{
			Decoder: binio.NewDecoder(ctx.r.buf, env.off, env.off+env.length),
			ctx:     ctx,
			depth:   depth,
		}
		a = m.decode(d)
		if err := d.Err(); err != nil {
			return nil, &DecodeError{Offset: env.off, Reason: "attribute " + env.name.value, Err: err}
		}
		if d.Remaining() != 0 {
			return nil, malformed(d.Pos(), "%d trailing bytes in attribute %s", d.Remaining(), env.name.value)
		}
	} else {
		a = &UnknownAttribute{Name: env.name.value, Data: ctx.r.slice(env.off, env.length)}
	}
	*a.attr() = attrBase{src: ctx.r, off: env.off, length: env.length}
	return a, nil
}

// ---------------------------------------------------------------------------
// Decoders
// ---------------------------------------------------------------------------

func decodeSourceFile(d *attrDecoder) Attribute {
	return &SourceFileAttribute{SourceFile: readRef[*Utf8Entry](d)}
}

func decodeSourceDebugExtension(d *attrDecoder) Attribute {
	return &SourceDebugExtensionAttribute{Data: d.Bytes(d.Remaining())}
}

func decodeInnerClasses(d *attrDecoder) Attribute {
	a := &InnerClassesAttribute{}
	n := d.U2()
	for i := 0; i < n && d.Err() == nil; i++ {
		var c InnerClassInfo
		c.Inner = readRef[*ClassEntry](d)
		c.Outer = readOptRef[*ClassEntry](d)
		c.Name = readOptRef[*Utf8Entry](d)
		c.Flags = AccessFlags(d.U2())
		a.Classes = append(a.Classes, c)
	}
	return a
}

func decodeEnclosingMethod(d *attrDecoder) Attribute {
	a := &EnclosingMethodAttribute{Class: readRef[*ClassEntry](d)}
	a.Method = readOptRef[*NameAndTypeEntry](d)
	return a
}

func decodeNestHost(d *attrDecoder) Attribute {
	return &NestHostAttribute{Host: readRef[*ClassEntry](d)}
}

func decodeNestMembers(d *attrDecoder) Attribute {
	return &NestMembersAttribute{Members: readRefs[*ClassEntry](d)}
}

func decodePermittedSubclasses(d *attrDecoder) Attribute {
	return &PermittedSubclassesAttribute{Subclasses: readRefs[*ClassEntry](d)}
}

func decodeRecord(d *attrDecoder) Attribute {
	a := &RecordAttribute{}
	n := d.U2()
	ctx := d.ctx
	ctx.holder = holderRecordComponent
	for i := 0; i < n && d.Err() == nil; i++ {
		var c RecordComponent
		c.Name = readRef[*Utf8Entry](d)
		c.Descriptor = readRef[*Utf8Entry](d)
		if d.Err() != nil || !d.enter() {
			break
		}
		attrs, err := readAttributes(ctx, d.Decoder, d.depth)
		d.leave()
		if err != nil {
			d.Fail(err)
			break
		}
		c.Attributes = attrs
		a.Components = append(a.Components, c)
	}
	return a
}

func decodeModule(d *attrDecoder) Attribute {
	a := &ModuleAttribute{Module: readRef[*ModuleEntry](d)}
	a.Flags = d.U2()
	a.Version = readOptRef[*Utf8Entry](d)
	n := d.U2()
	for i := 0; i < n && d.Err() == nil; i++ {
		var r ModuleRequire
		r.Module = readRef[*ModuleEntry](d)
		r.Flags = d.U2()
		r.Version = readOptRef[*Utf8Entry](d)
		a.Requires = append(a.Requires, r)
	}
	a.Exports = decodeModuleExports(d)
	a.Opens = decodeModuleExports(d)
	a.Uses = readRefs[*ClassEntry](d)
	n = d.U2()
	for i := 0; i < n && d.Err() == nil; i++ {
		var p ModuleProvide
		p.Service = readRef[*ClassEntry](d)
		p.With = readRefs[*ClassEntry](d)
		a.Provides = append(a.Provides, p)
	}
	return a
}

func decodeModuleExports(d *attrDecoder) []ModuleExport {
	n := d.U2()
	var out []ModuleExport
	for i := 0; i < n && d.Err() == nil; i++ {
		var e ModuleExport
		e.Package = readRef[*PackageEntry](d)
		e.Flags = d.U2()
		e.To = readRefs[*ModuleEntry](d)
		out = append(out, e)
	}
	return out
}

func decodeSignature(d *attrDecoder) Attribute {
	return &SignatureAttribute{Signature: readRef[*Utf8Entry](d)}
}

func decodeDeprecated(*attrDecoder) Attribute { return &DeprecatedAttribute{} }

func decodeSynthetic(*attrDecoder) Attribute { return &SyntheticAttribute{} }

func decodeConstantValue(d *attrDecoder) Attribute {
	at := d.Pos()
	v := readRef[LoadableEntry](d)
	switch v.(type) {
	case *IntegerEntry, *FloatEntry, *LongEntry, *DoubleEntry, *StringEntry:
	default:
		if d.Err() == nil {
			d.Fail(&DecodeError{Offset: at, Reason: fmt.Sprintf("ConstantValue of kind %s", v.Tag()), Err: ErrTypeMismatch})
		}
	}
	return &ConstantValueAttribute{Value: v}
}

func decodeExceptions(d *attrDecoder) Attribute {
	return &ExceptionsAttribute{Exceptions: readRefs[*ClassEntry](d)}
}

func decodeMethodParameters(d *attrDecoder) Attribute {
	a := &MethodParametersAttribute{}
	n := d.U1()
	for i := 0; i < n && d.Err() == nil; i++ {
		var p MethodParameter
		p.Name = readOptRef[*Utf8Entry](d)
		p.Flags = AccessFlags(d.U2())
		a.Parameters = append(a.Parameters, p)
	}
	return a
}

func decodeAnnotationDefault(d *attrDecoder) Attribute {
	return &AnnotationDefaultAttribute{Value: d.annotationValue()}
}
