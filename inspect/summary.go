package inspect

import (
	"fmt"
	"sort"

	"github.com/chazu/cfx/classfile"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cfx.inspect")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("inspect: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Summary is the outline of a classfile: its shape without code.
type Summary struct {
	Name       string          `cbor:"1,keyasint" json:"name"`
	Super      string          `cbor:"2,keyasint,omitempty" json:"super,omitempty"`
	Interfaces []string        `cbor:"3,keyasint,omitempty" json:"interfaces,omitempty"`
	Major      int             `cbor:"4,keyasint" json:"major"`
	Minor      int             `cbor:"5,keyasint,omitempty" json:"minor,omitempty"`
	Flags      uint16          `cbor:"6,keyasint" json:"flags"`
	Fields     []MemberSummary `cbor:"7,keyasint,omitempty" json:"fields,omitempty"`
	Methods    []MemberSummary `cbor:"8,keyasint,omitempty" json:"methods,omitempty"`
	Attributes []string        `cbor:"9,keyasint,omitempty" json:"attributes,omitempty"`
	PoolSize   int             `cbor:"10,keyasint" json:"poolSize"`
	// References lists every class named in the constant pool, sorted.
	References []string `cbor:"11,keyasint,omitempty" json:"references,omitempty"`
}

// MemberSummary outlines a field or method. The code fields are zero for
// fields and for methods without a body.
type MemberSummary struct {
	Name       string   `cbor:"1,keyasint" json:"name"`
	Descriptor string   `cbor:"2,keyasint" json:"descriptor"`
	Flags      uint16   `cbor:"3,keyasint" json:"flags"`
	Attributes []string `cbor:"4,keyasint,omitempty" json:"attributes,omitempty"`
	CodeLength int      `cbor:"5,keyasint,omitempty" json:"codeLength,omitempty"`
	MaxStack   int      `cbor:"6,keyasint,omitempty" json:"maxStack,omitempty"`
	MaxLocals  int      `cbor:"7,keyasint,omitempty" json:"maxLocals,omitempty"`
}

// Summarize outlines m.
func Summarize(m *classfile.ClassModel) (*Summary, error) {
	s := &Summary{
		Name:     m.ThisClass().InternalName(),
		Major:    m.MajorVersion(),
		Minor:    m.MinorVersion(),
		Flags:    uint16(m.Flags()),
		PoolSize: m.ConstantPool().Size(),
	}
	if sup := m.Superclass(); sup != nil {
		s.Super = sup.InternalName()
	}
	for _, i := range m.Interfaces() {
		s.Interfaces = append(s.Interfaces, i.InternalName())
	}
	attrs, err := m.Attributes()
	if err != nil {
		return nil, err
	}
	s.Attributes = attributeNames(attrs)

	for _, f := range m.Fields() {
		attrs, err := f.Attributes()
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, MemberSummary{
			Name:       f.Name().String(),
			Descriptor: f.Descriptor().String(),
			Flags:      uint16(f.Flags()),
			Attributes: attributeNames(attrs),
		})
	}
	for _, mm := range m.Methods() {
		attrs, err := mm.Attributes()
		if err != nil {
			return nil, err
		}
		ms := MemberSummary{
			Name:       mm.Name().String(),
			Descriptor: mm.Descriptor().String(),
			Flags:      uint16(mm.Flags()),
			Attributes: attributeNames(attrs),
		}
		if c, ok := classfile.FindAttribute[*classfile.CodeAttribute](attrs); ok {
			ms.CodeLength = len(c.Bytes())
			ms.MaxStack = c.MaxStack()
			ms.MaxLocals = c.MaxLocals()
		}
		s.Methods = append(s.Methods, ms)
	}

	s.References = references(m.ConstantPool())
	log.Debugf("summarized %s: %d fields, %d methods, %d references", s.Name, len(s.Fields), len(s.Methods), len(s.References))
	return s, nil
}

func attributeNames(attrs []classfile.Attribute) []string {
	var names []string
	for _, a := range attrs {
		names = append(names, a.AttributeName())
	}
	return names
}

func references(pool classfile.ConstantPool) []string {
	seen := map[string]bool{}
	for i := 1; i < pool.Size(); i++ {
		e, err := pool.EntryByIndex(i)
		if err != nil {
			continue
		}
		if c, ok := e.(*classfile.ClassEntry); ok {
			seen[c.InternalName()] = true
		}
	}
	refs := make([]string, 0, len(seen))
	for n := range seen {
		refs = append(refs, n)
	}
	sort.Strings(refs)
	return refs
}

// MarshalSummary encodes s as canonical CBOR.
func MarshalSummary(s *Summary) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSummary decodes a summary written by MarshalSummary.
func UnmarshalSummary(data []byte) (*Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("inspect: unmarshal summary: %w", err)
	}
	return &s, nil
}
