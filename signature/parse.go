package signature

import "fmt"

// ParseClass parses a class signature.
func ParseClass(s string) (*ClassSig, error) {
	p := &parser{s: s}
	sig := &ClassSig{}
	sig.TypeParams = p.typeParams()
	sig.Super = p.classType()
	for p.err == nil && p.i < len(p.s) {
		sig.Interfaces = append(sig.Interfaces, p.classType())
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return sig, nil
}

// ParseMethod parses a method signature.
func ParseMethod(s string) (*MethodSig, error) {
	p := &parser{s: s}
	sig := &MethodSig{}
	sig.TypeParams = p.typeParams()
	p.expect('(')
	for p.err == nil && p.peek() != ')' {
		sig.Params = append(sig.Params, p.javaType())
	}
	p.expect(')')
	if p.peek() == 'V' {
		p.i++
		sig.Result = BaseType{Descriptor: 'V'}
	} else {
		sig.Result = p.javaType()
	}
	for p.err == nil && p.peek() == '^' {
		p.i++
		if p.peek() == 'T' {
			sig.Throws = append(sig.Throws, p.typeVar())
		} else {
			sig.Throws = append(sig.Throws, p.classType())
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return sig, nil
}

// ParseType parses a single type signature, as found on fields, record
// components and local variables.
func ParseType(s string) (Type, error) {
	p := &parser{s: s}
	t := p.javaType()
	if err := p.finish(); err != nil {
		return nil, err
	}
	return t, nil
}

type parser struct {
	s   string
	i   int
	err error
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %q at %d: %s", ErrInvalidSignature, p.s, p.i, fmt.Sprintf(format, args...))
	}
}

func (p *parser) finish() error {
	if p.err == nil && p.i != len(p.s) {
		p.fail("trailing characters")
	}
	return p.err
}

func (p *parser) peek() byte {
	if p.err != nil || p.i >= len(p.s) {
		return 0
	}
	return p.s[p.i]
}

func (p *parser) expect(c byte) {
	if p.peek() != c {
		p.fail("expected %q", c)
		return
	}
	p.i++
}

// identifier reads up to the first character in stop.
func (p *parser) identifier(stop string) string {
	start := p.i
	for p.err == nil && p.i < len(p.s) {
		c := p.s[p.i]
		found := false
		for j := 0; j < len(stop); j++ {
			if c == stop[j] {
				found = true
				break
			}
		}
		if found {
			break
		}
		p.i++
	}
	if p.i == start {
		p.fail("expected identifier")
	}
	return p.s[start:p.i]
}

func (p *parser) typeParams() []TypeParam {
	if p.peek() != '<' {
		return nil
	}
	p.i++
	var ps []TypeParam
	for p.err == nil && p.peek() != '>' {
		tp := TypeParam{Name: p.identifier(":<>;/.[")}
		p.expect(':')
		switch p.peek() {
		case 'L', 'T', '[':
			tp.ClassBound = p.referenceType()
		}
		for p.err == nil && p.peek() == ':' {
			p.i++
			tp.InterfaceBounds = append(tp.InterfaceBounds, p.referenceType())
		}
		ps = append(ps, tp)
	}
	p.expect('>')
	if p.err == nil && len(ps) == 0 {
		p.fail("empty type parameter list")
	}
	return ps
}

func (p *parser) javaType() Type {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.i++
		return BaseType{Descriptor: c}
	}
	return p.referenceType()
}

func (p *parser) referenceType() Type {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		return p.typeVar()
	case '[':
		p.i++
		return ArrayType{Component: p.javaType()}
	}
	p.fail("expected reference type")
	return nil
}

func (p *parser) typeVar() Type {
	p.expect('T')
	name := p.identifier(";<>:/.[")
	p.expect(';')
	return TypeVar{Name: name}
}

func (p *parser) classType() *ClassType {
	p.expect('L')
	ct := &ClassType{Name: p.identifier("<.;")}
	ct.Args = p.typeArgs()
	for p.err == nil && p.peek() == '.' {
		p.i++
		inner := &ClassType{Outer: ct, Name: p.identifier("<.;/")}
		inner.Args = p.typeArgs()
		ct = inner
	}
	p.expect(';')
	return ct
}

func (p *parser) typeArgs() []TypeArg {
	if p.peek() != '<' {
		return nil
	}
	p.i++
	var args []TypeArg
	for p.err == nil && p.peek() != '>' {
		switch c := p.peek(); c {
		case '*':
			p.i++
			args = append(args, TypeArg{Wildcard: Unbounded})
		case '+', '-':
			p.i++
			args = append(args, TypeArg{Wildcard: Wildcard(c), Type: p.referenceType()})
		default:
			args = append(args, TypeArg{Type: p.referenceType()})
		}
	}
	p.expect('>')
	if p.err == nil && len(args) == 0 {
		p.fail("empty type argument list")
	}
	return args
}
