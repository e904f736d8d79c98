package classfile

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("cfx.classfile")

// Option is a set of flags controlling decoding and building. Options are
// combined with | or passed variadically.
type Option uint32

const (
	// DropDebugInfo omits line numbers, local variable and local variable
	// type tables while traversing code.
	DropDebugInfo Option = 1 << iota
	// DropLineNumbers omits only line numbers.
	DropLineNumbers
	// DropUnknownAttributes omits attributes without a known layout.
	DropUnknownAttributes
	// DropStackMaps omits StackMapTable attributes from traversal and output.
	DropStackMaps
	// NoPoolSharing builds output with a fresh constant pool instead of one
	// seeded from the source classfile, so nothing is copied verbatim.
	NoPoolSharing
	// KeepMaxStack writes the source body's declared max_stack instead of
	// the computed value when rebuilding code.
	KeepMaxStack
)

// DefaultMajorVersion is the classfile version written by Build when no
// Version element is supplied.
const DefaultMajorVersion = 52

func combine(opts []Option) Option {
	var o Option
	for _, x := range opts {
		o |= x
	}
	return o
}

// Has reports whether every flag of x is set.
func (o Option) Has(x Option) bool { return o&x == x }

func (o Option) dropsLineNumbers() bool {
	return o&(DropDebugInfo|DropLineNumbers) != 0
}
