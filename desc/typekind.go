package desc

// TypeKind is the computational kind of a value: one of the primitive kinds,
// a reference, or void.
type TypeKind uint8

const (
	Byte TypeKind = iota + 1
	Short
	Char
	Int
	Long
	Float
	Double
	Boolean
	Reference
	Void
)

var typeKindNames = [...]string{
	Byte:      "byte",
	Short:     "short",
	Char:      "char",
	Int:       "int",
	Long:      "long",
	Float:     "float",
	Double:    "double",
	Boolean:   "boolean",
	Reference: "reference",
	Void:      "void",
}

var typeKindDescriptors = [...]string{
	Byte:      "B",
	Short:     "S",
	Char:      "C",
	Int:       "I",
	Long:      "J",
	Float:     "F",
	Double:    "D",
	Boolean:   "Z",
	Reference: "Ljava/lang/Object;",
	Void:      "V",
}

// String returns the Java name of the kind.
func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) && typeKindNames[k] != "" {
		return typeKindNames[k]
	}
	return "invalid"
}

// Descriptor returns the one-character descriptor of a primitive or void
// kind, and the descriptor of java/lang/Object for Reference.
func (k TypeKind) Descriptor() string {
	if int(k) < len(typeKindDescriptors) {
		return typeKindDescriptors[k]
	}
	return ""
}

// SlotSize returns the number of local or stack slots a value occupies.
func (k TypeKind) SlotSize() int {
	switch k {
	case Long, Double:
		return 2
	case Void:
		return 0
	default:
		return 1
	}
}

// IsPrimitive reports whether k is neither Reference nor Void.
func (k TypeKind) IsPrimitive() bool {
	return k >= Byte && k <= Boolean
}

// Computational widens the sub-int kinds to Int, the way the operand stack
// holds them.
func (k TypeKind) Computational() TypeKind {
	switch k {
	case Byte, Short, Char, Boolean:
		return Int
	}
	return k
}

// KindOf returns the kind named by the first character of a field or return
// descriptor, or 0 if it is not a valid descriptor start.
func KindOf(descriptor string) TypeKind {
	if descriptor == "" {
		return 0
	}
	switch descriptor[0] {
	case 'B':
		return Byte
	case 'S':
		return Short
	case 'C':
		return Char
	case 'I':
		return Int
	case 'J':
		return Long
	case 'F':
		return Float
	case 'D':
		return Double
	case 'Z':
		return Boolean
	case 'V':
		return Void
	case 'L', '[':
		return Reference
	}
	return 0
}
