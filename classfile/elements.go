package classfile

// ClassElement is an element of a class traversal: AccessFlags, Version,
// Superclass, Interfaces, a FieldModel, a MethodModel or a class attribute.
type ClassElement interface {
	classElement()
}

// FieldElement is AccessFlags or a field attribute.
type FieldElement interface {
	fieldElement()
}

// MethodElement is AccessFlags, a CodeModel or a method attribute.
type MethodElement interface {
	methodElement()
}

// CodeElement is an Instruction, a pseudo-instruction or a code attribute.
type CodeElement interface {
	codeElement()
}

// Version sets the classfile version.
type Version struct {
	Major int
	Minor int
}

func (Version) classElement() {}

// Superclass sets the direct superclass.
type Superclass struct {
	Class *ClassEntry
}

func (Superclass) classElement() {}

// Interfaces sets the direct superinterfaces, replacing any earlier list.
type Interfaces struct {
	Classes []*ClassEntry
}

func (Interfaces) classElement() {}
