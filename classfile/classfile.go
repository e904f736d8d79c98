package classfile

// Parse decodes the header and structure of a classfile. Entries and
// attributes are decoded on first use, so later calls can still report
// malformed input. b must not be modified while the model is in use.
func Parse(b []byte, opts ...Option) (*ClassModel, error) {
	r, err := newReader(b, combine(opts))
	if err != nil {
		return nil, err
	}
	return newClassModel(r)
}

// Build creates a classfile for thisClass, given in internal form. An empty
// superClass leaves the class without a superclass. configure supplies the
// remaining elements; its error aborts the build and is returned unchanged.
func Build(thisClass, superClass string, configure func(ClassBuilder) error, opts ...Option) ([]byte, error) {
	s := &buildSession{opts: combine(opts)}
	pool := NewPoolBuilder()
	b := newDirectClassBuilder(s, pool, pool.ClassEntry(thisClass), nil)
	if superClass != "" {
		b.super = pool.ClassEntry(superClass)
	}
	if err := configure(b); err != nil {
		return nil, err
	}
	return b.build()
}

// Transform replays the class through t and returns the rebuilt classfile.
// Unless the model was parsed with NoPoolSharing, the output starts from a
// copy of the original constant pool and copies unchanged members verbatim.
func (m *ClassModel) Transform(t ClassTransform) ([]byte, error) {
	return m.transform("", t)
}

// TransformAs is Transform with the class renamed to newName. References to
// the old name elsewhere in the class are left as they are.
func (m *ClassModel) TransformAs(newName string, t ClassTransform) ([]byte, error) {
	if newName == "" {
		return nil, misuse("empty class name")
	}
	return m.transform(newName, t)
}

func (m *ClassModel) transform(newName string, t ClassTransform) ([]byte, error) {
	opts := m.r.opts
	s := &buildSession{opts: opts}
	var pool *PoolBuilder
	if opts.Has(NoPoolSharing) {
		pool = NewPoolBuilder()
	} else {
		pool = newPoolBuilder(m.r)
	}
	this := m.this
	if newName != "" {
		this = pool.ClassEntry(newName)
	}
	b := newDirectClassBuilder(s, pool, this, m)
	if err := runClass(m, t, b); err != nil {
		return nil, err
	}
	return b.build()
}
