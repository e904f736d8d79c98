package classfile

import "sort"

// Label marks a position in a code body: a branch target, the bounds of an
// exception range or local variable scope, or a stack map frame. Labels are
// compared by identity and are scoped to one code body.
type Label struct {
	bci int // offset in the decoded body, -1 for builder labels
}

func newLabel() *Label { return &Label{bci: -1} }

// labelTable holds the labels of a decoded body, one per offset.
type labelTable struct {
	byBCI map[int]*Label
}

func (t *labelTable) at(bci int) *Label {
	if t.byBCI == nil {
		t.byBCI = make(map[int]*Label)
	}
	l, ok := t.byBCI[bci]
	if !ok {
		l = &Label{bci: bci}
		t.byBCI[bci] = l
	}
	return l
}

func (t *labelTable) lookup(bci int) (*Label, bool) {
	l, ok := t.byBCI[bci]
	return l, ok
}

// offsets returns the labelled offsets in increasing order.
func (t *labelTable) offsets() []int {
	out := make([]int, 0, len(t.byBCI))
	for bci := range t.byBCI {
		out = append(out, bci)
	}
	sort.Ints(out)
	return out
}
