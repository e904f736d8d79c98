package classfile

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error Types
// ---------------------------------------------------------------------------

var (
	ErrMalformed     = errors.New("malformed classfile")
	ErrTypeMismatch  = errors.New("constant pool entry has the wrong kind")
	ErrBuilderMisuse = errors.New("builder misuse")

	ErrUnresolvedLabel    = fmt.Errorf("%w: unresolved label", ErrBuilderMisuse)
	ErrDuplicateAttribute = fmt.Errorf("%w: duplicate attribute", ErrBuilderMisuse)
	ErrStackUnknown       = fmt.Errorf("%w: max stack cannot be computed", ErrBuilderMisuse)
	ErrPoolOverflow       = fmt.Errorf("%w: constant pool overflow", ErrBuilderMisuse)
)

// DecodeError reports malformed input at a byte offset of the classfile.
// It matches ErrMalformed with errors.Is, and also the underlying cause when
// there is one.
type DecodeError struct {
	Offset int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed classfile at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed classfile at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

func malformed(offset int, format string, args ...any) error {
	return &DecodeError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func misuse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBuilderMisuse, fmt.Sprintf(format, args...))
}
