// Package components holds reusable transforms built on the classfile
// pipeline.
//
//   - ClassRemapper renames class references throughout a class: its
//     hierarchy, member descriptors, generic signatures, annotations,
//     nesting metadata and every instruction operand that names a type.
//   - LocalsShifter moves the locals of a method body above the receiver
//     and parameter slots so new code can claim slots without clashing.
//
// The operand stack tracker lives in package classfile, which needs it to
// compute max_stack.
package components
