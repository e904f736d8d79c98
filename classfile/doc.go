// Package classfile reads, writes and rewrites JVM classfiles.
//
// This package contains:
//   - A lazily decoded constant pool bound to the input bytes, and a
//     PoolBuilder that interns entries for output
//   - Models of classes, fields, methods and code bodies
//   - Builders that serialize elements as they are supplied
//   - Composable transforms that replay a model into a builder
//   - An operand stack tracker used to compute max_stack
package classfile
