// Package binio provides the raw big-endian primitives used by the classfile
// reader and writer.
//
// A Cursor reads values at absolute positions of an immutable buffer and never
// copies it. A Decoder walks a window of a Cursor sequentially and records the
// first out-of-bounds read as a sticky error. A Writer is a growable output
// buffer that supports length-prefixed regions whose length is patched back
// once the body has been written.
package binio
