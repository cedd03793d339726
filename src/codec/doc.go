// Package codec implements the deterministic binary encoding shared by the
// wire protocol and the storage layer.
//
// Integers are little-endian unless a method says otherwise. Variable length
// integers use the 1/3/5/9 byte form with 0xFD, 0xFE and 0xFF markers, and
// byte strings and arrays are prefixed with such a count. Hash types are
// written as their raw bytes.
//
// BinWriter and BinReader keep the first error they meet in their Err field
// and turn every later call into a no-op, so a type's EncodeBinary and
// DecodeBinary read as a straight list of fields and the error is checked
// once at the end.
package codec
