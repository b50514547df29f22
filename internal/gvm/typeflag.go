// Package gvm implements the typed stack machine: the Value representation,
// the fixed opcode set, and the fetch-decode-dispatch interpreter.
package gvm

import "fmt"

// TypeFlag selects how the machine interprets a 64-bit stack cell or a run
// of code/heap bytes. Ordinal and on-wire width are part of the bytecode
// format and must never change.
type TypeFlag byte

const (
	I8 TypeFlag = iota
	I16
	I32
	I64
	F32
	F64
	Bool
	Char
	U8
	U16
	U32
	U64
)

var typeFlagNames = [...]string{
	I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	F32: "f32", F64: "f64", Bool: "bool", Char: "char",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
}

// byteWidth[tag] is the number of bytes a Push/Load/Store/Alloc element of
// that type occupies on the wire or in the heap.
var byteWidth = [...]int{
	I8: 1, I16: 2, I32: 4, I64: 8,
	F32: 4, F64: 8, Bool: 1, Char: 4,
	U8: 1, U16: 2, U32: 4, U64: 8,
}

// TypeFlagFromByte decodes a wire byte into a TypeFlag. Any value outside
// 0..=11 traps with ErrBadTypeFlag.
func TypeFlagFromByte(b byte) (TypeFlag, error) {
	if b > byte(U64) {
		return 0, newTrap(ErrBadTypeFlag, fmt.Sprintf("type flag byte %d out of range", b))
	}
	return TypeFlag(b), nil
}

// Size returns the on-wire / in-heap byte width of the type.
func (t TypeFlag) Size() int {
	return byteWidth[t]
}

func (t TypeFlag) String() string {
	if int(t) >= len(typeFlagNames) {
		return "?unknown-type?"
	}
	return typeFlagNames[t]
}

// IsIntegral reports whether binary bitwise/shift operations and
// Incr/Decr are defined for this tag.
func (t TypeFlag) IsIntegral() bool {
	switch t {
	case I8, I16, I32, I64, U8, U16, U32, U64:
		return true
	default:
		return false
	}
}

// IsSigned reports whether the tag is a two's-complement signed integer.
func (t TypeFlag) IsSigned() bool {
	switch t {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the tag is an IEEE-754 floating point type.
func (t TypeFlag) IsFloat() bool {
	return t == F32 || t == F64
}

// EncodeSetType returns the 2-byte `SetType <ordinal>` pair used to
// atomically select alignment in the wire format.
func (t TypeFlag) EncodeSetType() []byte {
	return []byte{byte(SetType), byte(t)}
}
