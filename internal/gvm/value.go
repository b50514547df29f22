package gvm

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Value is a tagged 64-bit cell: a TypeFlag discriminant paired with a
// payload that always occupies the low bits of a 64-bit word. Integral
// payloads are stored sign- or zero-extended to the full word (matching
// their native signedness) so that the word is always a valid stack cell;
// float payloads occupy only their low 32 or 64 bits as a raw IEEE-754
// bit pattern.
type Value struct {
	ty   TypeFlag
	bits uint64
}

// Type returns the value's TypeFlag.
func (v Value) Type() TypeFlag { return v.ty }

// --- native constructors -----------------------------------------------

func FromI8(x int8) Value   { return Value{ty: I8, bits: uint64(int64(x))} }
func FromI16(x int16) Value { return Value{ty: I16, bits: uint64(int64(x))} }
func FromI32(x int32) Value { return Value{ty: I32, bits: uint64(int64(x))} }
func FromI64(x int64) Value { return Value{ty: I64, bits: uint64(x)} }
func FromF32(x float32) Value {
	return Value{ty: F32, bits: uint64(math.Float32bits(x))}
}
func FromF64(x float64) Value { return Value{ty: F64, bits: math.Float64bits(x)} }
func FromBool(x bool) Value {
	if x {
		return Value{ty: Bool, bits: 1}
	}
	return Value{ty: Bool, bits: 0}
}
func FromChar(x rune) Value { return Value{ty: Char, bits: uint64(uint32(x))} }
func FromU8(x uint8) Value  { return Value{ty: U8, bits: uint64(x)} }
func FromU16(x uint16) Value { return Value{ty: U16, bits: uint64(x)} }
func FromU32(x uint32) Value { return Value{ty: U32, bits: uint64(x)} }
func FromU64(x uint64) Value { return Value{ty: U64, bits: x} }

// FromU64Raw attaches a tag to a raw 64-bit word without reinterpreting
// it; used by Incr/Decr for the unsigned step operand and by the Builder
// when it materialises a raw address under the tracked alignment.
func FromU64Raw(tag TypeFlag, raw uint64) Value {
	return Value{ty: tag, bits: raw}
}

// --- native accessors ---------------------------------------------------

func (v Value) I8() (int8, error) {
	if v.ty != I8 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not i8", v.ty))
	}
	return int8(v.bits), nil
}

func (v Value) I16() (int16, error) {
	if v.ty != I16 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not i16", v.ty))
	}
	return int16(v.bits), nil
}

func (v Value) I32() (int32, error) {
	if v.ty != I32 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not i32", v.ty))
	}
	return int32(v.bits), nil
}

func (v Value) I64() (int64, error) {
	if v.ty != I64 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not i64", v.ty))
	}
	return int64(v.bits), nil
}

func (v Value) F32() (float32, error) {
	if v.ty != F32 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not f32", v.ty))
	}
	return math.Float32frombits(uint32(v.bits)), nil
}

func (v Value) F64() (float64, error) {
	if v.ty != F64 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not f64", v.ty))
	}
	return math.Float64frombits(v.bits), nil
}

func (v Value) AsBool() (bool, error) {
	if v.ty != Bool {
		return false, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not bool", v.ty))
	}
	return v.bits != 0, nil
}

func (v Value) AsChar() (rune, error) {
	if v.ty != Char {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not char", v.ty))
	}
	r := rune(uint32(v.bits))
	if !utf8.ValidRune(r) {
		return 0, newTrap(ErrBadChar, fmt.Sprintf("0x%x is not a valid unicode scalar value", uint32(v.bits)))
	}
	return r, nil
}

func (v Value) U8() (uint8, error) {
	if v.ty != U8 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not u8", v.ty))
	}
	return uint8(v.bits), nil
}

func (v Value) U16() (uint16, error) {
	if v.ty != U16 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not u16", v.ty))
	}
	return uint16(v.bits), nil
}

func (v Value) U32() (uint32, error) {
	if v.ty != U32 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not u32", v.ty))
	}
	return uint32(v.bits), nil
}

func (v Value) U64() (uint64, error) {
	if v.ty != U64 {
		return 0, newTrap(ErrTypeMismatch, fmt.Sprintf("value is %s, not u64", v.ty))
	}
	return v.bits, nil
}

// --- stack word / code byte conversions ---------------------------------

// ToStackWord returns the value's 64-bit cell representation, identical to
// what the operand stack stores.
func (v Value) ToStackWord() uint64 { return v.bits }

// FromStackWord tags a raw 64-bit stack cell with the given type.
func FromStackWord(tag TypeFlag, word uint64) Value {
	return Value{ty: tag, bits: word}
}

// ToCodeBytes serialises exactly Size(ty) bytes of the payload, little
// endian. Only the meaningful low-order bytes are emitted: sign/zero
// extension in the stored word is not part of the wire representation.
func (v Value) ToCodeBytes() []byte {
	n := v.ty.Size()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v.bits)
	return buf[:n]
}

// FromCodeBytes reads exactly Size(tag) little-endian bytes into the low
// bits of a new Value, sign- or zero-extending the remaining bits so the
// result is a valid stack word for the tag's native semantics.
func FromCodeBytes(tag TypeFlag, raw []byte) (Value, error) {
	n := tag.Size()
	if len(raw) < n {
		return Value{}, newTrap(ErrCodeOutOfBounds, "not enough bytes to decode value")
	}
	buf := make([]byte, 8)
	copy(buf, raw[:n])
	word := binary.LittleEndian.Uint64(buf)

	if tag.IsSigned() && n < 8 {
		signBit := uint64(1) << (n*8 - 1)
		if word&signBit != 0 {
			word |= ^uint64(0) << (n * 8)
		}
	}

	return Value{ty: tag, bits: word}, nil
}

func (v Value) String() string {
	switch v.ty {
	case I8:
		x, _ := v.I8()
		return fmt.Sprintf("%d", x)
	case I16:
		x, _ := v.I16()
		return fmt.Sprintf("%d", x)
	case I32:
		x, _ := v.I32()
		return fmt.Sprintf("%d", x)
	case I64:
		x, _ := v.I64()
		return fmt.Sprintf("%d", x)
	case F32:
		x, _ := v.F32()
		return fmt.Sprintf("%v", x)
	case F64:
		x, _ := v.F64()
		return fmt.Sprintf("%v", x)
	case Bool:
		x, _ := v.AsBool()
		return fmt.Sprintf("%v", x)
	case Char:
		x, err := v.AsChar()
		if err != nil {
			return "?"
		}
		return string(x)
	case U8:
		x, _ := v.U8()
		return fmt.Sprintf("%d", x)
	case U16:
		x, _ := v.U16()
		return fmt.Sprintf("%d", x)
	case U32:
		x, _ := v.U32()
		return fmt.Sprintf("%d", x)
	case U64:
		x, _ := v.U64()
		return fmt.Sprintf("%d", x)
	default:
		return "?unknown-value?"
	}
}

// --- arithmetic / bitwise / comparison dispatch -------------------------

func typeMismatch(op string, a, b TypeFlag) error {
	return newTrap(ErrTypeMismatch, fmt.Sprintf("%s requires matching operand types, got %s and %s", op, a, b))
}

func unsupported(op string, ty TypeFlag) error {
	return newTrap(ErrTypeMismatch, fmt.Sprintf("%s is not defined for %s", op, ty))
}

// Add, Sub, Mul, Div and Rem require identical operand tags and are
// defined only for the 10 numeric tags (integers and floats); Bool and
// Char trap with TypeMismatch, matching the handler precondition that
// arithmetic be performed "in that native type's semantics".
func (v Value) Add(rhs Value) (Value, error) { return v.numericOp("add", rhs, arithAdd) }
func (v Value) Sub(rhs Value) (Value, error) { return v.numericOp("sub", rhs, arithSub) }
func (v Value) Mul(rhs Value) (Value, error) { return v.numericOp("mul", rhs, arithMul) }

func (v Value) Div(rhs Value) (Value, error) { return v.numericOp("div", rhs, arithDiv) }
func (v Value) Rem(rhs Value) (Value, error) { return v.numericOp("rem", rhs, arithRem) }

type arithKind int

const (
	arithAdd arithKind = iota
	arithSub
	arithMul
	arithDiv
	arithRem
)

func (v Value) numericOp(name string, rhs Value, kind arithKind) (Value, error) {
	if v.ty != rhs.ty {
		return Value{}, typeMismatch(name, v.ty, rhs.ty)
	}

	switch v.ty {
	case I8:
		a, _ := v.I8()
		b, _ := rhs.I8()
		r, err := intOp(name, int64(a), int64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromI8(int8(r)), nil
	case I16:
		a, _ := v.I16()
		b, _ := rhs.I16()
		r, err := intOp(name, int64(a), int64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromI16(int16(r)), nil
	case I32:
		a, _ := v.I32()
		b, _ := rhs.I32()
		r, err := intOp(name, int64(a), int64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromI32(int32(r)), nil
	case I64:
		a, _ := v.I64()
		b, _ := rhs.I64()
		r, err := intOp(name, a, b, kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromI64(r), nil
	case U8:
		a, _ := v.U8()
		b, _ := rhs.U8()
		r, err := uintOp(name, uint64(a), uint64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromU8(uint8(r)), nil
	case U16:
		a, _ := v.U16()
		b, _ := rhs.U16()
		r, err := uintOp(name, uint64(a), uint64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromU16(uint16(r)), nil
	case U32:
		a, _ := v.U32()
		b, _ := rhs.U32()
		r, err := uintOp(name, uint64(a), uint64(b), kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromU32(uint32(r)), nil
	case U64:
		a, _ := v.U64()
		b, _ := rhs.U64()
		r, err := uintOp(name, a, b, kind, v.ty)
		if err != nil {
			return Value{}, err
		}
		return FromU64(r), nil
	case F32:
		a, _ := v.F32()
		b, _ := rhs.F32()
		return FromF32(float32(floatOp(name, float64(a), float64(b), kind))), nil
	case F64:
		a, _ := v.F64()
		b, _ := rhs.F64()
		return FromF64(floatOp(name, a, b, kind)), nil
	default:
		return Value{}, unsupported(name, v.ty)
	}
}

func intOp(name string, a, b int64, kind arithKind, ty TypeFlag) (int64, error) {
	switch kind {
	case arithAdd:
		return a + b, nil
	case arithSub:
		return a - b, nil
	case arithMul:
		return a * b, nil
	case arithDiv:
		if b == 0 {
			return 0, newTrap(ErrDivideByZero, fmt.Sprintf("%s: integer division by zero", name))
		}
		return a / b, nil
	case arithRem:
		if b == 0 {
			return 0, newTrap(ErrDivideByZero, fmt.Sprintf("%s: integer division by zero", name))
		}
		return a % b, nil
	default:
		return 0, unsupported(name, ty)
	}
}

func uintOp(name string, a, b uint64, kind arithKind, ty TypeFlag) (uint64, error) {
	switch kind {
	case arithAdd:
		return a + b, nil
	case arithSub:
		return a - b, nil
	case arithMul:
		return a * b, nil
	case arithDiv:
		if b == 0 {
			return 0, newTrap(ErrDivideByZero, fmt.Sprintf("%s: integer division by zero", name))
		}
		return a / b, nil
	case arithRem:
		if b == 0 {
			return 0, newTrap(ErrDivideByZero, fmt.Sprintf("%s: integer division by zero", name))
		}
		return a % b, nil
	default:
		return 0, unsupported(name, ty)
	}
}

func floatOp(name string, a, b float64, kind arithKind) float64 {
	switch kind {
	case arithAdd:
		return a + b
	case arithSub:
		return a - b
	case arithMul:
		return a * b
	case arithDiv:
		return a / b // IEEE semantics: yields +/-Inf or NaN, never traps
	case arithRem:
		return math.Mod(a, b) // IEEE remainder
	default:
		return math.NaN()
	}
}

// And, Or, Xor, Shl, Shr require matching integral operand tags.
func (v Value) And(rhs Value) (Value, error) { return v.bitwiseOp("and", rhs, bitAnd) }
func (v Value) Or(rhs Value) (Value, error)  { return v.bitwiseOp("or", rhs, bitOr) }
func (v Value) Xor(rhs Value) (Value, error) { return v.bitwiseOp("xor", rhs, bitXor) }
func (v Value) Shl(rhs Value) (Value, error) { return v.bitwiseOp("shl", rhs, bitShl) }
func (v Value) Shr(rhs Value) (Value, error) { return v.bitwiseOp("shr", rhs, bitShr) }

type bitKind int

const (
	bitAnd bitKind = iota
	bitOr
	bitXor
	bitShl
	bitShr
)

func (v Value) bitwiseOp(name string, rhs Value, kind bitKind) (Value, error) {
	if v.ty != rhs.ty {
		return Value{}, typeMismatch(name, v.ty, rhs.ty)
	}
	if !v.ty.IsIntegral() {
		return Value{}, unsupported(name, v.ty)
	}

	// Operate in the unsigned domain of the matching width: wraparound and
	// shift behaviour only depend on width for these operators.
	a, b := v.bits, rhs.bits
	width := v.ty.Size() * 8
	var mask uint64
	if width >= 64 {
		mask = ^uint64(0)
	} else {
		mask = (uint64(1) << width) - 1
	}
	a &= mask
	b &= mask

	var r uint64
	switch kind {
	case bitAnd:
		r = a & b
	case bitOr:
		r = a | b
	case bitXor:
		r = a ^ b
	case bitShl:
		r = (a << (b % uint64(width))) & mask
	case bitShr:
		shiftAmt := b % uint64(width)
		if v.ty.IsSigned() {
			// Arithmetic shift: v.bits is already sign-extended to 64 bits,
			// so shifting the full signed word preserves the sign, then we
			// crop back down to the operand's width.
			r = uint64(int64(v.bits)>>shiftAmt) & mask
		} else {
			r = a >> shiftAmt
		}
	}

	if v.ty.IsSigned() && width < 64 {
		signBit := uint64(1) << (width - 1)
		if r&signBit != 0 {
			r |= ^uint64(0) << width
		}
	}

	return Value{ty: v.ty, bits: r}, nil
}

// Not is the unary complement: bitwise on integral tags, logical on Bool,
// and a trap on float or char.
func (v Value) Not() (Value, error) {
	switch {
	case v.ty == Bool:
		b, _ := v.AsBool()
		return FromBool(!b), nil
	case v.ty.IsIntegral():
		width := v.ty.Size() * 8
		var mask uint64
		if width >= 64 {
			mask = ^uint64(0)
		} else {
			mask = (uint64(1) << width) - 1
		}
		r := (^v.bits) & mask
		if v.ty.IsSigned() && width < 64 {
			signBit := uint64(1) << (width - 1)
			if r&signBit != 0 {
				r |= ^uint64(0) << width
			}
		}
		return Value{ty: v.ty, bits: r}, nil
	default:
		return Value{}, unsupported("not", v.ty)
	}
}

// Neg negates the value: valid for signed integers and floats, traps on
// unsigned, Bool and Char.
func (v Value) Neg() (Value, error) {
	switch v.ty {
	case I8:
		x, _ := v.I8()
		return FromI8(-x), nil
	case I16:
		x, _ := v.I16()
		return FromI16(-x), nil
	case I32:
		x, _ := v.I32()
		return FromI32(-x), nil
	case I64:
		x, _ := v.I64()
		return FromI64(-x), nil
	case F32:
		x, _ := v.F32()
		return FromF32(-x), nil
	case F64:
		x, _ := v.F64()
		return FromF64(-x), nil
	default:
		return Value{}, unsupported("neg", v.ty)
	}
}

// Incr and Decr add or subtract one in place under the operand's own
// width, defined only for integral tags.
func (v Value) Incr() (Value, error) { return v.step(1) }
func (v Value) Decr() (Value, error) { return v.step(-1) }

func (v Value) step(delta int64) (Value, error) {
	if !v.ty.IsIntegral() {
		return Value{}, unsupported("incr/decr", v.ty)
	}
	one := FromU64Raw(v.ty, uint64(delta))
	// Reuse the native-domain add so width-specific wraparound applies.
	if v.ty.IsSigned() {
		return v.Add(signedOne(v.ty, delta))
	}
	return v.Add(one)
}

func signedOne(ty TypeFlag, delta int64) Value {
	switch ty {
	case I8:
		return FromI8(int8(delta))
	case I16:
		return FromI16(int16(delta))
	case I32:
		return FromI32(int32(delta))
	default:
		return FromI64(delta)
	}
}

// Eq, Neq, Lt, Gt, Lte and Gte require identical operand tags (any of the
// 12) and always produce a Bool result.
func (v Value) Eq(rhs Value) (Value, error)  { return v.compare("eq", rhs, cmpEq) }
func (v Value) Neq(rhs Value) (Value, error) { return v.compare("neq", rhs, cmpNeq) }
func (v Value) Lt(rhs Value) (Value, error)  { return v.compare("lt", rhs, cmpLt) }
func (v Value) Gt(rhs Value) (Value, error)  { return v.compare("gt", rhs, cmpGt) }
func (v Value) Lte(rhs Value) (Value, error) { return v.compare("lte", rhs, cmpLte) }
func (v Value) Gte(rhs Value) (Value, error) { return v.compare("gte", rhs, cmpGte) }

type cmpKind int

const (
	cmpEq cmpKind = iota
	cmpNeq
	cmpLt
	cmpGt
	cmpLte
	cmpGte
)

func (v Value) compare(name string, rhs Value, kind cmpKind) (Value, error) {
	if v.ty != rhs.ty {
		return Value{}, typeMismatch(name, v.ty, rhs.ty)
	}

	var lt, eq, gt bool
	switch v.ty {
	case I8:
		a, _ := v.I8()
		b, _ := rhs.I8()
		lt, eq, gt = a < b, a == b, a > b
	case I16:
		a, _ := v.I16()
		b, _ := rhs.I16()
		lt, eq, gt = a < b, a == b, a > b
	case I32:
		a, _ := v.I32()
		b, _ := rhs.I32()
		lt, eq, gt = a < b, a == b, a > b
	case I64:
		a, _ := v.I64()
		b, _ := rhs.I64()
		lt, eq, gt = a < b, a == b, a > b
	case U8:
		a, _ := v.U8()
		b, _ := rhs.U8()
		lt, eq, gt = a < b, a == b, a > b
	case U16:
		a, _ := v.U16()
		b, _ := rhs.U16()
		lt, eq, gt = a < b, a == b, a > b
	case U32:
		a, _ := v.U32()
		b, _ := rhs.U32()
		lt, eq, gt = a < b, a == b, a > b
	case U64:
		a, _ := v.U64()
		b, _ := rhs.U64()
		lt, eq, gt = a < b, a == b, a > b
	case F32:
		// IEEE-754 partial order: NaN compares false against everything,
		// including itself, so lt/eq/gt must each be derived natively
		// rather than from one another.
		a, _ := v.F32()
		b, _ := rhs.F32()
		lt, eq, gt = a < b, a == b, a > b
	case F64:
		a, _ := v.F64()
		b, _ := rhs.F64()
		lt, eq, gt = a < b, a == b, a > b
	case Bool:
		a, _ := v.AsBool()
		b, _ := rhs.AsBool()
		lt, eq, gt = !a && b, a == b, a && !b
	case Char:
		a, _ := v.AsChar()
		b, _ := rhs.AsChar()
		lt, eq, gt = a < b, a == b, a > b
	default:
		return Value{}, unsupported(name, v.ty)
	}

	switch kind {
	case cmpEq:
		return FromBool(eq), nil
	case cmpNeq:
		return FromBool(!eq), nil
	case cmpLt:
		return FromBool(lt), nil
	case cmpGt:
		return FromBool(gt), nil
	case cmpLte:
		return FromBool(lt || eq), nil
	case cmpGte:
		return FromBool(gt || eq), nil
	default:
		return Value{}, unsupported(name, v.ty)
	}
}
