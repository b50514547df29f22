package gvm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripSignedIntegers(t *testing.T) {
	cases := []struct {
		tag TypeFlag
		val Value
	}{
		{I8, FromI8(-100)},
		{I16, FromI16(-30000)},
		{I32, FromI32(-2000000000)},
		{I64, FromI64(-9000000000000000000)},
	}
	for _, c := range cases {
		raw := c.val.ToCodeBytes()
		back, err := FromCodeBytes(c.tag, raw)
		require.NoError(t, err)
		sw := back.ToStackWord()
		final := FromStackWord(c.tag, sw)
		require.Equal(t, c.val, final)
	}
}

func TestRoundTripUnsignedIntegers(t *testing.T) {
	cases := []Value{
		FromU8(250), FromU16(60000), FromU32(4000000000), FromU64(18000000000000000000),
	}
	for _, v := range cases {
		raw := v.ToCodeBytes()
		back, err := FromCodeBytes(v.ty, raw)
		require.NoError(t, err)
		final := FromStackWord(v.ty, back.ToStackWord())
		require.Equal(t, v, final)
	}
}

func TestRoundTripFloats(t *testing.T) {
	f32 := FromF32(3.14159)
	back32, err := FromCodeBytes(F32, f32.ToCodeBytes())
	require.NoError(t, err)
	final32 := FromStackWord(F32, back32.ToStackWord())
	x, err := final32.F32()
	require.NoError(t, err)
	require.Equal(t, float32(3.14159), x)

	f64 := FromF64(2.718281828459045)
	back64, err := FromCodeBytes(F64, f64.ToCodeBytes())
	require.NoError(t, err)
	final64 := FromStackWord(F64, back64.ToStackWord())
	y, err := final64.F64()
	require.NoError(t, err)
	require.Equal(t, 2.718281828459045, y)
}

func TestRoundTripBoolAndChar(t *testing.T) {
	for _, b := range []bool{true, false} {
		v := FromBool(b)
		back, err := FromCodeBytes(Bool, v.ToCodeBytes())
		require.NoError(t, err)
		final := FromStackWord(Bool, back.ToStackWord())
		got, err := final.AsBool()
		require.NoError(t, err)
		require.Equal(t, b, got)
	}

	v := FromChar('世')
	back, err := FromCodeBytes(Char, v.ToCodeBytes())
	require.NoError(t, err)
	final := FromStackWord(Char, back.ToStackWord())
	got, err := final.AsChar()
	require.NoError(t, err)
	require.Equal(t, '世', got)
}

func TestArithmeticAgreementAcrossTags(t *testing.T) {
	a, b := FromI32(17), FromI32(-5)
	sum, err := a.Add(b)
	require.NoError(t, err)
	got, err := sum.I32()
	require.NoError(t, err)
	require.EqualValues(t, 12, got)

	x, y := FromU16(40000), FromU16(30000)
	wrapped, err := x.Add(y)
	require.NoError(t, err)
	gotU, err := wrapped.U16()
	require.NoError(t, err)
	require.EqualValues(t, uint16(40000+30000-65536), gotU)
}

func TestTypeGuardOnMismatchedOperands(t *testing.T) {
	_, err := FromI32(1).Add(FromI64(2))
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = FromBool(true).Lt(FromI8(1))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDivideByZeroSemantics(t *testing.T) {
	_, err := FromI32(1).Div(FromI32(0))
	require.ErrorIs(t, err, ErrDivideByZero)

	_, err = FromU64(1).Rem(FromU64(0))
	require.ErrorIs(t, err, ErrDivideByZero)

	quotient, err := FromF64(1).Div(FromF64(0))
	require.NoError(t, err)
	f, err := quotient.F64()
	require.NoError(t, err)
	require.True(t, math.IsInf(f, 1))

	nan, err := FromF64(0).Div(FromF64(0))
	require.NoError(t, err)
	fn, err := nan.F64()
	require.NoError(t, err)
	require.True(t, math.IsNaN(fn))
}

func TestBitwiseRequiresIntegralOperands(t *testing.T) {
	_, err := FromF32(1).And(FromF32(2))
	require.ErrorIs(t, err, ErrTypeMismatch)

	r, err := FromU8(0b1010).Xor(FromU8(0b0110))
	require.NoError(t, err)
	got, err := r.U8()
	require.NoError(t, err)
	require.EqualValues(t, 0b1100, got)
}

func TestNegTrapsOnUnsigned(t *testing.T) {
	_, err := FromU32(1).Neg()
	require.ErrorIs(t, err, ErrTypeMismatch)

	r, err := FromI32(5).Neg()
	require.NoError(t, err)
	got, err := r.I32()
	require.NoError(t, err)
	require.EqualValues(t, -5, got)
}

func TestNotOnIntegralAndBool(t *testing.T) {
	r, err := FromBool(true).Not()
	require.NoError(t, err)
	b, err := r.AsBool()
	require.NoError(t, err)
	require.False(t, b)

	_, err = FromF64(1).Not()
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestComparisonsAlwaysProduceBool(t *testing.T) {
	r, err := FromI8(3).Lt(FromI8(5))
	require.NoError(t, err)
	require.Equal(t, Bool, r.Type())
	b, err := r.AsBool()
	require.NoError(t, err)
	require.True(t, b)
}

func TestIncrDecrWrapPerWidth(t *testing.T) {
	r, err := FromU8(255).Incr()
	require.NoError(t, err)
	got, err := r.U8()
	require.NoError(t, err)
	require.EqualValues(t, 0, got)

	r2, err := FromI8(-128).Decr()
	require.NoError(t, err)
	got2, err := r2.I8()
	require.NoError(t, err)
	require.EqualValues(t, 127, got2)
}
