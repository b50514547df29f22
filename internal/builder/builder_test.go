package builder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eckertliam/towervm/internal/gvm"
)

func TestEntryFunctionIsPlacedAtOffsetZero(t *testing.T) {
	b := New()

	entry, err := b.StartFn("main")
	require.NoError(t, err)
	entry.SetType(gvm.I32)
	entry.PushValue(gvm.FromI32(1))
	entry.Halt()

	other, err := b.StartFn("helper")
	require.NoError(t, err)
	other.Halt()

	code, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 0, entry.Address)
	require.Greater(t, other.Address, entry.Address)
	require.Len(t, code, entry.Length+other.Length)
}

func TestInsertionOrderPreservedAmongNonEntryFunctions(t *testing.T) {
	b := New()

	entry, _ := b.StartFn("main")
	entry.Halt()

	a, _ := b.StartFn("a")
	a.Halt()
	bb, _ := b.StartFn("b")
	bb.Halt()

	_, err := b.Build()
	require.NoError(t, err)
	require.Less(t, a.Address, bb.Address)
}

func TestCallResolvesToAssignedByteOffset(t *testing.T) {
	b := New()

	entry, _ := b.StartFn("main")
	entry.SetType(gvm.I32)
	entry.PushValue(gvm.FromI32(7))
	entry.Call("sq")
	entry.Print()
	entry.Halt()

	sq, _ := b.StartFn("sq")
	sq.Swap()
	sq.Dup()
	sq.Mul()
	sq.Swap()
	sq.Ret()

	m, err := b.BuildMachine()
	require.NoError(t, err)
	require.NoError(t, m.Run())
	require.Equal(t, "49", m.GetStream())
}

func TestDuplicateFunctionNameTraps(t *testing.T) {
	b := New()
	_, err := b.StartFn("main")
	require.NoError(t, err)
	_, err = b.StartFn("main")
	require.ErrorIs(t, err, gvm.ErrDuplicateFn)
}

func TestCallToUndefinedFunctionTrapsAtBuild(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")
	entry.Call("nope")
	entry.Halt()

	_, err := b.Build()
	require.ErrorIs(t, err, gvm.ErrUndefinedFn)
}

func TestUnresolvedIdentifierTrapsAtBuild(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")
	entry.PushIdentifier("missing")
	entry.Halt()

	_, err := b.Build()
	require.ErrorIs(t, err, gvm.ErrUnresolvedIdentifier)
}

func TestConstantTypeMismatchTrapsAtConstruction(t *testing.T) {
	_, err := NewConstant("mixed", []gvm.Value{gvm.FromI32(1), gvm.FromI64(2)})
	require.ErrorIs(t, err, gvm.ErrConstTypeMismatch)
}

func TestConstantAccessOutOfRangeTrapsAtBuild(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")
	c, err := NewConstant("table", []gvm.Value{gvm.FromI32(1), gvm.FromI32(2)})
	require.NoError(t, err)
	entry.PushConstant(c)
	entry.PushAccess("table", 5)
	entry.Halt()

	_, err = b.Build()
	require.ErrorIs(t, err, gvm.ErrConstIndexOutOfRange)
}

func TestIdentifierAndAccessResolveConstantPayloads(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")

	scalar, err := NewConstant("answer", []gvm.Value{gvm.FromI32(42)})
	require.NoError(t, err)
	entry.PushConstant(scalar)

	table, err := NewConstant("table", []gvm.Value{gvm.FromI32(10), gvm.FromI32(20), gvm.FromI32(30)})
	require.NoError(t, err)
	entry.PushConstant(table)

	entry.SetType(gvm.I32)
	entry.PushIdentifier("answer")
	entry.Print()
	entry.PushAccess("table", 2)
	entry.Print()
	entry.Halt()

	m, err := b.BuildMachine()
	require.NoError(t, err)
	require.NoError(t, m.Run())
	require.Equal(t, "4230", m.GetStream())
}

func TestPushCollectPutsFirstElementOnTop(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")
	entry.SetType(gvm.I32)
	entry.PushCollect([]gvm.Value{gvm.FromI32(1), gvm.FromI32(2), gvm.FromI32(3)})
	entry.Print() // top should be the first element supplied: 1
	entry.Halt()

	m, err := b.BuildMachine()
	require.NoError(t, err)
	require.NoError(t, m.Run())
	require.Equal(t, "1", m.GetStream())
}

func TestNonEntryFunctionBytesPrecedeLaterFunction(t *testing.T) {
	b := New()
	entry, _ := b.StartFn("main")
	entry.Halt()

	a, _ := b.StartFn("a")
	a.SetType(gvm.I32)
	a.PushValue(gvm.FromI32(99))
	a.Halt()

	x, _ := b.StartFn("x")
	x.Halt()

	code, err := b.Build()
	require.NoError(t, err)
	require.True(t, bytes.Contains(code[a.Address:a.Address+a.Length], gvm.FromI32(99).ToCodeBytes()))
	require.LessOrEqual(t, a.Address+a.Length, x.Address)
}
