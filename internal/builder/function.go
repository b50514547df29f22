package builder

import (
	"fmt"

	"github.com/eckertliam/towervm/internal/gvm"
)

// Function is a named sequence of builder chunks plus its local constant
// table. Flattening happens when the owning Builder lays out the final
// byte stream; Address and Length are populated at that point.
type Function struct {
	ident     string
	chunks    []chunk
	constants map[string]*Constant

	// currentType mirrors what the machine's type-flag register will hold
	// at each point in the chunk sequence, so that address literals
	// emitted on the caller's behalf (Jmp/Call/Load) are sized the same
	// way the machine will read them back.
	currentType gvm.TypeFlag

	Address int
	Length  int
}

// NewFunction starts an empty function body. The type-flag register is
// modelled as starting at U64, matching a fresh Machine.
func NewFunction(ident string) *Function {
	return &Function{
		ident:       ident,
		constants:   make(map[string]*Constant),
		currentType: gvm.U64,
	}
}

// Ident returns the function's name.
func (f *Function) Ident() string { return f.ident }

// PushConstant registers a named constant usable by this function's
// Identifier/Access chunks.
func (f *Function) PushConstant(c *Constant) {
	f.constants[c.Ident()] = c
}

func (f *Function) lookupConstant(ident string) (*Constant, error) {
	c, ok := f.constants[ident]
	if !ok {
		return nil, fmt.Errorf("function %q: %w: %s", f.ident, gvm.ErrUnresolvedIdentifier, ident)
	}
	return c, nil
}

// --- chunk emission ------------------------------------------------------

func (f *Function) appendInstr(op gvm.Opcode) {
	f.chunks = append(f.chunks, chunk{kind: chunkInstr, instr: op})
}

// SetType emits SetType and updates the tracked alignment used to size
// any address literal this function pushes from here on.
func (f *Function) SetType(t gvm.TypeFlag) {
	f.chunks = append(f.chunks, chunk{kind: chunkSetType, ty: t})
	f.currentType = t
}

func (f *Function) GetType() { f.appendInstr(gvm.GetType) }

// PushValue emits Push followed by the literal's own payload bytes,
// sized by the value's own tag regardless of the tracked alignment — the
// caller is responsible for having set the matching type beforehand.
func (f *Function) PushValue(v gvm.Value) {
	f.appendInstr(gvm.Push)
	f.chunks = append(f.chunks, chunk{kind: chunkValue, value: v})
}

// PushCollect pushes every element of values so that the first element
// ends up on top of the stack, matching the semantics of repeatedly
// popping and pushing from the back of an ordered sequence.
func (f *Function) PushCollect(values []gvm.Value) {
	for i := len(values) - 1; i >= 0; i-- {
		f.PushValue(values[i])
	}
}

// PushIdentifier emits Push followed by a reference to a named constant's
// scalar value, resolved when the owning Builder flattens this function.
func (f *Function) PushIdentifier(ident string) {
	f.appendInstr(gvm.Push)
	f.chunks = append(f.chunks, chunk{kind: chunkIdentifier, ident: ident})
}

// PushAccess emits Push followed by a reference to the idx-th element of
// a named collection constant.
func (f *Function) PushAccess(ident string, idx int) {
	f.appendInstr(gvm.Push)
	f.chunks = append(f.chunks, chunk{kind: chunkAccess, ident: ident, index: idx})
}

func (f *Function) pushAddr(addr *uint64) {
	if addr != nil {
		f.PushValue(gvm.FromU64Raw(f.currentType, *addr))
	}
}

// Jmp optionally pushes an immediate address, then emits Jmp.
func (f *Function) Jmp(addr *uint64) {
	f.pushAddr(addr)
	f.appendInstr(gvm.Jmp)
}

// JmpIf optionally pushes an immediate address, then emits JmpIf.
func (f *Function) JmpIf(addr *uint64) {
	f.pushAddr(addr)
	f.appendInstr(gvm.JmpIf)
}

// JmpIfNot optionally pushes an immediate address, then emits JmpIfNot.
func (f *Function) JmpIfNot(addr *uint64) {
	f.pushAddr(addr)
	f.appendInstr(gvm.JmpIfNot)
}

// Call emits Push(<resolved entry address of name>) then Call. The
// target is resolved by the owning Builder once every function's
// address is known; an undefined name surfaces as UndefinedFn at build
// time, not here, since forward references to functions declared later
// are legal.
func (f *Function) Call(name string) {
	f.appendInstr(gvm.Push)
	f.chunks = append(f.chunks, chunk{kind: chunkCall, ident: name, ty: f.currentType})
	f.appendInstr(gvm.Call)
}

func (f *Function) Ret()       { f.appendInstr(gvm.Ret) }
func (f *Function) Halt()      { f.appendInstr(gvm.Halt) }
func (f *Function) Add()       { f.appendInstr(gvm.Add) }
func (f *Function) Sub()       { f.appendInstr(gvm.Sub) }
func (f *Function) Mul()       { f.appendInstr(gvm.Mul) }
func (f *Function) Div()       { f.appendInstr(gvm.Div) }
func (f *Function) Rem()       { f.appendInstr(gvm.Rem) }
func (f *Function) Neg()       { f.appendInstr(gvm.Neg) }
func (f *Function) Incr()      { f.appendInstr(gvm.Incr) }
func (f *Function) Decr()      { f.appendInstr(gvm.Decr) }
func (f *Function) Eq()        { f.appendInstr(gvm.Eq) }
func (f *Function) Neq()       { f.appendInstr(gvm.Neq) }
func (f *Function) Lt()        { f.appendInstr(gvm.Lt) }
func (f *Function) Gt()        { f.appendInstr(gvm.Gt) }
func (f *Function) Lte()       { f.appendInstr(gvm.Lte) }
func (f *Function) Gte()       { f.appendInstr(gvm.Gte) }
func (f *Function) And()       { f.appendInstr(gvm.And) }
func (f *Function) Or()        { f.appendInstr(gvm.Or) }
func (f *Function) Xor()       { f.appendInstr(gvm.Xor) }
func (f *Function) Shl()       { f.appendInstr(gvm.Shl) }
func (f *Function) Shr()       { f.appendInstr(gvm.Shr) }
func (f *Function) Not()       { f.appendInstr(gvm.Not) }
func (f *Function) Dup()       { f.appendInstr(gvm.Dup) }
func (f *Function) Drop()      { f.appendInstr(gvm.Drop) }
func (f *Function) Swap()      { f.appendInstr(gvm.Swap) }
func (f *Function) Store()     { f.appendInstr(gvm.Store) }
func (f *Function) Alloc()     { f.appendInstr(gvm.Alloc) }
func (f *Function) Free()      { f.appendInstr(gvm.Free) }
func (f *Function) HeapSize()  { f.appendInstr(gvm.HeapSize) }
func (f *Function) StackSize() { f.appendInstr(gvm.StackSize) }
func (f *Function) LoadCode()  { f.appendInstr(gvm.LoadCode) }
func (f *Function) SaveCode()  { f.appendInstr(gvm.SaveCode) }
func (f *Function) Read()      { f.appendInstr(gvm.Read) }
func (f *Function) Write()     { f.appendInstr(gvm.Write) }
func (f *Function) Print()     { f.appendInstr(gvm.Print) }
func (f *Function) Clear()     { f.appendInstr(gvm.Clear) }

// Load optionally pushes an immediate heap address, then emits Load.
func (f *Function) Load(ptr *uint64) {
	f.pushAddr(ptr)
	f.appendInstr(gvm.Load)
}
