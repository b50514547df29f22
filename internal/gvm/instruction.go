package gvm

// Opcode is a single fetched/decoded instruction byte. The numeric
// assignment below is the wire format and must never change.
type Opcode byte

const (
	Halt Opcode = iota
	SetType
	GetType
	Add
	Sub
	Mul
	Div
	Rem
	Neg
	Incr
	Decr
	Eq
	Neq
	Lt
	Gt
	Lte
	Gte
	And
	Or
	Xor
	Shl
	Shr
	Not
	Jmp
	JmpIf
	JmpIfNot
	Call
	Ret
	Push
	Dup
	Drop
	Swap
	Load
	Store
	Alloc
	Free
	HeapSize
	StackSize
	LoadCode
	SaveCode
	Read
	Write
	Print
	Clear
)

var opcodeNames = [...]string{
	Halt: "halt", SetType: "set_type", GetType: "get_type",
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Rem: "rem",
	Neg: "neg", Incr: "incr", Decr: "decr",
	Eq: "eq", Neq: "neq", Lt: "lt", Gt: "gt", Lte: "lte", Gte: "gte",
	And: "and", Or: "or", Xor: "xor", Shl: "shl", Shr: "shr", Not: "not",
	Jmp: "jmp", JmpIf: "jmp_if", JmpIfNot: "jmp_if_not",
	Call: "call", Ret: "ret",
	Push: "push", Dup: "dup", Drop: "drop", Swap: "swap",
	Load: "load", Store: "store", Alloc: "alloc", Free: "free",
	HeapSize: "heap_size", StackSize: "stack_size",
	LoadCode: "load_code", SaveCode: "save_code",
	Read: "read", Write: "write", Print: "print", Clear: "clear",
}

func (op Opcode) String() string {
	if int(op) >= len(opcodeNames) || opcodeNames[op] == "" {
		return "?unknown-opcode?"
	}
	return opcodeNames[op]
}

// OpcodeFromByte decodes a wire byte into an Opcode. Unknown bytes trap
// with ErrBadOpcode.
func OpcodeFromByte(b byte) (Opcode, error) {
	op := Opcode(b)
	if int(op) >= len(opcodeNames) || opcodeNames[op] == "" {
		return 0, newTrap(ErrBadOpcode, "unrecognized opcode byte")
	}
	return op, nil
}

// HasImmediate reports whether the opcode is followed in the code stream
// by operand bytes whose width is fixed (SetType) or driven by the
// current type-flag register (Push).
func (op Opcode) HasImmediate() bool {
	return op == SetType || op == Push
}
