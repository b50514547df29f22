package gvm

import (
	"fmt"
	"strings"
)

// StackCapacity is the fixed capacity of the operand stack, in cells.
const StackCapacity = 1024

// Machine is the fetch-decode-dispatch interpreter. The stack holds raw
// 64-bit words; the current type-flag register, not any per-cell tag, says
// how a word is to be read at the moment an instruction touches it — the
// stack cell itself carries no type.
type Machine struct {
	stack [StackCapacity]uint64
	sp    int

	code []byte
	ip   int

	heap []byte

	tyFlag TypeFlag

	stream strings.Builder
	hasOut bool // true once anything has been written to stream

	awaitingRead bool
}

// New returns a zeroed machine: empty code/heap, ty_flag = U64.
func New() *Machine {
	return &Machine{tyFlag: U64}
}

// LoadCode replaces the code segment and resets the instruction pointer.
// Stack and heap contents are preserved.
func (m *Machine) LoadCode(code []byte) {
	m.code = code
	m.ip = 0
}

// Execute loads code then runs to completion.
func (m *Machine) Execute(code []byte) error {
	m.LoadCode(code)
	return m.Run()
}

// GetStream returns the accumulated output buffer's contents so far. Unlike
// the spec's "consumes" wording for get_stream, callers that want the
// buffer cleared should call Clear explicitly via program control or
// ResetStream.
func (m *Machine) GetStream() string {
	return m.stream.String()
}

// ResetStream empties the output buffer.
func (m *Machine) ResetStream() {
	m.stream.Reset()
}

// AwaitingRead reports whether the machine halted mid-dispatch on a Read
// opcode and is waiting for Feed to resume it.
func (m *Machine) AwaitingRead() bool {
	return m.awaitingRead
}

// Feed resumes a machine that is AwaitingRead: it pushes the given bytes,
// interpreted as size(ty_flag) little-endian bytes under the current
// type-flag register, and continues dispatch.
func (m *Machine) Feed(raw []byte) error {
	if !m.awaitingRead {
		return newTrap(ErrTypeMismatch, "Feed called while machine is not awaiting input")
	}
	v, err := FromCodeBytes(m.tyFlag, raw)
	if err != nil {
		return err
	}
	if err := m.push(v.ToStackWord()); err != nil {
		return err
	}
	m.awaitingRead = false
	return m.Run()
}

// Run drives the dispatch loop until Halt, a Read (which leaves the
// machine AwaitingRead and returns nil), or a trap. Running the
// instruction pointer past the end of the code segment without
// encountering Halt is itself a fatal IpOutOfBounds trap.
func (m *Machine) Run() error {
	for {
		if m.ip >= len(m.code) {
			return newLocatedTrap(ErrIPOutOfBounds, "fetch past end of code without halt", 0, m.ip)
		}

		opByte := m.code[m.ip]
		op, err := OpcodeFromByte(opByte)
		if err != nil {
			return err
		}
		startIP := m.ip
		m.ip++

		if op == Halt {
			return nil
		}

		if err := m.dispatch(op); err != nil {
			if te, ok := err.(*TrapError); ok && !te.hasLocation {
				te.hasLocation = true
				te.Opcode = op
				te.IP = startIP
			}
			return err
		}

		if m.awaitingRead {
			return nil
		}
	}
}

func (m *Machine) dispatch(op Opcode) error {
	switch op {
	case SetType:
		b, err := m.fetchByte()
		if err != nil {
			return err
		}
		t, err := TypeFlagFromByte(b)
		if err != nil {
			return err
		}
		m.tyFlag = t
		return nil

	case GetType:
		return m.push(uint64(m.tyFlag))

	case Push:
		n := m.tyFlag.Size()
		raw, err := m.fetchBytes(n)
		if err != nil {
			return err
		}
		v, err := FromCodeBytes(m.tyFlag, raw)
		if err != nil {
			return err
		}
		return m.push(v.ToStackWord())

	case Add, Sub, Mul, Div, Rem:
		return m.binaryArith(op)

	case Neg:
		return m.unary(func(v Value) (Value, error) { return v.Neg() })

	case Incr:
		return m.unary(func(v Value) (Value, error) { return v.Incr() })

	case Decr:
		return m.unary(func(v Value) (Value, error) { return v.Decr() })

	case Eq, Neq, Lt, Gt, Lte, Gte:
		return m.compare(op)

	case And, Or, Xor, Shl, Shr:
		return m.binaryBitwise(op)

	case Not:
		return m.unary(func(v Value) (Value, error) { return v.Not() })

	case Jmp:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		m.ip = int(addr)
		return nil

	case JmpIf:
		cond, err := m.pop()
		if err != nil {
			return err
		}
		addr, err := m.pop()
		if err != nil {
			return err
		}
		if cond != 0 {
			m.ip = int(addr)
		}
		return nil

	case JmpIfNot:
		cond, err := m.pop()
		if err != nil {
			return err
		}
		addr, err := m.pop()
		if err != nil {
			return err
		}
		if cond == 0 {
			m.ip = int(addr)
		}
		return nil

	case Call:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		if err := m.push(uint64(m.ip)); err != nil {
			return err
		}
		m.ip = int(addr)
		return nil

	case Ret:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		m.ip = int(addr)
		return nil

	case Dup:
		top, err := m.peek()
		if err != nil {
			return err
		}
		return m.push(top)

	case Drop:
		_, err := m.pop()
		return err

	case Swap:
		if m.sp < 2 {
			return newTrap(ErrStackUnderflow, "swap requires two operands")
		}
		m.stack[m.sp-1], m.stack[m.sp-2] = m.stack[m.sp-2], m.stack[m.sp-1]
		return nil

	case Load:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		n := m.tyFlag.Size()
		if int(addr)+n > len(m.heap) || addr > uint64(len(m.heap)) {
			return newTrap(ErrHeapOutOfBounds, "load window exceeds heap")
		}
		v, err := FromCodeBytes(m.tyFlag, m.heap[addr:int(addr)+n])
		if err != nil {
			return err
		}
		return m.push(v.ToStackWord())

	case Store:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		word, err := m.pop()
		if err != nil {
			return err
		}
		n := m.tyFlag.Size()
		if int(addr)+n > len(m.heap) || addr > uint64(len(m.heap)) {
			return newTrap(ErrHeapOutOfBounds, "store window exceeds heap")
		}
		v := FromStackWord(m.tyFlag, word)
		copy(m.heap[addr:int(addr)+n], v.ToCodeBytes())
		return nil

	case Alloc:
		n, err := m.pop()
		if err != nil {
			return err
		}
		addr := len(m.heap)
		grow := int(n) * m.tyFlag.Size()
		m.heap = append(m.heap, make([]byte, grow)...)
		return m.push(uint64(addr))

	case Free:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		size, err := m.pop()
		if err != nil {
			return err
		}
		newLen := int(addr) + int(size)
		if newLen < 0 {
			return newTrap(ErrHeapOutOfBounds, "free would produce negative heap length")
		}
		if newLen <= len(m.heap) {
			m.heap = m.heap[:newLen]
		} else {
			m.heap = append(m.heap, make([]byte, newLen-len(m.heap))...)
		}
		return nil

	case HeapSize:
		return m.push(uint64(len(m.heap)))

	case StackSize:
		return m.push(uint64(m.sp))

	case LoadCode:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		size, err := m.pop()
		if err != nil {
			return err
		}
		if int(addr)+int(size) > len(m.heap) || addr > uint64(len(m.heap)) {
			return newTrap(ErrHeapOutOfBounds, "load_code window exceeds heap")
		}
		start := len(m.code)
		m.code = append(m.code, m.heap[addr:int(addr)+int(size)]...)
		return m.push(uint64(start))

	case SaveCode:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		size, err := m.pop()
		if err != nil {
			return err
		}
		if int(addr)+int(size) > len(m.code) || addr > uint64(len(m.code)) {
			return newTrap(ErrCodeOutOfBounds, "save_code window exceeds code")
		}
		start := len(m.heap)
		m.heap = append(m.heap, m.code[addr:int(addr)+int(size)]...)
		return m.push(uint64(start))

	case Read:
		m.awaitingRead = true
		return nil

	case Write:
		word, err := m.pop()
		if err != nil {
			return err
		}
		v := FromStackWord(m.tyFlag, word)
		m.stream.Write(v.ToCodeBytes())
		m.hasOut = true
		return nil

	case Print:
		word, err := m.pop()
		if err != nil {
			return err
		}
		v := FromStackWord(m.tyFlag, word)
		m.stream.WriteString(v.String())
		m.hasOut = true
		return nil

	case Clear:
		m.stream.Reset()
		m.hasOut = false
		return nil

	default:
		return newTrap(ErrBadOpcode, fmt.Sprintf("unhandled opcode %s", op))
	}
}

func (m *Machine) binaryArith(op Opcode) error {
	rhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhs := FromStackWord(m.tyFlag, lhsWord)
	rhs := FromStackWord(m.tyFlag, rhsWord)

	var result Value
	switch op {
	case Add:
		result, err = lhs.Add(rhs)
	case Sub:
		result, err = lhs.Sub(rhs)
	case Mul:
		result, err = lhs.Mul(rhs)
	case Div:
		result, err = lhs.Div(rhs)
	case Rem:
		result, err = lhs.Rem(rhs)
	}
	if err != nil {
		return err
	}
	return m.push(result.ToStackWord())
}

func (m *Machine) binaryBitwise(op Opcode) error {
	rhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhs := FromStackWord(m.tyFlag, lhsWord)
	rhs := FromStackWord(m.tyFlag, rhsWord)

	var result Value
	switch op {
	case And:
		result, err = lhs.And(rhs)
	case Or:
		result, err = lhs.Or(rhs)
	case Xor:
		result, err = lhs.Xor(rhs)
	case Shl:
		result, err = lhs.Shl(rhs)
	case Shr:
		result, err = lhs.Shr(rhs)
	}
	if err != nil {
		return err
	}
	return m.push(result.ToStackWord())
}

func (m *Machine) compare(op Opcode) error {
	rhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhsWord, err := m.pop()
	if err != nil {
		return err
	}
	lhs := FromStackWord(m.tyFlag, lhsWord)
	rhs := FromStackWord(m.tyFlag, rhsWord)

	var result Value
	switch op {
	case Eq:
		result, err = lhs.Eq(rhs)
	case Neq:
		result, err = lhs.Neq(rhs)
	case Lt:
		result, err = lhs.Lt(rhs)
	case Gt:
		result, err = lhs.Gt(rhs)
	case Lte:
		result, err = lhs.Lte(rhs)
	case Gte:
		result, err = lhs.Gte(rhs)
	}
	if err != nil {
		return err
	}
	// The result is always Bool regardless of the operand alignment; the
	// caller's ty_flag register is left untouched (comparisons don't
	// mutate it), matching the handler table's "type flag restored" note.
	return m.push(result.ToStackWord())
}

func (m *Machine) unary(f func(Value) (Value, error)) error {
	word, err := m.pop()
	if err != nil {
		return err
	}
	v := FromStackWord(m.tyFlag, word)
	result, err := f(v)
	if err != nil {
		return err
	}
	return m.push(result.ToStackWord())
}

func (m *Machine) push(word uint64) error {
	if m.sp >= StackCapacity {
		return newTrap(ErrStackOverflow, "operand stack is full")
	}
	m.stack[m.sp] = word
	m.sp++
	return nil
}

func (m *Machine) pop() (uint64, error) {
	if m.sp <= 0 {
		return 0, newTrap(ErrStackUnderflow, "operand stack is empty")
	}
	m.sp--
	return m.stack[m.sp], nil
}

func (m *Machine) peek() (uint64, error) {
	if m.sp <= 0 {
		return 0, newTrap(ErrStackUnderflow, "operand stack is empty")
	}
	return m.stack[m.sp-1], nil
}

func (m *Machine) fetchByte() (byte, error) {
	if m.ip >= len(m.code) {
		return 0, newTrap(ErrCodeOutOfBounds, "fetch past end of code")
	}
	b := m.code[m.ip]
	m.ip++
	return b, nil
}

func (m *Machine) fetchBytes(n int) ([]byte, error) {
	if m.ip+n > len(m.code) {
		return nil, newTrap(ErrCodeOutOfBounds, "immediate operand runs past end of code")
	}
	raw := m.code[m.ip : m.ip+n]
	m.ip += n
	return raw, nil
}

// StackDepth reports the current number of occupied stack cells.
func (m *Machine) StackDepth() int {
	return m.sp
}

// HeapLen reports the current heap length in bytes.
func (m *Machine) HeapLen() int {
	return len(m.heap)
}

// TypeFlagRegister reports the current type-flag register value.
func (m *Machine) TypeFlagRegister() TypeFlag {
	return m.tyFlag
}
