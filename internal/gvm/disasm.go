package gvm

import "fmt"

// Disassemble walks a code segment and renders one line per decoded
// instruction: the opcode mnemonic, plus its immediate operand for
// SetType (a type name) and Push (the raw little-endian bytes, since the
// type-flag register at disassembly time is a static guess at best — a
// reader wanting numeric values should track SetType lines themselves).
// A malformed tail (bad opcode, truncated immediate) stops disassembly
// and appends a trailing diagnostic line rather than panicking.
func Disassemble(code []byte) []string {
	var lines []string
	ip := 0
	tyFlag := U64

	for ip < len(code) {
		offset := ip
		op, err := OpcodeFromByte(code[ip])
		if err != nil {
			lines = append(lines, fmt.Sprintf("%04d: <bad opcode 0x%02x>", offset, code[ip]))
			break
		}
		ip++

		switch op {
		case SetType:
			if ip >= len(code) {
				lines = append(lines, fmt.Sprintf("%04d: set_type <truncated>", offset))
				return lines
			}
			t, err := TypeFlagFromByte(code[ip])
			if err != nil {
				lines = append(lines, fmt.Sprintf("%04d: set_type <bad type 0x%02x>", offset, code[ip]))
				return lines
			}
			tyFlag = t
			ip++
			lines = append(lines, fmt.Sprintf("%04d: set_type %s", offset, t))

		case Push:
			n := tyFlag.Size()
			if ip+n > len(code) {
				lines = append(lines, fmt.Sprintf("%04d: push <truncated>", offset))
				return lines
			}
			lines = append(lines, fmt.Sprintf("%04d: push %s %x", offset, tyFlag, code[ip:ip+n]))
			ip += n

		default:
			lines = append(lines, fmt.Sprintf("%04d: %s", offset, op))
		}
	}

	return lines
}
