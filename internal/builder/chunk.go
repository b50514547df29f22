package builder

import "github.com/eckertliam/towervm/internal/gvm"

// chunk is one fragment of a Function's body before flattening. Which of
// the fields are meaningful is selected by kind.
type chunk struct {
	kind chunkKind

	ty    gvm.TypeFlag // chunkSetType; for chunkCall, the alignment in effect when the call address is pushed
	instr gvm.Opcode   // chunkInstr
	value gvm.Value    // chunkValue
	ident string       // chunkIdentifier, chunkAccess, chunkCall
	index int          // chunkAccess
}

type chunkKind int

const (
	chunkSetType chunkKind = iota
	chunkInstr
	chunkValue
	chunkIdentifier // resolves to a named constant's scalar
	chunkAccess     // resolves to an indexed element of a named constant
	chunkCall       // resolves to another function's entry address
)

// encodedLen reports how many bytes this chunk contributes to the final
// byte stream. It never depends on cross-function addresses, only on
// already-known type widths, so function lengths (and therefore
// addresses) can be computed in a single measuring pass before any byte
// is actually emitted.
func (c chunk) encodedLen(owner *Function) (int, error) {
	switch c.kind {
	case chunkSetType:
		return 2, nil // SetType opcode + ordinal
	case chunkInstr:
		return 1, nil
	case chunkValue:
		return c.value.Type().Size(), nil
	case chunkIdentifier:
		con, err := owner.lookupConstant(c.ident)
		if err != nil {
			return 0, err
		}
		return con.Scalar().Type().Size(), nil
	case chunkAccess:
		con, err := owner.lookupConstant(c.ident)
		if err != nil {
			return 0, err
		}
		v, err := con.Access(c.index)
		if err != nil {
			return 0, err
		}
		return v.Type().Size(), nil
	case chunkCall:
		return c.ty.Size(), nil
	default:
		return 0, nil
	}
}
