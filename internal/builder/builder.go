package builder

import (
	"fmt"

	"github.com/eckertliam/towervm/internal/gvm"
)

// Builder orchestrates multiple Functions, resolves call targets by name
// to byte offsets, and emits the final byte vector a Machine runs. No two
// Functions registered on a Builder may share a name.
type Builder struct {
	order  []*Function
	byName map[string]*Function
	entry  string
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{byName: make(map[string]*Function)}
}

// StartFn opens a new Function under the given name. The first Function
// ever started becomes the entry function by default; override with
// SetEntry. A name already in use is a DuplicateFn trap.
func (b *Builder) StartFn(ident string) (*Function, error) {
	if _, exists := b.byName[ident]; exists {
		return nil, fmt.Errorf("%w: %s", gvm.ErrDuplicateFn, ident)
	}
	fn := NewFunction(ident)
	b.byName[ident] = fn
	b.order = append(b.order, fn)
	if b.entry == "" {
		b.entry = ident
	}
	return fn, nil
}

// SetEntry designates which registered Function is placed at byte offset
// 0 in the emitted output.
func (b *Builder) SetEntry(ident string) {
	b.entry = ident
}

func (b *Builder) layoutOrder() ([]*Function, error) {
	if b.entry == "" {
		return b.order, nil
	}
	entryFn, ok := b.byName[b.entry]
	if !ok {
		return nil, fmt.Errorf("%w: entry function %q", gvm.ErrUndefinedFn, b.entry)
	}

	laidOut := make([]*Function, 0, len(b.order))
	laidOut = append(laidOut, entryFn)
	for _, fn := range b.order {
		if fn.ident != b.entry {
			laidOut = append(laidOut, fn)
		}
	}
	return laidOut, nil
}

// Build deterministically lays out Functions (entry first at offset 0,
// all others in insertion order), resolves every Call target to the
// absolute byte offset its named Function was assigned, and returns the
// flattened byte stream.
func (b *Builder) Build() ([]byte, error) {
	fns, err := b.layoutOrder()
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, fn := range fns {
		length := 0
		for _, c := range fn.chunks {
			n, err := c.encodedLen(fn)
			if err != nil {
				return nil, err
			}
			length += n
		}
		fn.Address = offset
		fn.Length = length
		offset += length
	}

	code := make([]byte, 0, offset)
	for _, fn := range fns {
		for _, c := range fn.chunks {
			bytes, err := b.emitChunk(fn, c)
			if err != nil {
				return nil, err
			}
			code = append(code, bytes...)
		}
	}
	return code, nil
}

func (b *Builder) emitChunk(owner *Function, c chunk) ([]byte, error) {
	switch c.kind {
	case chunkSetType:
		return []byte{byte(gvm.SetType), byte(c.ty)}, nil
	case chunkInstr:
		return []byte{byte(c.instr)}, nil
	case chunkValue:
		return c.value.ToCodeBytes(), nil
	case chunkIdentifier:
		con, err := owner.lookupConstant(c.ident)
		if err != nil {
			return nil, err
		}
		return con.Scalar().ToCodeBytes(), nil
	case chunkAccess:
		con, err := owner.lookupConstant(c.ident)
		if err != nil {
			return nil, err
		}
		v, err := con.Access(c.index)
		if err != nil {
			return nil, err
		}
		return v.ToCodeBytes(), nil
	case chunkCall:
		target, ok := b.byName[c.ident]
		if !ok {
			return nil, fmt.Errorf("%w: %s", gvm.ErrUndefinedFn, c.ident)
		}
		addr := gvm.FromU64Raw(c.ty, uint64(target.Address))
		return addr.ToCodeBytes(), nil
	default:
		return nil, nil
	}
}

// BuildMachine builds the byte stream and seeds a fresh Machine with it.
func (b *Builder) BuildMachine() (*gvm.Machine, error) {
	code, err := b.Build()
	if err != nil {
		return nil, err
	}
	m := gvm.New()
	m.LoadCode(code)
	return m, nil
}
