// Package builder implements the structured emission layer: named
// Constants and Functions assembled through a Builder that lowers them
// into the flat byte stream a gvm.Machine executes.
package builder

import (
	"fmt"

	"github.com/eckertliam/towervm/internal/gvm"
)

// Constant is a named immutable scalar or homogeneous scalar sequence,
// usable at build time by a Function's Identifier/Access chunks.
type Constant struct {
	ident      string
	collection bool
	data       []gvm.Value
}

// NewConstant builds a Constant from one or more Values sharing an
// identifier. A sequence of more than one element is a collection, and
// every element must carry the same TypeFlag; mismatched element types
// are a build-time ConstTypeMismatch trap.
func NewConstant(ident string, data []gvm.Value) (*Constant, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("constant %q: %w: no data supplied", ident, gvm.ErrConstTypeMismatch)
	}

	collection := len(data) > 1
	if collection {
		head := data[0].Type()
		for _, v := range data[1:] {
			if v.Type() != head {
				return nil, fmt.Errorf("constant %q: %w: expected %s, got %s",
					ident, gvm.ErrConstTypeMismatch, head, v.Type())
			}
		}
	}

	return &Constant{ident: ident, collection: collection, data: data}, nil
}

// Ident returns the constant's name.
func (c *Constant) Ident() string { return c.ident }

// IsCollection reports whether the constant holds more than one element.
func (c *Constant) IsCollection() bool { return c.collection }

// Scalar returns the constant's sole value. Valid for both scalar and
// collection constants (a collection's Scalar is its first element).
func (c *Constant) Scalar() gvm.Value { return c.data[0] }

// Access returns the idx-th element of a collection constant.
// Out-of-range access is a build-time ConstIndexOutOfRange trap; calling
// Access on a non-collection constant is likewise rejected, since indexed
// access is only meaningful for a sequence.
func (c *Constant) Access(idx int) (gvm.Value, error) {
	if !c.collection {
		return gvm.Value{}, fmt.Errorf("constant %q: %w: not a collection", c.ident, gvm.ErrConstIndexOutOfRange)
	}
	if idx < 0 || idx >= len(c.data) {
		return gvm.Value{}, fmt.Errorf("constant %q: %w: index %d out of range (len %d)",
			c.ident, gvm.ErrConstIndexOutOfRange, idx, len(c.data))
	}
	return c.data[idx], nil
}
