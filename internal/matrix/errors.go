package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when operand dimensions violate an operation's
	// precondition: data length != rows*cols on construction, a.cols != b.rows in
	// Mul, or differing shapes in an elementwise op.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")

	// ErrIndexOutOfRange is returned by element and row accessors when an index
	// falls outside [0, count).
	ErrIndexOutOfRange = errors.New("matrix: index out of range")

	// ErrBadShape is returned when a constructor receives negative dimensions.
	ErrBadShape = errors.New("matrix: invalid shape")
)

// shapeErrorf wraps ErrShapeMismatch with the operation name and both operand shapes.
func shapeErrorf(op string, a, b *Dense) error {
	return fmt.Errorf("%s %dx%d with %dx%d: %w", op, a.r, a.c, b.r, b.c, ErrShapeMismatch)
}

// indexErrorf wraps ErrIndexOutOfRange with the accessor name and offending coordinates.
func indexErrorf(op string, row, col int) error {
	return fmt.Errorf("Dense.%s(%d,%d): %w", op, row, col, ErrIndexOutOfRange)
}
