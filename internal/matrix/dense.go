// Package matrix provides the row-major dense matrix used for network math.
//
// Every operation returns a new matrix; constructors copy the data they are
// given, so no two matrices share storage unless RawData is used explicitly.
// Errors are package sentinels wrapped with context, match them with errors.Is.
package matrix

import (
	"fmt"
	"math"
	"math/rand"
)

// Source produces uniformly distributed values in [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Dense is a row-major matrix of float64 values.
// The zero value is an empty 0x0 matrix ready to use.
type Dense struct {
	r, c int
	data []float64 // len(data) == r*c
}

// New creates a rows x cols matrix holding a copy of data in row-major order.
func New(rows, cols int, data []float64) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("New(%d,%d): %w", rows, cols, ErrBadShape)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("New(%d,%d) with %d values: %w", rows, cols, len(data), ErrShapeMismatch)
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Dense{r: rows, c: cols, data: d}, nil
}

// NewRandom creates a rows x cols matrix with values drawn uniformly from [-1, 1).
// Values are drawn in row-major order. A nil src uses the math/rand global source.
func NewRandom(rows, cols int, src Source) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("NewRandom(%d,%d): %w", rows, cols, ErrBadShape)
	}
	if src == nil {
		src = globalSource{}
	}
	m := zeros(rows, cols)
	for i := range m.data {
		m.data[i] = 2*src.Float64() - 1
	}
	return m, nil
}

// Empty returns a 0x0 matrix.
func Empty() *Dense {
	return &Dense{}
}

// zeros allocates a zero matrix; callers guarantee non-negative dimensions.
func zeros(rows, cols int) *Dense {
	return &Dense{r: rows, c: cols, data: make([]float64, rows*cols)}
}

// Dims returns the number of rows and columns.
func (m *Dense) Dims() (rows, cols int) {
	return m.r, m.c
}

// RowCount returns the number of rows.
func (m *Dense) RowCount() int { return m.r }

// ColCount returns the number of columns.
func (m *Dense) ColCount() int { return m.c }

// Len returns rows*cols.
func (m *Dense) Len() int { return len(m.data) }

// Data returns a copy of the row-major values.
func (m *Dense) Data() []float64 {
	d := make([]float64, len(m.data))
	copy(d, m.data)
	return d
}

// RawData returns the backing slice. Writes through it mutate the matrix.
func (m *Dense) RawData() []float64 {
	return m.data
}

// Clone returns an independent copy of m.
func (m *Dense) Clone() *Dense {
	return &Dense{r: m.r, c: m.c, data: m.Data()}
}

// SameShape reports whether m and other have identical dimensions.
func (m *Dense) SameShape(other *Dense) bool {
	return m.r == other.r && m.c == other.c
}

// At returns the element at (i, j).
func (m *Dense) At(i, j int) (float64, error) {
	if !m.inBounds(i, j) {
		return 0, indexErrorf("At", i, j)
	}
	return m.data[i*m.c+j], nil
}

// Set assigns v to the element at (i, j).
func (m *Dense) Set(i, j int, v float64) error {
	if !m.inBounds(i, j) {
		return indexErrorf("Set", i, j)
	}
	m.data[i*m.c+j] = v
	return nil
}

// Row returns a copy of row i.
func (m *Dense) Row(i int) ([]float64, error) {
	if i < 0 || i >= m.r {
		return nil, indexErrorf("Row", i, 0)
	}
	row := make([]float64, m.c)
	copy(row, m.data[i*m.c:(i+1)*m.c])
	return row, nil
}

// SetRow overwrites row i with values.
func (m *Dense) SetRow(i int, values []float64) error {
	if i < 0 || i >= m.r {
		return indexErrorf("SetRow", i, 0)
	}
	if len(values) != m.c {
		return fmt.Errorf("SetRow(%d) with %d values on %d columns: %w", i, len(values), m.c, ErrShapeMismatch)
	}
	copy(m.data[i*m.c:], values)
	return nil
}

// Rows returns a copy of rows [start, end) as a new matrix.
func (m *Dense) Rows(start, end int) (*Dense, error) {
	if start < 0 || end > m.r || start > end {
		return nil, fmt.Errorf("Dense.Rows(%d,%d) on %d rows: %w", start, end, m.r, ErrIndexOutOfRange)
	}
	out := zeros(end-start, m.c)
	copy(out.data, m.data[start*m.c:end*m.c])
	return out, nil
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (m *Dense) IsFinite() bool {
	for _, v := range m.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (m *Dense) inBounds(i, j int) bool {
	return i >= 0 && i < m.r && j >= 0 && j < m.c
}
