package matrix

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/BPNeuron/internal/activations"
)

var sigmoid activations.Sigmoid

// Mul returns the matrix product m * other.
// m.ColCount() must equal other.RowCount().
func (m *Dense) Mul(other *Dense) (*Dense, error) {
	if m.c != other.r {
		return nil, shapeErrorf("Mul", m, other)
	}
	// gonum rejects zero-sized matrices; the product is all zeros anyway.
	if m.r == 0 || m.c == 0 || other.c == 0 {
		return zeros(m.r, other.c), nil
	}
	var out mat.Dense
	out.Mul(m.gonum(), other.gonum())
	return fromGonum(&out), nil
}

// T returns the transpose of m.
func (m *Dense) T() *Dense {
	if m.r == 0 || m.c == 0 {
		return zeros(m.c, m.r)
	}
	return fromGonum(mat.DenseCopyOf(m.gonum().T()))
}

// Sub returns m - other elementwise.
func (m *Dense) Sub(other *Dense) (*Dense, error) {
	if !m.SameShape(other) {
		return nil, shapeErrorf("Sub", m, other)
	}
	out := zeros(m.r, m.c)
	floats.SubTo(out.data, m.data, other.data)
	return out, nil
}

// MulElem returns the elementwise (Hadamard) product of m and other.
func (m *Dense) MulElem(other *Dense) (*Dense, error) {
	if !m.SameShape(other) {
		return nil, shapeErrorf("MulElem", m, other)
	}
	out := zeros(m.r, m.c)
	floats.MulTo(out.data, m.data, other.data)
	return out, nil
}

// SubFrom returns s - m elementwise.
func (m *Dense) SubFrom(s float64) *Dense {
	return m.Apply(func(v float64) float64 { return s - v })
}

// Scale returns s * m.
func (m *Dense) Scale(s float64) *Dense {
	out := zeros(m.r, m.c)
	floats.ScaleTo(out.data, s, m.data)
	return out
}

// Square returns m with every element squared.
func (m *Dense) Square() *Dense {
	out := zeros(m.r, m.c)
	floats.MulTo(out.data, m.data, m.data)
	return out
}

// Log returns the elementwise natural logarithm.
// Non-positive entries follow math.Log: 0 gives -Inf, negatives give NaN.
func (m *Dense) Log() *Dense {
	return m.Apply(math.Log)
}

// Sum returns the sum of all elements.
func (m *Dense) Sum() float64 {
	return floats.Sum(m.data)
}

// Sigmoid returns 1/(1+e^-x) applied elementwise.
func (m *Dense) Sigmoid() *Dense {
	return m.Apply(sigmoid.Activate)
}

// SigmoidDerivative returns e^-x/(1+e^-x)^2 applied elementwise.
// m must hold pre-activation values.
func (m *Dense) SigmoidDerivative() *Dense {
	return m.Apply(sigmoid.Derivative)
}

// Apply returns a new matrix with fn applied to every element.
func (m *Dense) Apply(fn func(float64) float64) *Dense {
	out := zeros(m.r, m.c)
	for i, v := range m.data {
		out.data[i] = fn(v)
	}
	return out
}

// EqualApprox reports whether m and other have the same shape and all
// elements are within tol of each other.
func (m *Dense) EqualApprox(other *Dense, tol float64) bool {
	return m.SameShape(other) && floats.EqualApprox(m.data, other.data, tol)
}

// gonum wraps m's storage without copying; only use it as a read-only operand.
func (m *Dense) gonum() *mat.Dense {
	return mat.NewDense(m.r, m.c, m.data)
}

func fromGonum(g *mat.Dense) *Dense {
	raw := g.RawMatrix()
	out := zeros(raw.Rows, raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		copy(out.data[i*raw.Cols:(i+1)*raw.Cols], raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols])
	}
	return out
}
