// Package opt provides the gradient descent update rule.
package opt

import (
	"fmt"

	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// StepInPlace updates params in-place from gradients of the same length.
	StepInPlace(params, gradients []float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LearningRate float64
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s SGD) StepInPlace(params, gradients []float64) {
	for i := range params {
		params[i] -= s.LearningRate * gradients[i]
	}
}

// Update applies one in-place step to the weight matrix w.
// w is left untouched when grad has a different shape.
func Update(o Optimizer, w, grad *matrix.Dense) error {
	if !w.SameShape(grad) {
		r, c := w.Dims()
		gr, gc := grad.Dims()
		return fmt.Errorf("opt: update %dx%d with %dx%d gradient: %w", r, c, gr, gc, matrix.ErrShapeMismatch)
	}
	o.StepInPlace(w.RawData(), grad.RawData())
	return nil
}
