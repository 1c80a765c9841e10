// Package activations provides the sigmoid transfer function used by every layer.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation value x.
	Derivative(x float64) float64
}

// Sigmoid activation function.
type Sigmoid struct{}

// Activate computes 1 / (1 + e^-x)
func (s Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative computes e^-x / (1 + e^-x)^2.
// x is the pre-activation value, not the already activated output.
func (s Sigmoid) Derivative(x float64) float64 {
	e := math.Exp(-x)
	if math.IsInf(e, 1) {
		return 0
	}
	d := 1 + e
	return e / (d * d)
}
