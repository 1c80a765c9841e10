// Package loss provides the cost strategies used by the training engine.
package loss

import (
	"errors"
	"fmt"

	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
)

// ErrUnknownCost is returned by ByName for an unrecognised cost name.
var ErrUnknownCost = errors.New("loss: unknown cost")

// Cost is a loss function paired with its output-layer error delta.
// Both implementations assume a sigmoid output layer.
type Cost interface {
	// Calculate computes the scalar cost of output against desired.
	Calculate(output, desired *matrix.Dense) (float64, error)

	// Delta computes the output-layer error given the final activation and
	// its pre-activation z.
	Delta(output, desired, z *matrix.Dense) (*matrix.Dense, error)

	// Name identifies the cost in logs and on the command line.
	Name() string
}

// Quadratic cost: 0.5 * sum((desired - output)^2)
type Quadratic struct{}

// Calculate computes 0.5 * sum((desired - output)^2)
func (Quadratic) Calculate(output, desired *matrix.Dense) (float64, error) {
	diff, err := desired.Sub(output)
	if err != nil {
		return 0, err
	}
	return 0.5 * diff.Square().Sum(), nil
}

// Delta computes (output - desired) ⊙ sigmoid'(z)
func (Quadratic) Delta(output, desired, z *matrix.Dense) (*matrix.Dense, error) {
	diff, err := output.Sub(desired)
	if err != nil {
		return nil, err
	}
	return diff.MulElem(z.SigmoidDerivative())
}

// Name returns "quadratic".
func (Quadratic) Name() string { return "quadratic" }

// CrossEntropy cost for sigmoid outputs.
type CrossEntropy struct{}

// Calculate computes sum(-desired ⊙ ln(output) - (1-desired) ⊙ ln(1-output)).
// Outputs saturated at exactly 0 or 1 against a mismatched target give +Inf or NaN;
// no clipping is applied.
func (CrossEntropy) Calculate(output, desired *matrix.Dense) (float64, error) {
	pos, err := desired.Scale(-1).MulElem(output.Log())
	if err != nil {
		return 0, err
	}
	neg, err := desired.SubFrom(1).MulElem(output.SubFrom(1).Log())
	if err != nil {
		return 0, err
	}
	cost, err := pos.Sub(neg)
	if err != nil {
		return 0, err
	}
	return cost.Sum(), nil
}

// Delta computes output - desired. With a sigmoid output layer the sigmoid
// derivative cancels, so z is not used.
func (CrossEntropy) Delta(output, desired, _ *matrix.Dense) (*matrix.Dense, error) {
	return output.Sub(desired)
}

// Name returns "cross-entropy".
func (CrossEntropy) Name() string { return "cross-entropy" }

// ByName returns the cost registered under name.
func ByName(name string) (Cost, error) {
	switch name {
	case Quadratic{}.Name(), "mse":
		return Quadratic{}, nil
	case CrossEntropy{}.Name(), "crossentropy":
		return CrossEntropy{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownCost)
	}
}
