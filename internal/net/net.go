// Package net provides the fully connected sigmoid network and its
// backpropagation training engine.
package net

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/FlavioCFOliveira/BPNeuron/internal/loss"
	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
	"github.com/FlavioCFOliveira/BPNeuron/internal/opt"
)

var (
	// ErrInvalidShape is returned by New when the shape has fewer than two
	// layers or a non-positive layer size.
	ErrInvalidShape = errors.New("net: invalid network shape")

	// ErrEmptyDataset is returned by Train when the input has no rows.
	ErrEmptyDataset = errors.New("net: dataset has no rows")

	// ErrTrainingInProgress is returned when the weights are already owned
	// by a running Train call.
	ErrTrainingInProgress = errors.New("net: training in progress")
)

// Network is a fully connected feedforward network with sigmoid activations
// and no bias terms. Weight i maps layer i to layer i+1 and has shape
// (shape[i], shape[i+1]).
//
// Weights have a single writer: Train, TrainBatch and SetWeights each take
// exclusive ownership and fail with ErrTrainingInProgress while another
// holds it. Run does not synchronise with training; callers that need
// inference during training must coordinate externally.
type Network struct {
	shape   []int
	weights []*matrix.Dense
	cost    loss.Cost
	logger  *log.Logger

	training atomic.Bool
	// reported is the snapshot handed to callbacks during a Train run.
	reported atomic.Pointer[Network]
}

// New creates a network with len(shape)-1 randomly initialised weight matrices.
func New(shape []int, opts ...Option) (*Network, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("%v: need at least 2 layers: %w", shape, ErrInvalidShape)
	}
	for i, size := range shape {
		if size <= 0 {
			return nil, fmt.Errorf("%v: layer %d has size %d: %w", shape, i, size, ErrInvalidShape)
		}
	}

	cfg := gatherOptions(opts)
	n := &Network{
		shape:   append([]int(nil), shape...),
		weights: make([]*matrix.Dense, 0, len(shape)-1),
		cost:    cfg.cost,
		logger:  cfg.logger,
	}
	for i := 1; i < len(shape); i++ {
		w, err := matrix.NewRandom(shape[i-1], shape[i], cfg.source)
		if err != nil {
			return nil, err
		}
		n.weights = append(n.weights, w)
	}
	return n, nil
}

// Run performs a forward pass: a = sigmoid(a * W) for every weight matrix.
// input must have shape[0] columns.
func (n *Network) Run(input *matrix.Dense) (*matrix.Dense, error) {
	if input.ColCount() != n.shape[0] {
		return nil, fmt.Errorf("net: run: input has %d columns, network expects %d: %w",
			input.ColCount(), n.shape[0], matrix.ErrShapeMismatch)
	}
	a := input
	for _, w := range n.weights {
		z, err := a.Mul(w)
		if err != nil {
			return nil, err
		}
		a = z.Sigmoid()
	}
	return a, nil
}

// TrainBatch performs one gradient descent step on a single minibatch and
// returns the cost of the network output computed before the update.
// Weights are not modified when an error is returned.
func (n *Network) TrainBatch(input, desired *matrix.Dense, learningRate float64) (float64, error) {
	if !n.training.CompareAndSwap(false, true) {
		return 0, ErrTrainingInProgress
	}
	defer n.training.Store(false)
	if err := n.checkData(input, desired); err != nil {
		return 0, err
	}
	return n.step(input, desired, learningRate)
}

// step runs backpropagation and applies the update. Inputs are already validated.
func (n *Network) step(input, desired *matrix.Dense, learningRate float64) (float64, error) {
	grads, cost, err := n.backprop(input, desired)
	if err != nil {
		return 0, err
	}
	// All gradients are computed against the pre-update weights.
	sgd := opt.SGD{LearningRate: learningRate}
	for i, g := range grads {
		if err := opt.Update(sgd, n.weights[i], g); err != nil {
			return 0, err
		}
	}
	return cost, nil
}

// backprop returns the weight gradients for one minibatch and the cost of the
// forward pass that produced them.
func (n *Network) backprop(input, desired *matrix.Dense) ([]*matrix.Dense, float64, error) {
	layers := len(n.weights)
	activations := make([]*matrix.Dense, 0, layers+1)
	zs := make([]*matrix.Dense, 0, layers)

	// feedforward
	a := input
	activations = append(activations, a)
	for _, w := range n.weights {
		z, err := a.Mul(w)
		if err != nil {
			return nil, 0, err
		}
		zs = append(zs, z)
		a = z.Sigmoid()
		activations = append(activations, a)
	}

	// backward pass
	grads := make([]*matrix.Dense, layers)
	delta, err := n.cost.Delta(a, desired, zs[layers-1])
	if err != nil {
		return nil, 0, err
	}
	if grads[layers-1], err = activations[layers-1].T().Mul(delta); err != nil {
		return nil, 0, err
	}
	for k := layers - 2; k >= 0; k-- {
		back, err := delta.Mul(n.weights[k+1].T())
		if err != nil {
			return nil, 0, err
		}
		if delta, err = back.MulElem(zs[k].SigmoidDerivative()); err != nil {
			return nil, 0, err
		}
		if grads[k], err = activations[k].T().Mul(delta); err != nil {
			return nil, 0, err
		}
	}

	cost, err := n.cost.Calculate(a, desired)
	if err != nil {
		return nil, 0, err
	}
	return grads, cost, nil
}

// checkData validates a training pair against the network shape.
func (n *Network) checkData(input, desired *matrix.Dense) error {
	in, out := n.shape[0], n.shape[len(n.shape)-1]
	switch {
	case input.ColCount() != in:
		return fmt.Errorf("net: input has %d columns, network expects %d: %w", input.ColCount(), in, matrix.ErrShapeMismatch)
	case desired.ColCount() != out:
		return fmt.Errorf("net: desired output has %d columns, network expects %d: %w", desired.ColCount(), out, matrix.ErrShapeMismatch)
	case input.RowCount() != desired.RowCount():
		return fmt.Errorf("net: %d input rows but %d desired rows: %w", input.RowCount(), desired.RowCount(), matrix.ErrShapeMismatch)
	}
	return nil
}

// snapshot returns a detached network holding a copy of the current weights.
// Only the weight owner may call it.
func (n *Network) snapshot() *Network {
	return &Network{
		shape:   n.shape,
		weights: n.Weights(),
		cost:    n.cost,
		logger:  n.logger,
	}
}

// callbackView returns the snapshot of the epoch being reported, or n itself
// outside a Train run.
func (n *Network) callbackView() *Network {
	if v := n.reported.Load(); v != nil {
		return v
	}
	return n
}

// Shape returns a copy of the layer sizes.
func (n *Network) Shape() []int {
	return append([]int(nil), n.shape...)
}

// Cost returns the cost strategy chosen at construction.
func (n *Network) Cost() loss.Cost {
	return n.cost
}

// Weights returns deep copies of the weight matrices.
func (n *Network) Weights() []*matrix.Dense {
	out := make([]*matrix.Dense, len(n.weights))
	for i, w := range n.weights {
		out[i] = w.Clone()
	}
	return out
}

// SetWeights overwrites the values of weight matrix i with those of w.
// w must have the same shape as the existing matrix.
func (n *Network) SetWeights(i int, w *matrix.Dense) error {
	if !n.training.CompareAndSwap(false, true) {
		return ErrTrainingInProgress
	}
	defer n.training.Store(false)
	if i < 0 || i >= len(n.weights) {
		return fmt.Errorf("net: weight index %d of %d: %w", i, len(n.weights), matrix.ErrIndexOutOfRange)
	}
	if !n.weights[i].SameShape(w) {
		r, c := n.weights[i].Dims()
		wr, wc := w.Dims()
		return fmt.Errorf("net: weight %d is %dx%d, got %dx%d: %w", i, r, c, wr, wc, matrix.ErrShapeMismatch)
	}
	copy(n.weights[i].RawData(), w.RawData())
	return nil
}

// Option configures a Network.
type Option func(*options)

type options struct {
	cost   loss.Cost
	source matrix.Source
	logger *log.Logger
}

func gatherOptions(opts []Option) options {
	o := options{
		cost:   loss.CrossEntropy{},
		logger: log.New(io.Discard, "", 0),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithCost selects the cost strategy. The default is loss.CrossEntropy.
func WithCost(c loss.Cost) Option {
	return func(o *options) {
		if c != nil {
			o.cost = c
		}
	}
}

// WithSource sets the random source used for weight initialisation.
func WithSource(src matrix.Source) Option {
	return func(o *options) { o.source = src }
}

// WithLogger sets the logger for training diagnostics. Output is discarded by default.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
