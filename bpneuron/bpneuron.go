// Package bpneuron exposes the network, matrix and training API of the module.
package bpneuron

import (
	"context"

	"github.com/FlavioCFOliveira/BPNeuron/internal/loss"
	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
	"github.com/FlavioCFOliveira/BPNeuron/internal/net"
)

// Re-export common types and functions for easier access
type (
	Network      = net.Network
	Option       = net.Option
	TrainConfig  = net.TrainConfig
	Training     = net.Training
	ProgressFunc = net.ProgressFunc
	Matrix       = matrix.Dense
	Source       = matrix.Source
	Cost         = loss.Cost
	Dataset      = net.Dataset
)

// Errors
var (
	ErrShapeMismatch      = matrix.ErrShapeMismatch
	ErrIndexOutOfRange    = matrix.ErrIndexOutOfRange
	ErrInvalidShape       = net.ErrInvalidShape
	ErrEmptyDataset       = net.ErrEmptyDataset
	ErrTrainingInProgress = net.ErrTrainingInProgress
	ErrUnknownCost        = loss.ErrUnknownCost
)

// Network creation
func New(shape []int, opts ...Option) (*Network, error) {
	return net.New(shape, opts...)
}

var (
	WithCost   = net.WithCost
	WithSource = net.WithSource
	WithLogger = net.WithLogger
)

func DefaultTrainConfig() TrainConfig {
	return net.DefaultTrainConfig()
}

// Matrices
func NewMatrix(rows, cols int, data []float64) (*Matrix, error) {
	return matrix.New(rows, cols, data)
}

func RandomMatrix(rows, cols int, src Source) (*Matrix, error) {
	return matrix.NewRandom(rows, cols, src)
}

// Costs
var (
	Quadratic    = loss.Quadratic{}
	CrossEntropy = loss.CrossEntropy{}
)

func CostByName(name string) (Cost, error) {
	return loss.ByName(name)
}

// Callbacks
type Callback = net.Callback

func Notify(n *Network, cbs ...Callback) ProgressFunc {
	return net.Notify(n, cbs...)
}

func Logger(interval int) net.Logger {
	return net.Logger{Interval: interval}
}

func CSVLogger(filename string, append bool) *net.CSVLogger {
	return net.NewCSVLogger(filename, append)
}

func EarlyStopping(patience int, threshold float64, cancel context.CancelFunc) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, threshold, cancel)
}

// Data
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	return net.LoadCSV(filename, labelCols, hasHeader)
}
