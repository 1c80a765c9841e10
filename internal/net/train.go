package net

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
)

const (
	// DefaultEpochs is used when TrainConfig.Epochs is not positive.
	DefaultEpochs = 1000

	// DefaultLearningRate is used when TrainConfig.LearningRate is not positive.
	DefaultLearningRate = 0.1

	// progressBuffer bounds how far the worker may run ahead of the reporter.
	progressBuffer = 64
)

// TrainConfig holds training hyperparameters.
type TrainConfig struct {
	// MinibatchSize is the number of rows per gradient step. Zero or negative
	// means one batch holding every row. When it does not evenly divide the
	// row count the whole dataset is used as a single batch for the run.
	MinibatchSize int
	Epochs        int
	LearningRate  float64
}

// DefaultTrainConfig returns full-batch training for DefaultEpochs at DefaultLearningRate.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       DefaultEpochs,
		LearningRate: DefaultLearningRate,
	}
}

func (c TrainConfig) withDefaults(rows int) TrainConfig {
	if c.MinibatchSize <= 0 || c.MinibatchSize > rows {
		c.MinibatchSize = rows
	}
	if c.Epochs <= 0 {
		c.Epochs = DefaultEpochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	return c
}

// ProgressFunc receives the summed minibatch cost after every epoch.
// final is true only for the last configured epoch.
type ProgressFunc func(epoch int, totalError float64, final bool)

// Progress is one epoch report passed from the training worker to the reporter.
type Progress struct {
	Epoch int
	Error float64
	Final bool

	// view holds a copy of the weights as they were at the end of Epoch.
	view *Network
}

// Training is the handle of an asynchronous training run.
type Training struct {
	done      chan struct{}
	err       error
	nonFinite atomic.Bool
}

// Done is closed once the run has stopped and every progress callback has returned.
func (t *Training) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until Done is closed. It returns the context error if the run
// was cancelled, or the error that aborted an epoch.
func (t *Training) Wait() error {
	<-t.done
	return t.err
}

// NonFinite reports whether any epoch produced a NaN or infinite error.
// Training is not stopped when this happens.
func (t *Training) NonFinite() bool {
	return t.nonFinite.Load()
}

type batch struct {
	input, desired *matrix.Dense
}

// Train fits the weights to input/desired with minibatch gradient descent.
//
// Train validates its arguments and returns immediately; the epochs run on a
// single background goroutine. onProgress is invoked from a separate reporter
// goroutine, one call at a time, in increasing epoch order. The worker does
// not wait for a callback to return before starting the next epoch.
//
// ctx is checked at every epoch boundary. After cancellation no further
// callbacks are delivered and Wait returns ctx.Err().
func (n *Network) Train(ctx context.Context, input, desired *matrix.Dense, cfg TrainConfig, onProgress ProgressFunc) (*Training, error) {
	if err := n.checkData(input, desired); err != nil {
		return nil, err
	}
	rows := input.RowCount()
	if rows == 0 {
		return nil, ErrEmptyDataset
	}

	cfg = cfg.withDefaults(rows)
	if rows%cfg.MinibatchSize != 0 {
		n.logger.Printf("minibatch size %d does not divide %d rows, using one batch of %d",
			cfg.MinibatchSize, rows, rows)
		cfg.MinibatchSize = rows
	}
	batches, err := partition(input, desired, cfg.MinibatchSize)
	if err != nil {
		return nil, err
	}

	if !n.training.CompareAndSwap(false, true) {
		return nil, ErrTrainingInProgress
	}

	n.logger.Printf("training %v with %s cost: %d epochs, %d batches of %d, learning rate %g",
		n.shape, n.cost.Name(), cfg.Epochs, len(batches), cfg.MinibatchSize, cfg.LearningRate)

	t := &Training{done: make(chan struct{})}
	events := make(chan Progress, progressBuffer)
	go t.report(ctx, n, events, onProgress)
	go n.runEpochs(ctx, t, batches, cfg, events, onProgress != nil)
	return t, nil
}

// runEpochs is the single writer of the network weights for the duration of a run.
func (n *Network) runEpochs(ctx context.Context, t *Training, batches []batch, cfg TrainConfig, events chan<- Progress, snapshots bool) {
	defer func() {
		n.training.Store(false)
		close(events)
	}()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			n.logger.Printf("training stopped before epoch %d: %v", epoch, err)
			t.err = err
			return
		}

		var total float64
		for _, b := range batches {
			cost, err := n.step(b.input, b.desired, cfg.LearningRate)
			if err != nil {
				t.err = fmt.Errorf("net: epoch %d: %w", epoch, err)
				return
			}
			total += cost
		}

		if math.IsNaN(total) || math.IsInf(total, 0) {
			if !t.nonFinite.Swap(true) {
				n.logger.Printf("epoch %d: non-finite training error %v", epoch, total)
			}
		}

		p := Progress{Epoch: epoch, Error: total, Final: epoch == cfg.Epochs}
		if snapshots {
			p.view = n.snapshot()
		}
		select {
		case events <- p:
		case <-ctx.Done():
			t.err = ctx.Err()
			return
		}
	}
}

// report delivers progress serially until the worker closes events.
// Reports still buffered when ctx is cancelled are dropped. While a report is
// delivered, n.reported points at the weights of that epoch.
func (t *Training) report(ctx context.Context, n *Network, events <-chan Progress, onProgress ProgressFunc) {
	defer close(t.done)
	defer n.reported.Store(nil)
	dropped := false
	for p := range events {
		if ctx.Err() != nil {
			dropped = true
			continue
		}
		if onProgress != nil {
			n.reported.Store(p.view)
			onProgress(p.Epoch, p.Error, p.Final)
		}
	}
	// events is closed, so the worker no longer touches t.err.
	if dropped && t.err == nil {
		t.err = ctx.Err()
	}
}

// partition splits the dataset into row-contiguous batches of size rows each.
// size must divide the row count.
func partition(input, desired *matrix.Dense, size int) ([]batch, error) {
	rows := input.RowCount()
	batches := make([]batch, 0, rows/size)
	for start := 0; start < rows; start += size {
		in, err := input.Rows(start, start+size)
		if err != nil {
			return nil, err
		}
		out, err := desired.Rows(start, start+size)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch{input: in, desired: out})
	}
	return batches, nil
}
