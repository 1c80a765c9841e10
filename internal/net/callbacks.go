package net

import (
	"context"
	"log"
	"math"
)

// Callback defines the interface for training callbacks.
//
// When driven by Train through Notify, the network passed to a callback is a
// snapshot of the weights at the end of the reported epoch, not the network
// being trained. It is safe to read and discard.
type Callback interface {
	OnTrainBegin(n *Network)
	OnEpochEnd(epoch int, loss float64, n *Network)
	OnTrainEnd(n *Network)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network)                        {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, n *Network) {}
func (c BaseCallback) OnTrainEnd(n *Network)                          {}

// Notify adapts callbacks to a ProgressFunc for Train on n.
// OnTrainBegin runs before the first epoch report and OnTrainEnd after the final one;
// a cancelled run never reaches OnTrainEnd.
func Notify(n *Network, cbs ...Callback) ProgressFunc {
	begun := false
	return func(epoch int, loss float64, final bool) {
		view := n.callbackView()
		if !begun {
			begun = true
			for _, cb := range cbs {
				cb.OnTrainBegin(view)
			}
		}
		for _, cb := range cbs {
			cb.OnEpochEnd(epoch, loss, view)
		}
		if final {
			for _, cb := range cbs {
				cb.OnTrainEnd(view)
			}
		}
	}
}

// EarlyStopping cancels training when the epoch error has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Out       *log.Logger // log.Default() when nil

	cancel       context.CancelFunc
	bestLoss     float64
	numBadEpochs int
	Stopped      bool
	StoppedEpoch int
}

// NewEarlyStopping stops the run owning cancel after patience epochs without
// an improvement larger than threshold.
func NewEarlyStopping(patience int, threshold float64, cancel context.CancelFunc) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		cancel:    cancel,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.Stopped {
		return
	}
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		out := c.Out
		if out == nil {
			out = log.Default()
		}
		out.Printf("early stopping at epoch %d: error %.6f did not improve for %d epochs", epoch, loss, c.Patience)
		c.Stopped = true
		c.StoppedEpoch = epoch
		if c.cancel != nil {
			c.cancel()
		}
	}
}

// Logger logs training progress.
type Logger struct {
	BaseCallback
	Interval int
	Out      *log.Logger // log.Default() when nil
}

func (c Logger) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		out := c.Out
		if out == nil {
			out = log.Default()
		}
		out.Printf("Epoch %d: error = %.6f", epoch, loss)
	}
}
