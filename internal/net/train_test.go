package net

import (
	"bytes"
	"context"
	"log"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/BPNeuron/internal/loss"
	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
)

type progressCall struct {
	epoch int
	err   float64
	final bool
}

// record returns a ProgressFunc appending every call. Read the slice only after Wait.
func record(calls *[]progressCall) ProgressFunc {
	return func(epoch int, totalError float64, final bool) {
		*calls = append(*calls, progressCall{epoch, totalError, final})
	}
}

func xorData(t *testing.T) (*matrix.Dense, *matrix.Dense) {
	t.Helper()
	return mat(t, 4, 2, 0, 0, 0, 1, 1, 0, 1, 1), mat(t, 4, 1, 0, 1, 1, 0)
}

func TestTrainConfigDefaults(t *testing.T) {
	cfg := TrainConfig{}.withDefaults(8)
	assert.Equal(t, TrainConfig{MinibatchSize: 8, Epochs: DefaultEpochs, LearningRate: DefaultLearningRate}, cfg)

	cfg = TrainConfig{MinibatchSize: 2, Epochs: 5, LearningRate: 0.5}.withDefaults(8)
	assert.Equal(t, TrainConfig{MinibatchSize: 2, Epochs: 5, LearningRate: 0.5}, cfg)

	assert.Equal(t, TrainConfig{Epochs: 1000, LearningRate: 0.1}, DefaultTrainConfig())
}

// TestTrainProgressOrdering tests one callback per epoch, in order, final only at the end.
func TestTrainProgressOrdering(t *testing.T) {
	const epochs = 150 // more than the progress buffer
	n := newNetwork(t, []int{2, 3, 1}, WithSource(&lcgSource{state: 3}))
	input, desired := xorData(t)

	var calls []progressCall
	run, err := n.Train(context.Background(), input, desired, TrainConfig{MinibatchSize: 2, Epochs: epochs, LearningRate: 0.5}, record(&calls))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	require.Len(t, calls, epochs)
	for i, c := range calls {
		assert.Equal(t, i+1, c.epoch)
		assert.Equal(t, i+1 == epochs, c.final, "epoch %d", c.epoch)
		assert.Greater(t, c.err, 0.0)
	}
	assert.False(t, run.NonFinite())

	select {
	case <-run.Done():
	default:
		t.Fatal("Done must be closed after Wait")
	}
}

// TestTrainReturnsImmediately tests that Train does not block on a slow callback.
func TestTrainReturnsImmediately(t *testing.T) {
	n := newNetwork(t, []int{2, 1})
	input, desired := xorData(t)

	release := make(chan struct{})
	var calls []progressCall
	inner := record(&calls)
	run, err := n.Train(context.Background(), input, desired, TrainConfig{Epochs: 3}, func(epoch int, e float64, final bool) {
		<-release
		inner(epoch, e, final)
	})
	require.NoError(t, err)

	select {
	case <-run.Done():
		t.Fatal("run finished while its callback is blocked")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.NoError(t, run.Wait())
	assert.Len(t, calls, 3)
}

// TestTrainReducesError trains a [2,1] network on linearly separable data.
func TestTrainReducesError(t *testing.T) {
	n := newNetwork(t, []int{2, 1}, WithSource(rand.New(rand.NewSource(42))))
	input := mat(t, 4, 2,
		1, 0,
		0, 1,
		1, 0.2,
		0.2, 1,
	)
	desired := mat(t, 4, 1, 1, 0, 1, 0)

	var calls []progressCall
	run, err := n.Train(context.Background(), input, desired, TrainConfig{Epochs: 500, LearningRate: 0.1}, record(&calls))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	require.Len(t, calls, 500)
	first, last := calls[0].err, calls[499].err
	assert.LessOrEqual(t, last, 0.5*first, "error %v -> %v", first, last)
}

// TestTrainXOR is an end-to-end smoke test on a [2,3,1] network.
func TestTrainXOR(t *testing.T) {
	n := newNetwork(t, []int{2, 3, 1}, WithSource(&lcgSource{state: 1}))
	input, desired := xorData(t)

	untrained, err := n.Run(input)
	require.NoError(t, err)
	baseline, err := n.Cost().Calculate(untrained, desired)
	require.NoError(t, err)

	var calls []progressCall
	run, err := n.Train(context.Background(), input, desired,
		TrainConfig{MinibatchSize: 4, Epochs: 2000, LearningRate: 0.5}, record(&calls))
	require.NoError(t, err)
	require.NoError(t, run.Wait())
	require.Len(t, calls, 2000)
	assert.Less(t, calls[1999].err, baseline)

	out, err := n.Run(input)
	require.NoError(t, err)
	near := 0
	want := desired.Data()
	for i, v := range out.Data() {
		if math.Abs(v-want[i]) < 0.25 {
			near++
		}
	}
	assert.GreaterOrEqual(t, near, 3, "outputs %v", out.Data())
}

// TestTrainMatchesManualBatches tests that Train runs TrainBatch over row-contiguous
// minibatches in order, summing the cost.
func TestTrainMatchesManualBatches(t *testing.T) {
	input, desired := xorData(t)
	auto := newNetwork(t, []int{2, 2, 1}, WithSource(&lcgSource{state: 9}))
	manual := newNetwork(t, []int{2, 2, 1}, WithSource(&lcgSource{state: 9}))

	var calls []progressCall
	run, err := auto.Train(context.Background(), input, desired, TrainConfig{MinibatchSize: 2, Epochs: 3, LearningRate: 0.3}, record(&calls))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	for epoch := 0; epoch < 3; epoch++ {
		var total float64
		for start := 0; start < 4; start += 2 {
			in, _ := input.Rows(start, start+2)
			out, _ := desired.Rows(start, start+2)
			c, err := manual.TrainBatch(in, out, 0.3)
			require.NoError(t, err)
			total += c
		}
		assert.InDelta(t, total, calls[epoch].err, 1e-12)
	}

	for i := range auto.Weights() {
		assert.InDeltaSlice(t, manual.Weights()[i].Data(), auto.Weights()[i].Data(), 1e-12)
	}
}

// TestTrainUnevenMinibatchFallsBack tests that a minibatch size not dividing the
// row count trains on the full dataset as one batch.
func TestTrainUnevenMinibatchFallsBack(t *testing.T) {
	input, desired := xorData(t)
	var logs bytes.Buffer
	uneven := newNetwork(t, []int{2, 2, 1}, WithSource(&lcgSource{state: 4}), WithLogger(log.New(&logs, "", 0)))
	full := newNetwork(t, []int{2, 2, 1}, WithSource(&lcgSource{state: 4}))

	run, err := uneven.Train(context.Background(), input, desired, TrainConfig{MinibatchSize: 3, Epochs: 10}, nil)
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	run, err = full.Train(context.Background(), input, desired, TrainConfig{MinibatchSize: 4, Epochs: 10}, nil)
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	for i := range full.Weights() {
		assert.Equal(t, full.Weights()[i].Data(), uneven.Weights()[i].Data())
	}
	assert.Contains(t, logs.String(), "does not divide")
}

func TestTrainValidation(t *testing.T) {
	n := newNetwork(t, []int{2, 1})
	before := n.Weights()

	_, err := n.Train(context.Background(), mat(t, 1, 3, 1, 2, 3), mat(t, 1, 1, 1), TrainConfig{}, nil)
	require.ErrorIs(t, err, matrix.ErrShapeMismatch)

	_, err = n.Train(context.Background(), mat(t, 2, 2, 1, 2, 3, 4), mat(t, 1, 1, 1), TrainConfig{}, nil)
	require.ErrorIs(t, err, matrix.ErrShapeMismatch)

	_, err = n.Train(context.Background(), mat(t, 0, 2), mat(t, 0, 1), TrainConfig{}, nil)
	require.ErrorIs(t, err, ErrEmptyDataset)

	assert.Equal(t, before[0].Data(), n.Weights()[0].Data())
}

// TestTrainCancelledBeforeStart tests that a dead context runs no epochs.
func TestTrainCancelledBeforeStart(t *testing.T) {
	n := newNetwork(t, []int{2, 1})
	before := n.Weights()
	input, desired := xorData(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []progressCall
	run, err := n.Train(ctx, input, desired, TrainConfig{Epochs: 10}, record(&calls))
	require.NoError(t, err)
	require.ErrorIs(t, run.Wait(), context.Canceled)

	assert.Empty(t, calls)
	assert.Equal(t, before[0].Data(), n.Weights()[0].Data())
}

// TestTrainNonFinite tests that a diverging cross entropy is reported, not fatal.
func TestTrainNonFinite(t *testing.T) {
	var logs bytes.Buffer
	n := newNetwork(t, []int{1, 1}, WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, n.SetWeights(0, mat(t, 1, 1, 1000)))

	var calls []progressCall
	run, err := n.Train(context.Background(), mat(t, 1, 1, 1), mat(t, 1, 1, 0), TrainConfig{Epochs: 3}, record(&calls))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	require.Len(t, calls, 3)
	assert.True(t, math.IsInf(calls[0].err, 1))
	assert.True(t, run.NonFinite())
	assert.Equal(t, 1, strings.Count(logs.String(), "non-finite"))
}

type recordingCallback struct {
	BaseCallback
	begins, ends int
	epochs       []int
}

func (c *recordingCallback) OnTrainBegin(n *Network)                        { c.begins++ }
func (c *recordingCallback) OnEpochEnd(epoch int, loss float64, n *Network) { c.epochs = append(c.epochs, epoch) }
func (c *recordingCallback) OnTrainEnd(n *Network)                          { c.ends++ }

func TestNotifyCallbacks(t *testing.T) {
	n := newNetwork(t, []int{2, 1}, WithCost(loss.Quadratic{}))
	input, desired := xorData(t)

	var out bytes.Buffer
	rec := &recordingCallback{}
	run, err := n.Train(context.Background(), input, desired, TrainConfig{Epochs: 5},
		Notify(n, rec, Logger{Interval: 2, Out: log.New(&out, "", 0)}))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	assert.Equal(t, 1, rec.begins)
	assert.Equal(t, 1, rec.ends)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.epochs)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Epoch 2:"))
	assert.True(t, strings.HasPrefix(lines[1], "Epoch 4:"))
}

// TestEarlyStoppingCancelsRun tests that EarlyStopping stops a long run.
func TestEarlyStoppingCancelsRun(t *testing.T) {
	n := newNetwork(t, []int{2, 1})
	input, desired := xorData(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a huge threshold makes every epoch after the first count as no improvement
	var logs bytes.Buffer
	stop := NewEarlyStopping(3, 1e9, cancel)
	stop.Out = log.New(&logs, "test: ", 0)
	rec := &recordingCallback{}
	run, err := n.Train(ctx, input, desired, TrainConfig{Epochs: 1 << 30}, Notify(n, stop, rec))
	require.NoError(t, err)
	require.ErrorIs(t, run.Wait(), context.Canceled)

	assert.True(t, stop.Stopped)
	assert.Equal(t, 4, stop.StoppedEpoch)
	assert.Equal(t, []int{1, 2, 3, 4}, rec.epochs)
	assert.Zero(t, rec.ends)
	assert.True(t, strings.HasPrefix(logs.String(), "test: early stopping at epoch 4:"), logs.String())
}

// weightsCallback reads the network it is handed on every epoch.
type weightsCallback struct {
	BaseCallback
	input   *matrix.Dense
	weights [][]*matrix.Dense
	outputs []*matrix.Dense
	live    *Network
	sawLive bool
}

func (c *weightsCallback) OnEpochEnd(epoch int, loss float64, n *Network) {
	if n == c.live {
		c.sawLive = true
	}
	c.weights = append(c.weights, n.Weights())
	out, err := n.Run(c.input)
	if err == nil {
		c.outputs = append(c.outputs, out)
	}
}

// TestNotifyWeightSnapshots tests that callbacks reading the network see the
// weights of the reported epoch while the worker keeps training.
func TestNotifyWeightSnapshots(t *testing.T) {
	const epochs = 200
	input, desired := xorData(t)
	n := newNetwork(t, []int{2, 3, 1}, WithSource(&lcgSource{state: 6}))
	manual := newNetwork(t, []int{2, 3, 1}, WithSource(&lcgSource{state: 6}))

	cb := &weightsCallback{input: input, live: n}
	run, err := n.Train(context.Background(), input, desired, TrainConfig{Epochs: epochs, LearningRate: 0.5}, Notify(n, cb))
	require.NoError(t, err)
	require.NoError(t, run.Wait())

	assert.False(t, cb.sawLive, "callbacks must not receive the network being trained")
	require.Len(t, cb.weights, epochs)
	require.Len(t, cb.outputs, epochs)

	for epoch := 0; epoch < 3; epoch++ {
		_, err := manual.TrainBatch(input, desired, 0.5)
		require.NoError(t, err)
		for i, w := range manual.Weights() {
			assert.InDeltaSlice(t, w.Data(), cb.weights[epoch][i].Data(), 1e-12, "epoch %d layer %d", epoch+1, i)
		}
	}

	final := n.Weights()
	for i := range final {
		assert.Equal(t, final[i].Data(), cb.weights[epochs-1][i].Data())
	}
	assert.NotEqual(t, cb.weights[0][0].Data(), cb.weights[epochs-1][0].Data())

	// outside a run the callback view is the network itself
	assert.Same(t, n, n.callbackView())
}
