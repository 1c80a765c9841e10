package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/BPNeuron/internal/loss"
	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
	"github.com/FlavioCFOliveira/BPNeuron/internal/net"
)

func main() {
	var (
		epochs   = flag.Int("epochs", 5000, "number of training epochs")
		lr       = flag.Float64("lr", 0.5, "learning rate")
		batch    = flag.Int("batch", 0, "minibatch size (0 = full batch)")
		costName = flag.String("cost", "cross-entropy", "cost function: quadratic or cross-entropy")
		hidden   = flag.String("hidden", "3", "comma separated hidden layer sizes")
		dataFile = flag.String("csv", "", "train on a CSV file instead of XOR")
		labels   = flag.String("labels", "", "comma separated label column indices of the CSV")
		header   = flag.Bool("header", true, "CSV has a header row")
		logFile  = flag.String("log", "", "write per-epoch error to this CSV file")
		interval = flag.Int("interval", 500, "print progress every n epochs")
		patience = flag.Int("patience", 0, "stop after n epochs without improvement (0 = off)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "xor: ", log.LstdFlags)

	cost, err := loss.ByName(*costName)
	if err != nil {
		logger.Fatal(err)
	}

	input, desired, err := loadData(*dataFile, *labels, *header)
	if err != nil {
		logger.Fatal(err)
	}

	sizes, err := parseInts(*hidden)
	if err != nil {
		logger.Fatalf("hidden: %v", err)
	}
	shape := append([]int{input.ColCount()}, sizes...)
	shape = append(shape, desired.ColCount())

	network, err := net.New(shape, net.WithCost(cost), net.WithLogger(logger))
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Printf("Network shape: %v, cost: %s\n", network.Shape(), cost.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	callbacks := []net.Callback{net.Logger{Interval: *interval, Out: logger}}
	if *logFile != "" {
		csvLog := net.NewCSVLogger(*logFile, false)
		defer csvLog.Close()
		callbacks = append(callbacks, csvLog)
	}
	if *patience > 0 {
		early := net.NewEarlyStopping(*patience, 1e-6, stop)
		early.Out = logger
		callbacks = append(callbacks, early)
	}

	cfg := net.TrainConfig{MinibatchSize: *batch, Epochs: *epochs, LearningRate: *lr}
	run, err := network.Train(ctx, input, desired, cfg, net.Notify(network, callbacks...))
	if err != nil {
		logger.Fatal(err)
	}
	if err := run.Wait(); err != nil {
		logger.Printf("training stopped: %v", err)
	}
	if run.NonFinite() {
		logger.Print("training error diverged")
	}

	out, err := network.Run(input)
	if err != nil {
		logger.Fatal(err)
	}

	fmt.Println("\nTrained network output:")
	for i := 0; i < input.RowCount(); i++ {
		in, _ := input.Row(i)
		pred, _ := out.Row(i)
		want, _ := desired.Row(i)
		fmt.Printf("Input: %v, Predicted: %.4f, Target: %v\n", in, pred, want)
	}
}

func loadData(file, labels string, header bool) (*matrix.Dense, *matrix.Dense, error) {
	if file == "" {
		input, err := matrix.New(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
		if err != nil {
			return nil, nil, err
		}
		desired, err := matrix.New(4, 1, []float64{0, 1, 1, 0})
		if err != nil {
			return nil, nil, err
		}
		return input, desired, nil
	}

	cols, err := parseInts(labels)
	if err != nil || len(cols) == 0 {
		return nil, nil, fmt.Errorf("labels: need at least one column index")
	}
	dataset, err := net.LoadCSV(file, cols, header)
	if err != nil {
		return nil, nil, err
	}
	dataset.Normalize()
	return dataset.Samples, dataset.Labels, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
