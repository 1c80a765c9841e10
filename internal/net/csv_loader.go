package net

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/BPNeuron/internal/matrix"
)

// Dataset holds a training set as matrices: one row per example.
type Dataset struct {
	Samples *matrix.Dense
	Labels  *matrix.Dense
}

// LoadCSV loads data from a CSV file.
// labelCols specifies the indices of columns to be used as labels.
// All other columns are used as features.
// hasHeader skips the first line if true.
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}

	if len(records) <= startRow {
		return nil, fmt.Errorf("csv file has no data rows")
	}

	numCols := len(records[0])
	isLabelCol := make(map[int]bool)
	for _, col := range labelCols {
		if col < 0 || col >= numCols {
			return nil, fmt.Errorf("label column %d outside %d columns", col, numCols)
		}
		isLabelCol[col] = true
	}
	numFeatures := numCols - len(isLabelCol)

	numSamples := len(records) - startRow
	samples := make([]float64, 0, numSamples*numFeatures)
	labels := make([]float64, 0, numSamples*len(labelCols))

	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("inconsistent number of columns at row %d", i)
		}

		// Map for quick access to label values by their index in the original record
		labelValues := make(map[int]float64)

		for j, valStr := range record {
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i, j, err)
			}

			if isLabelCol[j] {
				labelValues[j] = val
			} else {
				samples = append(samples, val)
			}
		}

		// Labels keep the order given in labelCols
		for _, col := range labelCols {
			labels = append(labels, labelValues[col])
		}
	}

	s, err := matrix.New(numSamples, numFeatures, samples)
	if err != nil {
		return nil, err
	}
	l, err := matrix.New(numSamples, len(labelCols), labels)
	if err != nil {
		return nil, err
	}
	return &Dataset{Samples: s, Labels: l}, nil
}

// Normalize performs min-max normalization on each sample column in place.
// Constant columns become 0.
func (d *Dataset) Normalize() {
	rows, cols := d.Samples.Dims()
	if rows == 0 {
		return
	}

	data := d.Samples.RawData()
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = data[i*cols+j]
		}
		lo, hi := floats.Min(column), floats.Max(column)
		diff := hi - lo
		for i := 0; i < rows; i++ {
			if diff != 0 {
				data[i*cols+j] = (column[i] - lo) / diff
			} else {
				data[i*cols+j] = 0
			}
		}
	}
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// Returns two new Datasets (train, test); rows are copied.
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset, error) {
	rows := d.Samples.RowCount()
	splitIdx := int(float64(rows) * ratio)
	if ratio <= 0 {
		splitIdx = 0
	}
	if ratio >= 1 {
		splitIdx = rows
	}

	train, err := d.slice(0, splitIdx)
	if err != nil {
		return nil, nil, err
	}
	test, err := d.slice(splitIdx, rows)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func (d *Dataset) slice(start, end int) (*Dataset, error) {
	s, err := d.Samples.Rows(start, end)
	if err != nil {
		return nil, err
	}
	l, err := d.Labels.Rows(start, end)
	if err != nil {
		return nil, err
	}
	return &Dataset{Samples: s, Labels: l}, nil
}
