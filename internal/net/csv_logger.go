package net

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(n *Network) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		log.Printf("CSVLogger: failed to open file %s: %v", c.Filename, err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.write([]string{"epoch", "error", "time_seconds"})
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.writer == nil {
		return
	}

	elapsed := time.Since(c.start).Seconds()
	c.write([]string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(loss, 'f', 6, 64),
		fmt.Sprintf("%.2f", elapsed),
	})
}

func (c *CSVLogger) OnTrainEnd(n *Network) {
	if err := c.Close(); err != nil {
		log.Printf("CSVLogger: %v", err)
	}
}

// Close flushes and closes the file. Runs that are cancelled never reach
// OnTrainEnd, so callers should defer Close.
func (c *CSVLogger) Close() error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.writer.Error()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	c.file = nil
	c.writer = nil
	return err
}

// write flushes every record so the file is readable while training runs.
func (c *CSVLogger) write(record []string) {
	if err := c.writer.Write(record); err != nil {
		log.Printf("CSVLogger: failed to write record: %v", err)
		return
	}
	c.writer.Flush()
}
