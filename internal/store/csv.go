package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var axisNames = []string{"x", "y", "z", "r"}

// Header returns the iteration log header for a problem of the given
// dimension.
func Header(dimensions int) []string {
	header := make([]string, 0, dimensions+5)
	header = append(header, "iteration")
	for i := 0; i < dimensions; i++ {
		if i < len(axisNames) {
			header = append(header, axisNames[i])
		} else {
			header = append(header, "x"+strconv.Itoa(i+1))
		}
	}
	return append(header, "value", "error", "value_error", "diversity")
}

// LogPath is the iteration log location for one attempt, e.g.
// logs/two_global.dg.3.csv.
func LogPath(dir, problem, strategy string, attempt int) string {
	name := problem
	if strategy == "dg" {
		name += ".dg"
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%d.csv", name, attempt))
}

// CSVLog writes one row per generation.
type CSVLog struct {
	file       *os.File
	writer     *csv.Writer
	dimensions int
	row        []string
}

// CreateCSVLog creates path, including missing parent directories, and writes
// the header.
func CreateCSVLog(path string, dimensions int) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	l := &CSVLog{
		file:       file,
		writer:     csv.NewWriter(file),
		dimensions: dimensions,
	}
	if err := l.writer.Write(Header(dimensions)); err != nil {
		_ = file.Close()
		return nil, err
	}
	return l, nil
}

func (l *CSVLog) Record(_ context.Context, record Record) error {
	if len(record.Point) != l.dimensions {
		return fmt.Errorf("record has %d coordinates, log expects %d", len(record.Point), l.dimensions)
	}

	l.row = l.row[:0]
	l.row = append(l.row, strconv.Itoa(record.Iteration))
	for _, v := range record.Point {
		l.row = append(l.row, formatFloat(v))
	}
	l.row = append(l.row,
		formatFloat(record.Value),
		formatFloat(record.Error),
		formatFloat(record.ValueError),
		formatFloat(record.Diversity),
	)
	return l.writer.Write(l.row)
}

func (l *CSVLog) Close() error {
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
