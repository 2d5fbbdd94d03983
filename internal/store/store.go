// Package store persists optimization runs and their per-generation records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run describes one optimization run.
type Run struct {
	ID         string    `json:"id"`
	Problem    string    `json:"problem"`
	Strategy   string    `json:"strategy"`
	Attempt    int       `json:"attempt"`
	Seed       int64     `json:"seed"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record is one generation of a run. Iteration numbers start at 1.
type Record struct {
	Iteration  int       `json:"iteration"`
	Point      []float64 `json:"point"`
	Value      float64   `json:"value"`
	Error      float64   `json:"error"`
	ValueError float64   `json:"value_error"`
	Diversity  float64   `json:"diversity"`
}

// Store keeps runs and their records.
type Store interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)
	AppendRecord(ctx context.Context, runID string, record Record) error
	Records(ctx context.Context, runID string) ([]Record, error)
	Close() error
}

// Recorder receives the records of a single run in order.
type Recorder interface {
	Record(ctx context.Context, record Record) error
	Close() error
}

// NewStore creates the backend named by kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// RunRecorder returns a Recorder appending to runID in s.
func RunRecorder(s Store, runID string) Recorder {
	return &runRecorder{store: s, runID: runID}
}

type runRecorder struct {
	store Store
	runID string
}

func (r *runRecorder) Record(ctx context.Context, record Record) error {
	return r.store.AppendRecord(ctx, r.runID, record)
}

// Close leaves the store open; it is shared between runs.
func (r *runRecorder) Close() error { return nil }

// Tee fans records out to every recorder. Close closes all of them and
// joins every close error.
func Tee(recorders ...Recorder) Recorder {
	return tee(recorders)
}

type tee []Recorder

func (t tee) Record(ctx context.Context, record Record) error {
	for _, r := range t {
		if err := r.Record(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var errs []error
	for _, r := range t {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
