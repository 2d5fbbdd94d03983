package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		want    any
		wantErr bool
	}{
		{kind: "", want: &MemoryStore{}},
		{kind: "memory", want: &MemoryStore{}},
		{kind: "sqlite", want: &SQLiteStore{}},
		{kind: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			s, err := NewStore(tt.kind, filepath.Join(t.TempDir(), "runs.db"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

// storeContract runs the behavior every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	t.Cleanup(func() { _ = s.Close() })

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := Run{ID: "run-1", Problem: "two_global", Strategy: "dg", Attempt: 1, Seed: 42, Dimensions: 1, CreatedAt: created}
	second := Run{ID: "run-2", Problem: "sphere-2d", Strategy: "classic", Attempt: 2, Seed: 7, Dimensions: 2, CreatedAt: created.Add(time.Second)}
	require.NoError(t, s.CreateRun(ctx, second))
	require.NoError(t, s.CreateRun(ctx, first))

	got, ok, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Problem, got.Problem)
	assert.Equal(t, first.Seed, got.Seed)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	_, ok, err = s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	records := []Record{
		{Iteration: 1, Point: []float64{0.9}, Value: -0.5, Error: 0.1, ValueError: 0.5, Diversity: 0.2},
		{Iteration: 2, Point: []float64{1.0}, Value: -1, Error: 0, ValueError: 0, Diversity: 0.1},
	}
	for _, r := range records {
		require.NoError(t, s.AppendRecord(ctx, "run-1", r))
	}
	require.NoError(t, s.AppendRecord(ctx, "run-2", Record{
		Iteration: 1, Point: []float64{1, 2}, Value: 5, Error: math.Inf(1), ValueError: math.Inf(1), Diversity: 0.3,
	}))

	loaded, err := s.Records(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	loaded, err = s.Records(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, math.IsInf(loaded[0].Error, 1), "unknown errors survive storage")
	assert.True(t, math.IsInf(loaded[0].ValueError, 1))

	err = s.AppendRecord(ctx, "missing", records[0])
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Records(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db")))
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	s := NewSQLiteStore("")
	assert.Error(t, s.Init(context.Background()))

	_, err := s.ListRuns(context.Background())
	assert.Error(t, err, "an uninitialized store refuses queries")
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s := NewSQLiteStore(path)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.CreateRun(ctx, Run{ID: "r", Problem: "p", Strategy: "classic", Dimensions: 1, CreatedAt: time.Now()}))
	require.NoError(t, s.AppendRecord(ctx, "r", Record{Iteration: 1, Point: []float64{0.25}, Value: 1}))
	require.NoError(t, s.Close())

	reopened := NewSQLiteStore(path)
	require.NoError(t, reopened.Init(ctx))
	defer reopened.Close()

	records, err := reopened.Records(ctx, "r")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []float64{0.25}, records[0].Point)
}

type sliceRecorder struct {
	records []Record
	closed  bool
	err     error
}

func (r *sliceRecorder) Record(_ context.Context, record Record) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, record)
	return nil
}

func (r *sliceRecorder) Close() error {
	r.closed = true
	return r.err
}

func TestTee(t *testing.T) {
	a, b := &sliceRecorder{}, &sliceRecorder{}
	rec := Tee(a, b)

	require.NoError(t, rec.Record(context.Background(), Record{Iteration: 1}))
	require.NoError(t, rec.Close())
	assert.Len(t, a.records, 1)
	assert.Len(t, b.records, 1)
	assert.True(t, a.closed && b.closed)

	errFull := errors.New("disk full")
	failing := &sliceRecorder{err: errFull}
	after := &sliceRecorder{}
	rec = Tee(failing, after)
	assert.ErrorIs(t, rec.Record(context.Background(), Record{}), errFull)
	assert.Empty(t, after.records)
	assert.ErrorIs(t, rec.Close(), errFull)
	assert.True(t, after.closed, "every recorder is closed even after a failure")

	errLocked := errors.New("database is locked")
	rec = Tee(&sliceRecorder{err: errFull}, &sliceRecorder{err: errLocked})
	err := rec.Close()
	assert.ErrorIs(t, err, errFull)
	assert.ErrorIs(t, err, errLocked, "close errors are joined, not truncated to the first")
}

func TestRunRecorder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.CreateRun(ctx, Run{ID: "r"}))

	rec := RunRecorder(s, "r")
	require.NoError(t, rec.Record(ctx, Record{Iteration: 1, Point: []float64{1}}))
	require.NoError(t, rec.Close())

	records, err := s.Records(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
