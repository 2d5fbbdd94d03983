package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// Jobs append concurrently; a single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, problem, strategy, attempt, seed, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			problem = excluded.problem,
			strategy = excluded.strategy,
			attempt = excluded.attempt,
			seed = excluded.seed,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`, run.ID, run.Problem, run.Strategy, run.Attempt, run.Seed, run.Dimensions, run.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, problem, strategy, attempt, seed, dimensions, created_at
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, problem, strategy, attempt, seed, dimensions, created_at
		FROM runs ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) AppendRecord(ctx context.Context, runID string, record Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	point, err := json.Marshal(record.Point)
	if err != nil {
		return fmt.Errorf("encode point: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO records (run_id, iteration, point, value, error, value_error, diversity)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM runs WHERE id = ?)
		ON CONFLICT(run_id, iteration) DO UPDATE SET
			point = excluded.point,
			value = excluded.value,
			error = excluded.error,
			value_error = excluded.value_error,
			diversity = excluded.diversity
	`, runID, record.Iteration, string(point),
		finite(record.Value), finite(record.Error), finite(record.ValueError), finite(record.Diversity),
		runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Records(ctx context.Context, runID string) ([]Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	rows, err := db.QueryContext(ctx, `
		SELECT iteration, point, value, error, value_error, diversity
		FROM records WHERE run_id = ? ORDER BY iteration
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record                               Record
			point                                string
			value, pointErr, valueErr, diversity sql.NullFloat64
		)
		if err := rows.Scan(&record.Iteration, &point, &value, &pointErr, &valueErr, &diversity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(point), &record.Point); err != nil {
			return nil, fmt.Errorf("decode point of %s/%d: %w", runID, record.Iteration, err)
		}
		record.Value = orInf(value)
		record.Error = orInf(pointErr)
		record.ValueError = orInf(valueErr)
		record.Diversity = orInf(diversity)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		createdAt string
	)
	if err := row.Scan(&run.ID, &run.Problem, &run.Strategy, &run.Attempt, &run.Seed, &run.Dimensions, &createdAt); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at of run %s: %w", run.ID, err)
	}
	run.CreatedAt = t
	return run, nil
}

// finite maps non-finite values to NULL. Unknown errors are +Inf and read
// back as +Inf.
func finite(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orInf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			problem TEXT NOT NULL,
			strategy TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			dimensions INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS records (
			run_id TEXT NOT NULL REFERENCES runs(id),
			iteration INTEGER NOT NULL,
			point TEXT NOT NULL,
			value REAL,
			error REAL,
			value_error REAL,
			diversity REAL,
			PRIMARY KEY (run_id, iteration)
		);
	`)
	return err
}
