package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/diffevo/internal/benchmark"
	"github.com/copyleftdev/diffevo/internal/optimization"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
	"github.com/copyleftdev/diffevo/internal/store"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	// ErrNotFound is returned for unknown optimization IDs.
	ErrNotFound = errors.New("optimization not found")
	// ErrFinished is returned when cancelling a job in a terminal state.
	ErrFinished = errors.New("optimization already finished")
)

// StartRequest describes a new optimization job. Omitted fields take the
// service defaults.
type StartRequest struct {
	Strategy       string       `json:"strategy"`
	Problem        string       `json:"problem"`
	Dimensions     int          `json:"dimensions,omitempty"`
	Bounds         [][2]float64 `json:"bounds,omitempty"`
	Seed           *int64       `json:"seed,omitempty"`
	Mutation       *float64     `json:"mutation,omitempty"`
	Crossover      *float64     `json:"crossover,omitempty"`
	PopulationSize int          `json:"population_size,omitempty"`
	IterationCount int          `json:"iteration_count,omitempty"`
	Neighbors      int          `json:"neighbors,omitempty"`
}

// OptimizationState tracks one job. Fields are guarded by the server's
// optimizationsMu.
type OptimizationState struct {
	ID             string
	Status         string
	Strategy       string
	Problem        benchmark.Problem
	Seed           int64
	IterationCount int
	Generation     int
	Evaluations    int
	Diversity      float64
	BestSolution   *optimization.Solution
	Err            error
	StartTime      time.Time
	EndTime        *time.Time
	LastUpdated    time.Time
	Optimizer      *evolution.Optimizer
	CancelFunc     context.CancelFunc
}

// StatusResponse is the public view of a job.
type StatusResponse struct {
	ID             string                 `json:"optimization_id"`
	Status         string                 `json:"status"`
	Strategy       string                 `json:"strategy"`
	Problem        string                 `json:"problem"`
	Seed           int64                  `json:"seed"`
	Progress       float64                `json:"progress"`
	Generation     int                    `json:"generation"`
	IterationCount int                    `json:"iteration_count"`
	Evaluations    int                    `json:"evaluations"`
	Diversity      *float64               `json:"diversity,omitempty"`
	BestSolution   *optimization.Solution `json:"best_solution,omitempty"`
	PointError     *float64               `json:"point_error,omitempty"`
	ValueError     *float64               `json:"value_error,omitempty"`
	Error          string                 `json:"error,omitempty"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        *time.Time             `json:"end_time,omitempty"`
	LastUpdated    time.Time              `json:"last_update"`
}

// ProblemInfo describes a benchmark problem.
type ProblemInfo struct {
	Name         string       `json:"name"`
	Dimensions   int          `json:"dimensions"`
	Bounds       [][2]float64 `json:"bounds"`
	Minima       [][]float64  `json:"minima,omitempty"`
	MinimumValue *float64     `json:"minimum_value,omitempty"`
	Iterations   int          `json:"iterations"`
}

func problemInfo(p benchmark.Problem) ProblemInfo {
	return ProblemInfo{
		Name:         p.Name,
		Dimensions:   p.Dimensions(),
		Bounds:       p.Bounds,
		Minima:       p.Minima,
		MinimumValue: finite(p.MinimumValue),
		Iterations:   p.Iterations,
	}
}

// resolveProblem finds the requested problem. A scalable base name such as
// "rastrigin" combined with dimensions selects "rastrigin-<d>d".
func resolveProblem(req StartRequest) (benchmark.Problem, error) {
	if req.Problem == "" {
		return benchmark.Problem{}, fmt.Errorf("problem is required")
	}

	p, err := benchmark.Lookup(req.Problem)
	if err != nil && req.Dimensions > 0 {
		p, err = benchmark.Lookup(fmt.Sprintf("%s-%dd", req.Problem, req.Dimensions))
	}
	if err != nil {
		return benchmark.Problem{}, err
	}
	if req.Dimensions > 0 && req.Dimensions != p.Dimensions() {
		return benchmark.Problem{}, fmt.Errorf("problem %s has %d dimensions, requested %d", p.Name, p.Dimensions(), req.Dimensions)
	}

	if len(req.Bounds) > 0 {
		if len(req.Bounds) != p.Dimensions() {
			return benchmark.Problem{}, fmt.Errorf("expected %d bounds for %s, got %d", p.Dimensions(), p.Name, len(req.Bounds))
		}
		p.Bounds = optimization.Bounds(req.Bounds)
	}
	return p, nil
}

// startJob validates req, registers the job and launches it.
func (s *Server) startJob(req StartRequest) (*StatusResponse, error) {
	if req.Strategy == "" {
		req.Strategy = s.cfg.Evolution.Strategy
	}
	problem, err := resolveProblem(req)
	if err != nil {
		return nil, optimization.ConfigErrorf("%v", err).WithOperation("server.startJob")
	}

	seed := benchmark.RandomSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	config := optimization.OptimizerConfig{
		Objective:      problem.Objective,
		Bounds:         problem.Bounds,
		Strategy:       req.Strategy,
		MaxIterations:  req.IterationCount,
		PopulationSize: req.PopulationSize,
		Mutation:       req.Mutation,
		Crossover:      req.Crossover,
		Neighbors:      req.Neighbors,
		RandomSeed:     seed,
		// Generations are kept in the store; the optimizer need not.
		DiscardHistory: true,
	}

	optimizer := evolution.NewOptimizer(s.engineDefaults())
	if err := optimizer.Validate(config); err != nil {
		return nil, err
	}
	if n := optimizer.Resolve(config).IterationCount; n > s.cfg.Optimization.MaxIterations {
		return nil, optimization.ConfigErrorf("iteration count %d exceeds the limit of %d",
			n, s.cfg.Optimization.MaxIterations).WithOperation("server.startJob")
	}

	id := uuid.NewString()
	now := time.Now()
	ctx, cancel := context.WithCancel(s.ctx)
	state := &OptimizationState{
		ID:             id,
		Status:         StatusPending,
		Strategy:       req.Strategy,
		Problem:        problem,
		Seed:           seed,
		IterationCount: optimizer.Resolve(config).IterationCount,
		StartTime:      now,
		LastUpdated:    now,
		Optimizer:      optimizer,
		CancelFunc:     cancel,
	}

	run := store.Run{
		ID:         id,
		Problem:    problem.Name,
		Strategy:   req.Strategy,
		Attempt:    0,
		Seed:       seed,
		Dimensions: problem.Dimensions(),
		CreatedAt:  now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		cancel()
		return nil, fmt.Errorf("record run: %w", err)
	}

	s.optimizationsMu.Lock()
	s.optimizations[id] = state
	resp := state.response()
	s.optimizationsMu.Unlock()

	s.metrics.JobsStarted.WithLabelValues(req.Strategy).Inc()
	s.logger.Info("Optimization accepted", map[string]interface{}{
		"optimization_id": id,
		"strategy":        req.Strategy,
		"problem":         problem.Name,
		"seed":            seed,
	})

	s.wg.Add(1)
	go s.runOptimization(ctx, state, config)

	return resp, nil
}

// runOptimization waits for a worker and runs the job to completion.
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState, config optimization.OptimizerConfig) {
	defer s.wg.Done()
	defer state.CancelFunc()

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finish(state, ctx.Err(), time.Time{})
		return
	}

	started := time.Now()
	s.metrics.JobsRunning.Inc()

	s.optimizationsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
		state.LastUpdated = started
	}
	s.optimizationsMu.Unlock()

	recorder := store.RunRecorder(s.store, state.ID)
	config.OnGeneration = func(g optimization.Generation) error {
		return s.observe(ctx, state, recorder, g)
	}

	_, err := state.Optimizer.Optimize(ctx, config)
	s.metrics.JobsRunning.Dec()
	s.finish(state, err, started)
}

// observe records a generation and publishes it to status and metrics.
func (s *Server) observe(ctx context.Context, state *OptimizationState, recorder store.Recorder, g optimization.Generation) error {
	p := state.Problem
	record := store.Record{
		Iteration:  g.Index + 1,
		Point:      g.Point,
		Value:      g.Value,
		Error:      p.PointError(g.Point),
		ValueError: p.ValueError(g.Value),
		Diversity:  g.Diversity,
	}
	if err := recorder.Record(ctx, record); err != nil {
		return fmt.Errorf("record generation %d: %w", record.Iteration, err)
	}

	s.metrics.Generations.WithLabelValues(state.Strategy).Inc()
	s.metrics.Evaluations.WithLabelValues(state.Strategy).Add(float64(g.Evaluations))
	s.metrics.Merged.WithLabelValues(state.Strategy).Add(float64(g.Replaced))
	s.metrics.Diversity.WithLabelValues(state.Strategy).Observe(g.Diversity)

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()
	state.Generation = g.Index + 1
	state.Evaluations += g.Evaluations
	state.Diversity = g.Diversity
	state.BestSolution = &optimization.Solution{Parameters: g.Point, Value: g.Value}
	state.LastUpdated = time.Now()
	return nil
}

// finish moves the job to its terminal status. A cancelled job stays
// cancelled.
func (s *Server) finish(state *OptimizationState, err error, started time.Time) {
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	now := time.Now()
	status := state.Status
	if status != StatusCancelled {
		switch {
		case err == nil:
			status = StatusCompleted
		case errors.Is(err, context.Canceled):
			status = StatusCancelled
		default:
			status = StatusFailed
			state.Err = err
		}
	}

	// Metrics first, so observers never see a terminal status before its
	// counters.
	s.metrics.JobsFinished.WithLabelValues(state.Strategy, status).Inc()
	if !started.IsZero() {
		s.metrics.JobDuration.WithLabelValues(state.Strategy, status).Observe(now.Sub(started).Seconds())
	}

	state.Status = status
	if state.EndTime == nil {
		state.EndTime = &now
	}
	state.LastUpdated = now

	fields := map[string]interface{}{
		"optimization_id": state.ID,
		"status":          status,
	}
	if status == StatusFailed {
		s.logger.Error("Optimization failed", mergeFields(fields, map[string]interface{}{"error": err.Error()}))
		return
	}
	s.logger.Info("Optimization finished", fields)
}

// status returns a snapshot of the job.
func (s *Server) status(id string) (*StatusResponse, error) {
	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, ok := s.optimizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.response(), nil
}

// cancel stops a pending or running job.
func (s *Server) cancel(id string) error {
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, ok := s.optimizations[id]
	if !ok {
		return ErrNotFound
	}
	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("%w: %s", ErrFinished, state.Status)
	}

	state.CancelFunc()
	now := time.Now()
	state.Status = StatusCancelled
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// response must be called with optimizationsMu held.
func (st *OptimizationState) response() *StatusResponse {
	resp := &StatusResponse{
		ID:             st.ID,
		Status:         st.Status,
		Strategy:       st.Strategy,
		Problem:        st.Problem.Name,
		Seed:           st.Seed,
		Generation:     st.Generation,
		IterationCount: st.IterationCount,
		Evaluations:    st.Evaluations,
		StartTime:      st.StartTime,
		EndTime:        st.EndTime,
		LastUpdated:    st.LastUpdated,
	}
	if st.IterationCount > 0 {
		resp.Progress = float64(st.Generation) / float64(st.IterationCount)
	} else if st.Status == StatusCompleted {
		resp.Progress = 1
	}
	if st.Generation > 0 {
		resp.Diversity = finite(st.Diversity)
	}
	if st.BestSolution != nil {
		best := *st.BestSolution
		best.Parameters = append([]float64(nil), best.Parameters...)
		resp.BestSolution = &best
		resp.PointError = finite(st.Problem.PointError(best.Parameters))
		resp.ValueError = finite(st.Problem.ValueError(best.Value))
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
