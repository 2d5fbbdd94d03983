package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/diffevo/internal/benchmark"
	"github.com/copyleftdev/diffevo/internal/config"
	"github.com/copyleftdev/diffevo/internal/logging"
	"github.com/copyleftdev/diffevo/internal/optimization"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
	"github.com/copyleftdev/diffevo/internal/store"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server runs optimization jobs and exposes them over REST and JSON-RPC.
// Each job owns its engine and random stream; at most
// cfg.Optimization.WorkerCount jobs run at once.
type Server struct {
	cfg     *config.Config
	logger  Logger
	engine  *zap.Logger
	store   store.Store
	metrics *Metrics

	workers chan struct{}
	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex // Protects the optimizations map and every state in it
}

// NewServer creates a server recording runs in st. The store must already be
// initialized.
func NewServer(cfg *config.Config, logger Logger, st store.Store, metrics *Metrics) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:           cfg,
		logger:        logger,
		engine:        logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "engine"})),
		store:         st,
		metrics:       metrics,
		workers:       make(chan struct{}, max(cfg.Optimization.WorkerCount, 1)),
		ctx:           ctx,
		stop:          stop,
		optimizations: make(map[string]*OptimizationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/optimization/{id}/generations", s.handleGenerations)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/problems", s.handleProblems)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// engineDefaults are the engine parameters requests fall back to.
func (s *Server) engineDefaults() evolution.Config {
	cfg := s.cfg.Engine()
	cfg.Logger = s.engine
	return cfg
}

// Close cancels every job and waits for them to stop.
func (s *Server) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := s.startJob(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"optimization_id": resp.ID,
		"status":          resp.Status,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	views, err := s.generations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

func (s *Server) handleProblems(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, problems())
}

func problems() []ProblemInfo {
	suite := benchmark.Suite(benchmark.DefaultDimensions...)
	infos := make([]ProblemInfo, len(suite))
	for i, p := range suite {
		infos[i] = problemInfo(p)
	}
	return infos
}

// GenerationView is a stored record with unknown errors rendered as null.
type GenerationView struct {
	Iteration  int       `json:"iteration"`
	Point      []float64 `json:"point"`
	Value      *float64  `json:"value"`
	Error      *float64  `json:"error"`
	ValueError *float64  `json:"value_error"`
	Diversity  *float64  `json:"diversity"`
}

func (s *Server) generations(ctx context.Context, id string) ([]GenerationView, error) {
	records, err := s.store.Records(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]GenerationView, len(records))
	for i, rec := range records {
		views[i] = GenerationView{
			Iteration:  rec.Iteration,
			Point:      rec.Point,
			Value:      finite(rec.Value),
			Error:      finite(rec.Error),
			ValueError: finite(rec.ValueError),
			Diversity:  finite(rec.Diversity),
		}
	}
	return views, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var target struct {
		ID string `json:"optimization_id"`
	}
	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var req StartRequest
		if err := decodeParams(request.Params, &req); err != nil {
			s.respondWithError(w, -32602, err.Error(), request.ID)
			return
		}
		result, err = s.startJob(req)
	case "optimization.status", "optimization.cancel", "optimization.generations":
		if err := decodeParams(request.Params, &target); err != nil || target.ID == "" {
			s.respondWithError(w, -32602, "optimization_id is required", request.ID)
			return
		}
		switch request.Method {
		case "optimization.status":
			result, err = s.status(target.ID)
		case "optimization.cancel":
			if err = s.cancel(target.ID); err == nil {
				result = map[string]string{"status": StatusCancelled}
			}
		default:
			result, err = s.generations(r.Context(), target.ID)
		}
	case "problems.list":
		result = problems()
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := -32000
		if errors.Is(err, optimization.ErrInvalidConfig) {
			code = -32602
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams accepts either a params object or a one-element array
// holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("invalid parameter format: %w", err)
		}
		if len(list) == 0 {
			return fmt.Errorf("missing required parameters")
		}
		raw = list[0]
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("missing required parameters")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid parameter format, expected object: %w", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFinished):
		return http.StatusConflict
	case errors.Is(err, optimization.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

// finite returns nil for values JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
