// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rumbo/drivermatch/internal/adapters/repository"
	"github.com/rumbo/drivermatch/internal/domain/assign"
	"github.com/rumbo/drivermatch/internal/domain/dedupe"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/pkg/logger"
)

// RunStore is the part of the run repository the handlers use.
type RunStore interface {
	Create(ctx context.Context, run repository.Run) error
	Fail(ctx context.Context, id, reason, message string, at time.Time) error
	Get(ctx context.Context, id string) (repository.Run, error)
	GetByRequest(ctx context.Context, requestID string) (repository.Run, error)
	Assignments(ctx context.Context, id string) ([]model.Assignment, error)
	Report(ctx context.Context, id string) (string, error)
	Recent(ctx context.Context, limit int) ([]repository.Run, error)
}

// Validator checks a run before it is queued.
type Validator interface {
	Validate(drivers []model.RawDriver, routes []model.RawRoute) error
	Algorithm() assign.Algorithm
}

// Enqueuer hands runs to the solver workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.Job) error
}

// Dependencies required by HTTP handlers.
type Dependencies struct {
	Deduper   dedupe.Deduper
	Store     RunStore
	Validator Validator
	Queue     Enqueuer
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	runsHandler   *RunsHandler

	maxRunsLimit int
	maxBodyBytes int64
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxRunsLimit: defaultMaxRunsLimit,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.runsHandler = NewRunsHandler(deps, s.maxRunsLimit, s.maxBodyBytes, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/runs", MetricsMiddleware(s.runsHandler.HandleSubmit, "runs_submit"))
	mux.HandleFunc("GET /v1/runs", MetricsMiddleware(s.runsHandler.HandleList, "runs_list"))
	mux.HandleFunc("GET /v1/runs/{id}", MetricsMiddleware(s.runsHandler.HandleGet, "runs_get"))
	mux.HandleFunc("GET /v1/runs/{id}/assignments", MetricsMiddleware(s.runsHandler.HandleAssignments, "runs_assignments"))
	mux.HandleFunc("GET /v1/runs/{id}/report", MetricsMiddleware(s.runsHandler.HandleReport, "runs_report"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
