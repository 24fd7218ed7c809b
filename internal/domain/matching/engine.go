// Package matching runs the full driver-to-route pipeline:
// normalize -> build matrix -> solve -> assemble.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rumbo/drivermatch/internal/domain/assign"
	"github.com/rumbo/drivermatch/internal/domain/compat"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/rumbo/drivermatch/internal/domain/scoring"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

// Timings holds the wall-clock duration of each pipeline stage.
type Timings struct {
	Normalize time.Duration `json:"normalize"`
	Build     time.Duration `json:"build_matrix"`
	Solve     time.Duration `json:"solve"`
	Assemble  time.Duration `json:"assemble"`
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Normalize + t.Build + t.Solve + t.Assemble
}

// Outcome is everything a successful run produces.
type Outcome struct {
	Algorithm   assign.Algorithm
	Drivers     []model.Driver
	Routes      []model.Route
	Pairs       []model.Pair
	Assignments []model.Assignment
	Unassigned  []model.Driver
	Summary     result.Summary
	Timings     Timings
}

// Engine wires the pipeline stages. It is safe for concurrent use.
type Engine struct {
	normalizer *scoring.Normalizer
	builder    *compat.Builder
	solver     *assign.Solver
	logger     logger.Logger
}

// New creates an Engine with default stages.
func New(opts ...Option) *Engine {
	e := &Engine{
		normalizer: scoring.New(),
		builder:    compat.New(),
		solver:     assign.New(),
		logger:     logger.Get().Named("matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Algorithm returns the solver strategy runs will use.
func (e *Engine) Algorithm() assign.Algorithm {
	return e.solver.Algorithm()
}

// Validate checks raw input without building the matrix.
func (e *Engine) Validate(drivers []model.RawDriver, routes []model.RawRoute) error {
	switch {
	case len(drivers) == 0 || len(routes) == 0:
		return fmt.Errorf("%d drivers, %d routes: %w", len(drivers), len(routes), model.ErrDegenerateInput)
	case len(drivers) < len(routes):
		return fmt.Errorf("%d drivers for %d routes: %w", len(drivers), len(routes), model.ErrInfeasibleAssignment)
	}
	if err := scoring.ValidateDrivers(drivers); err != nil {
		return err
	}
	return scoring.ValidateRoutes(routes)
}

// Run executes the pipeline. On error no partial outcome is returned.
func (e *Engine) Run(ctx context.Context, rawDrivers []model.RawDriver, rawRoutes []model.RawRoute) (*Outcome, error) {
	out := &Outcome{Algorithm: e.solver.Algorithm()}

	start := time.Now()
	drivers, err := e.normalizer.Drivers(rawDrivers)
	if err != nil {
		return nil, err
	}
	routes, err := e.normalizer.Routes(rawRoutes)
	if err != nil {
		return nil, err
	}
	if len(drivers) < len(routes) {
		return nil, fmt.Errorf("%d drivers for %d routes: %w", len(drivers), len(routes), model.ErrInfeasibleAssignment)
	}
	out.Timings.Normalize = e.observe(metrics.StageNormalize, start)

	start = time.Now()
	w, err := e.builder.Build(ctx, drivers, routes)
	if err != nil {
		return nil, err
	}
	out.Timings.Build = e.observe(metrics.StageBuild, start)

	start = time.Now()
	pairs, err := e.solver.Solve(ctx, w)
	if err != nil {
		return nil, err
	}
	out.Timings.Solve = e.observe(metrics.StageSolve, start)

	start = time.Now()
	assignments, err := result.Assemble(drivers, routes, w, pairs)
	if err != nil {
		return nil, err
	}
	unassigned := result.Unassigned(drivers, pairs)
	out.Summary = result.Summarize(drivers, routes, assignments, unassigned)
	out.Timings.Assemble = e.observe(metrics.StageAssemble, start)

	out.Drivers = drivers
	out.Routes = routes
	out.Pairs = pairs
	out.Assignments = assignments
	out.Unassigned = unassigned

	metrics.UpdateLastRun(out.Summary.Assigned, out.Summary.Unassigned, len(drivers)*len(routes),
		out.Summary.TotalWeight, out.Summary.MeanScoreDifference)
	e.logger.Debug(ctx, "matching finished",
		logger.String("algorithm", string(out.Algorithm)),
		logger.Int("drivers", len(drivers)),
		logger.Int("routes", len(routes)),
		logger.Float64("total_weight", out.Summary.TotalWeight),
		logger.Duration("elapsed", out.Timings.Total()),
	)
	return out, nil
}

func (e *Engine) observe(stage string, start time.Time) time.Duration {
	d := time.Since(start)
	metrics.RecordStageLatency(stage, float64(d.Microseconds())/1000)
	return d
}

// Reason maps an error onto a short label for metrics and run records.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, model.ErrInfeasibleAssignment):
		return "infeasible"
	case errors.Is(err, model.ErrDegenerateInput):
		return "degenerate"
	case errors.Is(err, model.ErrMissingJoin):
		return "missing_join"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
