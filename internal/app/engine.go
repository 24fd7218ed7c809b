package service

import (
	"fmt"

	"github.com/rumbo/drivermatch/internal/config"
	"github.com/rumbo/drivermatch/internal/domain/assign"
	"github.com/rumbo/drivermatch/internal/domain/compat"
	"github.com/rumbo/drivermatch/internal/domain/matching"
	"github.com/rumbo/drivermatch/internal/domain/scoring"
	"github.com/rumbo/drivermatch/pkg/logger"
)

// NewEngine builds the matching pipeline described by cfg.
func NewEngine(cfg *config.Config, l logger.Logger) (*matching.Engine, error) {
	algorithm, err := assign.ParseAlgorithm(cfg.Solver.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	dw, rw := cfg.Scoring.DriverWeights, cfg.Scoring.RouteWeights
	normalizer := scoring.New(
		scoring.WithAlpha(cfg.Scoring.Alpha),
		scoring.WithDriverWeights(scoring.DriverWeights{
			Safety:     dw.Safety,
			Efficiency: dw.Efficiency,
			Compliance: dw.Compliance,
		}),
		scoring.WithRouteWeights(scoring.RouteWeights{
			Efficiency: rw.Efficiency,
			Complexity: rw.Complexity,
			Danger:     rw.Danger,
		}),
	)

	opts := []matching.Option{
		matching.WithNormalizer(normalizer),
		matching.WithBuilder(compat.New(compat.WithWorkers(cfg.MatrixWorkers))),
		matching.WithSolver(assign.New(assign.WithAlgorithm(algorithm))),
	}
	if l != nil {
		opts = append(opts, matching.WithLogger(l))
	}
	return matching.New(opts...), nil
}
