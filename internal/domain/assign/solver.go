// Package assign solves the rectangular maximum-weight assignment of
// drivers to routes: every route gets exactly one driver, every driver
// serves at most one route.
package assign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Algorithm names an exact assignment strategy.
type Algorithm string

// Supported algorithms.
const (
	Hungarian   Algorithm = "hungarian"
	MinCostFlow Algorithm = "mincostflow"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm.
var ErrUnknownAlgorithm = errors.New("unknown assignment algorithm")

// ParseAlgorithm maps a config value onto an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case Hungarian, MinCostFlow:
		return a, nil
	case "":
		return Hungarian, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Option applies a configuration option to the Solver.
type Option func(*Solver)

// WithAlgorithm selects the strategy. The zero value keeps Hungarian.
func WithAlgorithm(a Algorithm) Option {
	return func(s *Solver) {
		if a != "" {
			s.algorithm = a
		}
	}
}

// Solver finds a maximum-weight assignment on a drivers x routes matrix.
type Solver struct {
	algorithm Algorithm
}

// New creates a Solver using the Hungarian strategy unless told otherwise.
func New(opts ...Option) *Solver {
	s := &Solver{algorithm: Hungarian}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Algorithm returns the configured strategy.
func (s *Solver) Algorithm() Algorithm {
	return s.algorithm
}

// Solve returns one pair per route, sorted by route index, maximizing the sum
// of w over the chosen pairs. w is drivers x routes and is never modified.
//
// Both strategies scan candidates in ascending index order and only replace
// a candidate on a strictly better value, so equal input always yields the
// same pairs. ctx is checked between augmentations; on cancellation no
// pairs are returned.
func (s *Solver) Solve(ctx context.Context, w mat.Matrix) ([]model.Pair, error) {
	d, r := w.Dims()
	switch {
	case d == 0 || r == 0:
		return nil, fmt.Errorf("solve %dx%d: %w", d, r, model.ErrDegenerateInput)
	case d < r:
		return nil, fmt.Errorf("solve %d drivers for %d routes: %w", d, r, model.ErrInfeasibleAssignment)
	}

	// Route-major cost matrix: cost[j*d+i] = -w[i][j].
	cost := make([]float64, r*d)
	for i := 0; i < d; i++ {
		for j := 0; j < r; j++ {
			v := w.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: weight[%d][%d] is %v", model.ErrInvalidInput, i, j, v)
			}
			cost[j*d+i] = -v
		}
	}

	var (
		routeToDriver []int
		err           error
	)
	switch s.algorithm {
	case Hungarian:
		routeToDriver, err = hungarian(ctx, cost, r, d)
	case MinCostFlow:
		routeToDriver, err = minCostFlow(ctx, cost, r, d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s.algorithm)
	}
	if err != nil {
		return nil, err
	}

	pairs := make([]model.Pair, r)
	for j, i := range routeToDriver {
		if i < 0 {
			return nil, fmt.Errorf("route %d left unmatched: %w", j, model.ErrInfeasibleAssignment)
		}
		pairs[j] = model.Pair{DriverIndex: i, RouteIndex: j}
	}
	slices.SortFunc(pairs, func(a, b model.Pair) int { return a.RouteIndex - b.RouteIndex })
	return pairs, nil
}

// Total sums w over pairs.
func Total(w mat.Matrix, pairs []model.Pair) float64 {
	var sum float64
	for _, p := range pairs {
		sum += w.At(p.DriverIndex, p.RouteIndex)
	}
	return sum
}
