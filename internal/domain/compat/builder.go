// Package compat builds the driver x route compatibility weight matrix.
package compat

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Builder computes W[i][j] for every driver i and route j.
type Builder struct {
	workers         int
	qualifiedBonus  float64
	underPenalty    float64
	kmDivisor       float64
	dangerThreshold float64
	safetyRatio     float64
}

// New creates a Builder with the default weight formula.
func New(opts ...Option) *Builder {
	b := &Builder{
		workers:         defaultWorkers(),
		qualifiedBonus:  DefaultQualifiedBonus,
		underPenalty:    DefaultUnderPenalty,
		kmDivisor:       DefaultKMDivisor,
		dangerThreshold: DefaultDangerThreshold,
		safetyRatio:     DefaultSafetyBonusRatio,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Weight scores a single driver/route pair. The result is not clipped.
func (b *Builder) Weight(d *model.Driver, r *model.Route) float64 {
	gap := math.Abs(d.ScoreAdjusted - r.ScoreFinal)
	w := DefaultBaseScore - gap

	if d.ScoreAdjusted >= r.ScoreFinal {
		w += b.qualifiedBonus
	} else {
		w += b.underPenalty
	}

	w -= d.KMBalance / b.kmDivisor

	if r.Danger > b.dangerThreshold {
		w += b.safetyRatio * d.Safety
	}
	return w
}

// Build returns a len(drivers) x len(routes) matrix. Rows are split across
// the configured workers; each goroutine writes only its own rows.
func (b *Builder) Build(ctx context.Context, drivers []model.Driver, routes []model.Route) (*mat.Dense, error) {
	d, r := len(drivers), len(routes)
	if d == 0 || r == 0 {
		return nil, fmt.Errorf("build matrix %dx%d: %w", d, r, model.ErrDegenerateInput)
	}

	w := mat.NewDense(d, r, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	chunk := (d + b.workers - 1) / b.workers
	for lo := 0; lo < d; lo += chunk {
		hi := min(lo+chunk, d)
		g.Go(func() error {
			row := make([]float64, r)
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for j := range routes {
					row[j] = b.Weight(&drivers[i], &routes[j])
				}
				w.SetRow(i, row)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}
	return w, nil
}
