// Package result joins solved pairs back to drivers and routes and derives
// the ranked assignment list, its summary and the text report.
package result

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Assemble builds one Assignment per pair, sorted by weight descending and
// then by route id. A pair pointing outside drivers, routes or w is a hard
// error; nothing is skipped.
func Assemble(drivers []model.Driver, routes []model.Route, w mat.Matrix, pairs []model.Pair) ([]model.Assignment, error) {
	rows, cols := w.Dims()
	out := make([]model.Assignment, 0, len(pairs))
	for _, p := range pairs {
		if p.DriverIndex < 0 || p.DriverIndex >= len(drivers) || p.DriverIndex >= rows {
			return nil, fmt.Errorf("driver index %d of %d: %w", p.DriverIndex, len(drivers), model.ErrMissingJoin)
		}
		if p.RouteIndex < 0 || p.RouteIndex >= len(routes) || p.RouteIndex >= cols {
			return nil, fmt.Errorf("route index %d of %d: %w", p.RouteIndex, len(routes), model.ErrMissingJoin)
		}

		d := &drivers[p.DriverIndex]
		r := &routes[p.RouteIndex]
		diff := d.ScoreAdjusted - r.ScoreFinal
		out = append(out, model.Assignment{
			DriverID:         d.ID,
			RouteID:          r.ID,
			Weight:           w.At(p.DriverIndex, p.RouteIndex),
			DriverScore:      d.ScoreAdjusted,
			RouteScore:       r.ScoreFinal,
			ScoreDifference:  diff,
			Band:             model.BandFor(diff),
			Tier:             r.Tier,
			KMBalance:        d.KMBalance,
			DriverSafety:     d.Safety,
			DriverEfficiency: d.Efficiency,
			RouteDistanceKM:  r.DistanceKM,
			RouteDanger:      r.Danger,
		})
	}

	slices.SortStableFunc(out, func(a, b model.Assignment) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.RouteID, b.RouteID)
	})
	return out, nil
}

// Unassigned returns the drivers that appear in no pair, in input order.
func Unassigned(drivers []model.Driver, pairs []model.Pair) []model.Driver {
	used := make([]bool, len(drivers))
	for _, p := range pairs {
		if p.DriverIndex >= 0 && p.DriverIndex < len(drivers) {
			used[p.DriverIndex] = true
		}
	}
	out := make([]model.Driver, 0, len(drivers)-len(pairs))
	for i := range drivers {
		if !used[i] {
			out = append(out, drivers[i])
		}
	}
	return out
}
