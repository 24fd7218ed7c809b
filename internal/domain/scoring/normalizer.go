// Package scoring turns raw driver and route records into the normalized
// scores consumed by the compatibility matrix.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Normalizer is a pure transform from raw to normalized records.
// It holds no state beyond its weights and is safe for concurrent use.
type Normalizer struct {
	driverWeights DriverWeights
	routeWeights  RouteWeights
	alpha         float64
}

// New creates a Normalizer with default weights and alpha.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		driverWeights: DefaultDriverWeights(),
		routeWeights:  DefaultRouteWeights(),
		alpha:         DefaultAlpha,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Alpha returns the configured balancing weight.
func (n *Normalizer) Alpha() float64 {
	return n.alpha
}

// Drivers validates raw drivers and computes final, balance and adjusted scores.
func (n *Normalizer) Drivers(raw []model.RawDriver) ([]model.Driver, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("normalize drivers: %w", model.ErrDegenerateInput)
	}
	if err := ValidateDrivers(raw); err != nil {
		return nil, err
	}

	km := make([]float64, len(raw))
	for i := range raw {
		km[i] = raw[i].DrivenKM
	}
	mean, std := stat.PopMeanStdDev(km, nil)

	w := n.driverWeights
	out := make([]model.Driver, len(raw))
	for i, r := range raw {
		final := w.Safety*r.Safety + w.Efficiency*r.Efficiency + w.Compliance*r.Compliance
		balance := mean - r.DrivenKM

		var scaled float64
		if std > 0 {
			scaled = clip(balance/std*kmScale, -kmScaledMax, kmScaledMax)
		}

		out[i] = model.Driver{
			RawDriver:       r,
			ScoreFinal:      final,
			KMBalance:       balance,
			KMBalanceScaled: scaled,
			ScoreAdjusted:   clip(final+n.alpha*scaled, 0, maxScore),
		}
	}
	return out, nil
}

// Routes validates raw routes and computes the final score and difficulty tier.
func (n *Normalizer) Routes(raw []model.RawRoute) ([]model.Route, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("normalize routes: %w", model.ErrDegenerateInput)
	}
	if err := ValidateRoutes(raw); err != nil {
		return nil, err
	}

	w := n.routeWeights
	out := make([]model.Route, len(raw))
	for i, r := range raw {
		final := clip(w.Efficiency*r.Efficiency+w.Complexity*r.Complexity+w.Danger*r.Danger, 0, maxScore)
		out[i] = model.Route{
			RawRoute:   r,
			ScoreFinal: final,
			Tier:       model.TierFor(final),
		}
	}
	return out, nil
}

// ValidateDrivers checks identifiers, sub-score ranges and distances.
// The first problem found is returned as a *model.InputError.
func ValidateDrivers(raw []model.RawDriver) error {
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		bad := func(field, reason string) error {
			return &model.InputError{Entity: "driver", Index: i, ID: r.ID, Field: field, Reason: reason}
		}
		if err := checkID(seen, r.ID); err != "" {
			return bad("driver_id", err)
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"safety_score", r.Safety},
			{"efficiency_score", r.Efficiency},
			{"compliance_score", r.Compliance},
		} {
			if !inScoreRange(f.v) {
				return bad(f.name, fmt.Sprintf("%v outside [0,100]", f.v))
			}
		}
		if !nonNegative(r.DrivenKM) {
			return bad("driven_km", fmt.Sprintf("%v is not a finite non-negative distance", r.DrivenKM))
		}
	}
	return nil
}

// ValidateRoutes checks identifiers, sub-score ranges and distances.
func ValidateRoutes(raw []model.RawRoute) error {
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		bad := func(field, reason string) error {
			return &model.InputError{Entity: "route", Index: i, ID: r.ID, Field: field, Reason: reason}
		}
		if err := checkID(seen, r.ID); err != "" {
			return bad("route_id", err)
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"efficiency_score", r.Efficiency},
			{"operational_complexity_score", r.Complexity},
			{"peligrosity_score", r.Danger},
		} {
			if !inScoreRange(f.v) {
				return bad(f.name, fmt.Sprintf("%v outside [0,100]", f.v))
			}
		}
		if !nonNegative(r.DistanceKM) {
			return bad("total_distance_km", fmt.Sprintf("%v is not a finite non-negative distance", r.DistanceKM))
		}
	}
	return nil
}

func checkID(seen map[string]struct{}, id string) string {
	if strings.TrimSpace(id) == "" {
		return "empty identifier"
	}
	if _, dup := seen[id]; dup {
		return "duplicate identifier"
	}
	seen[id] = struct{}{}
	return ""
}

// inScoreRange is false for NaN.
func inScoreRange(v float64) bool {
	return v >= 0 && v <= maxScore
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
