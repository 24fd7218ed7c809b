// Package synth generates reproducible synthetic fleets for fixtures,
// demos and load tests. All randomness flows from an explicit seed.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// Default fleet shape.
const (
	DefaultSeed    = 42
	DefaultDrivers = 350
	DefaultRoutes  = 150
)

// Distribution parameters of the synthetic fleet.
const (
	kmMean  = 15000.0
	kmSigma = 5000.0
	kmMin   = 5000.0
	kmMax   = 35000.0

	routeKMShape = 5.0
	routeKMRate  = 0.01 // mean 500 km
	routeKMMin   = 50.0
	routeKMMax   = 2000.0
)

// Stream identifiers keep drivers and routes independent of call order.
const (
	driverStream = 1
	routeStream  = 2
)

// Generator produces raw drivers and routes from a seed.
type Generator struct {
	seed uint64
}

// New creates a Generator.
func New(seed uint64) *Generator {
	return &Generator{seed: seed}
}

func (g *Generator) source(stream uint64) rand.Source {
	return rand.NewPCG(g.seed, stream)
}

// Drivers returns n drivers with ids DRV00001, DRV00002, ...
func (g *Generator) Drivers(n int) []model.RawDriver {
	src := g.source(driverStream)
	compliance := distuv.Beta{Alpha: 8, Beta: 2, Src: src}
	aggressiveness := distuv.Beta{Alpha: 2, Beta: 5, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 8, Src: src}
	km := distuv.Normal{Mu: kmMean, Sigma: kmSigma, Src: src}

	out := make([]model.RawDriver, n)
	for i := range out {
		aggr := aggressiveness.Rand() * 100
		out[i] = model.RawDriver{
			ID:         fmt.Sprintf("DRV%05d", i+1),
			Safety:     round2(clip(100-0.7*aggr+noise.Rand(), 0, 100)),
			Efficiency: round2(clip(100-0.6*aggr+noise.Rand(), 30, 100)),
			Compliance: round2(compliance.Rand() * 100),
			DrivenKM:   math.Round(clip(km.Rand(), kmMin, kmMax)),
		}
	}
	return out
}

// Routes returns n routes with ids RTE0001, RTE0002, ...
func (g *Generator) Routes(n int) []model.RawRoute {
	src := g.source(routeStream)
	distance := distuv.Gamma{Alpha: routeKMShape, Beta: routeKMRate, Src: src}
	efficiency := distuv.Beta{Alpha: 5, Beta: 3, Src: src}
	complexity := distuv.Beta{Alpha: 3, Beta: 3, Src: src}
	danger := distuv.Beta{Alpha: 2, Beta: 3, Src: src}

	out := make([]model.RawRoute, n)
	for i := range out {
		km := clip(distance.Rand(), routeKMMin, routeKMMax)
		// Longer routes carry more exposure.
		exposure := (km - routeKMMin) / (routeKMMax - routeKMMin) * 20
		out[i] = model.RawRoute{
			ID:         fmt.Sprintf("RTE%04d", i+1),
			Efficiency: round2(efficiency.Rand() * 100),
			Complexity: round2(complexity.Rand() * 100),
			Danger:     round2(clip(danger.Rand()*100+exposure, 0, 100)),
			DistanceKM: round2(km),
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
