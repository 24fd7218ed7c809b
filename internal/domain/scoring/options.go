package scoring

// Default normalizer parameters.
const (
	DefaultAlpha = 0.15

	// kmScale maps one standard deviation of km balance onto 5 points.
	kmScale     = 5.0
	kmScaledMax = 10.0
	maxScore    = 100.0
)

// DriverWeights combine driver sub-scores into the final driver score.
type DriverWeights struct {
	Safety     float64
	Efficiency float64
	Compliance float64
}

// RouteWeights combine route sub-scores into the final route score.
type RouteWeights struct {
	Efficiency float64
	Complexity float64
	Danger     float64
}

// DefaultDriverWeights returns 0.40 safety, 0.35 efficiency, 0.25 compliance.
func DefaultDriverWeights() DriverWeights {
	return DriverWeights{Safety: 0.40, Efficiency: 0.35, Compliance: 0.25}
}

// DefaultRouteWeights returns 0.40 efficiency, 0.30 complexity, 0.30 danger.
func DefaultRouteWeights() RouteWeights {
	return RouteWeights{Efficiency: 0.40, Complexity: 0.30, Danger: 0.30}
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithAlpha sets the balancing weight applied to the scaled km balance.
func WithAlpha(alpha float64) Option {
	return func(n *Normalizer) {
		n.alpha = alpha
	}
}

// WithDriverWeights replaces the driver sub-score weights. Negative weights are ignored.
func WithDriverWeights(w DriverWeights) Option {
	return func(n *Normalizer) {
		if w.Safety >= 0 && w.Efficiency >= 0 && w.Compliance >= 0 {
			n.driverWeights = w
		}
	}
}

// WithRouteWeights replaces the route sub-score weights. Negative weights are ignored.
func WithRouteWeights(w RouteWeights) Option {
	return func(n *Normalizer) {
		if w.Efficiency >= 0 && w.Complexity >= 0 && w.Danger >= 0 {
			n.routeWeights = w
		}
	}
}
