package matching

import (
	"github.com/rumbo/drivermatch/internal/domain/assign"
	"github.com/rumbo/drivermatch/internal/domain/compat"
	"github.com/rumbo/drivermatch/internal/domain/scoring"
	"github.com/rumbo/drivermatch/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithNormalizer replaces the score normalizer.
func WithNormalizer(n *scoring.Normalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.normalizer = n
		}
	}
}

// WithBuilder replaces the compatibility matrix builder.
func WithBuilder(b *compat.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// WithSolver replaces the assignment solver.
func WithSolver(s *assign.Solver) Option {
	return func(e *Engine) {
		if s != nil {
			e.solver = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
