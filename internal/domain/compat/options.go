package compat

import "runtime"

// Weight formula constants.
const (
	DefaultBaseScore        = 100.0
	DefaultQualifiedBonus   = 10.0
	DefaultUnderPenalty     = -20.0
	DefaultKMDivisor        = 1000.0
	DefaultDangerThreshold  = 70.0
	DefaultSafetyBonusRatio = 0.20
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithWorkers sets how many goroutines fill matrix rows. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithSkillBonus sets the bonus for a qualified driver and the penalty for an
// under-qualified one.
func WithSkillBonus(qualified, under float64) Option {
	return func(b *Builder) {
		b.qualifiedBonus = qualified
		b.underPenalty = under
	}
}

// WithSafetyBonus sets the danger threshold above which safe drivers earn
// ratio times their safety score.
func WithSafetyBonus(threshold, ratio float64) Option {
	return func(b *Builder) {
		b.dangerThreshold = threshold
		b.safetyRatio = ratio
	}
}

// WithKMDivisor sets the divisor of the workload term. Non-positive values are ignored.
func WithKMDivisor(d float64) Option {
	return func(b *Builder) {
		if d > 0 {
			b.kmDivisor = d
		}
	}
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
