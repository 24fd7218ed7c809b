// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config holding every default.
// - Load(ctx) layers defaults, an optional YAML file and DRIVERMATCH_ env vars.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported solver algorithms.
const (
	AlgorithmHungarian   = "hungarian"
	AlgorithmMinCostFlow = "mincostflow"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the number of matching runs waiting for a worker.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount is the number of solver workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the idempotency key memory of POST /v1/runs.
	DedupeSize int `koanf:"dedupe_size"`
	// MaxRunsLimit caps GET /v1/runs?limit.
	MaxRunsLimit int `koanf:"max_runs_limit"`
	// MatrixWorkers is the goroutine count used to fill compatibility rows.
	MatrixWorkers int `koanf:"matrix_workers"`

	Scoring Scoring `koanf:"scoring"`
	Solver  Solver  `koanf:"solver"`
	Store   Store   `koanf:"store"`
	Kafka   Kafka   `koanf:"kafka"`
}

// Scoring holds the normalizer weights.
type Scoring struct {
	Alpha         float64       `koanf:"alpha"`
	DriverWeights DriverWeights `koanf:"driver_weights"`
	RouteWeights  RouteWeights  `koanf:"route_weights"`
}

// DriverWeights combine driver sub-scores into the final driver score.
type DriverWeights struct {
	Safety     float64 `koanf:"safety"`
	Efficiency float64 `koanf:"efficiency"`
	Compliance float64 `koanf:"compliance"`
}

// RouteWeights combine route sub-scores into the final route score.
type RouteWeights struct {
	Efficiency float64 `koanf:"efficiency"`
	Complexity float64 `koanf:"complexity"`
	Danger     float64 `koanf:"danger"`
}

// Solver selects and bounds the assignment algorithm.
type Solver struct {
	Algorithm string        `koanf:"algorithm"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Store configures run persistence. An empty Path keeps runs in memory.
type Store struct {
	Path string `koanf:"path"`
}

// Kafka configures result publication. No brokers disables publishing.
type Kafka struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		QueueSize:     64,
		WorkerCount:   2,
		DedupeSize:    10_000,
		MaxRunsLimit:  100,
		MatrixWorkers: runtime.NumCPU(),
		Scoring: Scoring{
			Alpha: 0.15,
			DriverWeights: DriverWeights{
				Safety:     0.40,
				Efficiency: 0.35,
				Compliance: 0.25,
			},
			RouteWeights: RouteWeights{
				Efficiency: 0.40,
				Complexity: 0.30,
				Danger:     0.30,
			},
		},
		Solver: Solver{
			Algorithm: AlgorithmHungarian,
			Timeout:   2 * time.Minute,
		},
		Store: Store{Path: "drivermatch.db"},
		Kafka: Kafka{Topic: "driver-route-assignments"},
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MaxRunsLimit < 1:
		return fmt.Errorf("%w: max_runs_limit must be positive, got %d", ErrInvalidConfig, c.MaxRunsLimit)
	case c.Solver.Timeout < 0:
		return fmt.Errorf("%w: solver.timeout must not be negative", ErrInvalidConfig)
	}

	switch c.Solver.Algorithm {
	case AlgorithmHungarian, AlgorithmMinCostFlow:
	default:
		return fmt.Errorf("%w: unknown solver.algorithm %q", ErrInvalidConfig, c.Solver.Algorithm)
	}

	dw, rw := c.Scoring.DriverWeights, c.Scoring.RouteWeights
	for name, w := range map[string]float64{
		"scoring.driver_weights.safety":     dw.Safety,
		"scoring.driver_weights.efficiency": dw.Efficiency,
		"scoring.driver_weights.compliance": dw.Compliance,
		"scoring.route_weights.efficiency":  rw.Efficiency,
		"scoring.route_weights.complexity":  rw.Complexity,
		"scoring.route_weights.danger":      rw.Danger,
	} {
		if w < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}

	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("%w: kafka.topic is required when brokers are set", ErrInvalidConfig)
	}
	return nil
}
