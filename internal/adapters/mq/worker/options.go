package worker

import (
	"time"

	"github.com/rumbo/drivermatch/internal/adapters/mq/publisher"
	"github.com/rumbo/drivermatch/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTimeout bounds the wall-clock time of a single run. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.timeout = d
		}
	}
}

// WithPublisher announces successful runs.
func WithPublisher(p publisher.Publisher) Option {
	return func(w *InMemoryWorker) {
		if p != nil {
			w.publisher = p
		}
	}
}

// WithTopMatches sets how many assignments the stored report details.
func WithTopMatches(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.topMatches = n
		}
	}
}
