// Package service wires the matching engine, run store, queue, workers and
// publisher into the long-running drivermatch service.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rumbo/drivermatch/internal/adapters/http/api"
	"github.com/rumbo/drivermatch/internal/adapters/mq/publisher"
	"github.com/rumbo/drivermatch/internal/adapters/mq/queue"
	"github.com/rumbo/drivermatch/internal/adapters/mq/worker"
	"github.com/rumbo/drivermatch/internal/adapters/repository"
	"github.com/rumbo/drivermatch/internal/config"
	"github.com/rumbo/drivermatch/internal/domain/dedupe"
	"github.com/rumbo/drivermatch/internal/domain/matching"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service owns the runtime components of the matching service.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	engine    *matching.Engine
	store     repository.Store
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	publisher publisher.Publisher

	// injected overrides
	storeOverride     repository.Store
	publisherOverride publisher.Publisher

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the store opened from store.path.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.storeOverride = st
	}
}

// WithPublisher replaces the publisher built from the kafka settings.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		s.publisherOverride = p
	}
}

// New constructs a Service. A nil cfg uses config defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting drivermatch service...")

	engine, err := NewEngine(s.cfg, s.logger.Named("matching"))
	if err != nil {
		return err
	}

	store := s.storeOverride
	if store == nil {
		store, err = repository.Open(ctx, s.cfg.Store.Path, repository.WithLogger(s.logger.Named("store")))
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
	}

	pub := s.publisherOverride
	if pub == nil {
		pub, err = publisher.New(s.cfg.Kafka.Brokers, s.cfg.Kafka.Topic, publisher.WithLogger(s.logger.Named("publisher")))
		if err != nil {
			if s.storeOverride == nil {
				_ = store.Close()
			}
			return fmt.Errorf("create publisher: %w", err)
		}
	}

	s.engine = engine
	s.store = store
	s.publisher = pub
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, engine, store,
		worker.WithTimeout(s.cfg.Solver.Timeout),
		worker.WithPublisher(pub),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "drivermatch service started",
		logger.String("algorithm", string(engine.Algorithm())),
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.String("store", s.cfg.Store.Path),
		logger.Int("kafkaBrokers", len(s.cfg.Kafka.Brokers)),
	)
	return nil
}

// Stop drains the workers and closes the publisher and the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping drivermatch service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "drivermatch service stopped")
	return errors.Join(errs...)
}

// Dependencies returns what the HTTP handlers need.
func (s *Service) Dependencies() (api.Dependencies, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return api.Dependencies{}, ErrNotStarted
	}
	return api.Dependencies{
		Deduper:   s.deduper,
		Store:     s.store,
		Validator: s.engine,
		Queue:     s.queue,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.cfg.WorkerCount,
		"queueCapacity": s.cfg.QueueSize,
		"dedupeSize":    s.cfg.DedupeSize,
		"algorithm":     s.cfg.Solver.Algorithm,
		"solverTimeout": s.cfg.Solver.Timeout.String(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	stats["queueLength"] = queueLen
	stats["dedupeKeys"] = s.deduper.Size()
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	if n, err := s.store.Count(ctx); err == nil {
		stats["totalRuns"] = n
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}
